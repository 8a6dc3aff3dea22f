package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMux_RouteDeliversToWaiter(t *testing.T) {
	m := New(NewInboxPrefix())
	token, replies := m.NewToken()

	ok := m.Route(m.FullSubject(token), Reply{Payload: []byte("pong")})
	require.True(t, ok)

	select {
	case r := <-replies:
		require.Equal(t, []byte("pong"), r.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestMux_RouteUnmatchedTokenReturnsFalse(t *testing.T) {
	m := New(NewInboxPrefix())
	ok := m.Route(m.FullSubject("nonexistent"), Reply{})
	require.False(t, ok)
}

func TestMux_ForgetPreventsDelivery(t *testing.T) {
	m := New(NewInboxPrefix())
	token, _ := m.NewToken()
	m.Forget(token)

	ok := m.Route(m.FullSubject(token), Reply{})
	require.False(t, ok)
}

func TestMux_RouteOnlyDeliversOnce(t *testing.T) {
	m := New(NewInboxPrefix())
	token, _ := m.NewToken()

	first := m.Route(m.FullSubject(token), Reply{})
	second := m.Route(m.FullSubject(token), Reply{})
	require.True(t, first)
	require.False(t, second)
}
