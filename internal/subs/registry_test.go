package subs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	closed  bool
	delivs  int
	lastSub string
}

func (f *fakeSink) Deliver(subject, _ string, _ map[string][]string, _ int, _ string, _ []byte) {
	f.delivs++
	f.lastSub = subject
}
func (f *fakeSink) Closed() bool { return f.closed }

func TestRegistry_RegisterLookupRemove(t *testing.T) {
	r := New()
	sid := r.NextSID()
	sink := &fakeSink{}
	r.Register(sid, "orders.new", "", sink)

	e, ok := r.Lookup(sid)
	require.True(t, ok)
	require.Equal(t, "orders.new", e.Subject)

	r.Remove(sid)
	_, ok = r.Lookup(sid)
	require.False(t, ok)
}

func TestRegistry_RemoveUnregisteredIsNoop(t *testing.T) {
	r := New()
	require.NotPanics(t, func() { r.Remove(999) })
}

func TestRegistry_SweepRemovesClosedSinks(t *testing.T) {
	r := New()
	sid1 := r.NextSID()
	sid2 := r.NextSID()
	live := &fakeSink{}
	dead := &fakeSink{closed: true}
	r.Register(sid1, "a", "", live)
	r.Register(sid2, "b", "", dead)

	removed := r.Sweep()
	require.Len(t, removed, 1)
	require.Equal(t, sid2, removed[0].SID)

	_, ok := r.Lookup(sid1)
	require.True(t, ok)
	_, ok = r.Lookup(sid2)
	require.False(t, ok)
}

func TestRegistry_NextSIDNeverReuses(t *testing.T) {
	r := New()
	seen := map[int64]bool{}
	for i := 0; i < 100; i++ {
		sid := r.NextSID()
		require.False(t, seen[sid])
		seen[sid] = true
	}
}
