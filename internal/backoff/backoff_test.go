package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_FirstDelayIsBase(t *testing.T) {
	b := New(Policy{Base: 50 * time.Millisecond, Multiplier: 2.0, Max: time.Second, Seed: 1})
	require.Equal(t, 50*time.Millisecond, b.Next())
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := New(Policy{Base: 10 * time.Millisecond, Multiplier: 3.0, Max: 100 * time.Millisecond, Seed: 42})
	for i := 0; i < 50; i++ {
		require.LessOrEqual(t, b.Next(), 100*time.Millisecond)
	}
}

func TestBackoff_ResetRestartsAtBase(t *testing.T) {
	b := New(Policy{Base: 20 * time.Millisecond, Multiplier: 2.0, Max: time.Second, Seed: 7})
	b.Next()
	b.Next()
	b.Reset()
	require.Equal(t, 20*time.Millisecond, b.Next())
}

func TestBackoff_JitterAddsBoundedExtraDelay(t *testing.T) {
	p := Policy{Base: 50 * time.Millisecond, Multiplier: 2.0, Max: time.Second, Jitter: 20 * time.Millisecond, Seed: 3}
	b := New(p)
	for i := 0; i < 50; i++ {
		d := b.Next()
		require.GreaterOrEqual(t, d, 50*time.Millisecond)
		require.Less(t, d, time.Second+20*time.Millisecond)
	}
}

func TestBackoff_ZeroJitterAddsNothing(t *testing.T) {
	b := New(Policy{Base: 50 * time.Millisecond, Multiplier: 2.0, Max: time.Second, Seed: 1})
	require.Equal(t, 50*time.Millisecond, b.Next())
}

func TestBackoff_DeterministicWithSeed(t *testing.T) {
	p := Policy{Base: 10 * time.Millisecond, Multiplier: 2.0, Max: time.Second, Seed: 99}
	a := New(p)
	b := New(p)
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}
