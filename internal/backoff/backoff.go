// Package backoff implements decorrelated jitter backoff for the connection's
// reconnect loop.
package backoff

import (
	rand "math/rand/v2"
	"time"
)

// Policy configures a jittered backoff sequence.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	// Jitter adds a uniform random extra delay in [0, Jitter) on top of the
	// computed backoff, independent of the growth state Next tracks.
	Jitter time.Duration
	Seed   int64 // 0 uses the package-level PRNG
}

// DefaultPolicy matches the connection supervisor's reconnect defaults
// (§4.6/§6): 100ms base, 2x growth, capped at 2s.
func DefaultPolicy() Policy {
	return Policy{Base: 100 * time.Millisecond, Multiplier: 2.0, Max: 2 * time.Second}
}

// Backoff computes successive jittered delays for a single retry loop.
type Backoff struct {
	policy Policy
	rng    *rand.Rand
	prev   time.Duration
}

// New returns a Backoff following policy.
func New(policy Policy) *Backoff {
	return &Backoff{policy: policy, rng: newRetryRNG(policy.Seed)}
}

// Next returns the next delay in the sequence and advances state. The
// policy's Jitter, if any, is added on top of the returned value without
// perturbing the sequence state, so a reconnect storm doesn't drift the
// underlying growth curve.
func (b *Backoff) Next() time.Duration {
	b.prev = jitterBackoff(b.prev, b.policy.Base, b.policy.Multiplier, b.policy.Max, b.rng)

	return b.prev + b.extraJitter()
}

func (b *Backoff) extraJitter() time.Duration {
	if b.policy.Jitter <= 0 {
		return 0
	}
	if b.rng != nil {
		return time.Duration(b.rng.Int64N(int64(b.policy.Jitter)))
	}

	return time.Duration(rand.Int64N(int64(b.policy.Jitter))) //nolint:gosec // non-crypto backoff jitter
}

// Reset restarts the sequence from Base on the next Next call.
func (b *Backoff) Reset() { b.prev = 0 }

// jitterBackoff implements decorrelated jitter backoff with a cap.
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func jitterBackoff(prev, base time.Duration, mult float64, capDur time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if mult < 1.0 {
		mult = 1.0
	}
	if capDur > 0 && capDur < base {
		return capDur
	}

	if prev <= 0 {
		if capDur > 0 && base > capDur {
			return capDur
		}

		return base
	}
	maxDuration := time.Duration(float64(prev)*mult) - base
	if maxDuration <= 0 {
		maxDuration = base
	}

	var jitter int64
	if rng != nil {
		jitter = rng.Int64N(int64(maxDuration))
	} else {
		jitter = rand.Int64N(int64(maxDuration)) //nolint:gosec // non-crypto backoff jitter
	}
	next := base + time.Duration(jitter)
	if capDur > 0 && next > capDur {
		return capDur
	}

	return next
}

// newRetryRNG returns a deterministic RNG only when a non-zero seed is
// provided, so production jitter stays inexpensive and tests stay
// reproducible.
//
//nolint:gosec
func newRetryRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)
	s2 := s1 ^ 0x9e3779b97f4a7c15

	return rand.New(rand.NewPCG(s1, s2))
}
