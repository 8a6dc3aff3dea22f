package jetstream

import (
	"testing"
	"time"

	flowmesh "github.com/flowmesh-io/flowmesh-go"
	"github.com/stretchr/testify/require"
)

func TestPullConfig_IdleHeartbeatClamp(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{100 * time.Millisecond, 500 * time.Millisecond},
		{60 * time.Second, 30 * time.Second},
		{10 * time.Second, 10 * time.Second},
	}
	for _, tc := range cases {
		cfg, err := PullConfig{MaxMsgs: 1, IdleHeartbeat: tc.in}.withDefaults()
		require.NoError(t, err)
		require.Equal(t, tc.want, cfg.IdleHeartbeat)
	}
}

func TestPullConfig_ExpiresClamp(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{100 * time.Millisecond, time.Second},
		{300 * time.Second, 300 * time.Second},
		{10 * time.Second, 10 * time.Second},
	}
	for _, tc := range cases {
		cfg, err := PullConfig{MaxMsgs: 1, Expires: tc.in}.withDefaults()
		require.NoError(t, err)
		require.Equal(t, tc.want, cfg.Expires)
	}
}

func TestPullConfig_DefaultThresholds(t *testing.T) {
	cfg, err := PullConfig{MaxMsgs: 10_000}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, 5_000, cfg.ThresholdMsgs)

	cfg, err = PullConfig{MaxBytes: 1024}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, 512, cfg.ThresholdBytes)
}

func TestPullConfig_RejectsBothMaxMsgsAndMaxBytes(t *testing.T) {
	_, err := PullConfig{MaxMsgs: 10, MaxBytes: 10}.withDefaults()
	require.ErrorIs(t, err, flowmesh.ErrUsage)
}

func TestPullSession_RefillOnMessageCountThreshold(t *testing.T) {
	cfg, err := PullConfig{MaxMsgs: 100, ThresholdMsgs: 10}.withDefaults()
	require.NoError(t, err)

	s := &pullSession{cfg: cfg}
	s.initialPull()
	require.Equal(t, 100, s.pendingMsgs)

	for i := 0; i < 89; i++ {
		s.pendingMsgs--
		require.False(t, s.shouldRefill(), "unexpected refill at message %d", i+1)
	}

	s.pendingMsgs--
	require.True(t, s.shouldRefill())
	require.Equal(t, 10, s.pendingMsgs)

	delta := s.cfg.MaxMsgs - s.pendingMsgs
	require.Equal(t, 90, delta)
}

func TestPullSession_RefillOnByteThreshold(t *testing.T) {
	cfg, err := PullConfig{MaxBytes: 1000, ThresholdBytes: 100}.withDefaults()
	require.NoError(t, err)

	s := &pullSession{cfg: cfg}
	s.initialPull()
	require.Equal(t, pullBatchSentinel, s.pendingMsgs)
	require.Equal(t, 1000, s.pendingBytes)

	for i := 0; i < 89; i++ {
		s.pendingBytes -= 10
		require.False(t, s.shouldRefill(), "unexpected refill at message %d", i+1)
	}

	s.pendingBytes -= 10
	require.True(t, s.shouldRefill())
	require.Equal(t, 100, s.pendingBytes)

	delta := s.cfg.MaxBytes - s.pendingBytes
	require.Equal(t, 900, delta)
}

func TestPullSession_EmptyPayloadIsValidWireSize(t *testing.T) {
	msg := &flowmesh.Msg{}
	require.Equal(t, 0, wireSize(msg))
}
