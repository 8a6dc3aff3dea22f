package jetstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamConfig_JSONRoundTrip(t *testing.T) {
	cfg := StreamConfig{
		Name:      "orders",
		Subjects:  []string{"orders.*"},
		Retention: RetentionWorkQueue,
		Storage:   StorageFile,
		Replicas:  3,
		Discard:   DiscardOld,
	}

	body, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded StreamConfig
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Equal(t, cfg, decoded)
}

func TestPurgeRequest_OmitsEmptyFields(t *testing.T) {
	body, err := json.Marshal(PurgeRequest{Keep: 10})
	require.NoError(t, err)
	require.JSONEq(t, `{"keep":10}`, string(body))
}
