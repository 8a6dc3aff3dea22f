package jetstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAckReplySequence_ParsesStreamSeq(t *testing.T) {
	reply := "$JS.ACK.orders.processor.1.42.7.1700000000000000000.0"
	seq, ok := ackReplySequence(reply)
	require.True(t, ok)
	require.EqualValues(t, 42, seq)
}

func TestAckReplySequence_RejectsMalformed(t *testing.T) {
	_, ok := ackReplySequence("not-an-ack-reply")
	require.False(t, ok)
}

func TestAckReplySequence_EmptyReturnsFalse(t *testing.T) {
	_, ok := ackReplySequence("")
	require.False(t, ok)
}
