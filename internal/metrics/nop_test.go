package metrics

import "testing"

func TestNopMetrics_DoesNotPanic(t *testing.T) {
	m := NewNop()
	m.RecordStateTransition(0, 1, 0.5)
	m.RecordReconnect("127.0.0.1:4222")
	m.IncrementPublished("orders.new")
	m.IncrementDelivered("orders.new")
	m.IncrementSlowConsumer("orders.new")
	m.ObserveRequestLatency("svc.ping", 0.01)
	m.SetPullPendingMsgs("orders-consumer", 100)
	m.SetPullPendingBytes("orders-consumer", 1024)
	m.IncrementPullRefill("orders-consumer", 90)
	m.IncrementHeartbeatMissed("orders-consumer")
	m.IncrementConsumerTerminated("orders-consumer", "consumer-deleted")
	m.IncrementOrderedConsumerReset("orders-consumer")
}
