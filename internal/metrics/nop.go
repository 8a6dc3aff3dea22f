// Package metrics provides the concrete MetricsCollector implementations:
// a no-op sink and a Prometheus-backed collector.
package metrics

// NopMetrics discards every metric. Useful for tests and for callers that
// don't want Prometheus wired in.
type NopMetrics struct{}

// NewNop returns a MetricsCollector that discards everything.
func NewNop() *NopMetrics { return &NopMetrics{} }

func (n *NopMetrics) RecordStateTransition(_, _ int32, _ float64) {}
func (n *NopMetrics) RecordReconnect(_ string)                    {}
func (n *NopMetrics) IncrementPublished(_ string)                 {}
func (n *NopMetrics) IncrementDelivered(_ string)                 {}
func (n *NopMetrics) IncrementSlowConsumer(_ string)              {}
func (n *NopMetrics) ObserveRequestLatency(_ string, _ float64)   {}

func (n *NopMetrics) SetPullPendingMsgs(_ string, _ int)          {}
func (n *NopMetrics) SetPullPendingBytes(_ string, _ int)         {}
func (n *NopMetrics) IncrementPullRefill(_ string, _ int)         {}
func (n *NopMetrics) IncrementHeartbeatMissed(_ string)           {}
func (n *NopMetrics) IncrementConsumerTerminated(_, _ string)     {}
func (n *NopMetrics) IncrementOrderedConsumerReset(_ string)      {}
