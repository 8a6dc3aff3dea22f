package flowmesh

// MetricsCollector receives instrumentation events from the connection
// supervisor and the subscription delivery path. The PullConsumerMetrics
// methods are part of the interface, but the jetstream pull-consumer engine
// does not call them. Implementations must be safe for concurrent use; all
// methods are called from hot paths and must not block.
type MetricsCollector interface {
	ConnMetrics
	PullConsumerMetrics
}

// ConnMetrics covers the connection supervisor and core pub/sub paths.
type ConnMetrics interface {
	// RecordStateTransition observes a ConnState change and how long the
	// connection spent in the previous state. from/to are ConnState values
	// carried as int32 so this interface can be implemented outside the
	// flowmesh package without an import cycle.
	RecordStateTransition(from, to int32, secondsInPrevious float64)
	// RecordReconnect counts a successful reconnect against the server it
	// reconnected to.
	RecordReconnect(server string)
	// IncrementPublished counts an outbound PUB/HPUB frame for subject.
	IncrementPublished(subject string)
	// IncrementDelivered counts an inbound MSG/HMSG frame delivered to a
	// subscription sink for subject.
	IncrementDelivered(subject string)
	// IncrementSlowConsumer counts a message dropped because its
	// subscription's pending buffer was full.
	IncrementSlowConsumer(subject string)
	// ObserveRequestLatency observes end-to-end request/reply latency.
	ObserveRequestLatency(subject string, seconds float64)
}

// PullConsumerMetrics covers the JetStream pull-consumer engine.
type PullConsumerMetrics interface {
	// SetPullPendingMsgs records the current outstanding message credit.
	SetPullPendingMsgs(consumer string, pending int)
	// SetPullPendingBytes records the current outstanding byte credit.
	SetPullPendingBytes(consumer string, pending int)
	// IncrementPullRefill counts a refill request, along with the batch
	// size requested.
	IncrementPullRefill(consumer string, batch int)
	// IncrementHeartbeatMissed counts a missed idle heartbeat.
	IncrementHeartbeatMissed(consumer string)
	// IncrementConsumerTerminated counts a terminal pull-consumer status by
	// reason (e.g. "consumer-deleted", "max-ack-pending", "leadership-change").
	IncrementConsumerTerminated(consumer, reason string)
	// IncrementOrderedConsumerReset counts an ordered consumer recreating
	// itself after a sequence gap.
	IncrementOrderedConsumerReset(consumer string)
}
