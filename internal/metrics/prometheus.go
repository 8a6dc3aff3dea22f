package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector backed by Prometheus.
// Metric registration is deferred to first use so constructing a collector
// never fails even if the registerer isn't ready yet.
type PrometheusCollector struct {
	*NopMetrics

	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions  *prometheus.CounterVec
	stateSeconds      *prometheus.HistogramVec
	reconnects        *prometheus.CounterVec
	published         *prometheus.CounterVec
	delivered         *prometheus.CounterVec
	slowConsumers     *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	pullPendingMsgs   *prometheus.GaugeVec
	pullPendingBytes  *prometheus.GaugeVec
	pullRefills       *prometheus.CounterVec
	heartbeatsMissed  *prometheus.CounterVec
	consumerTerminate *prometheus.CounterVec
	orderedResets     *prometheus.CounterVec
}

// NewPrometheus returns a MetricsCollector registering its metrics with reg
// (prometheus.DefaultRegisterer if nil) under namespace (defaults to
// "flowmesh" if empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "flowmesh"
	}

	return &PrometheusCollector{NopMetrics: NewNop(), reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "conn", Name: "state_transitions_total",
			Help: "Total connection state transitions by from/to state.",
		}, []string{"from", "to"})

		p.stateSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace, Subsystem: "conn", Name: "state_duration_seconds",
			Help: "Time spent in each connection state before transitioning out.", Buckets: prometheus.DefBuckets,
		}, []string{"state"})

		p.reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "conn", Name: "reconnects_total",
			Help: "Total successful reconnects by server.",
		}, []string{"server"})

		p.published = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "conn", Name: "messages_published_total",
			Help: "Total PUB/HPUB frames sent by subject.",
		}, []string{"subject"})

		p.delivered = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "conn", Name: "messages_delivered_total",
			Help: "Total MSG/HMSG frames delivered to a subscription by subject.",
		}, []string{"subject"})

		p.slowConsumers = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "conn", Name: "slow_consumer_drops_total",
			Help: "Total messages dropped because a subscription's pending buffer was full.",
		}, []string{"subject"})

		p.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace, Subsystem: "conn", Name: "request_latency_seconds",
			Help: "Request/reply round-trip latency by subject.", Buckets: prometheus.DefBuckets,
		}, []string{"subject"})

		p.pullPendingMsgs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace, Subsystem: "pull", Name: "pending_msgs",
			Help: "Outstanding message credit on a pull consumer.",
		}, []string{"consumer"})

		p.pullPendingBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace, Subsystem: "pull", Name: "pending_bytes",
			Help: "Outstanding byte credit on a pull consumer.",
		}, []string{"consumer"})

		p.pullRefills = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "pull", Name: "refills_total",
			Help: "Total refill requests issued by consumer.",
		}, []string{"consumer"})

		p.heartbeatsMissed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "pull", Name: "heartbeats_missed_total",
			Help: "Total missed idle heartbeats by consumer.",
		}, []string{"consumer"})

		p.consumerTerminate = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "pull", Name: "consumer_terminated_total",
			Help: "Total terminal pull-consumer statuses by consumer and reason.",
		}, []string{"consumer", "reason"})

		p.orderedResets = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace, Subsystem: "pull", Name: "ordered_consumer_resets_total",
			Help: "Total ordered-consumer recreations after a sequence gap.",
		}, []string{"consumer"})

		p.reg.MustRegister(
			p.stateTransitions, p.stateSeconds, p.reconnects, p.published, p.delivered,
			p.slowConsumers, p.requestLatency, p.pullPendingMsgs, p.pullPendingBytes,
			p.pullRefills, p.heartbeatsMissed, p.consumerTerminate, p.orderedResets,
		)
	})
}

func stateLabel(s int32) string {
	names := [...]string{"Closed", "Connecting", "Handshaking", "Open", "Reconnecting"}
	if int(s) < 0 || int(s) >= len(names) {
		return "Unknown"
	}

	return names[s]
}

func (p *PrometheusCollector) RecordStateTransition(from, to int32, secondsInPrevious float64) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(stateLabel(from), stateLabel(to)).Inc()
	p.stateSeconds.WithLabelValues(stateLabel(from)).Observe(secondsInPrevious)
}

func (p *PrometheusCollector) RecordReconnect(server string) {
	p.ensureRegistered()
	p.reconnects.WithLabelValues(server).Inc()
}

func (p *PrometheusCollector) IncrementPublished(subject string) {
	p.ensureRegistered()
	p.published.WithLabelValues(subject).Inc()
}

func (p *PrometheusCollector) IncrementDelivered(subject string) {
	p.ensureRegistered()
	p.delivered.WithLabelValues(subject).Inc()
}

func (p *PrometheusCollector) IncrementSlowConsumer(subject string) {
	p.ensureRegistered()
	p.slowConsumers.WithLabelValues(subject).Inc()
}

func (p *PrometheusCollector) ObserveRequestLatency(subject string, seconds float64) {
	p.ensureRegistered()
	p.requestLatency.WithLabelValues(subject).Observe(seconds)
}

func (p *PrometheusCollector) SetPullPendingMsgs(consumer string, pending int) {
	p.ensureRegistered()
	p.pullPendingMsgs.WithLabelValues(consumer).Set(float64(pending))
}

func (p *PrometheusCollector) SetPullPendingBytes(consumer string, pending int) {
	p.ensureRegistered()
	p.pullPendingBytes.WithLabelValues(consumer).Set(float64(pending))
}

func (p *PrometheusCollector) IncrementPullRefill(consumer string, _ int) {
	p.ensureRegistered()
	p.pullRefills.WithLabelValues(consumer).Inc()
}

func (p *PrometheusCollector) IncrementHeartbeatMissed(consumer string) {
	p.ensureRegistered()
	p.heartbeatsMissed.WithLabelValues(consumer).Inc()
}

func (p *PrometheusCollector) IncrementConsumerTerminated(consumer, reason string) {
	p.ensureRegistered()
	p.consumerTerminate.WithLabelValues(consumer, reason).Inc()
}

func (p *PrometheusCollector) IncrementOrderedConsumerReset(consumer string) {
	p.ensureRegistered()
	p.orderedResets.WithLabelValues(consumer).Inc()
}
