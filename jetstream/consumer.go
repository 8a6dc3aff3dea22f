package jetstream

import (
	"context"
	"time"
)

// AckPolicy selects how a consumer's deliveries must be acknowledged.
type AckPolicy string

const (
	AckNone     AckPolicy = "none"
	AckAll      AckPolicy = "all"
	AckExplicit AckPolicy = "explicit"
)

// ReplayPolicy selects the pace at which stored messages are redelivered.
type ReplayPolicy string

const (
	ReplayInstant  ReplayPolicy = "instant"
	ReplayOriginal ReplayPolicy = "original"
)

// DeliverPolicy selects where in the stream a new consumer starts.
type DeliverPolicy string

const (
	DeliverAll             DeliverPolicy = "all"
	DeliverLast            DeliverPolicy = "last"
	DeliverNew             DeliverPolicy = "new"
	DeliverByStartSequence DeliverPolicy = "by_start_sequence"
	DeliverByStartTime     DeliverPolicy = "by_start_time"
	DeliverLastPerSubject  DeliverPolicy = "last_per_subject"
)

// ConsumerConfig is the subset of consumer configuration fields the admin
// API accepts.
type ConsumerConfig struct {
	Name             string        `json:"name,omitempty"`
	Durable          string        `json:"durable_name,omitempty"`
	DeliverSubject   string        `json:"deliver_subject,omitempty"`
	FilterSubject    string        `json:"filter_subject,omitempty"`
	FilterSubjects   []string      `json:"filter_subjects,omitempty"`
	AckPolicy        AckPolicy     `json:"ack_policy,omitempty"`
	AckWait          time.Duration `json:"ack_wait,omitempty"`
	MaxDeliver       int           `json:"max_deliver,omitempty"`
	ReplayPolicy     ReplayPolicy  `json:"replay_policy,omitempty"`
	InactiveThreshold time.Duration `json:"inactive_threshold,omitempty"`
	Replicas         int           `json:"num_replicas,omitempty"`
	MemoryStorage    bool          `json:"mem_storage,omitempty"`
	DeliverPolicy    DeliverPolicy `json:"deliver_policy,omitempty"`
	OptStartSeq      uint64        `json:"opt_start_seq,omitempty"`
	OptStartTime     *time.Time    `json:"opt_start_time,omitempty"`
	HeadersOnly      bool          `json:"headers_only,omitempty"`
}

// ConsumerInfo is the admin API's response describing a consumer.
type ConsumerInfo struct {
	Stream         string         `json:"stream_name"`
	Name           string         `json:"name"`
	Config         ConsumerConfig `json:"config"`
	Created        time.Time      `json:"created"`
	NumPending     uint64         `json:"num_pending"`
	NumAckPending  int            `json:"num_ack_pending"`
	NumRedelivered int            `json:"num_redelivered"`
	NumWaiting     int            `json:"num_waiting"`
}

type createConsumerRequest struct {
	StreamName string         `json:"stream_name"`
	Config     ConsumerConfig `json:"config"`
}

// consumerCreateVerb picks the CONSUMER.CREATE variant matching how much of
// the name is known up front, mirroring the broker's overloaded endpoint
// shape.
func consumerCreateVerb(stream string, cfg ConsumerConfig) string {
	verb := "CONSUMER.CREATE." + stream
	if cfg.Durable != "" {
		verb += "." + cfg.Durable
		if cfg.FilterSubject != "" {
			verb += "." + cfg.FilterSubject
		}
	}

	return verb
}

// CreateConsumer creates a consumer on stream.
func (j *JetStream) CreateConsumer(ctx context.Context, stream string, cfg ConsumerConfig) (*Consumer, error) {
	var info ConsumerInfo
	req := createConsumerRequest{StreamName: stream, Config: cfg}
	if err := j.apiRequest(ctx, consumerCreateVerb(stream, cfg), req, &info); err != nil {
		return nil, err
	}

	return &Consumer{js: j, stream: stream, name: info.Name, info: info}, nil
}

// CreateOrUpdateConsumer creates cfg's consumer if absent, or applies cfg to
// the existing durable consumer of the same name otherwise. The broker's
// CONSUMER.CREATE endpoint is idempotent for durable consumers, so this is
// the same call as CreateConsumer; the distinct name matches the shape the
// pull-consumer engine's callers expect.
func (j *JetStream) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg ConsumerConfig) (*Consumer, error) {
	return j.CreateConsumer(ctx, stream, cfg)
}

// DeleteConsumer removes a consumer from a stream.
func (j *JetStream) DeleteConsumer(ctx context.Context, stream, name string) error {
	return j.apiRequest(ctx, "CONSUMER.DELETE."+stream+"."+name, nil, nil)
}

// GetConsumerInfo fetches a consumer's current info.
func (j *JetStream) GetConsumerInfo(ctx context.Context, stream, name string) (*ConsumerInfo, error) {
	var info ConsumerInfo
	if err := j.apiRequest(ctx, "CONSUMER.INFO."+stream+"."+name, nil, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

type consumerListResponse struct {
	Consumers []ConsumerInfo `json:"consumers"`
}

// ListConsumers returns every consumer defined on stream.
func (j *JetStream) ListConsumers(ctx context.Context, stream string) ([]ConsumerInfo, error) {
	var resp consumerListResponse
	if err := j.apiRequest(ctx, "CONSUMER.LIST."+stream, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Consumers, nil
}

// Consumer is a thin facade over one named consumer, and the entry point
// for the pull-consumer engine (Consume, Fetch).
type Consumer struct {
	js     *JetStream
	stream string
	name   string
	info   ConsumerInfo
}

// GetConsumer returns a facade bound to an existing consumer, without
// fetching its info; call Info to populate CachedInfo.
func (j *JetStream) GetConsumer(stream, name string) *Consumer {
	return &Consumer{js: j, stream: stream, name: name}
}

// Stream returns the name of the stream this consumer reads from.
func (c *Consumer) Stream() string { return c.stream }

// Name returns the consumer's name.
func (c *Consumer) Name() string { return c.name }

// CachedInfo returns the ConsumerInfo captured at creation time, without a
// round trip. It may be stale; call Info for the current value.
func (c *Consumer) CachedInfo() ConsumerInfo { return c.info }

// Info fetches the consumer's current info.
func (c *Consumer) Info(ctx context.Context) (*ConsumerInfo, error) {
	info, err := c.js.GetConsumerInfo(ctx, c.stream, c.name)
	if err != nil {
		return nil, err
	}
	c.info = *info

	return info, nil
}

// Delete removes the consumer.
func (c *Consumer) Delete(ctx context.Context) error {
	return c.js.DeleteConsumer(ctx, c.stream, c.name)
}
