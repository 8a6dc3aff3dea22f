package jetstream

import (
	"context"
	"fmt"
	"sync"

	flowmesh "github.com/flowmesh-io/flowmesh-go"
	"github.com/nats-io/nuid"
)

// OrderedConsumerConfig configures an OrderedConsumer.
type OrderedConsumerConfig struct {
	FilterSubject string
	Pull          PullConfig
}

// OrderedConsumer is a higher-level pull consumer that auto-creates a
// memory-backed, single-replica, no-ack consumer and transparently
// recreates it whenever a sequence gap indicates a lost message. Recovery
// is invisible to the caller: Next keeps returning in-order messages across
// a recreation.
type OrderedConsumer struct {
	js     *JetStream
	stream string
	cfg    OrderedConsumerConfig

	mu       sync.Mutex
	current  *Consumer
	iterator *MessageIterator
	lastSeq  uint64
	name     string
}

// NewOrderedConsumer creates the initial underlying consumer and returns an
// OrderedConsumer ready for Next.
func NewOrderedConsumer(ctx context.Context, js *JetStream, stream string, cfg OrderedConsumerConfig) (*OrderedConsumer, error) {
	oc := &OrderedConsumer{js: js, stream: stream, cfg: cfg, name: "ordered-" + nuid.Next()}
	if err := oc.recreate(ctx, 0); err != nil {
		return nil, err
	}

	return oc, nil
}

func (oc *OrderedConsumer) recreate(ctx context.Context, startSeq uint64) error {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	if oc.current != nil {
		oc.iterator.Stop()
		_ = oc.current.Delete(ctx)
	}

	config := ConsumerConfig{
		Name:          oc.name,
		FilterSubject: oc.cfg.FilterSubject,
		AckPolicy:     AckNone,
		ReplayPolicy:  ReplayInstant,
		MemoryStorage: true,
		Replicas:      1,
	}
	if startSeq > 0 {
		config.DeliverPolicy = DeliverByStartSequence
		config.OptStartSeq = startSeq
	} else {
		config.DeliverPolicy = DeliverAll
	}

	cons, err := oc.js.CreateConsumer(ctx, oc.stream, config)
	if err != nil {
		return fmt.Errorf("jetstream: recreate ordered consumer: %w", err)
	}

	it, err := cons.Consume(oc.cfg.Pull)
	if err != nil {
		return fmt.Errorf("jetstream: start ordered consume: %w", err)
	}

	oc.current = cons
	oc.iterator = it

	return nil
}

// Next returns the next in-order message. On detecting a sequence gap
// (inferred from the delivered message's reply subject sequence field
// carried by the broker) it transparently deletes and recreates the
// underlying consumer starting after the last delivered sequence, then
// resumes — the caller observes only an ordinary Next call, possibly with
// extra latency for the recreation round trip.
func (oc *OrderedConsumer) Next(ctx context.Context) (*flowmesh.Msg, error) {
	for {
		oc.mu.Lock()
		it := oc.iterator
		oc.mu.Unlock()

		msg, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}

		seq, ok := ackReplySequence(msg.Reply)
		if !ok {
			return msg, nil
		}

		oc.mu.Lock()
		expected := oc.lastSeq + 1
		if oc.lastSeq != 0 && seq != expected {
			oc.mu.Unlock()
			if err := oc.recreate(ctx, expected); err != nil {
				return nil, err
			}

			continue
		}
		oc.lastSeq = seq
		oc.mu.Unlock()

		return msg, nil
	}
}

// Stop releases the underlying consumer.
func (oc *OrderedConsumer) Stop(ctx context.Context) error {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	if oc.iterator != nil {
		oc.iterator.Stop()
	}
	if oc.current != nil {
		return oc.current.Delete(ctx)
	}

	return nil
}

// ackReplySequence extracts the stream sequence number from a JetStream
// delivery's ack-reply subject, whose token layout the broker fixes as
// "$JS.ACK.<stream>.<consumer>.<num_delivered>.<stream_seq>.<consumer_seq>.<ts>.<pending>".
func ackReplySequence(reply string) (uint64, bool) {
	if reply == "" {
		return 0, false
	}

	var tokens [9]string
	n := 0
	start := 0
	for i := 0; i <= len(reply); i++ {
		if i == len(reply) || reply[i] == '.' {
			if n < len(tokens) {
				tokens[n] = reply[start:i]
			}
			n++
			start = i + 1
		}
	}
	if n < 6 {
		return 0, false
	}

	var seq uint64
	for _, c := range tokens[5] {
		if c < '0' || c > '9' {
			return 0, false
		}
		seq = seq*10 + uint64(c-'0')
	}

	return seq, true
}
