package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	flowmesh "github.com/flowmesh-io/flowmesh-go"
	"github.com/nats-io/nuid"
)

const (
	// pullBatchSentinel is the batch value sent when a pull is bounded by
	// bytes rather than message count: a large sentinel batch so the broker
	// is bounded by max_bytes only.
	pullBatchSentinel = 1_000_000

	minExpires   = time.Second
	maxExpires   = 300 * time.Second
	defaultExpires = 30 * time.Second

	minIdleHeartbeat     = 500 * time.Millisecond
	maxIdleHeartbeat     = 30 * time.Second
	defaultIdleHeartbeat = 15 * time.Second

	// Status codes carried on a header-only HMSG.
	statusIdleHeartbeat  = 100
	statusNoMessages     = 404
	statusRequestTimeout = 408
	statusConflict       = 409
)

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}

	return d
}

// PullConfig configures one Consume or Fetch call. Exactly one of MaxMsgs
// and MaxBytes may be set; the unset one defaults its threshold to zero and
// its pull-request field to zero/sentinel.
type PullConfig struct {
	MaxMsgs        int
	MaxBytes       int
	ThresholdMsgs  int
	ThresholdBytes int
	Expires        time.Duration
	IdleHeartbeat  time.Duration
	NoWait         bool
}

func (c PullConfig) withDefaults() (PullConfig, error) {
	if c.MaxMsgs > 0 && c.MaxBytes > 0 {
		return c, fmt.Errorf("jetstream: %w: max_msgs and max_bytes are mutually exclusive", flowmesh.ErrUsage)
	}
	if c.MaxMsgs == 0 && c.MaxBytes == 0 {
		c.MaxMsgs = 100
	}

	if c.Expires == 0 {
		c.Expires = defaultExpires
	}
	c.Expires = clampDuration(c.Expires, minExpires, maxExpires)

	if c.IdleHeartbeat == 0 {
		c.IdleHeartbeat = defaultIdleHeartbeat
	}
	c.IdleHeartbeat = clampDuration(c.IdleHeartbeat, minIdleHeartbeat, maxIdleHeartbeat)

	if c.MaxMsgs > 0 && c.ThresholdMsgs == 0 {
		c.ThresholdMsgs = c.MaxMsgs / 2
	}
	if c.MaxBytes > 0 && c.ThresholdBytes == 0 {
		c.ThresholdBytes = c.MaxBytes / 2
	}

	return c, nil
}

// byteLimited reports whether this config bounds the pull by bytes rather
// than message count.
func (c PullConfig) byteLimited() bool { return c.MaxBytes > 0 }

type pullRequest struct {
	Batch         int   `json:"batch"`
	MaxBytes      int   `json:"max_bytes,omitempty"`
	Expires       int64 `json:"expires,omitempty"`
	IdleHeartbeat int64 `json:"idle_heartbeat,omitempty"`
	NoWait        bool  `json:"no_wait,omitempty"`
}

// NotificationKind classifies a pull-consumer lifecycle event.
type NotificationKind int

const (
	NotifyPulled NotificationKind = iota
	NotifyRefilled
	NotifyTimedOut
	NotifyTerminated
	NotifyHeartbeatLost
)

// String returns the notification kind's name.
func (k NotificationKind) String() string {
	switch k {
	case NotifyPulled:
		return "Pulled"
	case NotifyRefilled:
		return "Refilled"
	case NotifyTimedOut:
		return "TimedOut"
	case NotifyTerminated:
		return "Terminated"
	case NotifyHeartbeatLost:
		return "HeartbeatLost"
	default:
		return "Unknown"
	}
}

// Notification is one lifecycle event emitted on a Consume call's
// notification channel.
type Notification struct {
	Kind NotificationKind
	Err  error
}

// State is a pull consumer's position in the Idle → Pulling → Draining →
// (Idle | Terminated) state machine.
type State int32

const (
	StateIdle State = iota
	StatePulling
	StateDraining
	StateTerminated
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePulling:
		return "Pulling"
	case StateDraining:
		return "Draining"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// MessageIterator yields messages from one Consume call in server order.
type MessageIterator struct {
	session *pullSession
}

// Next blocks until a message is available, ctx is done, or the consumer
// terminates fatally.
func (it *MessageIterator) Next(ctx context.Context) (*flowmesh.Msg, error) {
	select {
	case msg, ok := <-it.session.msgs:
		if !ok {
			return nil, it.session.fatalErr()
		}

		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notifications returns the channel carrying lifecycle events. It is never
// closed while the iterator is open; callers should select on it
// alongside Next rather than ranging over it exclusively.
func (it *MessageIterator) Notifications() <-chan Notification { return it.session.notify }

// State returns the pull consumer's current state.
func (it *MessageIterator) State() State { return State(it.session.state.Load()) }

// Stop cancels the consume loop and releases the underlying subscription.
// It blocks until the engine goroutine has exited.
func (it *MessageIterator) Stop() { it.session.stop() }

// pullSession is the credit-accounting engine shared by Consume's
// continuous iterator. One session exists per Consume call.
type pullSession struct {
	consumer *Consumer
	cfg      PullConfig

	sub            *flowmesh.Subscription
	deliverSubject string

	mu           sync.Mutex
	pendingMsgs  int
	pendingBytes int
	refilling    bool

	state atomic.Int32

	lastActivity atomic.Int64 // unix nanos

	msgs    chan *flowmesh.Msg
	notify  chan Notification
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopOnce sync.Once

	// ctx bounds sendPull's PublishRequest calls issued from the read loop
	// and heartbeat watchdog, where no caller-supplied context is in scope.
	// cancel fires from signalStop so a stalled writer ring unblocks a
	// background pull the moment the session stops, instead of hanging.
	ctx    context.Context
	cancel context.CancelFunc

	errMu sync.Mutex
	err   error
}

// Consume starts a continuous pull-consumer session against c, returning an
// iterator that yields messages until the caller calls Stop or a fatal
// terminal status arrives.
func (c *Consumer) Consume(cfg PullConfig) (*MessageIterator, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	deliverSubject := "_JS.PULL." + nuid.Next()
	sub, err := c.js.conn.SubscribeSync(deliverSubject)
	if err != nil {
		return nil, fmt.Errorf("jetstream: subscribe pull delivery subject: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &pullSession{
		consumer:       c,
		cfg:            cfg,
		sub:            sub,
		deliverSubject: deliverSubject,
		msgs:           make(chan *flowmesh.Msg, 64),
		notify:         make(chan Notification, 16),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
		ctx:            sessionCtx,
		cancel:         cancel,
	}
	s.markActivity()

	batch, maxBytes := s.initialPull()
	if err := s.sendPull(batch, maxBytes, false); err != nil {
		cancel()
		sub.Unsubscribe()

		return nil, err
	}

	s.state.Store(int32(StatePulling))
	go s.readLoop()
	go s.heartbeatWatchdog()

	return &MessageIterator{session: s}, nil
}

// Fetch performs a single bounded pull: it requests up to batch messages,
// waits for them (or expiry, whichever first), and returns whatever
// arrived. Unlike Consume it does not refill or run a heartbeat watchdog;
// it is a one-shot convenience alongside the continuous Consume.
func (c *Consumer) Fetch(ctx context.Context, batch int) ([]*flowmesh.Msg, error) {
	cfg, err := PullConfig{MaxMsgs: batch, NoWait: false}.withDefaults()
	if err != nil {
		return nil, err
	}

	deliverSubject := "_JS.PULL." + nuid.Next()
	sub, err := c.js.conn.SubscribeSync(deliverSubject)
	if err != nil {
		return nil, fmt.Errorf("jetstream: subscribe pull delivery subject: %w", err)
	}
	defer sub.Unsubscribe()

	req := pullRequest{
		Batch:         batch,
		Expires:       cfg.Expires.Nanoseconds(),
		IdleHeartbeat: cfg.IdleHeartbeat.Nanoseconds(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("jetstream: marshal pull request: %w", err)
	}
	if err := c.js.conn.PublishRequest(ctx, c.js.apiSubject("CONSUMER.MSG.NEXT."+c.stream+"."+c.name), deliverSubject, body); err != nil {
		return nil, fmt.Errorf("jetstream: publish pull request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Expires+time.Second)
	defer cancel()

	out := make([]*flowmesh.Msg, 0, batch)
	for len(out) < batch {
		select {
		case msg := <-sub.Msgs():
			if msg.IsStatus() {
				if msg.Status == statusIdleHeartbeat {
					continue
				}
				if msg.Status == statusNoMessages || msg.Status == statusRequestTimeout {
					return out, nil
				}

				return out, fmt.Errorf("jetstream: %w: status %d %s", ErrConsumerTerminated, msg.Status, msg.StatusText)
			}
			out = append(out, msg)
		case <-ctx.Done():
			return out, nil
		}
	}

	return out, nil
}

func (s *pullSession) markActivity() { s.lastActivity.Store(time.Now().UnixNano()) }

func (s *pullSession) initialPull() (batch, maxBytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.byteLimited() {
		batch = pullBatchSentinel
		maxBytes = s.cfg.MaxBytes
	} else {
		batch = s.cfg.MaxMsgs
		maxBytes = 0
	}
	s.pendingMsgs = batch
	s.pendingBytes = maxBytes

	return batch, maxBytes
}

func (s *pullSession) sendPull(batch, maxBytes int, noWait bool) error {
	req := pullRequest{
		Batch:         batch,
		MaxBytes:      maxBytes,
		Expires:       s.cfg.Expires.Nanoseconds(),
		IdleHeartbeat: s.cfg.IdleHeartbeat.Nanoseconds(),
		NoWait:        noWait,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("jetstream: marshal pull request: %w", err)
	}

	verb := "CONSUMER.MSG.NEXT." + s.consumer.stream + "." + s.consumer.name

	return s.consumer.js.conn.PublishRequest(s.ctx, s.consumer.js.apiSubject(verb), s.deliverSubject, body)
}

// shouldRefill implements the low-water-mark OR predicate across message
// and byte credit. The unset limit's threshold is always zero, so it never
// fires spuriously in practice: a byte-limited session's pendingMsgs starts
// at the 1_000_000 sentinel and would need that many deliveries to reach
// zero.
func (s *pullSession) shouldRefill() bool {
	if s.pendingMsgs <= s.cfg.ThresholdMsgs {
		return true
	}

	return s.cfg.byteLimited() && s.pendingBytes <= s.cfg.ThresholdBytes
}

// maybeRefillLocked sends a delta-only refill pull when credit has dropped
// to the configured threshold. Caller holds s.mu.
func (s *pullSession) maybeRefillLocked() {
	if s.refilling || !s.shouldRefill() {
		return
	}
	s.refilling = true
	defer func() { s.refilling = false }()

	var batch, maxBytes int
	if s.cfg.byteLimited() {
		batch = pullBatchSentinel
		maxBytes = s.cfg.MaxBytes - s.pendingBytes
		s.pendingBytes = s.cfg.MaxBytes
	} else {
		batch = s.cfg.MaxMsgs - s.pendingMsgs
		s.pendingMsgs = s.cfg.MaxMsgs
	}

	if err := s.sendPull(batch, maxBytes, false); err != nil {
		s.emit(Notification{Kind: NotifyTerminated, Err: err})
		s.consumer.js.conn.NotifyConsumerTerminated(s.consumer.name, err)
		s.failLocked(err)

		return
	}
	s.emit(Notification{Kind: NotifyRefilled})
}

// refillToMaxLocked restores full credit after a pull ended with a 408 or a
// 404 status (see handleStatus). Caller holds s.mu.
func (s *pullSession) refillToMaxLocked() {
	var batch, maxBytes int
	if s.cfg.byteLimited() {
		batch = pullBatchSentinel
		maxBytes = s.cfg.MaxBytes
		s.pendingBytes = s.cfg.MaxBytes
	} else {
		batch = s.cfg.MaxMsgs
		s.pendingMsgs = s.cfg.MaxMsgs
	}

	if err := s.sendPull(batch, maxBytes, false); err != nil {
		s.emit(Notification{Kind: NotifyTerminated, Err: err})
		s.consumer.js.conn.NotifyConsumerTerminated(s.consumer.name, err)
		s.failLocked(err)

		return
	}
	s.emit(Notification{Kind: NotifyTimedOut})
}

func wireSize(msg *flowmesh.Msg) int {
	size := len(msg.Data)
	for k, values := range msg.Header {
		for _, v := range values {
			size += len(k) + len(v) + 4
		}
	}

	return size
}

func (s *pullSession) readLoop() {
	defer close(s.doneCh)
	defer close(s.msgs)
	defer s.sub.Unsubscribe()

	for {
		select {
		case <-s.stopCh:
			return
		case msg, ok := <-s.sub.Msgs():
			if !ok {
				return
			}
			s.markActivity()

			if msg.IsStatus() {
				if s.handleStatus(msg.Status, msg.StatusText) {
					return
				}

				continue
			}

			s.mu.Lock()
			s.pendingMsgs--
			s.pendingBytes -= wireSize(msg)
			s.maybeRefillLocked()
			s.mu.Unlock()

			s.emit(Notification{Kind: NotifyPulled})

			select {
			case s.msgs <- msg:
			case <-s.stopCh:
				return
			}
		}
	}
}

// handleStatus applies one control-status frame against the terminal
// status table, returning true when the session should stop.
func (s *pullSession) handleStatus(status int, text string) bool {
	switch status {
	case statusIdleHeartbeat:
		return false
	case statusNoMessages, statusRequestTimeout:
		// Consume never sets no_wait, so 404 here always means the same
		// thing as 408: this pull's credit is spent, refill to max. A
		// no_wait caller (Fetch does its own status handling, not this
		// method) would need to treat 404 as a successful empty batch
		// instead of refilling.
		s.mu.Lock()
		s.pendingMsgs = 0
		s.pendingBytes = 0
		s.refillToMaxLocked()
		s.mu.Unlock()

		return false
	case statusConflict:
		err := fmt.Errorf("jetstream: %w: %d %s", ErrConsumerTerminated, status, text)
		s.emit(Notification{Kind: NotifyTerminated, Err: err})
		s.consumer.js.conn.NotifyConsumerTerminated(s.consumer.name, err)
		s.fail(err)

		return true
	default:
		if status >= 400 {
			err := fmt.Errorf("jetstream: %w: %d %s", ErrConsumerTerminated, status, text)
			s.emit(Notification{Kind: NotifyTerminated, Err: err})
			s.consumer.js.conn.NotifyConsumerTerminated(s.consumer.name, err)
			s.fail(err)

			return true
		}

		return false
	}
}

func (s *pullSession) heartbeatWatchdog() {
	ticker := time.NewTicker(s.cfg.IdleHeartbeat)
	defer ticker.Stop()

	missed := false
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.doneCh:
			return
		case <-ticker.C:
			elapsed := time.Duration(time.Now().UnixNano() - s.lastActivity.Load())
			if elapsed <= 2*s.cfg.IdleHeartbeat {
				missed = false

				continue
			}
			if missed {
				continue
			}
			missed = true
			s.emit(Notification{Kind: NotifyHeartbeatLost, Err: ErrHeartbeatLost})
			s.consumer.js.conn.NotifyHeartbeatLost(s.consumer.name)

			s.mu.Lock()
			batch, maxBytes := s.pendingMsgs, s.pendingBytes
			if !s.cfg.byteLimited() {
				maxBytes = 0
			} else {
				batch = pullBatchSentinel
			}
			_ = s.sendPull(batch, maxBytes, false)
			s.mu.Unlock()
		}
	}
}

func (s *pullSession) emit(n Notification) {
	select {
	case s.notify <- n:
	default:
	}
}

func (s *pullSession) fail(err error) {
	s.mu.Lock()
	s.failLocked(err)
	s.mu.Unlock()
}

// failLocked records err and signals the read loop to exit. It must never
// block waiting on doneCh: it runs on the read loop's own goroutine when a
// fatal status arrives, and that goroutine is what closes doneCh.
func (s *pullSession) failLocked(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	s.state.Store(int32(StateTerminated))
	s.signalStop()
}

// signalStop closes stopCh at most once, without waiting for the read loop
// to observe it. It also cancels s.ctx so any sendPull blocked on a full
// writer ring unblocks immediately instead of holding up shutdown.
func (s *pullSession) signalStop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.cancel()
	})
}

func (s *pullSession) fatalErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	if s.err != nil {
		return s.err
	}

	return ErrIteratorClosed
}

// stop is the external Stop() entry point: it may be called from any
// goroutine except the read loop's own, since it blocks on doneCh.
func (s *pullSession) stop() {
	if State(s.state.Load()) != StateTerminated {
		s.state.Store(int32(StateDraining))
	}
	s.signalStop()
	<-s.doneCh
	s.state.Store(int32(StateTerminated))
}
