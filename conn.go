// Package flowmesh implements a client for a subject-based publish/subscribe
// messaging system with an optional durable stream layer.
//
// # Quick Start
//
//	conn, err := flowmesh.Connect(context.Background(), flowmesh.DefaultOptions(),
//		flowmesh.WithServers("mesh://127.0.0.1:4222"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	sub, err := conn.SubscribeSync("orders.new")
//	if err != nil {
//		log.Fatal(err)
//	}
//	msg := <-sub.Msgs()
//
//	err = conn.Publish(context.Background(), "orders.new", []byte("hello"))
//
// # Architecture
//
// A Conn cycles through ConnState values (Closed, Connecting, Handshaking,
// Open, Reconnecting) as it dials a server, negotiates the wire handshake,
// and serves traffic. A dedicated read-loop goroutine parses inbound frames
// and dispatches them to the subscription registry or the inbox
// multiplexer; a dedicated writer goroutine (internal/outbound) drains
// outbound frames onto the current transport so a reconnect can swap
// sockets without tearing a frame in flight.
//
// # JetStream
//
// The jetstream subpackage layers a typed admin API and a pull-consumer
// engine with credit accounting and heartbeat supervision on top of a Conn.
package flowmesh

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	rnd "math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nkeys"

	"github.com/flowmesh-io/flowmesh-go/internal/backoff"
	"github.com/flowmesh-io/flowmesh-go/internal/inbox"
	"github.com/flowmesh-io/flowmesh-go/internal/outbound"
	"github.com/flowmesh-io/flowmesh-go/internal/proto"
	"github.com/flowmesh-io/flowmesh-go/internal/subs"
	"github.com/flowmesh-io/flowmesh-go/internal/transport"
)

// serverInfo mirrors the broker's INFO document.
type serverInfo struct {
	ServerID     string   `json:"server_id"`
	Version      string   `json:"version"`
	MaxPayload   int64    `json:"max_payload"`
	Proto        int      `json:"proto"`
	ClientID     uint64   `json:"client_id,omitempty"`
	AuthRequired bool     `json:"auth_required,omitempty"`
	TLSRequired  bool     `json:"tls_required,omitempty"`
	TLSAvailable bool     `json:"tls_available,omitempty"`
	ConnectURLs  []string `json:"connect_urls,omitempty"`
	Headers      bool     `json:"headers,omitempty"`
	Nonce        string   `json:"nonce,omitempty"`
}

// connectFrame mirrors the CONNECT JSON document.
type connectFrame struct {
	Verbose      bool   `json:"verbose"`
	Pedantic     bool   `json:"pedantic"`
	TLSRequired  bool   `json:"tls_required"`
	Name         string `json:"name,omitempty"`
	Lang         string `json:"lang"`
	Version      string `json:"version"`
	Protocol     int    `json:"protocol"`
	Headers      bool   `json:"headers"`
	NoResponders bool   `json:"no_responders"`
	AuthToken    string `json:"auth_token,omitempty"`
	User         string `json:"user,omitempty"`
	Pass         string `json:"pass,omitempty"`
	Sig          string `json:"sig,omitempty"`
	NKey         string `json:"nkey,omitempty"`
	JWT          string `json:"jwt,omitempty"`
}

const clientVersion = "0.1.0"

// Conn is a long-lived, auto-reconnecting connection to the messaging
// cluster. Construct one with Connect.
type Conn struct {
	opts *Options

	state atomic.Int32

	mu          sync.Mutex
	transportC  transport.Conn
	dialer      *transport.Dialer
	writer      *outbound.Writer
	scanner     *proto.Scanner
	info        serverInfo
	servers     []string
	serverIdx   int
	stateSince  time.Time

	// maxPayload mirrors info.MaxPayload for lock-free reads from the
	// publish hot path; connectOnce updates both under c.mu.
	maxPayload atomic.Int64

	registry *subs.Registry
	mux      *inbox.Mux
	disp     *dispatcher

	pongCh chan struct{}
	closed chan struct{}

	closeOnce sync.Once
}

// Connect dials the given servers, completes the handshake, and returns an
// open Conn. It applies opts on top of DefaultOptions()-style base if base
// is nil.
func Connect(ctx context.Context, base *Options, opts ...Option) (*Conn, error) {
	if base == nil {
		base = DefaultOptions()
	}
	for _, opt := range opts {
		opt(base)
	}
	if base.InboxPrefix == "" {
		base.InboxPrefix = inbox.NewInboxPrefix()
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	c := &Conn{
		opts:     base,
		servers:  append([]string(nil), base.Servers...),
		registry: subs.New(),
		mux:      inbox.New(base.InboxPrefix),
		disp:     newDispatcher(base.Handlers),
		pongCh:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
		dialer:   transport.NewDialer(base.TLSPolicy, base.TLSConfig, base.TLSInsecureSkipVerify),
	}
	c.setState(StateConnecting)

	if err := c.connectOnce(ctx); err != nil {
		c.disp.stop()

		return nil, err
	}

	if err := c.subscribeInbox(); err != nil {
		c.Close()

		return nil, err
	}

	go c.pingLoop()
	go c.sweepLoop()

	return c, nil
}

// inboxSink absorbs deliveries for the wildcard inbox subscription that
// mux.Route did not claim: dispatchMsg hands tracked replies to their waiter
// first, and only a message with no waiter (a late reply after Forget, or a
// stray publish to the inbox prefix) reaches this no-op Deliver. It also
// lets the wildcard SUB survive replaySubscriptions after a reconnect like
// any other registry entry.
type inboxSink struct{}

func (inboxSink) Deliver(string, string, map[string][]string, int, string, []byte) {}
func (inboxSink) Closed() bool                                                     { return false }

func (c *Conn) subscribeInbox() error {
	sid := c.registry.NextSID()
	c.registry.Register(sid, c.mux.Subject(), "", inboxSink{})

	var buf bytes.Buffer
	proto.WriteSub(&buf, c.mux.Subject(), "", sid)

	if !c.writer.TryEnqueue(append([]byte(nil), buf.Bytes()...)) {
		return wrapKind(KindTransport, fmt.Errorf("flowmesh: outbound queue full"))
	}

	return nil
}

func (c *Conn) logger() Logger { return c.opts.Logger }

// Logger returns the connection's configured Logger, so collaborating
// packages (e.g. jetstream) can log through the same sink instead of
// falling back to fmt.Println or the bare log package.
func (c *Conn) Logger() Logger { return c.opts.Logger }

// Metrics returns the connection's configured MetricsCollector.
func (c *Conn) Metrics() MetricsCollector { return c.opts.MetricsCollector }

// MaxPayload returns the max_payload advertised by the currently or
// most-recently connected server, or 0 if not yet known.
func (c *Conn) MaxPayload() int64 { return c.maxPayload.Load() }

// NotifyHeartbeatLost invokes HeartbeatLostHandler, if set, on the event
// dispatcher goroutine. The jetstream package calls this so a pull
// consumer's missed heartbeat is observable through the same connection-wide
// event hook as reconnects and drops, alongside the per-Consume Notification
// channel.
func (c *Conn) NotifyHeartbeatLost(consumerName string) {
	c.disp.emit(func() {
		if c.opts.Handlers.HeartbeatLostHandler != nil {
			c.opts.Handlers.HeartbeatLostHandler(c, consumerName)
		}
	})
}

// NotifyConsumerTerminated invokes ConsumerTerminatedHandler, if set, on the
// event dispatcher goroutine.
func (c *Conn) NotifyConsumerTerminated(consumerName string, err error) {
	c.disp.emit(func() {
		if c.opts.Handlers.ConsumerTerminatedHandler != nil {
			c.opts.Handlers.ConsumerTerminatedHandler(c, consumerName, err)
		}
	})
}

func (c *Conn) setState(s ConnState) {
	prev := ConnState(c.state.Swap(int32(s)))
	elapsed := time.Since(c.stateSince).Seconds()
	c.stateSince = time.Now()
	c.opts.MetricsCollector.RecordStateTransition(int32(prev), int32(s), elapsed)
	c.logger().Debug("connection state transition", "from", prev.String(), "to", s.String())
}

// State returns the current ConnState.
func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }

// connectOnce performs one dial+handshake attempt against the server
// rotation, advancing through Connecting -> Handshaking -> Open.
func (c *Conn) connectOnce(ctx context.Context) error {
	if len(c.servers) == 0 {
		return wrapKind(KindTransport, ErrNoServers)
	}

	shuffled := append([]string(nil), c.servers...)
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var lastErr error
	for _, addr := range shuffled {
		conn, info, err := c.dialAndHandshake(ctx, addr)
		if err != nil {
			lastErr = err
			c.logger().Warn("connect attempt failed", "server", addr, "error", err)

			continue
		}

		c.mu.Lock()
		c.transportC = conn
		c.info = info
		c.maxPayload.Store(info.MaxPayload)
		if c.writer == nil {
			c.writer = outbound.New(conn, c.opts.CommandWriterBufferSize)
		} else {
			c.writer.Swap(conn)
		}
		c.scanner = proto.NewScanner()
		c.mu.Unlock()

		c.setState(StateOpen)
		c.replaySubscriptions()
		go c.readLoop(conn)
		c.disp.emit(func() {
			if c.opts.Handlers.ConnectedHandler != nil {
				c.opts.Handlers.ConnectedHandler(c)
			}
		})

		return nil
	}

	return wrapKind(KindTransport, fmt.Errorf("%w: all servers failed: %w", ErrNoServers, lastErr))
}

func (c *Conn) dialAndHandshake(ctx context.Context, addr string) (transport.Conn, serverInfo, error) {
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+len("://"):]
	}
	conn, err := c.dialer.Dial(ctx, addr)
	if err != nil {
		return nil, serverInfo{}, wrapKind(KindTransport, err)
	}

	c.setState(StateHandshaking)

	scanner := proto.NewScanner()
	readBuf := make([]byte, 4096)

	info, err := readInfo(conn, scanner, readBuf)
	if err != nil {
		conn.Close()

		return nil, serverInfo{}, wrapKind(KindProtocol, fmt.Errorf("%w: %w", ErrProtocol, err))
	}

	if c.opts.TLSPolicy == transport.TLSRequire && !info.TLSAvailable && !info.TLSRequired {
		conn.Close()

		return nil, serverInfo{}, wrapKind(KindTLS, fmt.Errorf("%w: server does not support TLS", ErrTLSHandshake))
	}
	if c.opts.TLSPolicy == transport.TLSRequire || (c.opts.TLSPolicy == transport.TLSPrefer && (info.TLSAvailable || info.TLSRequired)) {
		upgraded, uerr := c.dialer.UpgradeTLS(ctx, conn, addr)
		if uerr != nil {
			conn.Close()

			return nil, serverInfo{}, wrapKind(KindTLS, fmt.Errorf("%w: %w", ErrTLSHandshake, uerr))
		}
		conn = upgraded
	}

	if err := c.sendConnect(conn, info); err != nil {
		conn.Close()

		return nil, serverInfo{}, err
	}

	var buf bytes.Buffer
	proto.WritePing(&buf)
	if _, err := conn.Write(buf.Bytes()); err != nil {
		conn.Close()

		return nil, serverInfo{}, wrapKind(KindTransport, err)
	}

	if err := awaitPong(conn, scanner, readBuf); err != nil {
		conn.Close()

		return nil, serverInfo{}, err
	}

	return conn, info, nil
}

func readInfo(conn transport.Conn, scanner *proto.Scanner, readBuf []byte) (serverInfo, error) {
	for {
		f, err := scanner.Next()
		if err == nil {
			if f.Verb != proto.VerbInfo {
				return serverInfo{}, fmt.Errorf("expected INFO, got %s", f.Verb)
			}
			var info serverInfo
			if err := json.Unmarshal(f.JSON, &info); err != nil {
				return serverInfo{}, fmt.Errorf("malformed INFO: %w", err)
			}

			return info, nil
		}
		n, rerr := conn.Read(readBuf)
		if rerr != nil {
			return serverInfo{}, rerr
		}
		if n == 0 {
			return serverInfo{}, fmt.Errorf("connection closed during handshake")
		}
		scanner.Feed(readBuf[:n])
	}
}

func awaitPong(conn transport.Conn, scanner *proto.Scanner, readBuf []byte) error {
	for {
		f, err := scanner.Next()
		if err == nil {
			switch f.Verb {
			case proto.VerbPong:
				return nil
			case proto.VerbErr:
				return wrapKind(KindAuth, fmt.Errorf("%w: %s", ErrAuthorization, f.ErrMessage))
			default:
				continue
			}
		}
		n, rerr := conn.Read(readBuf)
		if rerr != nil {
			return wrapKind(KindTransport, rerr)
		}
		if n == 0 {
			return wrapKind(KindTransport, fmt.Errorf("flowmesh: connection closed awaiting PONG"))
		}
		scanner.Feed(readBuf[:n])
	}
}

func (c *Conn) sendConnect(conn transport.Conn, info serverInfo) error {
	cf := connectFrame{
		Verbose: false, Pedantic: false,
		TLSRequired: c.opts.TLSPolicy == transport.TLSRequire || c.opts.TLSPolicy == transport.TLSImplicit,
		Name:        c.opts.Name,
		Lang:        "go", Version: clientVersion, Protocol: 1,
		Headers: true,
	}

	switch {
	case c.opts.Auth.CredentialsFile != "":
		jwtStr, seed, err := parseCredentialsFile(c.opts.Auth.CredentialsFile)
		if err != nil {
			return err
		}
		sig, pub, err := signNonce(seed, info.Nonce)
		if err != nil {
			return err
		}
		cf.JWT = jwtStr
		cf.NKey = pub
		cf.Sig = sig
	case c.opts.Auth.NKeySeed != "":
		sig, pub, err := signNonce(c.opts.Auth.NKeySeed, info.Nonce)
		if err != nil {
			return err
		}
		cf.NKey = pub
		cf.Sig = sig
	case c.opts.Auth.Token != "":
		cf.AuthToken = c.opts.Auth.Token
	case c.opts.Auth.User != "":
		cf.User = c.opts.Auth.User
		cf.Pass = c.opts.Auth.Pass
	case c.opts.Auth.JWT != "":
		cf.JWT = c.opts.Auth.JWT
	}

	body, err := json.Marshal(cf)
	if err != nil {
		return wrapKind(KindUsage, err)
	}

	var buf bytes.Buffer
	proto.WriteConnect(&buf, body)
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return wrapKind(KindTransport, err)
	}

	return nil
}

// signNonce signs info's CONNECT nonce with the nkey seed, returning the
// base64url signature and the corresponding public key for the CONNECT
// frame's nkey/sig fields.
func signNonce(seed, nonce string) (sig, pub string, err error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return "", "", wrapKind(KindAuth, err)
	}
	pub, err = kp.PublicKey()
	if err != nil {
		return "", "", wrapKind(KindAuth, err)
	}
	signed, err := kp.Sign([]byte(nonce))
	if err != nil {
		return "", "", wrapKind(KindAuth, err)
	}

	return base64.RawURLEncoding.EncodeToString(signed), pub, nil
}

// readLoop parses inbound frames from conn until it closes or errors, then
// triggers reconnection.
func (c *Conn) readLoop(conn transport.Conn) {
	buf := make([]byte, 32*1024)
	scanner := c.scanner

	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			c.handleDisconnect(conn, err)

			return
		}
		scanner.Feed(buf[:n])

		for {
			f, ferr := scanner.Next()
			if ferr == proto.ErrNeedMore {
				break
			}
			if ferr != nil {
				c.logger().Error("protocol error", "error", ferr)
				c.handleDisconnect(conn, ferr)

				return
			}
			c.handleFrame(f)
		}
	}
}

func (c *Conn) handleFrame(f *proto.Frame) {
	switch f.Verb {
	case proto.VerbPing:
		var buf bytes.Buffer
		proto.WritePong(&buf)
		c.writer.TryEnqueue(buf.Bytes())

	case proto.VerbPong:
		select {
		case c.pongCh <- struct{}{}:
		default:
		}

	case proto.VerbMsg, proto.VerbHMsg:
		c.dispatchMsg(f)

	case proto.VerbErr:
		c.logger().Error("server error", "message", f.ErrMessage)

	case proto.VerbInfo:
		var info serverInfo
		if json.Unmarshal(f.JSON, &info) == nil {
			c.mu.Lock()
			c.mergeServerList(info.ConnectURLs)
			c.mu.Unlock()
		}
	}
}

func (c *Conn) mergeServerList(urls []string) {
	seen := make(map[string]bool, len(c.servers))
	for _, s := range c.servers {
		seen[s] = true
	}
	for _, u := range urls {
		if !seen[u] {
			c.servers = append(c.servers, u)
			seen[u] = true
		}
	}
}

func (c *Conn) dispatchMsg(f *proto.Frame) {
	var headers map[string][]string
	if f.Headers != nil {
		headers = make(map[string][]string)
		f.Headers.Range(func(k, v string) { headers[k] = append(headers[k], v) })
	}

	if routed := c.mux.Route(f.Subject, inbox.Reply{Subject: f.Subject, Headers: headers, Status: f.Status, Payload: f.Payload}); routed {
		return
	}

	entry, ok := c.registry.Lookup(f.SID)
	if !ok {
		return
	}
	c.opts.MetricsCollector.IncrementDelivered(f.Subject)
	entry.Sink.Deliver(f.Subject, f.ReplyTo, headers, f.Status, f.StatusText, f.Payload)
}

func (c *Conn) handleDisconnect(conn transport.Conn, cause error) {
	c.mu.Lock()
	if c.transportC != conn {
		c.mu.Unlock()

		return // already superseded by a newer connection
	}
	c.mu.Unlock()

	select {
	case <-c.closed:
		return
	default:
	}

	c.setState(StateReconnecting)
	c.disp.emit(func() {
		if c.opts.Handlers.DisconnectedHandler != nil {
			c.opts.Handlers.DisconnectedHandler(c, cause)
		}
	})

	go c.reconnectLoop()
}

func (c *Conn) reconnectLoop() {
	b := backoff.New(backoff.Policy{
		Base: c.opts.ReconnectDelayMin, Multiplier: 2.0, Max: c.opts.ReconnectDelayMax,
		Jitter: c.opts.ReconnectJitter,
	})

	attempts := 0
	for {
		select {
		case <-c.closed:
			return
		default:
		}

		if c.opts.MaxReconnects >= 0 && attempts >= c.opts.MaxReconnects {
			c.logger().Error("max reconnects exceeded, closing")
			c.Close()

			return
		}
		attempts++

		delay := b.Next()
		c.disp.emit(func() {
			if c.opts.Handlers.ReconnectingHandler != nil {
				c.opts.Handlers.ReconnectingHandler(c, "")
			}
		})
		time.Sleep(delay)

		c.setState(StateConnecting)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.connectOnce(ctx)
		cancel()
		if err != nil {
			c.logger().Warn("reconnect attempt failed", "error", err)
			c.setState(StateReconnecting)

			continue
		}

		c.opts.MetricsCollector.RecordReconnect("")
		c.disp.emit(func() {
			if c.opts.Handlers.ReconnectedHandler != nil {
				c.opts.Handlers.ReconnectedHandler(c)
			}
		})

		return
	}
}

// replaySubscriptions re-issues SUB (and UNSUB with remaining max-messages,
// where applicable) for every live registry entry. This completes before
// any new subscribe/publish initiated after reconnect: connectOnce runs it
// synchronously before starting the read loop or returning to its caller.
func (c *Conn) replaySubscriptions() {
	var buf bytes.Buffer
	c.registry.Range(func(e *subs.Entry) bool {
		if sub, ok := e.Sink.(*Subscription); ok && sub.maxMsgs > 0 {
			remaining := sub.maxMsgs - sub.delivered.Load()
			if remaining <= 0 {
				// Already reached its cap; Deliver should have removed it,
				// but don't resurrect an unlimited subscription if it's
				// still here on a race.
				return true
			}
			proto.WriteSub(&buf, e.Subject, e.Queue, e.SID)
			proto.WriteUnsub(&buf, e.SID, int(remaining))

			return true
		}

		proto.WriteSub(&buf, e.Subject, e.Queue, e.SID)

		return true
	})
	if buf.Len() > 0 {
		c.writer.TryEnqueue(append([]byte(nil), buf.Bytes()...))
	}
}

func (c *Conn) pingLoop() {
	missed := 0
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if c.State() != StateOpen {
				continue
			}
			var buf bytes.Buffer
			proto.WritePing(&buf)
			c.writer.TryEnqueue(buf.Bytes())

			select {
			case <-c.pongCh:
				missed = 0
			case <-time.After(c.opts.PingTimeout):
				missed++
				if missed >= c.opts.MaxPingsOut {
					c.logger().Warn("missed pongs, forcing reconnect", "missed", missed)
					c.mu.Lock()
					conn := c.transportC
					c.mu.Unlock()
					if conn != nil {
						conn.Close()
					}
					missed = 0
				}
			case <-c.closed:
				return
			}
		}
	}
}

func (c *Conn) sweepLoop() {
	ticker := time.NewTicker(c.opts.SubscriptionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			for _, e := range c.registry.Sweep() {
				c.sendUnsub(e.SID, 0)
				c.disp.emit(func() {
					if c.opts.Handlers.SubscriptionDroppedHandler != nil {
						c.opts.Handlers.SubscriptionDroppedHandler(c, nil, nil)
					}
				})
			}
		}
	}
}

func (c *Conn) sendUnsub(sid int64, maxMsgs int) error {
	var buf bytes.Buffer
	proto.WriteUnsub(&buf, sid, maxMsgs)
	c.mu.Lock()
	w := c.writer
	c.mu.Unlock()
	if w == nil {
		return nil
	}
	w.TryEnqueue(buf.Bytes())

	return nil
}

func (c *Conn) removeSubscription(sid int64) { c.registry.Remove(sid) }

// Close tears down the connection immediately, canceling all pending
// operations with ErrConnectionClosed.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.setState(StateClosed)
		c.mu.Lock()
		if c.writer != nil {
			c.writer.Close()
		}
		if c.transportC != nil {
			c.transportC.Close()
		}
		c.mu.Unlock()
		c.disp.emit(func() {
			if c.opts.Handlers.ClosedHandler != nil {
				c.opts.Handlers.ClosedHandler(c)
			}
		})
		c.disp.stop()
	})

	return nil
}

// Drain flushes every frame already queued on the outbound writer, then
// closes the connection. Unlike Close, it gives the write path a chance to
// flush before tearing down the transport. It does not wait for
// subscription handlers to finish messages already delivered to them. If
// ctx ends before the flush completes, Drain returns a KindTimeout error
// and leaves the connection open.
func (c *Conn) Drain(ctx context.Context) error {
	c.mu.Lock()
	w := c.writer
	c.mu.Unlock()
	if w != nil {
		done := make(chan error, 1)
		go func() { done <- w.Flush() }()
		select {
		case <-done:
		case <-ctx.Done():
			return wrapKind(KindTimeout, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
		}
	}

	return c.Close()
}
