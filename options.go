package flowmesh

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/flowmesh-io/flowmesh-go/internal/logging"
	"github.com/flowmesh-io/flowmesh-go/internal/metrics"
	"github.com/flowmesh-io/flowmesh-go/internal/transport"
)

// AuthOptions carries the connection's authentication material. At most one
// scheme should be populated; the CONNECT frame sends whichever is set.
type AuthOptions struct {
	Token           string
	User            string
	Pass            string
	JWT             string
	NKeySeed        string
	CredentialsFile string
}

// Options configures a Conn. Construct with DefaultOptions and the With*
// functions rather than a bare struct literal, so future fields keep
// sensible defaults.
type Options struct {
	Servers []string
	Name    string

	PingInterval time.Duration
	PingTimeout  time.Duration
	MaxPingsOut  int

	ReconnectDelayMin time.Duration
	ReconnectDelayMax time.Duration
	ReconnectJitter   time.Duration
	MaxReconnects     int // -1 = forever

	CommandWriterBufferSize    int
	SubscriptionCleanupInterval time.Duration
	SubscriptionPendingLimit    int
	InboxPrefix                 string

	TLSPolicy          transport.TLSPolicy
	TLSConfig          *tls.Config
	TLSInsecureSkipVerify bool

	Auth AuthOptions

	Logger           Logger
	MetricsCollector MetricsCollector

	Handlers EventHandlers
}

// Option mutates an Options value during construction.
type Option func(*Options)

// DefaultOptions returns the baseline configuration.
func DefaultOptions() *Options {
	return &Options{
		PingInterval:                2 * time.Minute,
		PingTimeout:                 5 * time.Second,
		MaxPingsOut:                 2,
		ReconnectDelayMin:           100 * time.Millisecond,
		ReconnectDelayMax:           2 * time.Second,
		ReconnectJitter:             100 * time.Millisecond,
		MaxReconnects:               -1,
		CommandWriterBufferSize:     4096,
		SubscriptionCleanupInterval: 30 * time.Second,
		SubscriptionPendingLimit:    DefaultSubscriptionPendingLimit,
		TLSPolicy:                   transport.TLSPrefer,
		Logger:                      logging.NewNop(),
		MetricsCollector:            metrics.NewNop(),
	}
}

// WithServers sets the seed server list, e.g. "mesh://127.0.0.1:4222".
func WithServers(servers ...string) Option {
	return func(o *Options) { o.Servers = servers }
}

// WithName sets the CONNECT frame's client name, useful for server-side
// connection identification.
func WithName(name string) Option { return func(o *Options) { o.Name = name } }

// WithPingInterval sets how often the client issues a liveness PING.
func WithPingInterval(d time.Duration) Option { return func(o *Options) { o.PingInterval = d } }

// WithMaxPingsOutstanding sets how many consecutive missed PONGs trigger a
// reconnect.
func WithMaxPingsOutstanding(n int) Option { return func(o *Options) { o.MaxPingsOut = n } }

// WithReconnectDelay bounds the jittered exponential backoff window.
func WithReconnectDelay(minD, maxD time.Duration) Option {
	return func(o *Options) { o.ReconnectDelayMin = minD; o.ReconnectDelayMax = maxD }
}

// WithMaxReconnects caps reconnect attempts; -1 means unlimited.
func WithMaxReconnects(n int) Option { return func(o *Options) { o.MaxReconnects = n } }

// WithCommandWriterBufferSize sets the outbound ring buffer's capacity.
func WithCommandWriterBufferSize(n int) Option {
	return func(o *Options) { o.CommandWriterBufferSize = n }
}

// WithSubscriptionCleanupInterval sets the registry sweep interval.
func WithSubscriptionCleanupInterval(d time.Duration) Option {
	return func(o *Options) { o.SubscriptionCleanupInterval = d }
}

// WithSubscriptionPendingLimit sets the per-subscription buffered-message
// cap before slow-consumer drops start.
func WithSubscriptionPendingLimit(n int) Option {
	return func(o *Options) { o.SubscriptionPendingLimit = n }
}

// WithInboxPrefix overrides the auto-generated inbox subject root.
func WithInboxPrefix(prefix string) Option { return func(o *Options) { o.InboxPrefix = prefix } }

// WithTLS sets the TLS negotiation policy and an optional custom TLS config.
func WithTLS(policy transport.TLSPolicy, cfg *tls.Config) Option {
	return func(o *Options) { o.TLSPolicy = policy; o.TLSConfig = cfg }
}

// WithTLSInsecureSkipVerify disables server certificate verification.
// Intended for a broker with a self-signed certificate in development; never
// enable this against a production endpoint.
func WithTLSInsecureSkipVerify(skip bool) Option {
	return func(o *Options) { o.TLSInsecureSkipVerify = skip }
}

// WithUserPass sets username/password CONNECT auth.
func WithUserPass(user, pass string) Option {
	return func(o *Options) { o.Auth.User = user; o.Auth.Pass = pass }
}

// WithToken sets bearer-token CONNECT auth.
func WithToken(token string) Option { return func(o *Options) { o.Auth.Token = token } }

// WithNKeySeed sets nkey-signature CONNECT auth.
func WithNKeySeed(seed string) Option { return func(o *Options) { o.Auth.NKeySeed = seed } }

// WithCredentialsFile sets a JWT+nkey credentials file for CONNECT auth.
func WithCredentialsFile(path string) Option {
	return func(o *Options) { o.Auth.CredentialsFile = path }
}

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Option { return func(o *Options) { o.Logger = l } }

// WithMetrics overrides the default no-op MetricsCollector.
func WithMetrics(m MetricsCollector) Option { return func(o *Options) { o.MetricsCollector = m } }

// WithEventHandlers registers lifecycle event callbacks.
func WithEventHandlers(h EventHandlers) Option { return func(o *Options) { o.Handlers = h } }

// Validate enforces the clamps and mutual-exclusion rules across the
// options struct, returning a *Error(KindUsage) describing the first
// violation found.
func (o *Options) Validate() error {
	if len(o.Servers) == 0 {
		return wrapKind(KindUsage, fmt.Errorf("flowmesh: at least one server is required"))
	}
	if o.MaxPingsOut < 1 {
		return wrapKind(KindUsage, fmt.Errorf("flowmesh: max pings outstanding must be >= 1"))
	}
	if o.ReconnectDelayMax < o.ReconnectDelayMin {
		return wrapKind(KindUsage, fmt.Errorf("flowmesh: reconnect delay max must be >= min"))
	}
	if o.CommandWriterBufferSize < 1 {
		return wrapKind(KindUsage, fmt.Errorf("flowmesh: command writer buffer size must be >= 1"))
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.MetricsCollector == nil {
		o.MetricsCollector = metrics.NewNop()
	}

	return nil
}
