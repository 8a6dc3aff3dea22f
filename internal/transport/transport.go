// Package transport provides the socket abstraction the connection
// supervisor dials, upgrades to TLS, and swaps out across reconnects.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// TLSPolicy controls whether and when a connection uses TLS.
type TLSPolicy int

const (
	// TLSDisabled never negotiates TLS, even if the server advertises
	// tls_required.
	TLSDisabled TLSPolicy = iota
	// TLSPrefer upgrades to TLS when the server advertises tls_available or
	// tls_required, but tolerates a plaintext connection otherwise.
	TLSPrefer
	// TLSRequire upgrades to TLS after INFO and fails the handshake if the
	// server does not advertise TLS support.
	TLSRequire
	// TLSImplicit dials directly with a TLS handshake before any INFO line
	// is read (implicit TLS, as opposed to the STARTTLS-style upgrade the
	// other policies use).
	TLSImplicit
)

// String returns the human-readable policy name.
func (p TLSPolicy) String() string {
	switch p {
	case TLSDisabled:
		return "disabled"
	case TLSPrefer:
		return "prefer"
	case TLSRequire:
		return "require"
	case TLSImplicit:
		return "implicit"
	default:
		return "unknown"
	}
}

// Conn is the minimal socket surface the connection supervisor depends on.
// *net.TCPConn, *tls.Conn, and net.Pipe endpoints all satisfy it, which lets
// tests substitute an in-memory transport without a real listener.
type Conn interface {
	net.Conn
}

// Dialer opens a Conn to a single server address, upgrading to TLS according
// to policy when the caller already knows TLS is required (implicit TLS).
// Deadline-aware callers should pass a context with a timeout; Dialer honors
// ctx cancellation for the duration of the dial and any implicit handshake.
type Dialer struct {
	Policy             TLSPolicy
	TLSConfig          *tls.Config
	InsecureSkipVerify bool
}

// NewDialer returns a Dialer for policy, using tlsConfig (which may be nil
// to accept Go's default TLS settings) whenever TLS is negotiated.
// insecureSkipVerify forces certificate verification off regardless of what
// tlsConfig itself carries, for talking to a broker with a self-signed cert
// in development.
func NewDialer(policy TLSPolicy, tlsConfig *tls.Config, insecureSkipVerify bool) *Dialer {
	return &Dialer{Policy: policy, TLSConfig: tlsConfig, InsecureSkipVerify: insecureSkipVerify}
}

// Dial opens a plain or implicitly-TLS'd connection to addr, depending on
// Policy. Servers that require a STARTTLS-style upgrade after INFO are
// handled separately by UpgradeTLS.
func (d *Dialer) Dial(ctx context.Context, addr string) (Conn, error) {
	var nd net.Dialer

	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	if d.Policy == TLSImplicit {
		tlsConn := tls.Client(conn, d.cloneTLSConfig(addr))
		if err := d.handshake(ctx, tlsConn); err != nil {
			conn.Close()

			return nil, err
		}

		return tlsConn, nil
	}

	return conn, nil
}

// UpgradeTLS performs a STARTTLS-style upgrade of an already-open plaintext
// Conn, per the connection supervisor's post-INFO negotiation (§4.6).
func (d *Dialer) UpgradeTLS(ctx context.Context, conn Conn, addr string) (Conn, error) {
	tlsConn := tls.Client(conn, d.cloneTLSConfig(addr))
	if err := d.handshake(ctx, tlsConn); err != nil {
		return nil, err
	}

	return tlsConn, nil
}

func (d *Dialer) cloneTLSConfig(addr string) *tls.Config {
	var cfg *tls.Config
	if d.TLSConfig != nil {
		cfg = d.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if d.InsecureSkipVerify {
		cfg.InsecureSkipVerify = true //nolint:gosec // opt-in via WithTLSInsecureSkipVerify
	}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			cfg.ServerName = host
		}
	}

	return cfg
}

func (d *Dialer) handshake(ctx context.Context, tlsConn *tls.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = tlsConn.SetDeadline(deadline)
		defer tlsConn.SetDeadline(time.Time{})
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("transport: tls handshake: %w", err)
	}

	return nil
}
