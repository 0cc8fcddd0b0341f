package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// Dialer opens one fresh connection to the vault endpoint. Every
// request/response exchange dials anew; there is no pooling or
// keep-alive.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// PlainDialer opens unencrypted TCP connections.
type PlainDialer struct {
	Address        string
	ConnectTimeout time.Duration
}

func (d PlainDialer) Dial(ctx context.Context) (net.Conn, error) {
	nd := net.Dialer{Timeout: timeoutOrDefault(d.ConnectTimeout, DefaultConnectTimeout)}
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, Classify(err)
	}
	return conn, nil
}

// TLSDialer opens a TCP connection and completes the TLS handshake,
// including certificate verification under Trust, before any protocol
// bytes are sent.
type TLSDialer struct {
	Address          string
	ServerName       string
	Trust            TrustPolicy
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
}

func (d TLSDialer) Dial(ctx context.Context) (net.Conn, error) {
	nd := net.Dialer{Timeout: timeoutOrDefault(d.ConnectTimeout, DefaultConnectTimeout)}
	rawConn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, Classify(err)
	}

	serverName := d.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(d.Address)
		if err != nil {
			_ = rawConn.Close()
			return nil, Classify(err)
		}
		serverName = host
	}

	trust := d.Trust
	if trust == nil {
		trust = SystemTrust{}
	}
	tlsCfg, err := trust.TLSConfig(serverName)
	if err != nil {
		_ = rawConn.Close()
		return nil, Classify(err)
	}

	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(d.HandshakeTimeout, DefaultHandshakeTimeout))
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, Classify(err)
	}
	return conn, nil
}

func timeoutOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
