// Package client drives one request/response exchange of the vault
// protocol over the configured transport mode.
package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"passvault/internal/protocol"
	"passvault/internal/transport"
)

// Config selects the remote endpoint and transport mode.
type Config struct {
	Address          string
	UseTLS           bool
	ServerName       string
	Trust            transport.TrustPolicy
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	HandshakeTimeout time.Duration
}

// Client builds request messages and exchanges them for responses.
// Each exchange opens and discards one connection; Client itself holds
// no connection state and is safe for concurrent use.
type Client struct {
	dialer      transport.Dialer
	readTimeout time.Duration
}

func New(cfg Config) *Client {
	var dialer transport.Dialer
	if cfg.UseTLS {
		dialer = transport.TLSDialer{
			Address:          cfg.Address,
			ServerName:       cfg.ServerName,
			Trust:            cfg.Trust,
			ConnectTimeout:   cfg.ConnectTimeout,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	} else {
		dialer = transport.PlainDialer{
			Address:        cfg.Address,
			ConnectTimeout: cfg.ConnectTimeout,
		}
	}
	return &Client{
		dialer:      dialer,
		readTimeout: cfg.ReadTimeout,
	}
}

// Exchange sends one request and returns the parsed response. The
// contentType header is omitted when empty.
func (c *Client) Exchange(ctx context.Context, method string, body []byte, session string, contentType string) (*protocol.Message, error) {
	headers := []protocol.Header{
		{Name: protocol.HeaderMethod, Value: method},
		{Name: protocol.HeaderSession, Value: session},
		{Name: protocol.HeaderContentLength, Value: strconv.Itoa(len(body))},
	}
	if contentType != "" {
		headers = append(headers, protocol.Header{Name: protocol.HeaderContentType, Value: contentType})
	}
	req := &protocol.Message{Direction: protocol.Request, Headers: headers, Body: body}
	data, err := protocol.Encode(req)
	if err != nil {
		return nil, err
	}

	raw, err := c.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	conn := transport.NewConn(raw, c.readTimeout)
	defer conn.Close()

	start := time.Now()
	if err := conn.Send(data); err != nil {
		return nil, err
	}
	res, err := conn.ReceiveMessage()
	if err != nil {
		return nil, err
	}
	if res.Direction != protocol.Response {
		return nil, fmt.Errorf("%w: got a request frame in reply", transport.ErrFraming)
	}

	log.Debug().
		Str("method", method).
		Int("request_bytes", len(body)).
		Int("response_bytes", len(res.Body)).
		Dur("duration", time.Since(start)).
		Msg("vault_exchange")
	return res, nil
}
