package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultReadTimeout bounds how long one exact-length read may wait
// for the peer.
const DefaultReadTimeout = 120 * time.Second

// Conn moves exact byte counts over one stream connection. The
// connection is a scoped resource owned by a single exchange: callers
// must Close on every exit path.
type Conn struct {
	raw         net.Conn
	readTimeout time.Duration
}

func NewConn(raw net.Conn, readTimeout time.Duration) *Conn {
	return &Conn{
		raw:         raw,
		readTimeout: timeoutOrDefault(readTimeout, DefaultReadTimeout),
	}
}

// Send writes the whole buffer to the stream. net.Conn.Write already
// loops until everything is written or the connection fails; the TLS
// connection flushes its final record on return.
func (c *Conn) Send(data []byte) error {
	if err := c.raw.SetWriteDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return Classify(err)
	}
	if _, err := c.raw.Write(data); err != nil {
		return Classify(err)
	}
	return nil
}

func (c *Conn) Close() error {
	return c.raw.Close()
}

// readFull reads exactly len(buf) bytes, looping across however many
// reads the stream fragments the data into. A peer close mid-count is
// a framing violation; anything else is classified transport failure.
func (c *Conn) readFull(buf []byte) error {
	if err := c.raw.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return Classify(err)
	}
	if _, err := io.ReadFull(c.raw, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: connection closed %d bytes short", ErrFraming, len(buf))
		}
		return Classify(err)
	}
	return nil
}
