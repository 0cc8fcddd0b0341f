package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Encode serializes msg using the vault wire format:
//
//	tag(3) ':' headerLength(int32 LE) ':' (name '=' value ':')* body
//
// headerLength is the byte offset at which the body begins. The body
// carries no length prefix of its own; receivers learn its length from
// the Content-Length header.
func Encode(msg *Message) ([]byte, error) {
	if !msg.Direction.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, string(msg.Direction))
	}

	headerLen := prefixLen
	for _, h := range msg.Headers {
		if err := checkEntry(h); err != nil {
			return nil, err
		}
		headerLen += len(h.Name) + 1 + len(h.Value) + 1
	}
	if headerLen > math.MaxInt32 {
		return nil, ErrHeaderTooLarge
	}

	buf := make([]byte, 0, headerLen+len(msg.Body))
	buf = append(buf, msg.Direction...)
	buf = append(buf, ':')
	var lenField [4]byte
	binary.LittleEndian.PutUint32(lenField[:], uint32(headerLen))
	buf = append(buf, lenField[:]...)
	buf = append(buf, ':')
	for _, h := range msg.Headers {
		buf = append(buf, h.Name...)
		buf = append(buf, '=')
		buf = append(buf, h.Value...)
		buf = append(buf, ':')
	}
	buf = append(buf, msg.Body...)
	return buf, nil
}

// checkEntry rejects header names and values carrying the wire
// delimiters. The format has no escaping mechanism, so such entries
// would produce a frame that decodes to something else.
func checkEntry(h Header) error {
	if h.Name == "" {
		return fmt.Errorf("%w: empty header name", ErrMalformedHeader)
	}
	if strings.ContainsAny(h.Name, ":=") {
		return fmt.Errorf("%w: header name %q", ErrHeaderDelimiter, h.Name)
	}
	if strings.ContainsAny(h.Value, ":=") {
		return fmt.Errorf("%w: header %q value %q", ErrHeaderDelimiter, h.Name, h.Value)
	}
	return nil
}
