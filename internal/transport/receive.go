package transport

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"

	"passvault/internal/protocol"
)

// Receive size limits. Frames are small (headers plus one password or
// source list); anything past these bounds is a corrupt length field.
const (
	maxHeaderBlockBytes = 64 * 1024
	maxBodyBytes        = 8 * 1024 * 1024
)

var contentLengthPattern = regexp.MustCompile(`Content-Length=([0-9]+)`)

// ReceiveMessage reassembles one framed message from the stream. The
// stream delivers an unstructured byte sequence, so boundaries are
// reconstructed step by step: direction tag, header length span,
// header block, then a body of Content-Length bytes.
func (c *Conn) ReceiveMessage() (*protocol.Message, error) {
	var tag [3]byte
	if err := c.readFull(tag[:]); err != nil {
		return nil, err
	}
	if d := protocol.Direction(tag[:]); d != protocol.Request && d != protocol.Response {
		return nil, fmt.Errorf("%w: direction tag %q", ErrFraming, tag[:])
	}

	// ':' + headerLength(int32 LE) + ':'
	var span [6]byte
	if err := c.readFull(span[:]); err != nil {
		return nil, err
	}
	headerLen := int(int32(binary.LittleEndian.Uint32(span[1:5])))
	if headerLen < 9 || headerLen-9 > maxHeaderBlockBytes {
		return nil, fmt.Errorf("%w: header length %d", ErrFraming, headerLen)
	}

	headerBlock := make([]byte, headerLen-9)
	if err := c.readFull(headerBlock); err != nil {
		return nil, err
	}

	match := contentLengthPattern.FindSubmatch(headerBlock)
	if match == nil {
		return nil, fmt.Errorf("%w: missing Content-Length header", ErrFraming)
	}
	contentLength, err := strconv.Atoi(string(match[1]))
	if err != nil || contentLength > maxBodyBytes {
		return nil, fmt.Errorf("%w: Content-Length %q", ErrFraming, match[1])
	}

	body := make([]byte, contentLength)
	if err := c.readFull(body); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, headerLen+contentLength)
	frame = append(frame, tag[:]...)
	frame = append(frame, span[:]...)
	frame = append(frame, headerBlock...)
	frame = append(frame, body...)

	msg, err := protocol.Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return msg, nil
}
