package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Decode parses one complete frame previously assembled in memory.
// It scans the header block byte-by-byte and takes everything past
// headerLength as the body; the Content-Length header is not consulted
// here.
func Decode(data []byte) (*Message, error) {
	if len(data) < prefixLen {
		return nil, ErrTruncated
	}

	dir := Direction(data[:tagLen])
	if !dir.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, string(data[:tagLen]))
	}
	if data[3] != ':' || data[8] != ':' {
		return nil, fmt.Errorf("%w: missing prefix separators", ErrMalformedHeader)
	}

	headerLen := int(int32(binary.LittleEndian.Uint32(data[4:8])))
	if headerLen < prefixLen {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHeaderLength, headerLen)
	}
	if headerLen > len(data) {
		return nil, fmt.Errorf("%w: %d exceeds frame of %d bytes", ErrInvalidHeaderLength, headerLen, len(data))
	}

	var headers []Header
	start := prefixLen
	for i := prefixLen; i < headerLen; i++ {
		if data[i] != ':' {
			continue
		}
		entry := string(data[start:i])
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: entry %q", ErrMalformedHeader, entry)
		}
		headers = append(headers, Header{Name: name, Value: value})
		start = i + 1
	}
	if start != headerLen {
		return nil, fmt.Errorf("%w: unterminated entry at offset %d", ErrMalformedHeader, start)
	}

	body := make([]byte, len(data)-headerLen)
	copy(body, data[headerLen:])

	return &Message{Direction: dir, Headers: headers, Body: body}, nil
}
