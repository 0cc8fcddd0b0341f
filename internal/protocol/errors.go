package protocol

import "errors"

var (
	ErrTruncated           = errors.New("protocol: truncated message")
	ErrInvalidDirection    = errors.New("protocol: invalid direction tag")
	ErrInvalidHeaderLength = errors.New("protocol: invalid header length")
	ErrMalformedHeader     = errors.New("protocol: malformed header block")
	ErrHeaderDelimiter     = errors.New("protocol: header contains delimiter byte")
	ErrHeaderTooLarge      = errors.New("protocol: header block too large")
)
