package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

var (
	ErrConnectionRefused  = errors.New("transport: connection refused")
	ErrConnectionTimedOut = errors.New("transport: connection timed out")
	ErrTransport          = errors.New("transport: transport failure")
	ErrFraming            = errors.New("transport: framing violation")
)

// Classify maps a fault from the networking layer onto the portable
// error taxonomy. It matches the standard error categories exposed by
// the net package rather than raw platform error codes.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectionRefused) ||
		errors.Is(err, ErrConnectionTimedOut) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrFraming) {
		return err
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConnectionTimedOut, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrConnectionTimedOut, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
