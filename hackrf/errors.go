package hackrf

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParam is matched by every *ValidationError.
	ErrInvalidParam = errors.New("hackrf: invalid parameter")
	// ErrRejected is returned when the device echoes a zero byte for a gain command.
	ErrRejected = errors.New("hackrf: setting rejected by device")
	// ErrUnsupported is returned for commands the connected board cannot execute.
	ErrUnsupported = errors.New("hackrf: unsupported on this board")
	// ErrQueueFull ends a receive session when the application stops draining the queue.
	ErrQueueFull = errors.New("hackrf: receive queue full")
	// ErrQueueStarved ends a transmit session when no block arrives before the timeout.
	ErrQueueStarved = errors.New("hackrf: transmit queue starved")
	// ErrBusy is returned when the interface is already claimed by another exchange.
	ErrBusy = errors.New("hackrf: interface busy")
	// ErrClosed is returned after the device has been closed.
	ErrClosed = errors.New("hackrf: device closed")
)

// SetupError reports a failure while turning an opened USB device into a Device.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("hackrf setup: %s: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// TransferError reports a control or bulk transfer that failed or moved fewer
// bytes than the protocol requires.
type TransferError struct {
	Op      string
	Request uint8
	Got     int
	Want    int
	Err     error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hackrf %s (request %d): %v", e.Op, e.Request, e.Err)
	}
	return fmt.Sprintf("hackrf %s (request %d): transferred %d bytes, want %d", e.Op, e.Request, e.Got, e.Want)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ValidationError reports configuration input that was refused before any
// hardware call was made.
type ValidationError struct {
	Field  string
	Value  int64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hackrf: invalid %s %d: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidParam) match any validation failure.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidParam }

func invalid(field string, value int64, format string, args ...any) error {
	return &ValidationError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}
