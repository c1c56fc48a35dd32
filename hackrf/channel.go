package hackrf

import (
	"context"
	"fmt"
	"sync"
)

// Handle is an opened, exclusively owned connection to one HackRF. The bulk
// side is exposed as ordered streams: each keeps a fixed number of transfers
// submitted and completes them in submission order. USBHandle is the
// gousb-backed implementation.
type Handle interface {
	ClaimInterface() error
	ReleaseInterface() error
	Control(rType, request uint8, value, index uint16, data []byte) (int, error)
	OpenStreamIn(size, count int) (StreamReader, error)
	OpenStreamOut(size, count int) (StreamWriter, error)
	Close() error
}

// StreamReader returns bulk IN transfers oldest first. ReadContext fills p
// from at most one transfer; cancelling ctx aborts the stream. Close cancels
// whatever is still in flight.
type StreamReader interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
	Close() error
}

// StreamWriter sends bulk OUT transfers in call order. WriteContext returns
// once p is queued, waiting for the oldest transfer when all are in flight.
// CloseContext waits for the queued transfers; Written then reports the bytes
// the device accepted.
type StreamWriter interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
	CloseContext(ctx context.Context) error
	Written() int
}

// controlChannel performs one vendor request at a time against the control
// endpoint. The streaming worker may force the mode off while the application
// is configuring, so exchanges are serialised here.
type controlChannel struct {
	mu sync.Mutex
	h  Handle
}

// exchange claims the interface, runs one control transfer and releases the
// interface again, also on failure. No retry is attempted.
func (c *controlChannel) exchange(req Request) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.h.ClaimInterface(); err != nil {
		return 0, &TransferError{Op: "claim interface", Request: req.Command, Err: err}
	}
	n, err := c.h.Control(uint8(req.Direction), req.Command, req.Value, req.Index, req.Data)
	if rerr := c.h.ReleaseInterface(); rerr != nil && err == nil {
		err = fmt.Errorf("release interface: %w", rerr)
	}
	if err != nil {
		return n, &TransferError{Op: "control " + req.Direction.String(), Request: req.Command, Got: n, Err: err}
	}
	if n < 0 {
		return n, &TransferError{Op: "control " + req.Direction.String(), Request: req.Command, Got: n}
	}
	return n, nil
}

// expect runs exchange and fails unless exactly want bytes moved.
func (c *controlChannel) expect(req Request, want int) error {
	n, err := c.exchange(req)
	if err != nil {
		return err
	}
	if n != want {
		return &TransferError{Op: "control " + req.Direction.String(), Request: req.Command, Got: n, Want: want}
	}
	return nil
}

// atLeast runs exchange and fails when fewer than min bytes moved.
func (c *controlChannel) atLeast(req Request, min int) (int, error) {
	n, err := c.exchange(req)
	if err != nil {
		return n, err
	}
	if n < min {
		return n, &TransferError{Op: "control " + req.Direction.String(), Request: req.Command, Got: n, Want: min}
	}
	return n, nil
}
