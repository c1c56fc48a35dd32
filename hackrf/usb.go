package hackrf

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/gousb"
)

// USBHandle adapts an opened gousb device to Handle. The stream interface stays
// claimed at the USB level for the handle's lifetime; ClaimInterface and
// ReleaseInterface only arbitrate exclusive use of the control pipe.
type USBHandle struct {
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	mu      sync.Mutex
	claimed bool
	closed  bool
}

// NewUSBHandle takes ownership of dev, which the caller has already opened and
// been granted access to. On failure everything acquired so far is released
// and a *SetupError is returned; dev itself is left open for the caller.
func NewUSBHandle(dev *gousb.Device) (*USBHandle, error) {
	if dev == nil {
		return nil, &SetupError{Step: "open", Err: fmt.Errorf("nil device")}
	}
	if err := dev.SetAutoDetach(true); err != nil {
		return nil, &SetupError{Step: "auto detach", Err: err}
	}
	num, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, &SetupError{Step: "active config", Err: err}
	}
	cfg, err := dev.Config(num)
	if err != nil {
		return nil, &SetupError{Step: fmt.Sprintf("config %d", num), Err: err}
	}
	intf, err := cfg.Interface(StreamInterface, 0)
	if err != nil {
		cfg.Close()
		return nil, &SetupError{Step: "claim interface", Err: err}
	}
	in, err := intf.InEndpoint(StreamInEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, &SetupError{Step: "stream-in endpoint", Err: err}
	}
	out, err := intf.OutEndpoint(StreamOutEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, &SetupError{Step: "stream-out endpoint", Err: err}
	}
	return &USBHandle{dev: dev, cfg: cfg, intf: intf, in: in, out: out}, nil
}

// ClaimInterface takes the arbitration token for the control pipe. The USB
// interface itself is already claimed; a second claim fails with ErrBusy.
func (u *USBHandle) ClaimInterface() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrClosed
	}
	if u.claimed {
		return ErrBusy
	}
	u.claimed = true
	return nil
}

// ReleaseInterface returns the arbitration token taken by ClaimInterface.
func (u *USBHandle) ReleaseInterface() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.claimed = false
	return nil
}

// Control performs one vendor control transfer on endpoint 0.
func (u *USBHandle) Control(rType, request uint8, value, index uint16, data []byte) (int, error) {
	return u.dev.Control(rType, request, value, index, data)
}

// OpenStreamIn starts count bulk IN transfers of size bytes on the stream-in
// endpoint. They are resubmitted as they are read, oldest first.
func (u *USBHandle) OpenStreamIn(size, count int) (StreamReader, error) {
	s, err := u.in.NewStream(size, count)
	if err != nil {
		return nil, err
	}
	return &usbReadStream{s: s, scratch: make([]byte, size)}, nil
}

// OpenStreamOut prepares count bulk OUT transfers of size bytes on the
// stream-out endpoint.
func (u *USBHandle) OpenStreamOut(size, count int) (StreamWriter, error) {
	s, err := u.out.NewStream(size, count)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// usbReadStream cancels outstanding transfers on Close. gousb only signals
// end of stream there and leaves submitted transfers to further reads.
type usbReadStream struct {
	s       *gousb.ReadStream
	scratch []byte
}

func (r *usbReadStream) ReadContext(ctx context.Context, p []byte) (int, error) {
	return r.s.ReadContext(ctx, p)
}

func (r *usbReadStream) Close() error {
	if err := r.s.Close(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		if _, err := r.s.ReadContext(ctx, r.scratch); err != nil {
			return nil
		}
	}
}

// Close releases the interface and configuration and closes the device.
func (u *USBHandle) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	u.mu.Unlock()

	u.intf.Close()
	if err := u.cfg.Close(); err != nil {
		return fmt.Errorf("release config: %w", err)
	}
	return u.dev.Close()
}

// String identifies the underlying USB device.
func (u *USBHandle) String() string { return u.dev.String() }
