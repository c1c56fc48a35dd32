package hackrf

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rjboer/gohackrf/internal/logging"
)

// Device drives one HackRF: configuration goes through synchronous control
// requests, samples move through a Queue fed or drained by one streaming
// worker per session.
//
// Configuration methods must not be called concurrently with each other.
// Mode, Stats, Done and Err are safe from any goroutine.
type Device struct {
	h    Handle
	ctl  *controlChannel
	opts options
	log  logging.Logger

	pool  *Pool
	queue *Queue
	stats sessionStats

	// state holds the session generation and the mode; see mode.go.
	state  atomic.Uint64
	modeMu sync.Mutex
	// quit is closed when state leaves quitWant, waking the worker.
	quit     chan struct{}
	quitWant uint64

	mu      sync.Mutex // session lifecycle
	done    chan struct{}
	closed  bool
	errMu   sync.Mutex
	lastErr error
}

type options struct {
	blockSize  int
	inFlight   int
	queueBytes int
	txTimeout  time.Duration
	logger     logging.Logger
}

// Option customises a Device.
type Option func(*options)

// WithBlockSize sets the sample block size in bytes.
func WithBlockSize(n int) Option { return func(o *options) { o.blockSize = n } }

// WithInFlight sets how many bulk transfers are kept outstanding.
func WithInFlight(n int) Option { return func(o *options) { o.inFlight = n } }

// WithQueueBytes sizes the transfer queue; capacity is bytes / block size.
func WithQueueBytes(n int) Option { return func(o *options) { o.queueBytes = n } }

// WithTransmitTimeout bounds how long the transmit worker waits for a block.
func WithTransmitTimeout(d time.Duration) Option { return func(o *options) { o.txTimeout = d } }

// WithLogger sets the logger used by the device and its workers.
func WithLogger(l logging.Logger) Option { return func(o *options) { o.logger = l } }

func defaultOptions() options {
	return options{
		blockSize:  DefaultBlockSize,
		inFlight:   DefaultInFlight,
		queueBytes: DefaultQueueBytes,
		txTimeout:  DefaultTransmitTimeout * time.Millisecond,
	}
}

// New builds a Device on an opened handle. The device starts in ModeOff; no
// request is sent until the first configuration call.
func New(h Handle, opts ...Option) (*Device, error) {
	if h == nil {
		return nil, &SetupError{Step: "new device", Err: ErrClosed}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.blockSize <= 0 {
		return nil, invalid("block size", int64(o.blockSize), "must be positive")
	}
	if o.inFlight <= 0 {
		return nil, invalid("in-flight transfers", int64(o.inFlight), "must be positive")
	}
	if o.queueBytes < o.blockSize {
		return nil, invalid("queue bytes", int64(o.queueBytes), "must hold at least one %d byte block", o.blockSize)
	}
	if o.txTimeout <= 0 {
		return nil, invalid("transmit timeout", int64(o.txTimeout), "must be positive")
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}

	q := newQueue(o.queueBytes, o.blockSize)
	d := &Device{
		h:     h,
		ctl:   &controlChannel{h: h},
		opts:  o,
		log:   o.logger.With(logging.Subsystem("hackrf")),
		pool:  NewPool(o.blockSize, q.Cap()+o.inFlight),
		queue: q,
	}
	return d, nil
}

// Queue returns the transfer queue. Blocks may be queued before StartTransmit.
func (d *Device) Queue() *Queue { return d.queue }

// Pool returns the block pool. Applications return received blocks with Put
// and take transmit blocks with Get.
func (d *Device) Pool() *Pool { return d.pool }

// BlockSize returns the sample block size in bytes.
func (d *Device) BlockSize() int { return d.opts.blockSize }

// Done returns a channel closed when the current session's worker has exited.
// It is already closed when no session was ever started.
func (d *Device) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return d.done
}

// Err returns why the last session ended: nil after Stop, ErrQueueFull,
// ErrQueueStarved or a *TransferError.
func (d *Device) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.lastErr
}

func (d *Device) setErr(err error) {
	d.errMu.Lock()
	d.lastErr = err
	d.errMu.Unlock()
}

// Close stops any session, waits for its worker and closes the handle.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	done := d.done
	d.mu.Unlock()

	var stopErr error
	if d.Mode() != ModeOff {
		stopErr = d.SetMode(ModeOff)
	}
	if done != nil {
		<-done
	}
	if err := d.h.Close(); err != nil {
		return err
	}
	return stopErr
}
