package hackrf

import (
	"context"
	"errors"
	"time"

	"github.com/rjboer/gohackrf/internal/logging"
)

// StartReceive flushes the queue, switches the device to ModeReceive and
// launches the receive worker. Received blocks arrive on the returned queue;
// hand them back with Pool().Put once consumed.
func (d *Device) StartReceive() (*Queue, error) { return d.start(ModeReceive) }

// StartTransmit switches the device to ModeTransmit and launches the transmit
// worker, which drains the returned queue. Blocks already queued are sent first.
func (d *Device) StartTransmit() (*Queue, error) { return d.start(ModeTransmit) }

// Stop switches the device to ModeOff. The worker notices on its next
// iteration and tears down; wait on Done to observe that.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.SetMode(ModeOff)
}

func (d *Device) start(m Mode) (*Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	d.modeMu.Lock()
	want := nextSession(d.state.Load(), m)
	err := d.setModeLocked(want, m)
	if err != nil {
		// The hardware may or may not have switched; put it back to off.
		if offErr := d.setModeLocked(d.state.Load(), ModeOff); offErr != nil {
			d.log.Warn("confirm off after failed start", logging.Err(offErr))
		}
	}
	var quit chan struct{}
	if err == nil {
		quit = make(chan struct{})
		d.quit, d.quitWant = quit, want
	}
	d.modeMu.Unlock()

	// Any previous worker has now seen the state change; never run two.
	if d.done != nil {
		<-d.done
	}
	if err != nil {
		return nil, err
	}

	if m == ModeReceive {
		if n := d.queue.drain(d.pool.Put); n > 0 {
			d.log.Debug("flushed stale blocks", logging.Field{Key: "blocks", Value: n})
		}
	}
	d.stats.reset(time.Now())
	d.setErr(nil)
	done := make(chan struct{})
	d.done = done
	d.log.Info("session started",
		logging.Field{Key: "mode", Value: m},
		logging.Field{Key: "block_size", Value: d.opts.blockSize},
		logging.Field{Key: "in_flight", Value: d.opts.inFlight},
		logging.Field{Key: "queue_cap", Value: d.queue.Cap()},
	)
	go d.run(m, want, quit, done)
	return d.queue, nil
}

func (d *Device) run(m Mode, want uint64, quit <-chan struct{}, done chan struct{}) {
	defer close(done)
	var err error
	if m == ModeReceive {
		err = d.receive(want, quit)
	} else {
		err = d.transmit(want, quit)
	}
	d.finish(m, want, err)
}

// finish records why the session ended and forces the device off when the
// session still owns the state, i.e. the worker stopped on its own.
func (d *Device) finish(m Mode, want uint64, err error) {
	d.stats.stop(time.Now())
	d.setErr(err)
	st := d.Stats()
	fields := []logging.Field{
		{Key: "mode", Value: m},
		{Key: "packets", Value: st.Packets},
		{Key: "elapsed", Value: st.Elapsed().Round(time.Millisecond)},
	}
	switch {
	case err == nil:
		d.log.Info("session stopped", fields...)
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrQueueStarved):
		d.log.Warn("session ended", append(fields, logging.Err(err))...)
	default:
		d.log.Error("session failed", append(fields, logging.Err(err))...)
	}

	d.modeMu.Lock()
	defer d.modeMu.Unlock()
	if d.state.Load() != want {
		return
	}
	if offErr := d.setModeLocked(want, ModeOff); offErr != nil {
		d.log.Error("force off after session end", logging.Err(offErr))
	}
}

// errStopped marks a wait cut short by a state change; the session ends cleanly.
var errStopped = errors.New("session stopped")

func sessionResult(err error) error {
	if errors.Is(err, errStopped) {
		return nil
	}
	return err
}

// sessionContext is cancelled when quit closes or when the returned cancel
// function runs, aborting whatever the stream still has in flight.
func sessionContext(quit <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-quit:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// receive reads blocks in device order and queues them. The stream keeps
// inFlight transfers submitted ahead of the loop.
func (d *Device) receive(want uint64, quit <-chan struct{}) error {
	r, err := d.h.OpenStreamIn(d.opts.blockSize, d.opts.inFlight)
	if err != nil {
		return &TransferError{Op: "open stream in", Err: err}
	}
	ctx, cancel := sessionContext(quit)
	defer func() {
		cancel()
		if cerr := r.Close(); cerr != nil {
			d.log.Debug("close stream in", logging.Err(cerr))
		}
	}()

	for d.state.Load() == want {
		buf := d.pool.Get()
		n, err := r.ReadContext(ctx, buf)
		if err != nil {
			d.pool.Put(buf)
			if ctx.Err() != nil {
				return nil
			}
			return &TransferError{Op: "bulk read", Got: n, Want: len(buf), Err: err}
		}
		if n != len(buf) {
			d.pool.Put(buf)
			return &TransferError{Op: "bulk read", Got: n, Want: len(buf)}
		}
		d.stats.packet()
		if !d.queue.TrySend(buf) {
			d.pool.Put(buf)
			return ErrQueueFull
		}
	}
	return nil
}

// transmit sends queued blocks in queue order. Each block is copied into the
// stream and returned to the pool as soon as WriteContext accepts it.
func (d *Device) transmit(want uint64, quit <-chan struct{}) (err error) {
	w, err := d.h.OpenStreamOut(d.opts.blockSize, d.opts.inFlight)
	if err != nil {
		return &TransferError{Op: "open stream out", Err: err}
	}
	ctx, cancel := sessionContext(quit)
	defer cancel()
	sent := 0
	defer func() { err = d.closeTransmit(ctx, w, sent, err) }()

	for d.state.Load() == want {
		buf, err := d.nextTransmitBlock(quit)
		if err != nil {
			return sessionResult(err)
		}
		n, err := w.WriteContext(ctx, buf)
		d.pool.Put(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &TransferError{Op: "bulk write", Got: n, Want: d.opts.blockSize, Err: err}
		}
		if n != d.opts.blockSize {
			return &TransferError{Op: "bulk write", Got: n, Want: d.opts.blockSize}
		}
		sent++
		d.stats.packet()
	}
	return nil
}

// closeTransmit waits up to the transmit timeout for queued transfers to
// complete. A stopped session abandons them. After a clean or starved loop a
// failed or short completion becomes the session error.
func (d *Device) closeTransmit(ctx context.Context, w StreamWriter, sent int, err error) error {
	closeCtx, cancel := context.WithTimeout(ctx, d.opts.txTimeout)
	defer cancel()
	cerr := w.CloseContext(closeCtx)
	if ctx.Err() != nil {
		return err
	}
	if err != nil && !errors.Is(err, ErrQueueStarved) {
		return err
	}
	if cerr != nil {
		return &TransferError{Op: "bulk write", Err: cerr}
	}
	if got, want := w.Written(), sent*d.opts.blockSize; got != want {
		return &TransferError{Op: "bulk write", Got: got, Want: want}
	}
	return err
}

func (d *Device) nextTransmitBlock(quit <-chan struct{}) ([]byte, error) {
	buf, err := d.queue.receiveTimeout(d.opts.txTimeout, quit)
	if err != nil {
		return nil, err
	}
	if len(buf) != d.opts.blockSize {
		return nil, &TransferError{Op: "transmit block", Got: len(buf), Want: d.opts.blockSize}
	}
	return buf, nil
}
