package hackrf

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rjboer/gohackrf/internal/logging"
)

// fakeHandle stands in for an opened HackRF. Control requests are recorded and
// answered from control (or sensible defaults); bulk IN streams produce
// numbered blocks and bulk OUT streams record the first byte of every block.
type fakeHandle struct {
	mu sync.Mutex

	board    Board
	version  string
	claimErr error
	control  func(req Request) (int, error)

	requests []Request
	claims   int
	releases int
	claimed  bool
	closed   bool

	readDelay  time.Duration
	blockReads bool
	readErr    error
	writeN     int

	reads       int
	written     []byte
	completed   int
	streamCount int
	open        int
	maxOpen     int
	inflight    int
	maxInflight int
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{board: BoardHackRFOne, version: "2024.02.1", writeN: -1}
}

func (f *fakeHandle) ClaimInterface() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	if f.claimed {
		return ErrBusy
	}
	f.claims++
	f.claimed = true
	return nil
}

func (f *fakeHandle) ReleaseInterface() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	f.claimed = false
	return nil
}

func (f *fakeHandle) Control(rType, request uint8, value, index uint16, data []byte) (int, error) {
	req := Request{Direction: Direction(rType), Command: request, Value: value, Index: index}
	if req.Direction == HostToDevice && data != nil {
		req.Data = append([]byte(nil), data...)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	custom := f.control
	board, version := f.board, f.version
	f.mu.Unlock()

	req.Data = data
	if custom != nil {
		return custom(req)
	}
	if req.Direction == HostToDevice {
		return len(data), nil
	}
	switch request {
	case reqSetVGAGain, reqSetTxVGAGain, reqSetLNAGain:
		data[0] = 1
		return 1, nil
	case reqBoardIDRead:
		data[0] = byte(board)
		return 1, nil
	case reqVersionStringRead:
		return copy(data, version), nil
	case reqBoardPartIDSerialNoRead:
		for i := range data {
			data[i] = byte(i)
		}
		return len(data), nil
	}
	return 0, errors.New("fake: unexpected request")
}

func (f *fakeHandle) opened(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCount = count
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
}

func (f *fakeHandle) OpenStreamIn(size, count int) (StreamReader, error) {
	f.opened(count)
	r := &fakeReader{f: f}
	f.mu.Lock()
	for i := 0; i < count; i++ {
		r.pending = append(r.pending, f.reads)
		f.reads++
	}
	f.mu.Unlock()
	return r, nil
}

func (f *fakeHandle) OpenStreamOut(size, count int) (StreamWriter, error) {
	f.opened(count)
	return &fakeWriter{f: f, size: size, count: count}, nil
}

// fakeReader behaves like a bulk IN endpoint with count transfers submitted:
// each read completes the oldest one and submits the next.
type fakeReader struct {
	f       *fakeHandle
	pending []int
	closed  bool
}

func (r *fakeReader) ReadContext(ctx context.Context, p []byte) (int, error) {
	f := r.f
	f.mu.Lock()
	delay, block, readErr := f.readDelay, f.blockReads, f.readErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if readErr != nil {
		return 0, readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p[0] = byte(r.pending[0])
	r.pending = append(r.pending[1:], f.reads)
	f.reads++
	return len(p), nil
}

func (r *fakeReader) Close() error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.f.open--
	}
	return nil
}

// fakeWriter keeps up to count transfers in flight and completes them oldest
// first. Each completion moves writeN bytes when writeN is set.
type fakeWriter struct {
	f       *fakeHandle
	size    int
	count   int
	pending int
	total   int
	closed  bool
}

func (w *fakeWriter) complete() {
	f := w.f
	w.pending--
	f.inflight--
	f.completed++
	if f.writeN >= 0 {
		w.total += f.writeN
		return
	}
	w.total += w.size
}

func (w *fakeWriter) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f := w.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.pending == w.count {
		w.complete()
	}
	f.written = append(f.written, p[0])
	w.pending++
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	return len(p), nil
}

func (w *fakeWriter) CloseContext(ctx context.Context) error {
	f := w.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	f.open--
	for w.pending > 0 {
		w.complete()
	}
	return nil
}

func (w *fakeWriter) Written() int { return w.total }

func (f *fakeHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeHandle) recorded() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *fakeHandle) lastRequest(t *testing.T) Request {
	t.Helper()
	reqs := f.recorded()
	if len(reqs) == 0 {
		t.Fatal("no control request recorded")
	}
	return reqs[len(reqs)-1]
}

func (f *fakeHandle) set(fn func(f *fakeHandle)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func quietLogger() logging.Logger { return logging.New(logging.Error, logging.Text, io.Discard) }

func newTestDevice(t *testing.T, h *fakeHandle, opts ...Option) *Device {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	d, err := New(h, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func waitDone(t *testing.T, d *Device) {
	t.Helper()
	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("streaming worker did not exit")
	}
}
