package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/gousb"

	"github.com/rjboer/gohackrf/hackrf"
	"github.com/rjboer/gohackrf/internal/logging"
)

// benchHandle answers every control request like a HackRF One and moves bulk
// data to and from memory.
type benchHandle struct {
	mu       sync.Mutex
	commands []uint8
	written  bytes.Buffer
	reads    int
}

func (b *benchHandle) ClaimInterface() error   { return nil }
func (b *benchHandle) ReleaseInterface() error { return nil }
func (b *benchHandle) Close() error            { return nil }

func (b *benchHandle) Control(rType, request uint8, _, _ uint16, data []byte) (int, error) {
	b.mu.Lock()
	b.commands = append(b.commands, request)
	b.mu.Unlock()
	if hackrf.Direction(rType) == hackrf.HostToDevice {
		return len(data), nil
	}
	switch len(data) {
	case 1:
		data[0] = byte(hackrf.BoardHackRFOne)
		return 1, nil
	case 24:
		for i := range data {
			data[i] = 0xaa
		}
		return 24, nil
	default:
		return copy(data, "2023.01.1"), nil
	}
}

func (b *benchHandle) OpenStreamIn(size, count int) (hackrf.StreamReader, error) {
	return benchReader{b}, nil
}

func (b *benchHandle) OpenStreamOut(size, count int) (hackrf.StreamWriter, error) {
	return &benchWriter{b: b}, nil
}

type benchReader struct{ b *benchHandle }

func (r benchReader) ReadContext(ctx context.Context, p []byte) (int, error) {
	select {
	case <-time.After(time.Millisecond):
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	r.b.reads++
	for i := range p {
		p[i] = byte(r.b.reads)
	}
	return len(p), nil
}

func (r benchReader) Close() error { return nil }

// benchWriter completes every transfer as soon as it is queued.
type benchWriter struct {
	b     *benchHandle
	total int
}

func (w *benchWriter) WriteContext(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	w.b.written.Write(p)
	w.total += len(p)
	return len(p), nil
}

func (w *benchWriter) CloseContext(context.Context) error { return nil }
func (w *benchWriter) Written() int                       { return w.total }

func (b *benchHandle) sent(cmd uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.commands {
		if c == cmd {
			return true
		}
	}
	return false
}

func newBenchDevice(t *testing.T, h *benchHandle, opts ...hackrf.Option) *hackrf.Device {
	t.Helper()
	base := []hackrf.Option{
		hackrf.WithBlockSize(64),
		hackrf.WithQueueBytes(64 * 16),
		hackrf.WithTransmitTimeout(20 * time.Millisecond),
		hackrf.WithLogger(logging.New(logging.Error, logging.Text, io.Discard)),
	}
	d, err := hackrf.New(h, append(base, opts...)...)
	if err != nil {
		t.Fatalf("hackrf.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestConfigureReceiveSetsRxGains(t *testing.T) {
	h := &benchHandle{}
	d := newBenchDevice(t, h)
	cfg, err := parseConfig([]string{"-r", "x"}, noEnv, defaultFileConfig())
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if err := configure(d, cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	// 19 and 20 are the LNA and VGA requests, 21 the TX VGA request.
	if !h.sent(19) || !h.sent(20) || h.sent(21) {
		t.Fatalf("unexpected commands %v", h.commands)
	}
}

func TestConfigureRejectsBadGain(t *testing.T) {
	h := &benchHandle{}
	d := newBenchDevice(t, h)
	cfg, _ := parseConfig([]string{"-t", "x", "-x", "60"}, noEnv, defaultFileConfig())
	err := configure(d, cfg)
	if err == nil || !strings.Contains(err.Error(), "tx vga gain") {
		t.Fatalf("expected tx gain error, got %v", err)
	}
}

func TestBoardInfo(t *testing.T) {
	d := newBenchDevice(t, &benchHandle{})
	info, err := readBoardInfo(d)
	if err != nil {
		t.Fatalf("readBoardInfo: %v", err)
	}
	var out bytes.Buffer
	printBoardInfo(&out, info)
	for _, want := range []string{"HackRF One", "2023.01.1", "0xaaaaaaaa", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, out.String())
		}
	}
}

func TestReceiveToFileStopsAtLimit(t *testing.T) {
	d := newBenchDevice(t, &benchHandle{})
	var out bytes.Buffer
	n, err := receiveToFile(context.Background(), d, &out, 5)
	if err != nil || n != 5 {
		t.Fatalf("receiveToFile = %d, %v", n, err)
	}
	if out.Len() != 5*64 {
		t.Fatalf("wrote %d bytes", out.Len())
	}
	if d.Mode() != hackrf.ModeOff {
		t.Fatalf("mode = %s", d.Mode())
	}
}

func TestReceiveToFileStopsOnCancel(t *testing.T) {
	d := newBenchDevice(t, &benchHandle{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := receiveToFile(ctx, d, io.Discard, 0); err != nil {
		t.Fatalf("receiveToFile: %v", err)
	}
	if d.Mode() != hackrf.ModeOff {
		t.Fatalf("mode = %s", d.Mode())
	}
}

func TestTransmitFromFilePadsLastBlock(t *testing.T) {
	h := &benchHandle{}
	d := newBenchDevice(t, h, hackrf.WithQueueBytes(64*2))

	input := make([]byte, 64*3+32)
	for i := range input {
		input[i] = byte(i%251 + 1)
	}
	n, err := transmitFromFile(context.Background(), d, bytes.NewReader(input), 0)
	if err != nil || n != 4 {
		t.Fatalf("transmitFromFile = %d, %v", n, err)
	}
	want := append(append([]byte(nil), input...), make([]byte, 32)...)
	h.mu.Lock()
	got := h.written.Bytes()
	h.mu.Unlock()
	if !bytes.Equal(got, want) {
		t.Fatalf("written %d bytes, want %d", len(got), len(want))
	}
	if d.Mode() != hackrf.ModeOff {
		t.Fatalf("mode = %s", d.Mode())
	}
}

func TestTransmitFromEmptyFile(t *testing.T) {
	h := &benchHandle{}
	d := newBenchDevice(t, h)
	n, err := transmitFromFile(context.Background(), d, strings.NewReader(""), 0)
	if err != nil || n != 0 {
		t.Fatalf("transmitFromFile = %d, %v", n, err)
	}
	if h.sent(1) {
		t.Fatal("transceiver mode changed for an empty file")
	}
}

func TestIsHackRF(t *testing.T) {
	cases := []struct {
		vid, pid gousb.ID
		want     bool
	}{
		{0x1d50, 0x6089, true},
		{0x1d50, 0x604b, true},
		{0x1d50, 0xcc15, true},
		{0x1d50, 0x1234, false},
		{0x0456, 0xb673, false},
	}
	for _, tc := range cases {
		if got := isHackRF(&gousb.DeviceDesc{Vendor: tc.vid, Product: tc.pid}); got != tc.want {
			t.Fatalf("isHackRF(%s:%s) = %v", tc.vid, tc.pid, got)
		}
	}
}
