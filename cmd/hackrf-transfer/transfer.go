package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rjboer/gohackrf/hackrf"
)

type step struct {
	name string
	fn   func() error
}

// configure applies the radio settings from cfg in the order hackrf_transfer
// uses: sample rate and filter first, then tuning, gains and switches.
func configure(d *hackrf.Device, cfg cliConfig) error {
	bw := cfg.bandwidth
	if bw == 0 {
		bw = hackrf.ComputeBasebandFilterBandwidth(cfg.sampleRate)
	}
	steps := []step{
		{"sample rate", func() error { return d.SetSampleRate(int32(cfg.sampleRate), 1) }},
		{"baseband filter", func() error { return d.SetBasebandFilterBandwidth(uint32(bw)) }},
		{"frequency", func() error { return d.SetFrequency(cfg.freqHz) }},
		{"amp", func() error { return d.SetAmp(cfg.amp) }},
	}
	if cfg.txPath != "" {
		steps = append(steps, step{"tx vga gain", func() error { return d.SetTxVGAGain(cfg.txGain) }})
	} else {
		steps = append(steps,
			step{"lna gain", func() error { return d.SetRxLNAGain(cfg.lnaGain) }},
			step{"vga gain", func() error { return d.SetRxVGAGain(cfg.vgaGain) }},
		)
	}
	if cfg.antenna {
		steps = append(steps, step{"antenna power", func() error { return d.SetAntennaPower(true) }})
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("set %s: %w", s.name, err)
		}
	}
	return nil
}

// boardInfo is what -info prints and what mDNS advertises.
type boardInfo struct {
	Board    string
	Firmware string
	PartID   [2]uint32
	Serial   string
}

func readBoardInfo(d *hackrf.Device) (boardInfo, error) {
	var info boardInfo
	var err error
	if info.Board, err = d.BoardName(); err != nil {
		return info, fmt.Errorf("board id: %w", err)
	}
	if info.Firmware, err = d.VersionString(); err != nil {
		return info, fmt.Errorf("version: %w", err)
	}
	ps, err := d.PartIDSerialNo()
	if err != nil {
		return info, fmt.Errorf("part id: %w", err)
	}
	info.PartID = ps.PartID
	info.Serial = ps.Serial()
	return info, nil
}

func printBoardInfo(w io.Writer, info boardInfo) {
	fmt.Fprintf(w, "Board ID:         %s\n", info.Board)
	fmt.Fprintf(w, "Firmware Version: %s\n", info.Firmware)
	fmt.Fprintf(w, "Part ID:          0x%08x 0x%08x\n", info.PartID[0], info.PartID[1])
	fmt.Fprintf(w, "Serial Number:    %s\n", info.Serial)
}

// receiveToFile streams blocks into w until limit blocks were written (0 for
// no limit), ctx is done or the session ends on its own.
func receiveToFile(ctx context.Context, d *hackrf.Device, w io.Writer, limit int) (int, error) {
	q, err := d.StartReceive()
	if err != nil {
		return 0, err
	}
	done := d.Done()
	n := 0
	for limit == 0 || n < limit {
		select {
		case <-ctx.Done():
			return n, stopAndWait(d, done)
		case <-done:
			return n, d.Err()
		case b := <-q.Blocks():
			_, werr := w.Write(b)
			d.Pool().Put(b)
			if werr != nil {
				_ = stopAndWait(d, done)
				return n, werr
			}
			n++
		}
	}
	return n, stopAndWait(d, done)
}

// transmitFromFile sends r block by block. The last partial block is padded
// with zeros. The session ends when the worker runs out of blocks, which is
// the expected outcome after the input is exhausted.
func transmitFromFile(ctx context.Context, d *hackrf.Device, r io.Reader, limit int) (int, error) {
	q := d.Queue()
	n := 0
	eof := false
	for !eof && n < q.Cap() && (limit == 0 || n < limit) {
		b, more, err := readBlock(r, d.Pool())
		if err != nil {
			return 0, err
		}
		eof = !more
		if b == nil {
			break
		}
		if !q.TrySend(b) {
			d.Pool().Put(b)
			break
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}

	if _, err := d.StartTransmit(); err != nil {
		return 0, err
	}
	done := d.Done()
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-sessCtx.Done():
		}
	}()

	for !eof && (limit == 0 || n < limit) {
		b, more, err := readBlock(r, d.Pool())
		if err != nil {
			_ = stopAndWait(d, done)
			return n, err
		}
		eof = !more
		if b == nil {
			break
		}
		if err := q.Send(sessCtx, b); err != nil {
			d.Pool().Put(b)
			break
		}
		n++
	}

	select {
	case <-done:
	case <-ctx.Done():
		return n, stopAndWait(d, done)
	}
	if err := d.Err(); err != nil && !errors.Is(err, hackrf.ErrQueueStarved) {
		return n, err
	}
	return n, nil
}

// readBlock fills a pool block from r. more is false once r is exhausted; a
// nil block means nothing was left to read.
func readBlock(r io.Reader, pool *hackrf.Pool) (block []byte, more bool, err error) {
	b := pool.Get()
	n, err := io.ReadFull(r, b)
	switch {
	case err == nil:
		return b, true, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		clear(b[n:])
		return b, false, nil
	case errors.Is(err, io.EOF):
		pool.Put(b)
		return nil, false, nil
	default:
		pool.Put(b)
		return nil, false, err
	}
}

func stopAndWait(d *hackrf.Device, done <-chan struct{}) error {
	err := d.Stop()
	<-done
	if err != nil {
		return err
	}
	return d.Err()
}
