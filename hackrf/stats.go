package hackrf

import (
	"sync/atomic"
	"time"
)

// Stats is a read-only snapshot of the current or last streaming session.
type Stats struct {
	Mode      Mode      `json:"mode"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end,omitempty"`
	Packets   uint64    `json:"packets"`
	BlockSize int       `json:"blockSize"`
	QueueLen  int       `json:"queueLen"`
	Pool      PoolStats `json:"pool"`
}

// Elapsed returns how long the session ran, up to now while it is active.
func (s Stats) Elapsed() time.Duration { return s.ElapsedAt(time.Now()) }

// ElapsedAt returns the session duration as seen at now. An ended session is
// measured up to its end.
func (s Stats) ElapsedAt(now time.Time) time.Duration {
	if s.Start.IsZero() {
		return 0
	}
	if !s.End.IsZero() {
		return s.End.Sub(s.Start)
	}
	return now.Sub(s.Start)
}

// Throughput returns the average transfer rate in bytes per second.
func (s Stats) Throughput() float64 {
	return s.throughputOver(s.Elapsed())
}

func (s Stats) throughputOver(elapsed time.Duration) float64 {
	sec := elapsed.Seconds()
	if sec <= 0 {
		return 0
	}
	return float64(s.Packets) * float64(s.BlockSize) / sec
}

type sessionStats struct {
	start   atomic.Int64
	end     atomic.Int64
	packets atomic.Uint64
}

func (s *sessionStats) reset(now time.Time) {
	s.packets.Store(0)
	s.end.Store(0)
	s.start.Store(now.UnixNano())
}

func (s *sessionStats) stop(now time.Time) { s.end.Store(now.UnixNano()) }

func (s *sessionStats) packet() { s.packets.Add(1) }

// Stats returns the session statistics.
func (d *Device) Stats() Stats {
	st := Stats{
		Mode:      d.Mode(),
		Packets:   d.stats.packets.Load(),
		BlockSize: d.opts.blockSize,
		QueueLen:  d.queue.Len(),
		Pool:      d.pool.Stats(),
	}
	if ns := d.stats.start.Load(); ns != 0 {
		st.Start = time.Unix(0, ns)
	}
	if ns := d.stats.end.Load(); ns != 0 {
		st.End = time.Unix(0, ns)
	}
	return st
}
