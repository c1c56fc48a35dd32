package hackrf

import "sync/atomic"

// Pool is a free list of fixed-size sample blocks. Get never blocks: when the
// list is empty a new block is allocated. A block taken with Get belongs to
// the caller until it is handed back with Put or dropped.
type Pool struct {
	size int
	free chan []byte

	allocated atomic.Uint64
	reused    atomic.Uint64
	returned  atomic.Uint64
	dropped   atomic.Uint64
}

// PoolStats counts block movements through a Pool.
type PoolStats struct {
	Allocated uint64 `json:"allocated"`
	Reused    uint64 `json:"reused"`
	Returned  uint64 `json:"returned"`
	Dropped   uint64 `json:"dropped"`
	Free      int    `json:"free"`
}

// NewPool creates a pool of blockSize blocks that retains at most keep free
// blocks for reuse.
func NewPool(blockSize, keep int) *Pool {
	if keep < 1 {
		keep = 1
	}
	return &Pool{size: blockSize, free: make(chan []byte, keep)}
}

// BlockSize returns the size of every block handed out.
func (p *Pool) BlockSize() int { return p.size }

// Get returns a free block, allocating one if none is available.
func (p *Pool) Get() []byte {
	select {
	case b := <-p.free:
		p.reused.Add(1)
		return b
	default:
	}
	p.allocated.Add(1)
	return make([]byte, p.size)
}

// Put hands b back to the pool. Blocks of the wrong size and blocks beyond
// the retention limit are dropped.
func (p *Pool) Put(b []byte) {
	if b == nil || len(b) != p.size {
		p.dropped.Add(1)
		return
	}
	select {
	case p.free <- b:
		p.returned.Add(1)
	default:
		p.dropped.Add(1)
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Allocated: p.allocated.Load(),
		Reused:    p.reused.Load(),
		Returned:  p.returned.Load(),
		Dropped:   p.dropped.Load(),
		Free:      len(p.free),
	}
}
