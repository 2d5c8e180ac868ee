package chunk

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// Volume is the number of blocks in a chunk.
const Volume = gen.ChunkArea * gen.WorldHeight

// ErrBlockBudget is returned when the pool has no block arrays left.
var ErrBlockBudget = errors.New("chunk: block array budget exhausted")

// Blocks is a dense, reference-counted block array. Index = (y*16+z)*16+x.
// A published Blocks is read-only while shared; edits go through Clone.
type Blocks struct {
	data [Volume]uint16
	refs atomic.Int32
	pool *Pool
}

func index(x, y, z int) int {
	return (y*gen.ChunkWidth+z)*gen.ChunkWidth + x
}

// GetBlock returns the state at a chunk-local position, or air outside it.
func (b *Blocks) GetBlock(x, y, z int) uint16 {
	if y < 0 || y >= gen.WorldHeight {
		return gen.Air
	}
	return b.data[index(x, y, z)]
}

// SetBlock writes a chunk-local position. Only the owner of an unpublished
// array may call it.
func (b *Blocks) SetBlock(x, y, z int, state uint16) {
	if y < 0 || y >= gen.WorldHeight {
		return
	}
	b.data[index(x, y, z)] = state
}

// Acquire adds a reference and returns b.
func (b *Blocks) Acquire() *Blocks {
	b.refs.Add(1)
	return b
}

// Release drops a reference. The array goes back to its pool when the
// last one is gone.
func (b *Blocks) Release() {
	n := b.refs.Add(-1)
	switch {
	case n < 0:
		panic("chunk: block array released too many times")
	case n == 0:
		b.pool.put(b)
	}
}

// Clone copies b into a fresh array from the same pool.
func (b *Blocks) Clone() (*Blocks, error) {
	c, err := b.pool.Get()
	if err != nil {
		return nil, err
	}
	c.data = b.data
	return c, nil
}

// Pool hands out block arrays up to a budget of live arrays.
type Pool struct {
	budget int64
	live   atomic.Int64
	free   sync.Pool
}

// NewPool creates a pool. A budget of zero or less means unlimited.
func NewPool(budget int) *Pool {
	p := &Pool{budget: int64(budget)}
	p.free.New = func() any { return new(Blocks) }
	return p
}

// Get returns a zeroed array holding one reference.
func (p *Pool) Get() (*Blocks, error) {
	if n := p.live.Add(1); p.budget > 0 && n > p.budget {
		p.live.Add(-1)
		return nil, ErrBlockBudget
	}
	b := p.free.Get().(*Blocks)
	b.data = [Volume]uint16{}
	b.pool = p
	b.refs.Store(1)
	return b, nil
}

// Live returns the number of arrays handed out and not yet released.
func (p *Pool) Live() int {
	return int(p.live.Load())
}

func (p *Pool) put(b *Blocks) {
	p.live.Add(-1)
	p.free.Put(b)
}
