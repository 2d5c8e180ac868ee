// Package chunk holds the per-chunk generation state.
package chunk

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// Pos is a chunk position.
type Pos = gen.ChunkPos

// Stage is a generation stage.
type Stage = stage.Stage

// NoEmergency marks a chunk nothing is waiting on.
const NoEmergency = math.MaxInt

// Local is a block position inside a chunk.
type Local struct {
	X, Y, Z int
}

// Data is the generated content of a chunk. It is guarded by the chunk's
// lock and only grows one stage at a time through Commit.
type Data struct {
	Stage  Stage
	Blocks *Blocks
	// Heights[s] is the surface snapshot recorded when reaching s.
	Heights    [stage.Count]*gen.HeightMap
	Seeds      []gen.Structure
	References []gen.Structure
	// Overrides are block edits, applied at Full and kept across resets.
	Overrides map[Local]uint16
}

// Chunk is one spatial unit of the world.
type Chunk struct {
	pos Pos
	gen uint64

	mu   sync.RWMutex
	data Data

	target  atomic.Uint32
	running atomic.Bool
	stable  atomic.Bool

	// Coordinator-owned.
	Deps Deps
	Mesh Mesh
}

// New creates an empty chunk. gen must be non-zero.
func New(pos Pos, gen uint64) *Chunk {
	return &Chunk{
		pos:  pos,
		gen:  gen,
		Deps: Deps{Emergency: NoEmergency},
	}
}

func (c *Chunk) Pos() Pos    { return c.pos }
func (c *Chunk) Gen() uint64 { return c.gen }

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk%v#%d", c.pos, c.gen)
}

// Link returns a link to c.
func (c *Chunk) Link() Link { return Link{Pos: c.pos, Gen: c.gen} }

// Stage returns the current stage.
func (c *Chunk) Stage() Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Stage
}

func (c *Chunk) Target() Stage { return Stage(c.target.Load()) }

// SetTarget replaces the requested stage.
func (c *Chunk) SetTarget(s Stage) { c.target.Store(uint32(s)) }

// RaiseTarget raises the requested stage to at least s and reports whether
// it changed.
func (c *Chunk) RaiseTarget(s Stage) bool {
	for {
		cur := c.target.Load()
		if uint32(s) <= cur {
			return false
		}
		if c.target.CompareAndSwap(cur, uint32(s)) {
			return true
		}
	}
}

// Running reports whether a job holds the chunk.
func (c *Chunk) Running() bool     { return c.running.Load() }
func (c *Chunk) SetRunning(v bool) { c.running.Store(v) }

// Stable reports whether the chunk reached its target and nothing is pending.
func (c *Chunk) Stable() bool     { return c.stable.Load() }
func (c *Chunk) SetStable(v bool) { c.stable.Store(v) }

// Commit moves the chunk to stage to, letting fn fill in that stage's data
// under the write lock. It panics unless to is the stage after the current one.
func (c *Chunk) Commit(to Stage, fn func(d *Data)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to != c.data.Stage+1 || c.data.Stage >= stage.Full {
		panic(fmt.Sprintf("chunk: %v cannot advance from %v to %v", c.pos, c.data.Stage, to))
	}
	if fn != nil {
		fn(&c.data)
	}
	c.data.Stage = to
}

// Seeds returns the structures originating in c, if it has reached
// StructureSeed. The slice must not be modified.
func (c *Chunk) Seeds() ([]gen.Structure, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data.Stage < stage.StructureSeed {
		return nil, false
	}
	return c.data.Seeds, true
}

// Structures returns the seeds and references of c, if it has reached
// StructureReference.
func (c *Chunk) Structures() (seeds, refs []gen.Structure, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data.Stage < stage.StructureReference {
		return nil, nil, false
	}
	return c.data.Seeds, c.data.References, true
}

// HeightMap returns the surface snapshot recorded at s, if c has reached s.
func (c *Chunk) HeightMap(s Stage) (*gen.HeightMap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data.Stage < s || c.data.Heights[s] == nil {
		return nil, false
	}
	return c.data.Heights[s], true
}

// Blocks returns the block array with an added reference, or nil before
// Noise. Only the job running c may write to it before Full.
func (c *Chunk) Blocks() *Blocks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data.Blocks == nil {
		return nil
	}
	return c.data.Blocks.Acquire()
}

// Overrides returns a copy of the recorded block edits.
func (c *Chunk) Overrides() map[Local]uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Local]uint16, len(c.data.Overrides))
	for k, v := range c.data.Overrides {
		out[k] = v
	}
	return out
}

// Reset drops all generated data and returns the chunk to Empty. Block
// edits are kept.
func (c *Chunk) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data.Blocks != nil {
		c.data.Blocks.Release()
	}
	c.data = Data{Overrides: c.data.Overrides}
	c.stable.Store(false)
}

// Release drops the chunk's block array. Called on eviction.
func (c *Chunk) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data.Blocks != nil {
		c.data.Blocks.Release()
		c.data.Blocks = nil
	}
}

// SetBlock records an edit at a chunk-local position. On a Full chunk the
// edit is also applied to the block array: in place when the chunk holds
// the only reference, otherwise to a copy that replaces it so outstanding
// snapshots keep their view. It reports whether the visible blocks
// changed. On ErrBlockBudget the edit stays recorded but not visible.
func (c *Chunk) SetBlock(l Local, state uint16) (bool, error) {
	if l.Y < 0 || l.Y >= gen.WorldHeight {
		return false, fmt.Errorf("chunk: y=%d outside world", l.Y)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data.Overrides == nil {
		c.data.Overrides = make(map[Local]uint16)
	}
	c.data.Overrides[l] = state

	if c.data.Stage < stage.Full || c.data.Blocks == nil {
		return false, nil
	}
	if c.data.Blocks.GetBlock(l.X, l.Y, l.Z) == state {
		return false, nil
	}
	blocks := c.data.Blocks
	if blocks.refs.Load() > 1 {
		// A snapshot still reads the current array.
		clone, err := blocks.Clone()
		if err != nil {
			return false, err
		}
		blocks.Release()
		blocks = clone
		c.data.Blocks = clone
	}
	blocks.SetBlock(l.X, l.Y, l.Z, state)

	if old := c.data.Heights[stage.Full]; old != nil {
		hm := *old
		ScanColumn(&hm, blocks, l.X, l.Z)
		c.data.Heights[stage.Full] = &hm
	}
	return true, nil
}

// ApplyOverrides writes every recorded edit into v.
func (d *Data) ApplyOverrides(v gen.Volume) {
	for l, state := range d.Overrides {
		v.SetBlock(l.X, l.Y, l.Z, state)
	}
}

// ScanColumn recomputes one column of hm from v.
func ScanColumn(hm *gen.HeightMap, v gen.Volume, x, z int) {
	y := gen.WorldHeight - 1
	for y > 0 && v.GetBlock(x, y, z) == gen.Air {
		y--
	}
	hm.Set(x, z, y, v.GetBlock(x, y, z))
}
