package chunk

import (
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// Snapshot is a read-only view of a chunk at one instant. A snapshot of a
// Full chunk holds a reference to its block array; call Release once.
type Snapshot struct {
	Pos     Pos
	Gen     uint64
	Stage   Stage
	Target  Stage
	Running bool
	Stable  bool
	// Blocks is set only for Full chunks.
	Blocks *Blocks
	// Heights is the newest recorded surface, or nil before Noise.
	Heights    *gen.HeightMap
	Seeds      int
	References int
}

// Snapshot captures c.
func (c *Chunk) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		Pos:        c.pos,
		Gen:        c.gen,
		Stage:      c.data.Stage,
		Target:     c.Target(),
		Running:    c.Running(),
		Stable:     c.Stable(),
		Seeds:      len(c.data.Seeds),
		References: len(c.data.References),
	}
	for i := int(c.data.Stage); i >= 0; i-- {
		if hm := c.data.Heights[i]; hm != nil {
			s.Heights = hm
			break
		}
	}
	if c.data.Stage == stage.Full && c.data.Blocks != nil {
		s.Blocks = c.data.Blocks.Acquire()
	}
	return s
}

// GetBlock returns a chunk-local block, or air if the snapshot has no blocks.
func (s Snapshot) GetBlock(x, y, z int) uint16 {
	if s.Blocks == nil {
		return gen.Air
	}
	return s.Blocks.GetBlock(x, y, z)
}

// Release drops the snapshot's block reference.
func (s Snapshot) Release() {
	if s.Blocks != nil {
		s.Blocks.Release()
	}
}
