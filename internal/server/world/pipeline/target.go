package pipeline

import (
	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// featureTarget exposes a chunk's blocks in world coordinates to structure
// placement, with neighbour surfaces read from their Noise height maps.
type featureTarget struct {
	pos     chunk.Pos
	blocks  *chunk.Blocks
	heights map[chunk.Pos]*gen.HeightMap
}

func (t *featureTarget) Pos() chunk.Pos { return t.pos }

func (t *featureTarget) local(x, z int) (int, int, bool) {
	if gen.ChunkOf(x, z) != t.pos {
		return 0, 0, false
	}
	return x - t.pos.BlockX(), z - t.pos.BlockZ(), true
}

func (t *featureTarget) GetBlock(x, y, z int) uint16 {
	lx, lz, ok := t.local(x, z)
	if !ok {
		return gen.Air
	}
	return t.blocks.GetBlock(lx, y, lz)
}

func (t *featureTarget) SetBlock(x, y, z int, state uint16) {
	if lx, lz, ok := t.local(x, z); ok {
		t.blocks.SetBlock(lx, y, lz, state)
	}
}

func (t *featureTarget) Surface(x, z int) (int, uint16, bool) {
	p := gen.ChunkOf(x, z)
	hm, ok := t.heights[p]
	if !ok {
		return 0, 0, false
	}
	h, top := hm.At(x-p.BlockX(), z-p.BlockZ())
	return h, top, true
}
