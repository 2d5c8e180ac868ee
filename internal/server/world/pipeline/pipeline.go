// Package pipeline advances chunks through their generation stages.
package pipeline

import (
	"fmt"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

const (
	// ReferenceRadius is how far, in chunks, structure seeds are collected from.
	ReferenceRadius = gen.StructureReach
	// FeatureRadius is how far, in chunks, placement reads neighbour terrain.
	FeatureRadius = gen.SurfaceReach
)

// Lookup finds cached chunks.
type Lookup interface {
	Get(pos chunk.Pos) (*chunk.Chunk, bool)
}

// Result is the outcome of one Advance.
type Result struct {
	// Missing lists neighbours, with the stage they must reach, that kept
	// the advance from running. Empty when the chunk advanced.
	Missing map[chunk.Pos]stage.Stage
}

// Blocked reports whether the advance waits on neighbours.
func (r Result) Blocked() bool { return len(r.Missing) > 0 }

// Pipeline holds the generators and shared resources the stages use.
type Pipeline struct {
	terrain    gen.Terrain
	structures gen.StructureSource
	pool       *chunk.Pool
	chunks     Lookup
}

// New creates a Pipeline.
func New(terrain gen.Terrain, structures gen.StructureSource, pool *chunk.Pool, chunks Lookup) *Pipeline {
	return &Pipeline{terrain: terrain, structures: structures, pool: pool, chunks: chunks}
}

// Requirement returns the neighbour radius and stage needed to advance
// into to. A radius of -1 means no neighbours are read.
func Requirement(to stage.Stage) (radius int, need stage.Stage) {
	switch to {
	case stage.StructureReference:
		return ReferenceRadius, stage.StructureSeed
	case stage.Full:
		return FeatureRadius, stage.Noise
	default:
		return -1, stage.Empty
	}
}

// Missing returns the neighbours that would block c's next advance.
func (p *Pipeline) Missing(c *chunk.Chunk) map[chunk.Pos]stage.Stage {
	cur := c.Stage()
	if cur.Terminal() {
		return nil
	}
	radius, need := Requirement(cur.Next())
	var missing map[chunk.Pos]stage.Stage
	p.eachNeighbor(c.Pos(), radius, func(pos chunk.Pos) {
		if n, ok := p.chunks.Get(pos); ok && n.Stage() >= need {
			return
		}
		if missing == nil {
			missing = make(map[chunk.Pos]stage.Stage)
		}
		missing[pos] = need
	})
	return missing
}

// CanAdvance reports whether c's next advance would run now.
func (p *Pipeline) CanAdvance(c *chunk.Chunk) bool {
	return !c.Stage().Terminal() && len(p.Missing(c)) == 0
}

func (p *Pipeline) eachNeighbor(center chunk.Pos, radius int, fn func(chunk.Pos)) {
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			if dx == 0 && dz == 0 {
				continue
			}
			fn(center.Add(dx, dz))
		}
	}
}

// Advance runs the stage after c's current one. It panics unless to is
// that stage. The caller must hold the chunk exclusively.
func (p *Pipeline) Advance(c *chunk.Chunk, to stage.Stage) (Result, error) {
	if cur := c.Stage(); cur.Terminal() || to != cur+1 {
		panic(fmt.Sprintf("pipeline: %v cannot advance from %v to %v", c.Pos(), cur, to))
	}
	switch to {
	case stage.StructureSeed:
		return p.seed(c)
	case stage.StructureReference:
		return p.reference(c)
	case stage.Noise:
		return p.noise(c)
	default:
		return p.feature(c)
	}
}

func (p *Pipeline) seed(c *chunk.Chunk) (Result, error) {
	seeds := p.structures.TryGenerate(c.Pos())
	c.Commit(stage.StructureSeed, func(d *chunk.Data) {
		d.Seeds = seeds
	})
	return Result{}, nil
}

func (p *Pipeline) reference(c *chunk.Chunk) (Result, error) {
	var (
		res  Result
		refs []gen.Structure
	)
	p.eachNeighbor(c.Pos(), ReferenceRadius, func(pos chunk.Pos) {
		var seeds []gen.Structure
		n, ok := p.chunks.Get(pos)
		if ok {
			seeds, ok = n.Seeds()
		}
		if !ok {
			if res.Missing == nil {
				res.Missing = make(map[chunk.Pos]stage.Stage)
			}
			res.Missing[pos] = stage.StructureSeed
			return
		}
		for _, s := range seeds {
			if s.Overlaps(c.Pos()) {
				refs = append(refs, s)
			}
		}
	})
	if res.Blocked() {
		return res, nil
	}
	c.Commit(stage.StructureReference, func(d *chunk.Data) {
		d.References = refs
	})
	return res, nil
}

func (p *Pipeline) noise(c *chunk.Chunk) (Result, error) {
	blocks, err := p.pool.Get()
	if err != nil {
		return Result{}, fmt.Errorf("noise %v: %w", c.Pos(), err)
	}
	hm := p.terrain.Fill(blocks, c.Pos())
	c.Commit(stage.Noise, func(d *chunk.Data) {
		d.Blocks = blocks
		d.Heights[stage.Noise] = hm
	})
	return Result{}, nil
}

func (p *Pipeline) feature(c *chunk.Chunk) (Result, error) {
	var res Result
	heights := make(map[chunk.Pos]*gen.HeightMap, (2*FeatureRadius+1)*(2*FeatureRadius+1))
	self, ok := c.HeightMap(stage.Noise)
	if !ok {
		return res, fmt.Errorf("feature %v: no terrain height map", c.Pos())
	}
	heights[c.Pos()] = self
	p.eachNeighbor(c.Pos(), FeatureRadius, func(pos chunk.Pos) {
		var hm *gen.HeightMap
		n, ok := p.chunks.Get(pos)
		if ok {
			hm, ok = n.HeightMap(stage.Noise)
		}
		if !ok {
			if res.Missing == nil {
				res.Missing = make(map[chunk.Pos]stage.Stage)
			}
			res.Missing[pos] = stage.Noise
			return
		}
		heights[pos] = hm
	})
	if res.Blocked() {
		return res, nil
	}

	seeds, refs, _ := c.Structures()
	all := make([]gen.Structure, 0, len(seeds)+len(refs))
	all = append(append(all, seeds...), refs...)
	gen.SortStructures(all)

	blocks := c.Blocks()
	if blocks == nil {
		return res, fmt.Errorf("feature %v: no block array", c.Pos())
	}
	defer blocks.Release()

	t := &featureTarget{pos: c.Pos(), blocks: blocks, heights: heights}
	for _, s := range all {
		s.Generate(t)
	}
	// Edits are applied under the lock so none recorded meanwhile is lost.
	c.Commit(stage.Full, func(d *chunk.Data) {
		d.ApplyOverrides(blocks)
		hm := &gen.HeightMap{}
		hm.Scan(blocks)
		d.Heights[stage.Full] = hm
	})
	return res, nil
}
