package gen

import "sort"

// biomeSource is implemented by terrains that know their biomes.
type biomeSource interface {
	BiomeAt(x, z int) byte
}

// Planner decides which structures originate in each chunk.
type Planner struct {
	seed    int64
	terrain Terrain
	catalog *Catalog
}

// NewPlanner creates a Planner. Boulder heights are taken from terrain.
func NewPlanner(seed int64, terrain Terrain, catalog *Catalog) *Planner {
	return &Planner{seed: seed, terrain: terrain, catalog: catalog}
}

func (p *Planner) biomeAt(x, z int) byte {
	if bs, ok := p.terrain.(biomeSource); ok {
		return bs.BiomeAt(x, z)
	}
	return biomePlains
}

// TryGenerate returns the structures whose origin lies in pos.
// The result is deterministic for a given seed and position.
func (p *Planner) TryGenerate(pos ChunkPos) []Structure {
	r := chunkRNG(p.seed, pos, saltStructures)
	biome := p.biomeAt(pos.BlockX()+ChunkWidth/2, pos.BlockZ()+ChunkWidth/2)

	var out []Structure
	nextID := func() uint64 { return mix(uint64(p.seed), uint64(int64(pos.X)), uint64(int64(pos.Z)), uint64(len(out))) }

	bt := p.catalog.treesFor(biome)
	for range bt.Count {
		x := pos.BlockX() + r.intn(ChunkWidth)
		z := pos.BlockZ() + r.intn(ChunkWidth)
		kind := p.catalog.Trees[bt.Kinds[r.intn(len(bt.Kinds))]]
		out = append(out, &Tree{
			id:    nextID(),
			seed:  p.seed,
			x:     x,
			z:     z,
			kind:  kind,
			trunk: r.between(kind.TrunkMin, kind.TrunkMax),
		})
	}

	bk := p.catalog.Boulders
	if p.catalog.boulderBiomes[biome] && r.chance(bk.PerMille) {
		x := pos.BlockX() + r.intn(ChunkWidth)
		z := pos.BlockZ() + r.intn(ChunkWidth)
		radius := r.between(bk.RadiusMin, bk.RadiusMax)
		out = append(out, &Boulder{
			id:     nextID(),
			seed:   p.seed,
			x:      x,
			y:      p.terrain.SampleHeight(x, z) + radius/3,
			z:      z,
			radius: radius,
		})
	}
	return out
}

// SortStructures orders structures by origin, then ID. Placing in this
// order makes overlapping structures resolve the same way in every chunk.
func SortStructures(s []Structure) {
	sort.Slice(s, func(i, j int) bool {
		xi, zi := s[i].Origin()
		xj, zj := s[j].Origin()
		if xi != xj {
			return xi < xj
		}
		if zi != zj {
			return zi < zj
		}
		return s[i].ID() < s[j].ID()
	})
}
