package gen

// DefaultTerrain produces vanilla-like terrain with biomes, caves and ores.
type DefaultTerrain struct {
	seed    int64
	height  *Noise
	detail  *Noise
	density *Noise
	biomes  *BiomeGenerator
	caves   *CaveGenerator
	ores    *OreGenerator
	curve   OffsetCurve
}

// detailBand is how far from the base surface 3D noise may move it.
const detailBand = 6.0

// NewDefaultTerrain creates a DefaultTerrain from a seed and a vertical
// offset curve.
func NewDefaultTerrain(seed int64, curve OffsetCurve) *DefaultTerrain {
	return &DefaultTerrain{
		seed:    seed,
		height:  NewNoise(seed),
		detail:  NewNoise(seed + 1),
		density: NewNoise(seed + 2),
		biomes:  NewBiomeGenerator(seed),
		caves:   NewCaveGenerator(seed),
		ores:    NewOreGenerator(seed),
		curve:   curve,
	}
}

// BiomeAt returns the biome of a world column.
func (t *DefaultTerrain) BiomeAt(x, z int) byte {
	return t.biomes.BiomeAt(x, z)
}

func (t *DefaultTerrain) SampleHeight(x, z int) int {
	return t.baseHeight(x, z, t.biomes.BiomeAt(x, z))
}

// baseHeight computes the 2D noise surface at a world column.
// Different biomes scale noise amplitude differently.
func (t *DefaultTerrain) baseHeight(bx, bz int, biome byte) int {
	base := t.height.Octave2D(float64(bx)/128.0, float64(bz)/128.0, 6, 0.5)
	detail := t.detail.Octave2D(float64(bx)/32.0, float64(bz)/32.0, 3, 0.5)
	amplitude, baseHeight := biomeTerrainParams(biome)
	h := int(baseHeight + base*amplitude + detail*4.0)
	return min(max(h, 1), WorldHeight-6)
}

// solid reports whether a block is stone before carving.
func (t *DefaultTerrain) solid(bx, y, bz, height int) bool {
	d := float64(height-y) + t.curve.At(y)
	if d > detailBand {
		return true
	}
	if d < -detailBand {
		return false
	}
	return d+t.density.Octave3D(float64(bx)/48, float64(y)/32, float64(bz)/48, 2, 0.5)*detailBand > 0
}

func (t *DefaultTerrain) Fill(v Volume, pos ChunkPos) *HeightMap {
	hm := &HeightMap{}
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			bx, bz := pos.BlockX()+x, pos.BlockZ()+z
			biome := t.biomes.BiomeAt(bx, bz)
			height := t.baseHeight(bx, bz, biome)

			v.SetBlock(x, 0, z, Bedrock)
			for y := 1; y <= 3; y++ {
				if blockHash(t.seed, bx, y, bz, saltBedrock)&1 == 0 {
					v.SetBlock(x, y, z, Bedrock)
				} else {
					v.SetBlock(x, y, z, Stone)
				}
			}

			top := 3
			for y := 4; y < WorldHeight; y++ {
				if t.solid(bx, y, bz, height) {
					v.SetBlock(x, y, z, Stone)
					top = y
				}
			}
			surface := paintSurface(v, x, z, top, biome)
			for y := top + 1; y <= seaLevel; y++ {
				v.SetBlock(x, y, z, Water)
			}
			hm.Set(x, z, top, surface)
		}
	}
	t.caves.Carve(v, pos, hm)
	t.ores.Place(v, pos, hm)
	return hm
}
