package gen

// OreGenerator places ore veins in stone using seeded per-chunk RNG.
type OreGenerator struct {
	seed int64
}

// NewOreGenerator creates an OreGenerator from a seed.
func NewOreGenerator(seed int64) *OreGenerator {
	return &OreGenerator{seed: seed}
}

type oreConfig struct {
	block    uint16
	maxY     int
	veinSize int
	attempts int
}

var ores = []oreConfig{
	{blockCoalOre, 128, 12, 20},
	{blockIronOre, 64, 8, 20},
	{blockGoldOre, 32, 8, 2},
	{blockDiamondOre, 16, 6, 1},
	{blockRedstoneOre, 16, 6, 8},
	{blockLapisOre, 32, 6, 1},
}

// Place scatters ore veins within pos. Veins are clipped to the chunk.
func (og *OreGenerator) Place(v Volume, pos ChunkPos, hm *HeightMap) {
	r := chunkRNG(og.seed, pos, saltOres)
	for _, ore := range ores {
		for range ore.attempts {
			x, y, z := r.intn(ChunkWidth), 1+r.intn(ore.maxY-1), r.intn(ChunkWidth)
			if top, _ := hm.At(x, z); y >= top {
				continue
			}
			og.vein(v, x, y, z, State(ore.block, 0), ore.veinSize, hm, r)
		}
	}
}

func (og *OreGenerator) vein(v Volume, x, y, z int, state uint16, size int, hm *HeightMap, r *rng) {
	for range size {
		if x >= 0 && x < ChunkWidth && z >= 0 && z < ChunkWidth && y >= 1 {
			if top, _ := hm.At(x, z); y < top && v.GetBlock(x, y, z) == Stone {
				v.SetBlock(x, y, z, state)
			}
		}
		switch r.intn(6) {
		case 0:
			x++
		case 1:
			x--
		case 2:
			y++
		case 3:
			y--
		case 4:
			z++
		case 5:
			z--
		}
	}
}
