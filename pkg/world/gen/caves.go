package gen

// CaveGenerator carves caves using 3D simplex noise.
type CaveGenerator struct {
	a, b *Noise
}

// NewCaveGenerator creates a CaveGenerator from a seed.
func NewCaveGenerator(seed int64) *CaveGenerator {
	return &CaveGenerator{
		a: NewNoise(seed + 300),
		b: NewNoise(seed + 400),
	}
}

// Carve removes blocks to form caves below the surface of pos.
func (cg *CaveGenerator) Carve(v Volume, pos ChunkPos, hm *HeightMap) {
	const (
		threshold = 0.55
		lavaLevel = 10
	)
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			bx := float64(pos.BlockX() + x)
			bz := float64(pos.BlockZ() + z)
			top, _ := hm.At(x, z)
			// Keep bedrock and the top soil intact.
			for y := 4; y < top-4; y++ {
				by := float64(y)
				d := (cg.a.Noise3D(bx/32, by/24, bz/32) + cg.b.Noise3D(bx/48, by/32, bz/48)) / 2
				if d <= threshold {
					continue
				}
				if y < lavaLevel {
					v.SetBlock(x, y, z, State(blockLava, 0))
				} else {
					v.SetBlock(x, y, z, Air)
				}
			}
		}
	}
}
