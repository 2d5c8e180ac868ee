package gen

// FlatTerrain generates a classic superflat world:
// bedrock at y=0, stone y=1..2, dirt y=3, grass y=4.
type FlatTerrain struct{}

// NewFlatTerrain creates a FlatTerrain. The seed is ignored.
func NewFlatTerrain(_ int64) *FlatTerrain {
	return &FlatTerrain{}
}

func (f *FlatTerrain) Fill(v Volume, _ ChunkPos) *HeightMap {
	hm := &HeightMap{}
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			v.SetBlock(x, 0, z, Bedrock)
			v.SetBlock(x, 1, z, Stone)
			v.SetBlock(x, 2, z, Stone)
			v.SetBlock(x, 3, z, Dirt)
			v.SetBlock(x, 4, z, Grass)
			hm.Set(x, z, 4, Grass)
		}
	}
	return hm
}

func (f *FlatTerrain) SampleHeight(_, _ int) int {
	return 4 // top solid block is at y=4 (grass)
}
