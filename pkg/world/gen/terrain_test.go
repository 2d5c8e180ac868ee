package gen

import "testing"

// volume is a plain chunk-local block store for tests.
type volume [ChunkArea * WorldHeight]uint16

func (v *volume) GetBlock(x, y, z int) uint16 {
	return v[(y*ChunkWidth+z)*ChunkWidth+x]
}

func (v *volume) SetBlock(x, y, z int, state uint16) {
	v[(y*ChunkWidth+z)*ChunkWidth+x] = state
}

func TestDefaultTerrainDeterministic(t *testing.T) {
	t1 := NewDefaultTerrain(42, DefaultCurve())
	t2 := NewDefaultTerrain(42, DefaultCurve())

	var v1, v2 volume
	h1 := t1.Fill(&v1, ChunkPos{X: 3, Z: -2})
	h2 := t2.Fill(&v2, ChunkPos{X: 3, Z: -2})
	if v1 != v2 {
		t.Fatal("blocks differ for the same seed")
	}
	if *h1 != *h2 {
		t.Fatal("height maps differ for the same seed")
	}
}

func TestDefaultTerrainBedrockAtY0(t *testing.T) {
	var v volume
	NewDefaultTerrain(12345, DefaultCurve()).Fill(&v, ChunkPos{})

	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			if got := v.GetBlock(x, 0, z); got != Bedrock {
				t.Errorf("block at (%d,0,%d) = %d, want %d (bedrock)", x, z, got, Bedrock)
			}
		}
	}
}

func TestDefaultTerrainHeightReasonable(t *testing.T) {
	tr := NewDefaultTerrain(999, DefaultCurve())
	for _, c := range [][2]int{{0, 0}, {-300, 17}, {1024, -4096}} {
		if h := tr.SampleHeight(c[0], c[1]); h < 1 || h > WorldHeight-6 {
			t.Errorf("SampleHeight(%d,%d) = %d, want 1..%d", c[0], c[1], h, WorldHeight-6)
		}
	}
}

func TestDefaultTerrainDifferentSeeds(t *testing.T) {
	var v1, v2 volume
	NewDefaultTerrain(1, DefaultCurve()).Fill(&v1, ChunkPos{})
	NewDefaultTerrain(2, DefaultCurve()).Fill(&v2, ChunkPos{})
	if v1 == v2 {
		t.Error("different seeds should produce different terrain")
	}
}

func TestDefaultTerrainHeightMapMatchesBlocks(t *testing.T) {
	var v volume
	hm := NewDefaultTerrain(7, DefaultCurve()).Fill(&v, ChunkPos{X: -1, Z: 5})
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			h, top := hm.At(x, z)
			if h < 0 || h >= WorldHeight {
				t.Fatalf("column (%d,%d) height %d out of range", x, z, h)
			}
			if got := v.GetBlock(x, h, z); got != top {
				t.Errorf("column (%d,%d) top = %d, block at height = %d", x, z, top, got)
			}
		}
	}
}

func TestFlatTerrainLayers(t *testing.T) {
	var v volume
	hm := NewFlatTerrain(0).Fill(&v, ChunkPos{X: 9, Z: 9})

	tests := []struct {
		y     int
		block uint16
		name  string
	}{
		{0, Bedrock, "bedrock"},
		{1, Stone, "stone"},
		{2, Stone, "stone"},
		{3, Dirt, "dirt"},
		{4, Grass, "grass"},
		{5, Air, "air"},
	}
	for _, tt := range tests {
		if got := v.GetBlock(8, tt.y, 8); got != tt.block {
			t.Errorf("y=%d: got %d, want %d (%s)", tt.y, got, tt.block, tt.name)
		}
	}
	if h, top := hm.At(0, 15); h != 4 || top != Grass {
		t.Errorf("height map = (%d, %d), want (4, grass)", h, top)
	}
}

func TestHeightMapScan(t *testing.T) {
	var v volume
	v.SetBlock(2, 10, 3, Stone)
	v.SetBlock(2, 40, 3, Grass)

	var hm HeightMap
	hm.Scan(&v)
	if h, top := hm.At(2, 3); h != 40 || top != Grass {
		t.Errorf("At(2,3) = (%d, %d), want (40, grass)", h, top)
	}
	if h, _ := hm.At(0, 0); h != 0 {
		t.Errorf("empty column height = %d, want 0", h)
	}
}

func TestOffsetCurve(t *testing.T) {
	if _, err := NewOffsetCurve([][2]float64{{10, 0}, {5, 1}}); err == nil {
		t.Error("expected error for unsorted curve")
	}
	c, err := NewOffsetCurve([][2]float64{{0, 2}, {100, -2}})
	if err != nil {
		t.Fatalf("NewOffsetCurve: %v", err)
	}
	if got := c.At(50); got != 0 {
		t.Errorf("At(50) = %f, want 0", got)
	}
}

func TestChunkOfNegative(t *testing.T) {
	tests := []struct {
		x, z int
		want ChunkPos
	}{
		{0, 0, ChunkPos{0, 0}},
		{15, 16, ChunkPos{0, 1}},
		{-1, -16, ChunkPos{-1, -1}},
		{-17, 31, ChunkPos{-2, 1}},
	}
	for _, tt := range tests {
		if got := ChunkOf(tt.x, tt.z); got != tt.want {
			t.Errorf("ChunkOf(%d,%d) = %v, want %v", tt.x, tt.z, got, tt.want)
		}
	}
}
