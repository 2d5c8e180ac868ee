package gen

import "fmt"

const (
	ChunkWidth  = 16
	WorldHeight = 256
	ChunkArea   = ChunkWidth * ChunkWidth
)

// ChunkPos identifies a chunk by its X and Z coordinates.
type ChunkPos struct{ X, Z int }

// ChunkOf returns the chunk containing the world block column (x, z).
func ChunkOf(x, z int) ChunkPos {
	return ChunkPos{X: floorDiv(x, ChunkWidth), Z: floorDiv(z, ChunkWidth)}
}

// Add returns p offset by (dx, dz) chunks.
func (p ChunkPos) Add(dx, dz int) ChunkPos {
	return ChunkPos{X: p.X + dx, Z: p.Z + dz}
}

// Chebyshev returns the chessboard distance between p and o in chunks.
func (p ChunkPos) Chebyshev(o ChunkPos) int {
	return max(abs(p.X-o.X), abs(p.Z-o.Z))
}

// Manhattan returns the taxicab distance between p and o in chunks.
func (p ChunkPos) Manhattan(o ChunkPos) int {
	return abs(p.X-o.X) + abs(p.Z-o.Z)
}

// BlockX returns the world X coordinate of the chunk's first column.
func (p ChunkPos) BlockX() int { return p.X * ChunkWidth }

// BlockZ returns the world Z coordinate of the chunk's first column.
func (p ChunkPos) BlockZ() int { return p.Z * ChunkWidth }

// Box returns the chunk's horizontal extent in world block coordinates.
func (p ChunkPos) Box() Box {
	return Box{
		MinX: p.BlockX(), MinZ: p.BlockZ(),
		MaxX: p.BlockX() + ChunkWidth - 1, MaxZ: p.BlockZ() + ChunkWidth - 1,
	}
}

func (p ChunkPos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Z)
}

// Box is an inclusive horizontal bounding box in world block coordinates.
type Box struct {
	MinX, MinZ, MaxX, MaxZ int
}

// Intersects reports whether b and o share at least one column.
func (b Box) Intersects(o Box) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinZ <= o.MaxZ && o.MinZ <= b.MaxZ
}

// HeightMap is a per-column snapshot of a chunk's surface.
// Index = z*16 + x.
type HeightMap struct {
	Heights [ChunkArea]int16
	Top     [ChunkArea]uint16 // block state at Heights
}

// At returns the surface height and top block of a local column.
func (h *HeightMap) At(x, z int) (int, uint16) {
	i := z*ChunkWidth + x
	return int(h.Heights[i]), h.Top[i]
}

// Set records the surface of a local column.
func (h *HeightMap) Set(x, z, height int, top uint16) {
	i := z*ChunkWidth + x
	h.Heights[i] = int16(height)
	h.Top[i] = top
}

// Scan rebuilds the height map from the highest non-air block of each column.
func (h *HeightMap) Scan(v Volume) {
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			y := WorldHeight - 1
			for y > 0 && v.GetBlock(x, y, z) == blockAir {
				y--
			}
			h.Set(x, z, y, v.GetBlock(x, y, z))
		}
	}
}

// Volume is a chunk-local block store. x, z in [0,16), y in [0,256).
type Volume interface {
	GetBlock(x, y, z int) uint16
	SetBlock(x, y, z int, state uint16)
}

// Terrain fills chunks with base terrain.
type Terrain interface {
	// SampleHeight returns the noise surface height at a world column.
	// It is deterministic for a given seed and independent of chunk state.
	SampleHeight(x, z int) int
	// Fill writes the terrain for pos into v and returns its raw height map.
	Fill(v Volume, pos ChunkPos) *HeightMap
}

// Target is the chunk a structure is placed into. Coordinates are world
// block coordinates; writes outside the target chunk are dropped.
type Target interface {
	Pos() ChunkPos
	GetBlock(x, y, z int) uint16
	SetBlock(x, y, z int, state uint16)
	// Surface returns the raw terrain surface of a world column, if the
	// chunk holding it is readable from this target.
	Surface(x, z int) (height int, top uint16, ok bool)
}

// Structure is a multi-block feature that may span several chunks.
// Implementations are immutable once planned.
type Structure interface {
	// ID is unique among the structures of a world.
	ID() uint64
	Origin() (x, z int)
	Bounds() Box
	Overlaps(pos ChunkPos) bool
	Generate(t Target)
}

// StructureSource decides which structures originate in a chunk.
type StructureSource interface {
	TryGenerate(pos ChunkPos) []Structure
}

func floorDiv(v, d int) int {
	q := v / d
	if (v%d != 0) && ((v < 0) != (d < 0)) {
		q--
	}
	return q
}

func floorMod(v, d int) int {
	return v - floorDiv(v, d)*d
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
