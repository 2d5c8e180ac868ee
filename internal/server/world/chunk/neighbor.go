package chunk

// Direction names one of the eight horizontal neighbours.
type Direction uint8

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// Directions is the number of neighbour slots.
const Directions = 8

var offsets = [Directions][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// Offset returns the chunk delta towards d.
func (d Direction) Offset() (dx, dz int) {
	return offsets[d][0], offsets[d][1]
}

// Opposite returns the direction pointing back.
func (d Direction) Opposite() Direction {
	return (d + Directions/2) % Directions
}

// Neighbor returns the position next to p in direction d.
func Neighbor(p Pos, d Direction) Pos {
	dx, dz := d.Offset()
	return p.Add(dx, dz)
}

// Link points at a neighbour by position and cache generation. A link
// whose chunk was evicted and recreated no longer resolves.
type Link struct {
	Pos Pos
	Gen uint64
}

// Linked reports whether the slot is set.
func (l Link) Linked() bool { return l.Gen != 0 }

// Mesh is the render-completeness state of a chunk. It is owned by the
// scheduler's coordinator.
type Mesh struct {
	Links    [Directions]Link
	Complete bool
}

// AllLinked reports whether every neighbour slot is set.
func (m *Mesh) AllLinked() bool {
	for _, l := range m.Links {
		if !l.Linked() {
			return false
		}
	}
	return true
}

// Deps is the dependency state of a blocked chunk. It is owned by the
// scheduler's coordinator.
type Deps struct {
	// Missing maps each dependency to the stage it must reach.
	Missing   map[Pos]Stage
	Emergency int
}
