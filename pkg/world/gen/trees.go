package gen

// Tree is a planned tree. Its shape depends only on the plan and on the
// surface under its trunk, so every chunk it overlaps draws the same tree.
type Tree struct {
	id    uint64
	seed  int64
	x, z  int
	kind  TreeKind
	trunk int
}

func (t *Tree) ID() uint64         { return t.id }
func (t *Tree) Origin() (int, int) { return t.x, t.z }

func (t *Tree) Bounds() Box {
	r := t.kind.Radius
	return Box{MinX: t.x - r, MinZ: t.z - r, MaxX: t.x + r, MaxZ: t.z + r}
}

func (t *Tree) Overlaps(pos ChunkPos) bool {
	return t.Bounds().Intersects(pos.Box())
}

// Generate places the tree if the trunk stands on grass.
func (t *Tree) Generate(dst Target) {
	h, top, ok := dst.Surface(t.x, t.z)
	if !ok || top != Grass || h+t.trunk+2 >= WorldHeight {
		return
	}
	base := h + 1
	log := State(blockLog, t.kind.Variant)
	for y := base; y < base+t.trunk; y++ {
		dst.SetBlock(t.x, y, t.z, log)
	}
	if t.kind.Shape == "conical" {
		t.conical(dst, base)
	} else {
		t.round(dst, base)
	}
}

// round draws an oak-like canopy: two wide layers, two narrow ones.
func (t *Tree) round(dst Target, base int) {
	leaves := State(blockLeaves, t.kind.Variant)
	leafBase := base + t.trunk - 2
	for dy := 0; dy < 4; dy++ {
		y := leafBase + dy
		radius := t.kind.Radius
		if dy >= 2 {
			radius = max(radius-1, 1)
		}
		for dx := -radius; dx <= radius; dx++ {
			for dz := -radius; dz <= radius; dz++ {
				if dx == 0 && dz == 0 && dy < 2 {
					continue // trunk
				}
				// Skip some corners for a round shape on wider layers.
				if radius == t.kind.Radius && abs(dx) == radius && abs(dz) == radius &&
					blockHash(t.seed, t.x+dx, y, t.z+dz, saltLeaves)&1 == 0 {
					continue
				}
				t.leaf(dst, t.x+dx, y, t.z+dz, leaves)
			}
		}
	}
}

// conical draws a spruce-like canopy, widest at the bottom.
func (t *Tree) conical(dst Target, base int) {
	leaves := State(blockLeaves, t.kind.Variant)
	for dy := 1; dy <= t.trunk; dy++ {
		y := base + dy
		radius := min((t.trunk-dy)/2, t.kind.Radius)
		if radius <= 0 && dy < t.trunk {
			continue
		}
		// Only every other row for the wider sections.
		if radius >= 2 && dy%2 == 0 {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			for dz := -radius; dz <= radius; dz++ {
				if dx == 0 && dz == 0 {
					continue
				}
				t.leaf(dst, t.x+dx, y, t.z+dz, leaves)
			}
		}
	}
	if top := base + t.trunk; top < WorldHeight {
		dst.SetBlock(t.x, top, t.z, leaves)
	}
}

func (t *Tree) leaf(dst Target, x, y, z int, state uint16) {
	if y >= WorldHeight {
		return
	}
	if dst.GetBlock(x, y, z) == Air {
		dst.SetBlock(x, y, z, state)
	}
}
