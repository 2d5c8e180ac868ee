package gen

// Boulder is a rough sphere of stone sitting on the noise surface.
// Its centre height comes from SampleHeight, so placing it never needs
// the chunk it originates in.
type Boulder struct {
	id      uint64
	seed    int64
	x, y, z int
	radius  int
}

func (b *Boulder) ID() uint64         { return b.id }
func (b *Boulder) Origin() (int, int) { return b.x, b.z }

func (b *Boulder) Bounds() Box {
	return Box{MinX: b.x - b.radius, MinZ: b.z - b.radius, MaxX: b.x + b.radius, MaxZ: b.z + b.radius}
}

func (b *Boulder) Overlaps(pos ChunkPos) bool {
	return b.Bounds().Intersects(pos.Box())
}

func (b *Boulder) Generate(dst Target) {
	cb := dst.Pos().Box()
	bb := b.Bounds()
	r2 := b.radius * b.radius
	for x := max(bb.MinX, cb.MinX); x <= min(bb.MaxX, cb.MaxX); x++ {
		for z := max(bb.MinZ, cb.MinZ); z <= min(bb.MaxZ, cb.MaxZ); z++ {
			for y := max(b.y-b.radius, 1); y <= min(b.y+b.radius, WorldHeight-1); y++ {
				dx, dy, dz := x-b.x, y-b.y, z-b.z
				h := blockHash(b.seed, x, y, z, saltLeaves)
				// Roughen the rim by one block.
				if dx*dx+dy*dy+dz*dz > r2-int(h%uint64(b.radius+1)) {
					continue
				}
				switch h >> 8 % 8 {
				case 0:
					dst.SetBlock(x, y, z, State(blockMossy, 0))
				case 1, 2:
					dst.SetBlock(x, y, z, State(blockCobble, 0))
				default:
					dst.SetBlock(x, y, z, Stone)
				}
			}
		}
	}
}
