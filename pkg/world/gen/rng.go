package gen

// rng is a splitmix64 generator. Every random decision in generation is
// drawn from an rng seeded by world seed, position and a per-pass salt, so
// output never depends on the order chunks are generated in.
type rng struct {
	state uint64
}

func newRNG(seed uint64) *rng {
	return &rng{state: seed}
}

// Per-pass salts.
const (
	saltStructures uint64 = 0x5354 + iota<<16
	saltOres
	saltBedrock
	saltLeaves
)

func chunkRNG(seed int64, pos ChunkPos, salt uint64) *rng {
	return newRNG(mix(uint64(seed), uint64(int64(pos.X)), uint64(int64(pos.Z)), salt))
}

func (r *rng) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	return finalize(r.state)
}

// intn returns a value in [0, n).
func (r *rng) intn(n int) int {
	return int(r.next() % uint64(n))
}

// between returns a value in [lo, hi].
func (r *rng) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.intn(hi-lo+1)
}

// chance reports true with probability perMille/1000.
func (r *rng) chance(perMille int) bool {
	return r.intn(1000) < perMille
}

func finalize(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func mix(vs ...uint64) uint64 {
	h := uint64(0x243F6A8885A308D3)
	for _, v := range vs {
		h = finalize(h ^ v + 0x9E3779B97F4A7C15)
	}
	return h
}

// blockHash returns a stable hash of a world block, used for per-block
// decisions that must agree across chunk borders.
func blockHash(seed int64, x, y, z int, salt uint64) uint64 {
	return mix(uint64(seed), uint64(int64(x)), uint64(int64(y)), uint64(int64(z)), salt)
}
