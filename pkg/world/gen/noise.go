package gen

// Simplex noise in two and three dimensions. Output is in [-1, 1].

var gradients = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

const (
	skew2   = 0.36602540378443864676 // (sqrt(3) - 1) / 2
	unskew2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	skew3   = 1.0 / 3.0
	unskew3 = 1.0 / 6.0
)

// Noise produces deterministic simplex noise from a seed.
type Noise struct {
	perm [512]uint8
}

// NewNoise creates a noise source with a seeded permutation table.
func NewNoise(seed int64) *Noise {
	n := &Noise{}
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	rng := newRNG(uint64(seed))
	for i := 255; i > 0; i-- {
		j := rng.intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
	for i := range n.perm {
		n.perm[i] = p[i&255]
	}
	return n
}

func (n *Noise) grad(i int) *[3]float64 {
	return &gradients[int(n.perm[i])%12]
}

// corner2 returns the contribution of one simplex corner.
func corner2(g *[3]float64, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y)
}

func corner3(g *[3]float64, x, y, z float64) float64 {
	t := 0.6 - x*x - y*y - z*z
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y + g[2]*z)
}

// Noise2D returns 2D simplex noise at (x, y).
func (n *Noise) Noise2D(x, y float64) float64 {
	s := (x + y) * skew2
	i, j := fastFloor(x+s), fastFloor(y+s)
	t := float64(i+j) * unskew2
	x0, y0 := x-(float64(i)-t), y-(float64(j)-t)

	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}
	x1, y1 := x0-float64(i1)+unskew2, y0-float64(j1)+unskew2
	x2, y2 := x0-1+2*unskew2, y0-1+2*unskew2

	ii, jj := i&255, j&255
	sum := corner2(n.grad(ii+int(n.perm[jj])), x0, y0)
	sum += corner2(n.grad(ii+i1+int(n.perm[jj+j1])), x1, y1)
	sum += corner2(n.grad(ii+1+int(n.perm[jj+1])), x2, y2)
	return 70 * sum
}

// simplexOrder picks the second and third corners of the 3D simplex cell.
func simplexOrder(x, y, z float64) (a, b [3]int) {
	switch {
	case x >= y && y >= z:
		return [3]int{1, 0, 0}, [3]int{1, 1, 0}
	case x >= y && x >= z:
		return [3]int{1, 0, 0}, [3]int{1, 0, 1}
	case x >= y:
		return [3]int{0, 0, 1}, [3]int{1, 0, 1}
	case y < z:
		return [3]int{0, 0, 1}, [3]int{0, 1, 1}
	case x < z:
		return [3]int{0, 1, 0}, [3]int{0, 1, 1}
	default:
		return [3]int{0, 1, 0}, [3]int{1, 1, 0}
	}
}

// Noise3D returns 3D simplex noise at (x, y, z).
func (n *Noise) Noise3D(x, y, z float64) float64 {
	s := (x + y + z) * skew3
	i, j, k := fastFloor(x+s), fastFloor(y+s), fastFloor(z+s)
	t := float64(i+j+k) * unskew3
	x0, y0, z0 := x-(float64(i)-t), y-(float64(j)-t), z-(float64(k)-t)

	a, b := simplexOrder(x0, y0, z0)
	ii, jj, kk := i&255, j&255, k&255
	hash := func(di, dj, dk int) int {
		return ii + di + int(n.perm[jj+dj+int(n.perm[kk+dk])])
	}

	sum := corner3(n.grad(hash(0, 0, 0)), x0, y0, z0)
	sum += corner3(n.grad(hash(a[0], a[1], a[2])),
		x0-float64(a[0])+unskew3, y0-float64(a[1])+unskew3, z0-float64(a[2])+unskew3)
	sum += corner3(n.grad(hash(b[0], b[1], b[2])),
		x0-float64(b[0])+2*unskew3, y0-float64(b[1])+2*unskew3, z0-float64(b[2])+2*unskew3)
	sum += corner3(n.grad(hash(1, 1, 1)), x0-1+3*unskew3, y0-1+3*unskew3, z0-1+3*unskew3)
	return 32 * sum
}

// Octave2D layers octaves of 2D noise. Returns a value roughly in [-1, 1].
func (n *Noise) Octave2D(x, y float64, octaves int, persistence float64) float64 {
	var total, norm float64
	freq, amp := 1.0, 1.0
	for range octaves {
		total += n.Noise2D(x*freq, y*freq) * amp
		norm += amp
		amp *= persistence
		freq *= 2
	}
	return total / norm
}

// Octave3D layers octaves of 3D noise.
func (n *Noise) Octave3D(x, y, z float64, octaves int, persistence float64) float64 {
	var total, norm float64
	freq, amp := 1.0, 1.0
	for range octaves {
		total += n.Noise3D(x*freq, y*freq, z*freq) * amp
		norm += amp
		amp *= persistence
		freq *= 2
	}
	return total / norm
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
