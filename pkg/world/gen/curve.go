package gen

import (
	"fmt"
	"sort"
)

// CurvePoint is one knot of an OffsetCurve.
type CurvePoint struct {
	Y      int
	Offset float64
}

// OffsetCurve is a world-wide piecewise linear density offset by height.
// Positive offsets make a layer more solid, negative ones carve it out.
type OffsetCurve struct {
	points []CurvePoint
}

// DefaultCurve keeps the bottom of the world solid and thins out terrain
// far above sea level.
func DefaultCurve() OffsetCurve {
	return OffsetCurve{points: []CurvePoint{
		{0, 40}, {40, 10}, {seaLevel, 0}, {120, -4}, {200, -24}, {WorldHeight - 1, -80},
	}}
}

// NewOffsetCurve builds a curve from (y, offset) pairs. Heights must be
// strictly increasing.
func NewOffsetCurve(pairs [][2]float64) (OffsetCurve, error) {
	if len(pairs) == 0 {
		return OffsetCurve{}, fmt.Errorf("offset curve: no points")
	}
	pts := make([]CurvePoint, len(pairs))
	for i, p := range pairs {
		pts[i] = CurvePoint{Y: int(p[0]), Offset: p[1]}
	}
	if !sort.SliceIsSorted(pts, func(i, j int) bool { return pts[i].Y < pts[j].Y }) {
		return OffsetCurve{}, fmt.Errorf("offset curve: heights must increase")
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].Y == pts[i-1].Y {
			return OffsetCurve{}, fmt.Errorf("offset curve: duplicate height %d", pts[i].Y)
		}
	}
	return OffsetCurve{points: pts}, nil
}

// At returns the offset at height y, clamped to the end knots.
func (c OffsetCurve) At(y int) float64 {
	pts := c.points
	if len(pts) == 0 {
		return 0
	}
	if y <= pts[0].Y {
		return pts[0].Offset
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Y >= y })
	if i == len(pts) {
		return pts[len(pts)-1].Offset
	}
	lo, hi := pts[i-1], pts[i]
	t := float64(y-lo.Y) / float64(hi.Y-lo.Y)
	return lo.Offset + (hi.Offset-lo.Offset)*t
}
