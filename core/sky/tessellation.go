package sky

import (
	"math"
	"strconv"
)

// Pointing is one tessellation center.
type Pointing struct {
	ID  string  `json:"id" yaml:"id"`
	RA  float64 `json:"ra" yaml:"ra"`
	Dec float64 `json:"dec" yaml:"dec"`
}

// coverFactor inflates the pointing count so neighbouring fields overlap
// enough to leave no gaps on a Fibonacci lattice.
const coverFactor = 1.9

// SpiralTessellation lays pointings for the shape on a Fibonacci spiral
// covering the whole sphere. The result depends only on the shape.
func SpiralTessellation(s Shape) []Pointing {
	r := inscribedRadius(s)
	if r <= 0 {
		return nil
	}
	n := int(math.Ceil(coverFactor * 2 / (1 - math.Cos(r*deg2rad))))
	golden := math.Pi * (3 - math.Sqrt(5))
	out := make([]Pointing, n)
	for i := range out {
		z := 1 - (2*float64(i)+1)/float64(n)
		phi := float64(i) * golden
		out[i] = Pointing{
			ID:  strconv.Itoa(i),
			RA:  NormRA(phi * rad2deg),
			Dec: math.Asin(z) * rad2deg,
		}
	}
	return out
}

// inscribedRadius is the radius in degrees of a circle that the shape fully
// contains when centered on the pointing; chip layouts use their area.
func inscribedRadius(s Shape) float64 {
	switch s.Kind {
	case ShapeCircle:
		return s.Radius
	case ShapeSquare, ShapeRectangle:
		w, h := s.dims()
		return math.Min(w, h) / 2
	case ShapeChips:
		return math.Sqrt(s.Area() / math.Pi)
	}
	return 0
}
