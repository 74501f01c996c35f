package sky

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ShapeKind names a field-of-view geometry.
type ShapeKind string

const (
	ShapeCircle    ShapeKind = "circle"
	ShapeSquare    ShapeKind = "square"
	ShapeRectangle ShapeKind = "rectangle"
	// ShapeChips is a focal plane described as a union of polygons, one per
	// detector, in tangent-plane offsets from the pointing.
	ShapeChips ShapeKind = "chips"
)

// Polygon is a list of (x, y) tangent-plane offsets in degrees.
type Polygon [][2]float64

// Shape describes a telescope field of view independently of where it points.
type Shape struct {
	Kind     ShapeKind `json:"type" yaml:"type"`
	Radius   float64   `json:"radius" yaml:"radius"`
	Width    float64   `json:"width" yaml:"width"`
	Height   float64   `json:"height" yaml:"height"`
	Rotation float64   `json:"rotation" yaml:"rotation"`
	Chips    []Polygon `json:"chips" yaml:"chips"`
}

// Validate reports malformed shapes. A well-formed shape may still have zero
// area; callers treat that as "nothing to cover" rather than bad input.
func (s Shape) Validate() error {
	switch s.Kind {
	case ShapeCircle, ShapeSquare, ShapeRectangle:
	case ShapeChips:
		for i, p := range s.Chips {
			if len(p) < 3 {
				return fmt.Errorf("chip %d has %d vertices", i, len(p))
			}
		}
	default:
		return fmt.Errorf("unknown fov type %q", s.Kind)
	}
	if s.Radius < 0 || s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("negative fov dimension")
	}
	return nil
}

func (s Shape) dims() (w, h float64) {
	if s.Kind == ShapeSquare {
		return s.Width, s.Width
	}
	return s.Width, s.Height
}

// Area returns the solid angle of the shape in square degrees.
func (s Shape) Area() float64 {
	switch s.Kind {
	case ShapeCircle:
		return 2 * math.Pi * (1 - math.Cos(s.Radius*deg2rad)) * rad2deg * rad2deg
	case ShapeSquare, ShapeRectangle:
		w, h := s.dims()
		return w * h
	case ShapeChips:
		var a float64
		for _, p := range s.Chips {
			a += math.Abs(shoelace(p))
		}
		return a
	}
	return 0
}

// BoundingRadius returns the bounding radius in degrees: every point of the
// footprint lies within this distance of the pointing.
func (s Shape) BoundingRadius() float64 {
	switch s.Kind {
	case ShapeCircle:
		return s.Radius
	case ShapeSquare, ShapeRectangle:
		w, h := s.dims()
		tw, th := math.Tan(w/2*deg2rad), math.Tan(h/2*deg2rad)
		return math.Atan(math.Hypot(tw, th)) * rad2deg
	case ShapeChips:
		var r float64
		for _, p := range s.Chips {
			for _, v := range p {
				r = math.Max(r, math.Atan(math.Hypot(math.Tan(v[0]*deg2rad), math.Tan(v[1]*deg2rad)))*rad2deg)
			}
		}
		return r
	}
	return 0
}

// At places the shape at a pointing.
func (s Shape) At(ra, dec float64) Footprint {
	fp := Footprint{shape: s, ra: NormRA(ra), dec: dec, center: Vec(ra, dec), radius: s.BoundingRadius()}
	if s.Kind != ShapeCircle {
		fp.frame = NewFrame(ra, dec, s.Rotation)
		w, h := s.dims()
		fp.halfW, fp.halfH = math.Tan(w/2*deg2rad), math.Tan(h/2*deg2rad)
		if s.Kind == ShapeChips {
			fp.chips = make([]Polygon, len(s.Chips))
			for i, p := range s.Chips {
				q := make(Polygon, len(p))
				for j, v := range p {
					q[j] = [2]float64{math.Tan(v[0] * deg2rad), math.Tan(v[1] * deg2rad)}
				}
				fp.chips[i] = q
			}
		}
	}
	return fp
}

// Footprint is a shape placed on the sky.
type Footprint struct {
	shape        Shape
	ra, dec      float64
	center       r3.Vec
	radius       float64
	frame        Frame
	halfW, halfH float64
	chips        []Polygon
}

func (f Footprint) Center() (ra, dec float64) { return f.ra, f.dec }
func (f Footprint) CenterVec() r3.Vec         { return f.center }
func (f Footprint) Radius() float64           { return f.radius }
func (f Footprint) Shape() Shape              { return f.shape }

// Contains reports whether v lies inside the footprint. Boundaries are
// inclusive.
func (f Footprint) Contains(v r3.Vec) bool {
	if f.radius <= 0 {
		return false
	}
	if f.shape.Kind == ShapeCircle {
		return Angle(f.center, v) <= f.radius
	}
	x, y, ok := f.frame.Project(v)
	if !ok {
		return false
	}
	if f.shape.Kind != ShapeChips {
		return math.Abs(x) <= f.halfW && math.Abs(y) <= f.halfH
	}
	for _, p := range f.chips {
		if inPolygon(p, x, y) {
			return true
		}
	}
	return false
}

// ContainsPoint is Contains for equatorial coordinates.
func (f Footprint) ContainsPoint(ra, dec float64) bool {
	return f.Contains(Vec(ra, dec))
}

func inPolygon(p Polygon, x, y float64) bool {
	in := false
	for i, j := 0, len(p)-1; i < len(p); j, i = i, i+1 {
		xi, yi := p[i][0], p[i][1]
		xj, yj := p[j][0], p[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			in = !in
		}
	}
	return in
}

func shoelace(p Polygon) float64 {
	var a float64
	for i, j := 0, len(p)-1; i < len(p); j, i = i, i+1 {
		a += p[j][0]*p[i][1] - p[i][0]*p[j][1]
	}
	return a / 2
}
