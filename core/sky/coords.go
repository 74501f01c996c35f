package sky

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// Vec returns the unit vector pointing at (ra, dec).
func Vec(ra, dec float64) r3.Vec {
	a, d := ra*deg2rad, dec*deg2rad
	cd := math.Cos(d)
	return r3.Vec{X: cd * math.Cos(a), Y: cd * math.Sin(a), Z: math.Sin(d)}
}

// RADec converts a (not necessarily unit) vector back to equatorial degrees.
func RADec(v r3.Vec) (ra, dec float64) {
	n := r3.Norm(v)
	if n == 0 {
		return 0, 0
	}
	ra = math.Atan2(v.Y, v.X) * rad2deg
	dec = math.Asin(clamp(v.Z/n, -1, 1)) * rad2deg
	return NormRA(ra), dec
}

// NormRA wraps ra into [0, 360).
func NormRA(ra float64) float64 {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	return ra
}

// Separation returns the angular distance in degrees between two positions.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	return Angle(Vec(ra1, dec1), Vec(ra2, dec2))
}

// Angle returns the angle in degrees between two vectors. The atan2 form keeps
// precision for both tiny and near-antipodal separations.
func Angle(a, b r3.Vec) float64 {
	return math.Atan2(r3.Norm(r3.Cross(a, b)), r3.Dot(a, b)) * rad2deg
}

// Frame is the local tangent frame at a pointing: rows are east, north and the
// pointing direction itself. Projecting a vector through the frame gives
// gnomonic coordinates around the pointing.
type Frame struct {
	m *mat.Dense
}

// NewFrame builds the tangent frame at (ra, dec) rotated by posAngle degrees
// (east of north).
func NewFrame(ra, dec, posAngle float64) Frame {
	a, d := ra*deg2rad, dec*deg2rad
	east := r3.Vec{X: -math.Sin(a), Y: math.Cos(a)}
	north := r3.Vec{X: -math.Sin(d) * math.Cos(a), Y: -math.Sin(d) * math.Sin(a), Z: math.Cos(d)}
	if posAngle != 0 {
		p := posAngle * deg2rad
		c, s := math.Cos(p), math.Sin(p)
		east, north = r3.Add(r3.Scale(c, east), r3.Scale(-s, north)), r3.Add(r3.Scale(s, east), r3.Scale(c, north))
	}
	center := Vec(ra, dec)
	m := mat.NewDense(3, 3, []float64{
		east.X, east.Y, east.Z,
		north.X, north.Y, north.Z,
		center.X, center.Y, center.Z,
	})
	return Frame{m: m}
}

// Project returns the gnomonic coordinates (x, y) of v. ok is false for points
// on the far hemisphere, which have no projection.
func (f Frame) Project(v r3.Vec) (x, y float64, ok bool) {
	var out mat.VecDense
	out.MulVec(f.m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	z := out.AtVec(2)
	if z <= 0 {
		return 0, 0, false
	}
	return out.AtVec(0) / z, out.AtVec(1) / z, true
}

// Unproject maps gnomonic coordinates back onto the sphere.
func (f Frame) Unproject(x, y float64) r3.Vec {
	var out mat.VecDense
	out.MulVec(f.m.T(), mat.NewVecDense(3, []float64{x, y, 1}))
	return r3.Unit(r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)})
}

// Offset moves (ra, dec) by dx degrees east and dy degrees north in the
// tangent plane.
func Offset(ra, dec, dx, dy float64) (float64, float64) {
	f := NewFrame(ra, dec, 0)
	return RADec(f.Unproject(math.Tan(dx*deg2rad), math.Tan(dy*deg2rad)))
}

// galactic holds the J2000 equatorial to galactic rotation.
var galactic = mat.NewDense(3, 3, []float64{
	-0.0548755604, -0.8734370902, -0.4838350155,
	0.4941094279, -0.4448296300, 0.7469822445,
	-0.8676661490, -0.1980763734, 0.4559837762,
})

// GalacticLatitude returns the galactic latitude b in degrees of (ra, dec).
func GalacticLatitude(ra, dec float64) float64 {
	v := Vec(ra, dec)
	var out mat.VecDense
	out.MulVec(galactic, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return math.Asin(clamp(out.AtVec(2), -1, 1)) * rad2deg
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
