package sky

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxOrder is the deepest HEALPix order supported with int pixel indices.
const MaxOrder = 29

var (
	jrll = [12]int{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]int{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// HEALPix is a nested-scheme HEALPix pixelisation of a given order
// (nside = 2^order). Pixels at order o+1 are the four children 4p..4p+3 of
// pixel p at order o, so the cell id space doubles as a hierarchy.
type HEALPix struct {
	order int
	nside int
}

// NewHEALPix returns the pixelisation for nside, which must be a power of two.
func NewHEALPix(nside int) (HEALPix, error) {
	if nside <= 0 || nside&(nside-1) != 0 {
		return HEALPix{}, fmt.Errorf("nside %d is not a power of two", nside)
	}
	order := 0
	for 1<<order < nside {
		order++
	}
	if order > MaxOrder {
		return HEALPix{}, fmt.Errorf("nside %d exceeds order %d", nside, MaxOrder)
	}
	return HEALPix{order: order, nside: nside}, nil
}

// AtOrder returns the pixelisation of the given order.
func AtOrder(order int) HEALPix {
	return HEALPix{order: order, nside: 1 << order}
}

func (h HEALPix) Order() int { return h.order }
func (h HEALPix) Nside() int { return h.nside }

// NPix is the number of pixels covering the sphere.
func (h HEALPix) NPix() int { return 12 * h.nside * h.nside }

// PixelArea is the solid angle of one pixel in steradians.
func (h HEALPix) PixelArea() float64 { return 4 * math.Pi / float64(h.NPix()) }

// PixelSize is the square root of the pixel area, in degrees.
func (h HEALPix) PixelSize() float64 { return math.Sqrt(h.PixelArea()) * rad2deg }

// MaxPixelRadius bounds the angular distance in degrees from a pixel center
// to any point of that pixel. It is deliberately loose: it only drives
// pruning during hierarchical queries.
func (h HEALPix) MaxPixelRadius() float64 {
	return 2 * 48.19 / float64(h.nside)
}

// Center returns the equatorial coordinates of the pixel center.
func (h HEALPix) Center(pix int) (ra, dec float64) {
	z, phi := h.pix2zphi(pix)
	return NormRA(phi * rad2deg), math.Asin(clamp(z, -1, 1)) * rad2deg
}

// CenterVec returns the unit vector of the pixel center.
func (h HEALPix) CenterVec(pix int) r3.Vec {
	z, phi := h.pix2zphi(pix)
	st := math.Sqrt(math.Max(0, (1-z)*(1+z)))
	return r3.Vec{X: st * math.Cos(phi), Y: st * math.Sin(phi), Z: z}
}

// Pixel returns the index of the pixel containing (ra, dec).
func (h HEALPix) Pixel(ra, dec float64) int {
	z := math.Sin(dec * deg2rad)
	phi := NormRA(ra) * deg2rad
	return h.zphi2pix(z, phi)
}

// Children returns the four pixels one order deeper covering pix.
func (h HEALPix) Children(pix int) [4]int {
	b := pix << 2
	return [4]int{b, b + 1, b + 2, b + 3}
}

// Descendants returns the half-open range of pixel ids at a deeper order that
// subdivide pix.
func (h HEALPix) Descendants(pix, order int) (lo, hi int) {
	shift := uint(2 * (order - h.order))
	return pix << shift, (pix + 1) << shift
}

func (h HEALPix) zphi2pix(z, phi float64) int {
	nside := h.nside
	za := math.Abs(z)
	tt := math.Mod(phi*2/math.Pi, 4)
	if tt < 0 {
		tt += 4
	}
	if za <= 2.0/3.0 {
		t1 := float64(nside) * (0.5 + tt)
		t2 := float64(nside) * z * 0.75
		jp := int(t1 - t2)
		jm := int(t1 + t2)
		ifp := jp >> h.order
		ifm := jm >> h.order
		var face int
		switch {
		case ifp == ifm:
			face = ifp | 4
		case ifp < ifm:
			face = ifp
		default:
			face = ifm + 8
		}
		ix := jm & (nside - 1)
		iy := nside - (jp & (nside - 1)) - 1
		return h.xyf2nest(ix, iy, face)
	}
	ntt := min(3, int(tt))
	tp := tt - float64(ntt)
	tmp := float64(nside) * math.Sqrt(3*(1-za))
	jp := min(int(tp*tmp), nside-1)
	jm := min(int((1-tp)*tmp), nside-1)
	if z >= 0 {
		return h.xyf2nest(nside-jm-1, nside-jp-1, ntt)
	}
	return h.xyf2nest(jp, jm, ntt+8)
}

func (h HEALPix) pix2zphi(pix int) (z, phi float64) {
	nside := h.nside
	npix := float64(h.NPix())
	fact2 := 4 / npix
	fact1 := float64(2*nside) * fact2
	ix, iy, face := h.nest2xyf(pix)
	jr := (jrll[face] << h.order) - ix - iy - 1

	var nr, kshift int
	switch {
	case jr < nside:
		nr = jr
		z = 1 - float64(nr*nr)*fact2
	case jr > 3*nside:
		nr = 4*nside - jr
		z = float64(nr*nr)*fact2 - 1
	default:
		nr = nside
		z = float64(2*nside-jr) * fact1
		kshift = (jr - nside) & 1
	}
	jp := (jpll[face]*nr + ix - iy + 1 + kshift) / 2
	if jp > 4*nside {
		jp -= 4 * nside
	}
	if jp < 1 {
		jp += 4 * nside
	}
	phi = (float64(jp) - float64(kshift+1)*0.5) * (math.Pi / 2 / float64(nr))
	return z, phi
}

func (h HEALPix) xyf2nest(ix, iy, face int) int {
	return face<<(2*h.order) + spread(ix) + spread(iy)<<1
}

func (h HEALPix) nest2xyf(pix int) (ix, iy, face int) {
	npface := h.nside * h.nside
	face = pix / npface
	ipf := pix & (npface - 1)
	return compress(ipf), compress(ipf >> 1), face
}

// spread interleaves zeros between the bits of v.
func spread(v int) int {
	r := 0
	for i := 0; v>>i != 0; i++ {
		r |= ((v >> i) & 1) << (2 * i)
	}
	return r
}

// compress keeps the even bits of v.
func compress(v int) int {
	r := 0
	for i := 0; v>>(2*i) != 0; i++ {
		r |= ((v >> (2 * i)) & 1) << i
	}
	return r
}
