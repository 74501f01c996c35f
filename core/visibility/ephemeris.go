package visibility

import (
	"context"
	"math"
	"time"

	"github.com/kilianp07/skyplan/core/model"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
	// j2000 is the Julian date of 2000-01-01 12:00 TT.
	j2000 = 2451545.0
)

// DefaultStep is the sampling step of the Ephemeris oracle.
const DefaultStep = 5 * time.Minute

// Ephemeris samples the tile's altitude and the sun's altitude at a fixed
// step. A sample is visible when the airmass is within the profile's limit
// and the sun is below its twilight altitude; each visible sample opens an
// interval of one step. Positions use low precision formulae good to a small
// fraction of a degree.
type Ephemeris struct {
	Step time.Duration
}

func (e Ephemeris) Window(ctx context.Context, tile model.Tile, prof model.TelescopeProfile, start, end time.Time) (model.VisibilityWindow, error) {
	w := model.VisibilityWindow{TileID: tile.ID, TelescopeID: prof.ID}
	step := e.Step
	if step <= 0 {
		step = DefaultStep
	}
	minAlt := MinAltitude(prof.AirmassLimit)
	var ivs []model.Interval
	for t := start; t.Before(end); t = t.Add(step) {
		if err := ctx.Err(); err != nil {
			return w, err
		}
		if SunAltitude(t, prof.Site) > prof.TwilightAlt {
			continue
		}
		if Altitude(t, prof.Site, tile.CenterRA, tile.CenterDec) < minAlt {
			continue
		}
		ivs = append(ivs, model.Interval{Start: t, End: t.Add(step)})
	}
	w.Intervals = clip(ivs, start, end)
	return w, nil
}

// MinAltitude converts an airmass limit into the lowest usable altitude in
// degrees using the plane-parallel approximation X = 1/sin(alt).
func MinAltitude(airmass float64) float64 {
	if airmass <= 1 {
		return 90
	}
	return math.Asin(1/airmass) * rad2deg
}

// JulianDate returns the Julian date of t.
func JulianDate(t time.Time) float64 {
	return float64(t.UnixNano())/float64(24*time.Hour) + 2440587.5
}

// LocalSiderealTime returns the local mean sidereal time in degrees.
func LocalSiderealTime(t time.Time, lon float64) float64 {
	d := JulianDate(t) - j2000
	return norm360(280.46061837 + 360.98564736629*d + lon)
}

// Altitude returns the altitude in degrees of (ra, dec) seen from site.
func Altitude(t time.Time, site model.Site, ra, dec float64) float64 {
	ha := (LocalSiderealTime(t, site.Lon) - ra) * deg2rad
	lat, d := site.Lat*deg2rad, dec*deg2rad
	s := math.Sin(lat)*math.Sin(d) + math.Cos(lat)*math.Cos(d)*math.Cos(ha)
	return math.Asin(math.Max(-1, math.Min(1, s))) * rad2deg
}

// SunPosition returns the apparent equatorial position of the sun in degrees.
func SunPosition(t time.Time) (ra, dec float64) {
	n := JulianDate(t) - j2000
	l := norm360(280.460 + 0.9856474*n)
	g := norm360(357.528+0.9856003*n) * deg2rad
	lambda := (l + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * deg2rad
	eps := (23.439 - 0.0000004*n) * deg2rad
	ra = norm360(math.Atan2(math.Cos(eps)*math.Sin(lambda), math.Cos(lambda)) * rad2deg)
	dec = math.Asin(math.Sin(eps)*math.Sin(lambda)) * rad2deg
	return ra, dec
}

// SunAltitude returns the sun's altitude in degrees at site.
func SunAltitude(t time.Time, site model.Site) float64 {
	ra, dec := SunPosition(t)
	return Altitude(t, site, ra, dec)
}

func norm360(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}
