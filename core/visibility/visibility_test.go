package visibility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/skyplan/core/model"
)

var palomar = model.Site{Lat: 33.3563, Lon: -116.8650, Elevation: 1712}

func TestSunPosition(t *testing.T) {
	// June solstice: the sun sits near RA 6h, Dec +23.4
	ra, dec := SunPosition(time.Date(2024, 6, 20, 20, 51, 0, 0, time.UTC))
	assert.InDelta(t, 90, ra, 0.5)
	assert.InDelta(t, 23.44, dec, 0.1)
}

func TestSiderealTime(t *testing.T) {
	// GMST at J2000.0 is 280.46 deg
	j := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 2451545.0, JulianDate(j), 1e-6)
	assert.InDelta(t, 280.46061837, LocalSiderealTime(j, 0), 1e-6)
}

func TestAltitudeAtZenith(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	lst := LocalSiderealTime(at, palomar.Lon)
	assert.InDelta(t, 90, Altitude(at, palomar, lst, palomar.Lat), 1e-6)
	assert.InDelta(t, -90, Altitude(at, palomar, lst+180, -palomar.Lat), 1e-6)
}

func TestMinAltitude(t *testing.T) {
	assert.InDelta(t, 30, MinAltitude(2), 1e-9)
	assert.Equal(t, 90.0, MinAltitude(1))
}

func TestEphemerisWindowIsNightAndHigh(t *testing.T) {
	prof := model.TelescopeProfile{ID: "P48", Site: palomar, Filters: []string{"r"}, ExposureTimes: []float64{30}}
	prof.SetDefaults()
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	// Orion is high in the January night sky
	tile := model.Tile{ID: "orion", CenterRA: 83.8, CenterDec: -5.4}

	w, err := Ephemeris{Step: 10 * time.Minute}.Window(context.Background(), tile, prof, start, end)
	require.NoError(t, err)
	require.NotEmpty(t, w.Intervals)
	assert.Equal(t, "orion", w.TileID)
	assert.Equal(t, "P48", w.TelescopeID)
	minAlt := MinAltitude(prof.AirmassLimit)
	for i, iv := range w.Intervals {
		assert.False(t, iv.Start.Before(start))
		assert.False(t, iv.End.After(end))
		if i > 0 {
			assert.True(t, iv.Start.After(w.Intervals[i-1].End))
		}
		assert.LessOrEqual(t, SunAltitude(iv.Start, palomar), prof.TwilightAlt)
		assert.GreaterOrEqual(t, Altitude(iv.Start, palomar, tile.CenterRA, tile.CenterDec), minAlt)
	}
	assert.Greater(t, w.Total(), 3*time.Hour)

	// a southern polar field never rises at Palomar
	w, err = Ephemeris{}.Window(context.Background(), model.Tile{ID: "s", CenterRA: 0, CenterDec: -80}, prof, start, end)
	require.NoError(t, err)
	assert.Empty(t, w.Intervals)
}

func TestEphemerisHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := Ephemeris{}.Window(ctx, model.Tile{}, model.TelescopeProfile{}, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticClipsAndDefaults(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(s int) time.Time { return t0.Add(time.Duration(s) * time.Second) }
	o := NewStatic()
	o.Default = []model.Interval{{Start: at(0), End: at(100)}}
	o.Set("T1", "a", model.Interval{Start: at(20), End: at(30)}, model.Interval{Start: at(-10), End: at(5)})

	w, err := o.Window(context.Background(), model.Tile{ID: "a"}, model.TelescopeProfile{ID: "T1"}, at(0), at(25))
	require.NoError(t, err)
	assert.Equal(t, []model.Interval{{Start: at(0), End: at(5)}, {Start: at(20), End: at(25)}}, w.Intervals)

	w, err = o.Window(context.Background(), model.Tile{ID: "b"}, model.TelescopeProfile{ID: "T1"}, at(50), at(200))
	require.NoError(t, err)
	assert.Equal(t, []model.Interval{{Start: at(50), End: at(100)}}, w.Intervals)
}

type countingOracle struct {
	calls int
	next  Oracle
}

func (c *countingOracle) Window(ctx context.Context, tile model.Tile, prof model.TelescopeProfile, start, end time.Time) (model.VisibilityWindow, error) {
	c.calls++
	return c.next.Window(ctx, tile, prof, start, end)
}

func TestCachedComputesOnce(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st := NewStatic()
	st.Default = []model.Interval{{Start: t0, End: t0.Add(time.Hour)}}
	inner := &countingOracle{next: st}
	c := NewCached(inner, DefaultExpiration, DefaultCleanupInterval)
	prof := model.TelescopeProfile{ID: "T1"}
	for i := 0; i < 3; i++ {
		w, err := c.Window(context.Background(), model.Tile{ID: "a"}, prof, t0, t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Len(t, w.Intervals, 1)
	}
	_, err := c.Window(context.Background(), model.Tile{ID: "b"}, prof, t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, c.Len())
	c.Flush()
	assert.Equal(t, 0, c.Len())
}
