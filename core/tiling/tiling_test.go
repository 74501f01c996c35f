package tiling

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

func gridWith(t *testing.T, nside int, cells map[int]float64) *model.ProbabilityGrid {
	t.Helper()
	prob := make([]float64, 12*nside*nside)
	for id, p := range cells {
		prob[id] = p
	}
	g, err := model.NewGrid(nside, prob, nil)
	require.NoError(t, err)
	return g
}

// tb is the part of testing.TB that rapid.T also provides.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

// blob spreads probability over the cells within radius deg of (ra, dec),
// falling off with distance.
func blob(t tb, nside int, ra, dec, radius float64) *model.ProbabilityGrid {
	t.Helper()
	hp, err := sky.NewHEALPix(nside)
	if err != nil {
		t.Fatalf("healpix: %v", err)
	}
	prob := make([]float64, hp.NPix())
	var sum float64
	for i := range prob {
		cra, cdec := hp.Center(i)
		if d := sky.Separation(ra, dec, cra, cdec); d < radius {
			prob[i] = radius - d
			sum += prob[i]
		}
	}
	for i := range prob {
		prob[i] /= sum
	}
	g, err := model.NewGrid(nside, prob, nil)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

func profile(shape sky.Shape) model.TelescopeProfile {
	p := model.TelescopeProfile{ID: "T1", FOV: shape, Filters: []string{"r"}, ExposureTimes: []float64{30}}
	p.SetDefaults()
	return p
}

func union(g *model.ProbabilityGrid, tiles []model.Tile) float64 {
	seen := map[int]bool{}
	var cells []int
	for _, tl := range tiles {
		for _, c := range tl.Cells {
			if !seen[c] {
				seen[c] = true
				cells = append(cells, c)
			}
		}
	}
	return g.Mass(cells)
}

func TestGreedySingleTileCoversBothCells(t *testing.T) {
	hp, err := sky.NewHEALPix(16)
	require.NoError(t, err)
	a, b := hp.Pixel(45, 30), hp.Pixel(53, 30)
	require.NotEqual(t, a, b)
	g := gridWith(t, 16, map[int]float64{a: 0.7, b: 0.3})

	tiles, err := Generate(g, profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 15}), Greedy, Params{})
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.InDelta(t, 1.0, tiles[0].ProbabilityMass, 1e-12)
	assert.Contains(t, tiles[0].Cells, a)
	assert.Contains(t, tiles[0].Cells, b)
	assert.Equal(t, "T1", tiles[0].Telescope)
}

func TestGreedyTieBreaksByCellID(t *testing.T) {
	g := gridWith(t, 8, map[int]float64{700: 0.4, 20: 0.4})
	tiles, err := Generate(g, profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 2}), Greedy, Params{MaxTiles: 1})
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.Contains(t, tiles[0].Cells, 20)
}

func TestGreedyIDsNameTheSeed(t *testing.T) {
	g := gridWith(t, 8, map[int]float64{700: 0.4, 20: 0.4})
	shape := sky.Shape{Kind: sky.ShapeCircle, Radius: 2}
	one, err := Generate(g, profile(shape), Greedy, Params{MaxTiles: 1})
	require.NoError(t, err)
	other := profile(shape)
	other.ID = "T2"
	two, err := Generate(g, other, Greedy, Params{MaxTiles: 1})
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Len(t, two, 1)
	assert.Equal(t, "g3-20", one[0].ID)
	assert.Equal(t, one[0].ID, two[0].ID)
	assert.Equal(t, "T2", two[0].Telescope)

	skip, err := Generate(g, profile(shape), Greedy, Params{MaxTiles: 1, ExcludeTiles: []string{"g3-20"}})
	require.NoError(t, err)
	require.Len(t, skip, 1)
	assert.Equal(t, "g3-700", skip[0].ID)
}

func TestGreedyStopsAtTarget(t *testing.T) {
	g := blob(t, 16, 120, -20, 25)
	tiles, err := Generate(g, profile(sky.Shape{Kind: sky.ShapeSquare, Width: 7}), Greedy, Params{CoverageTarget: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, tiles)
	assert.GreaterOrEqual(t, union(g, tiles), 0.5)
	assert.Less(t, union(g, tiles[:len(tiles)-1]), 0.5)
}

func TestPerturbativeNeverLosesCoverage(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ra := rapid.Float64Range(0, 360).Draw(rt, "ra")
		dec := rapid.Float64Range(-60, 60).Draw(rt, "dec")
		g := blob(rt, 8, ra, dec, 30)
		prof := profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 8})
		params := Params{MaxTiles: 4}
		plain, err := Generate(g, prof, Greedy, params)
		if err != nil {
			rt.Fatalf("plain: %v", err)
		}
		params.Perturbative = true
		moved, err := Generate(g, prof, Greedy, params)
		if err != nil {
			rt.Fatalf("perturbative: %v", err)
		}
		if union(g, moved) < union(g, plain)-1e-12 {
			rt.Fatalf("coverage dropped from %v to %v", union(g, plain), union(g, moved))
		}
	})
}

func TestMinimalDropsRedundantTiles(t *testing.T) {
	g := blob(t, 16, 10, 10, 20)
	prof := profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 6})
	pts := []sky.Pointing{{ID: "a", RA: 10, Dec: 10}, {ID: "b", RA: 10, Dec: 10}, {ID: "c", RA: 18, Dec: 10}}

	all, err := Generate(g, prof, Fixed, Params{Tessellation: pts})
	require.NoError(t, err)
	require.Len(t, all, 3)

	kept, err := Generate(g, prof, Fixed, Params{Tessellation: pts, Minimal: true})
	require.NoError(t, err)
	ids := []string{}
	for _, tl := range kept {
		ids = append(ids, tl.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.InDelta(t, union(g, all), union(g, kept), 1e-12)
}

func TestMembersMatchesBruteForce(t *testing.T) {
	hp, err := sky.NewHEALPix(8)
	require.NoError(t, err)
	g := gridWith(t, 8, map[int]float64{0: 1})
	shapes := []sky.Shape{
		{Kind: sky.ShapeCircle, Radius: 9},
		{Kind: sky.ShapeRectangle, Width: 20, Height: 8, Rotation: 30},
		{Kind: sky.ShapeChips, Chips: []sky.Polygon{
			{{-10, -10}, {-1, -10}, {-1, 10}, {-10, 10}},
			{{1, -10}, {10, -10}, {10, 10}, {1, 10}},
		}},
	}
	rapid.Check(t, func(rt *rapid.T) {
		s := shapes[rapid.IntRange(0, len(shapes)-1).Draw(rt, "shape")]
		ra := rapid.Float64Range(0, 360).Draw(rt, "ra")
		dec := rapid.Float64Range(-89, 89).Draw(rt, "dec")
		fp := s.At(ra, dec)
		var want []int
		for i := 0; i < hp.NPix(); i++ {
			if fp.Contains(hp.CenterVec(i)) {
				want = append(want, i)
			}
		}
		if len(want) == 0 {
			want = []int{hp.Pixel(ra, dec)}
		}
		if diff := cmp.Diff(want, Members(g, fp)); diff != "" {
			rt.Fatalf("members mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestTileMassIsSumOfMembers(t *testing.T) {
	g := blob(t, 16, 200, 40, 30)
	prof := profile(sky.Shape{Kind: sky.ShapeSquare, Width: 6})
	for _, k := range []Kind{Fixed, Greedy, Ranked, Hierarchical} {
		tiles, err := Generate(g, prof, k, Params{})
		require.NoError(t, err, k)
		for _, tl := range tiles {
			var sum float64
			for _, c := range tl.Cells {
				sum += g.Prob(c)
			}
			assert.InDelta(t, sum, tl.ProbabilityMass, 1e-12, "%s %s", k, tl.ID)
			assert.LessOrEqual(t, tl.ProbabilityMass, g.Total()+1e-12)
		}
	}
}

func TestFixedIsDeterministic(t *testing.T) {
	g := blob(t, 16, 300, -45, 20)
	prof := profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 4})
	first, err := Generate(g, prof, Fixed, Params{})
	require.NoError(t, err)
	second, err := Generate(g, prof, Fixed, Params{})
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("fixed tiling differs between runs:\n%s", diff)
	}

	pts := sky.SpiralTessellation(prof.FOV)
	rand.New(rand.NewSource(1)).Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })
	shuffled, err := Generate(g, prof, Fixed, Params{Tessellation: pts})
	require.NoError(t, err)
	byID := func(ts []model.Tile) map[string]model.Tile {
		m := map[string]model.Tile{}
		for _, tl := range ts {
			m[tl.ID] = tl
		}
		return m
	}
	if diff := cmp.Diff(byID(first), byID(shuffled)); diff != "" {
		t.Fatalf("fixed tiling depends on pointing order:\n%s", diff)
	}
}

func TestRankedPrefix(t *testing.T) {
	g := blob(t, 16, 80, 0, 20)
	prof := profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 3})
	tiles, err := Generate(g, prof, Ranked, Params{MaxTiles: 3})
	require.NoError(t, err)
	require.Len(t, tiles, 3)
	assert.GreaterOrEqual(t, tiles[0].ProbabilityMass, tiles[1].ProbabilityMass)
	assert.GreaterOrEqual(t, tiles[1].ProbabilityMass, tiles[2].ProbabilityMass)

	picked := map[string]bool{}
	for _, tl := range tiles {
		picked[tl.ID] = true
	}
	all, err := Generate(g, prof, Fixed, Params{})
	require.NoError(t, err)
	for _, tl := range all {
		if !picked[tl.ID] && tl.ProbabilityMass > tiles[2].ProbabilityMass+1e-12 {
			t.Fatalf("tile %s outranks the prefix", tl.ID)
		}
	}
}

func TestHierarchicalMatchesFieldOfView(t *testing.T) {
	g := blob(t, 16, 150, 60, 25)
	tiles, err := Generate(g, profile(sky.Shape{Kind: sky.ShapeSquare, Width: 7.3}), Hierarchical, Params{CoverageTarget: 1})
	require.NoError(t, err)
	var sum float64
	for _, tl := range tiles {
		assert.True(t, strings.HasPrefix(tl.ID, "h3-"), tl.ID)
		assert.Len(t, tl.Cells, 4)
		sum += tl.ProbabilityMass
	}
	assert.InDelta(t, g.Total(), sum, 1e-9)
	assert.Equal(t, 3, hierarchicalOrder(4, sky.Shape{Kind: sky.ShapeSquare, Width: 7.3}))
	assert.Equal(t, 4, hierarchicalOrder(4, sky.Shape{Kind: sky.ShapeCircle, Radius: 0.5}))
}

func TestCatalogRejectsCloseSources(t *testing.T) {
	g := blob(t, 16, 10, 10, 15)
	params := Params{
		MinSeparation: 1,
		Catalog: []Source{
			{ID: "faint", RA: 10, Dec: 10, Grade: 1},
			{ID: "bright", RA: 10.5, Dec: 10, Grade: 5},
			{ID: "far", RA: 14, Dec: 10, Grade: 2},
			{ID: "dead", RA: 12, Dec: 10, Grade: 0},
		},
	}
	tiles, err := Generate(g, profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 0.5}), Catalog, params)
	require.NoError(t, err)
	ids := []string{}
	for _, tl := range tiles {
		ids = append(ids, tl.ID)
	}
	assert.Equal(t, []string{"bright", "far"}, ids)

	params.MaxTiles = 1
	tiles, err = Generate(g, profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 0.5}), Catalog, params)
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.Equal(t, "bright", tiles[0].ID)
}

func TestNoCoverage(t *testing.T) {
	empty := gridWith(t, 4, nil)
	_, err := Generate(empty, profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 5}), Greedy, Params{})
	assert.True(t, errors.Is(err, model.ErrNoCoverage), "%v", err)

	g := blob(t, 4, 0, 0, 30)
	tiles, err := Generate(g, profile(sky.Shape{Kind: sky.ShapeCircle}), Fixed, Params{})
	assert.True(t, errors.Is(err, model.ErrNoCoverage), "%v", err)
	assert.Empty(t, tiles)

	_, err = Generate(g, profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 5}), Catalog, Params{})
	assert.True(t, errors.Is(err, model.ErrNoCoverage), "%v", err)

	_, err = Generate(g, profile(sky.Shape{Kind: sky.ShapeCircle, Radius: 5}), Kind("moc"), Params{})
	assert.True(t, errors.Is(err, model.ErrInputInvalid), "%v", err)
}

func TestPointingFilters(t *testing.T) {
	p := Params{ExcludeTiles: []string{"7"}, GalacticLimit: 10, RASlice: []float64{22, 2}}
	assert.False(t, p.allowed("7", 0, -60))
	assert.True(t, p.allowed("8", 1, -60))
	assert.False(t, p.allowed("8", 90, 60))
	// galactic center
	assert.False(t, p.allowed("8", 266.4, -28.9))
	assert.True(t, Params{}.allowed("x", 266.4, -28.9))
}

func TestReadTessellation(t *testing.T) {
	in := "# id ra dec\n1 10.5 -20\n\n2 370 45.5\n"
	pts, err := ReadTessellation(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []sky.Pointing{{ID: "1", RA: 10.5, Dec: -20}, {ID: "2", RA: 10, Dec: 45.5}}, pts)

	_, err = ReadTessellation(strings.NewReader("1 10\n"))
	assert.Error(t, err)
	_, err = ReadTessellation(strings.NewReader("1 10 95\n"))
	assert.Error(t, err)
}

func TestReadCatalog(t *testing.T) {
	in := "id,ra,dec,grade,dist\nNGC1,10,20,1.5,40\nNGC2, 11, 21, 0.5, 80\n"
	src, err := ReadCatalog(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Source{{ID: "NGC1", RA: 10, Dec: 20, Grade: 1.5}, {ID: "NGC2", RA: 11, Dec: 21, Grade: 0.5}}, src)

	_, err = ReadCatalog(strings.NewReader("id,ra,dec\nx,1,2\n"))
	assert.Error(t, err)
}
