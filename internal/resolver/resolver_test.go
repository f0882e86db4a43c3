package resolver

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/aerosolar/solar-cli/internal/airport"
	"github.com/aerosolar/solar-cli/internal/footprint"
	"github.com/aerosolar/solar-cli/internal/solar"
)

var atl = airport.Airport{Code: "ATL", Name: "Hartsfield-Jackson Atlanta International", State: "Georgia", Lat: 33.6407, Lon: -84.4277}

// square returns a closed square polygon with side sideDeg whose
// south-west corner sits at (lon, lat).
func square(lon, lat, sideDeg float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{lon, lat},
		{lon + sideDeg, lat},
		{lon + sideDeg, lat + sideDeg},
		{lon, lat + sideDeg},
		{lon, lat},
	}})
}

func testResolver(t *testing.T, primary, secondary []*geom.Polygon) *Resolver {
	t.Helper()
	reg := airport.NewRegistry([]airport.Airport{atl})
	src := footprint.StaticSource{
		Primary:   map[string][]*geom.Polygon{"Georgia": primary},
		Secondary: map[string][]*geom.Polygon{"Georgia": secondary},
	}
	return New(reg, src, nil, solar.DefaultRegions())
}

func TestResolveHappyPath(t *testing.T) {
	t.Parallel()

	// Two distinct rooftops ~0.001 deg on a side, roughly 10,000 m2 each.
	r := testResolver(t,
		[]*geom.Polygon{square(atl.Lon+0.01, atl.Lat, 0.001)},
		[]*geom.Polygon{square(atl.Lon-0.01, atl.Lat, 0.001)},
	)

	res, err := r.Resolve(context.Background(), DefaultQuery("ATL"))
	require.NoError(t, err)

	assert.Equal(t, "ATL", res.Airport.Code)
	require.Len(t, res.Buildings, 2)
	assert.Equal(t, 2, res.Totals.BuildingCount)

	regions := solar.DefaultRegions()
	cf := regions.CapacityFactor("Georgia")
	co2 := regions.CO2Rate("Georgia")

	totalArea := 0.0
	for _, b := range res.Buildings {
		assert.Greater(t, b.AreaM2, 100.0)
		assert.LessOrEqual(t, b.DistanceKM, DefaultRadiusKM)
		want := solar.Compute(b.AreaM2, cf, co2, res.Query.Params)
		assert.InDelta(t, want.CapacityKW, b.Solar.CapacityKW, 1e-9)
		assert.InDelta(t, want.NPV25Yr, b.Solar.NPV25Yr, 1e-6)
		totalArea += b.AreaM2
	}

	// Totals are the estimate of the summed area.
	wantTotals := solar.Compute(totalArea, cf, co2, res.Query.Params)
	assert.InDelta(t, wantTotals.AnnualKWh, res.Totals.AnnualKWh, 1e-6)
	assert.InDelta(t, wantTotals.NPV25Yr, res.Totals.NPV25Yr, 1e-6)
	assert.InDelta(t, totalArea, res.Totals.TotalRoofAreaM2, 1e-9)
}

func TestResolveDeterministic(t *testing.T) {
	t.Parallel()

	r := testResolver(t,
		[]*geom.Polygon{
			square(atl.Lon+0.01, atl.Lat, 0.001),
			square(atl.Lon+0.02, atl.Lat, 0.001),
		},
		[]*geom.Polygon{square(atl.Lon-0.01, atl.Lat, 0.001)},
	)

	first, err := r.Resolve(context.Background(), DefaultQuery("ATL"))
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), DefaultQuery("ATL"))
	require.NoError(t, err)

	require.Len(t, second.Buildings, len(first.Buildings))
	for i := range first.Buildings {
		assert.Equal(t, first.Buildings[i].Source, second.Buildings[i].Source)
		assert.InDelta(t, first.Buildings[i].AreaM2, second.Buildings[i].AreaM2, 1e-12)
	}
	assert.InDelta(t, first.Totals.NPV25Yr, second.Totals.NPV25Yr, 1e-12)
}

func TestResolveUnknownAirport(t *testing.T) {
	t.Parallel()

	r := testResolver(t, nil, nil)
	_, err := r.Resolve(context.Background(), DefaultQuery("XYZ"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownAirport))
}

func TestResolveNoData(t *testing.T) {
	t.Parallel()

	r := testResolver(t, nil, nil)
	_, err := r.Resolve(context.Background(), DefaultQuery("ATL"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoData))
}

func TestResolveSingleSourceSuffices(t *testing.T) {
	t.Parallel()

	r := testResolver(t, nil, []*geom.Polygon{square(atl.Lon+0.01, atl.Lat, 0.001)})
	res, err := r.Resolve(context.Background(), DefaultQuery("ATL"))
	require.NoError(t, err)
	require.Len(t, res.Buildings, 1)
	assert.Equal(t, footprint.SourceSecondary, res.Buildings[0].Source)
}

func TestResolveMinSizeFilter(t *testing.T) {
	t.Parallel()

	r := testResolver(t,
		[]*geom.Polygon{
			square(atl.Lon+0.01, atl.Lat, 0.001),   // ~10,000 m2
			square(atl.Lon+0.02, atl.Lat, 0.00005), // ~25 m2, below floor
		},
		nil,
	)

	res, err := r.Resolve(context.Background(), DefaultQuery("ATL"))
	require.NoError(t, err)
	assert.Len(t, res.Buildings, 1)
}

func TestResolveRadiusFilter(t *testing.T) {
	t.Parallel()

	r := testResolver(t,
		[]*geom.Polygon{
			square(atl.Lon+0.01, atl.Lat, 0.001), // ~1 km out
			square(atl.Lon+0.2, atl.Lat, 0.001),  // ~18 km out
		},
		nil,
	)

	q := DefaultQuery("ATL")
	q.RadiusKM = 5
	res, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, res.Buildings, 1)

	q.RadiusKM = MaxRadiusKM
	res, err = r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, res.Buildings, 2)
}

func TestResolveMergesAtWidestRadius(t *testing.T) {
	t.Parallel()

	// A primary rooftop sits a few metres farther out than a
	// near-duplicate secondary copy. Pick a query radius between the
	// two centroids: dedup at the widest radius keeps the primary,
	// and the radius filter then drops it. Merging at the query
	// radius instead would miss the primary and report the duplicate.
	primaryPoly := square(atl.Lon+0.01+0.00003, atl.Lat, 0.001)
	secondaryPoly := square(atl.Lon+0.01, atl.Lat, 0.001)

	bp, ok := footprint.New(primaryPoly, footprint.SourcePrimary, atl.Coord())
	require.True(t, ok)
	bs, ok := footprint.New(secondaryPoly, footprint.SourceSecondary, atl.Coord())
	require.True(t, ok)
	require.Greater(t, bp.DistanceKM, bs.DistanceKM)

	r := testResolver(t, []*geom.Polygon{primaryPoly}, []*geom.Polygon{secondaryPoly})

	q := DefaultQuery("ATL")
	q.RadiusKM = (bp.DistanceKM + bs.DistanceKM) / 2
	res, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, res.Buildings)
}

func TestResolveQueryClamping(t *testing.T) {
	t.Parallel()

	r := testResolver(t, []*geom.Polygon{square(atl.Lon+0.01, atl.Lat, 0.001)}, nil)

	q := DefaultQuery("ATL")
	q.RadiusKM = 500 // clamped to MaxRadiusKM
	q.Params.UsableFraction = 2.0
	res, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.InDelta(t, MaxRadiusKM, res.Query.RadiusKM, 1e-9)
	assert.InDelta(t, solar.MaxUsableFraction, res.Query.Params.UsableFraction, 1e-9)
}

func TestResolveUsesDiskCache(t *testing.T) {
	t.Parallel()

	// Seed the disk tier, then hand the resolver a source with no
	// coverage. A successful resolve proves the cache tier was used.
	poly := square(atl.Lon+0.01, atl.Lat, 0.001)
	b, ok := footprint.New(poly, footprint.SourcePrimary, atl.Coord())
	require.True(t, ok)

	disk := footprint.NewDiskCache(t.TempDir())
	require.NoError(t, disk.Write("ATL", []footprint.Building{b}))

	reg := airport.NewRegistry([]airport.Airport{atl})
	r := New(reg, footprint.StaticSource{}, disk, solar.DefaultRegions())

	res, err := r.Resolve(context.Background(), DefaultQuery("ATL"))
	require.NoError(t, err)
	require.Len(t, res.Buildings, 1)
	assert.InDelta(t, b.AreaM2, res.Buildings[0].AreaM2, 1e-9)
}

func TestTotalsOfMatchesPerBuildingSum(t *testing.T) {
	t.Parallel()

	// Generation and first-year cash flows are linear in area, so the
	// fold over the summed area must equal the sum of per-building
	// figures.
	areas := []float64{1200, 3400, 560, 78000}
	p := solar.DefaultParams()
	cf := 0.158
	co2 := 0.386

	var sumKWh, sumRevenue, sumCost, totalArea float64
	for _, a := range areas {
		e := solar.Compute(a, cf, co2, p)
		sumKWh += e.AnnualKWh
		sumRevenue += e.AnnualRevenue
		sumCost += e.InstallCost
		totalArea += a
	}

	totals := TotalsOf(len(areas), totalArea, cf, co2, p)
	assert.Equal(t, len(areas), totals.BuildingCount)
	assert.InDelta(t, sumKWh, totals.AnnualKWh, 1e-6)
	assert.InDelta(t, sumRevenue, totals.AnnualRevenue, 1e-6)
	assert.InDelta(t, sumCost, totals.InstallCost, 1e-6)
}

func TestQueryKeyCoversParams(t *testing.T) {
	t.Parallel()

	base := DefaultQuery("ATL")
	keys := map[string]bool{base.Key(): true}

	variants := []func(*Query){
		func(q *Query) { q.RadiusKM = 10 },
		func(q *Query) { q.MinBuildingAreaM2 = 500 },
		func(q *Query) { q.Params.UsableFraction = 0.5 },
		func(q *Query) { q.Params.PanelEfficiencyWM2 = 180 },
		func(q *Query) { q.Params.ElectricityPriceUSDKWh = 0.20 },
		func(q *Query) { q.Params.IncludeITC = false },
	}
	for _, mutate := range variants {
		q := base
		mutate(&q)
		key := q.Key()
		assert.False(t, keys[key], "key collision: %s", key)
		keys[key] = true
	}
}
