package footprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// atlanta is the reference airport point used across the package tests.
var atlanta = geom.Coord{-84.4277, 33.6407}

// rect returns a closed rectangle footprint with southwest corner at
// (lon, lat) and the given extents in degrees.
func rect(lon, lat, dLon, dLat float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{lon, lat},
		{lon + dLon, lat},
		{lon + dLon, lat + dLat},
		{lon, lat + dLat},
		{lon, lat},
	}})
}

// nearAirport returns a building-sized rectangle offset from the airport
// by the given degrees.
func nearAirport(dLon, dLat float64) *geom.Polygon {
	return rect(atlanta[0]+dLon, atlanta[1]+dLat, 0.0005, 0.0005)
}

func TestMergeIdenticalPolygonsKeepsPrimary(t *testing.T) {
	t.Parallel()

	shared := nearAirport(0.01, 0.01)

	merged := Merge(
		[]*geom.Polygon{shared},
		[]*geom.Polygon{nearAirport(0.01, 0.01)},
		atlanta, 5,
	)

	require.Len(t, merged, 1)
	assert.Equal(t, SourcePrimary, merged[0].Source)
}

func TestMergePartialOverlapKeepsBoth(t *testing.T) {
	t.Parallel()

	// Offset by half a building width: ~50% overlap, under threshold.
	primary := nearAirport(0.01, 0.01)
	secondary := rect(atlanta[0]+0.01+0.00025, atlanta[1]+0.01, 0.0005, 0.0005)

	merged := Merge([]*geom.Polygon{primary}, []*geom.Polygon{secondary}, atlanta, 5)

	require.Len(t, merged, 2)
	assert.Equal(t, SourcePrimary, merged[0].Source)
	assert.Equal(t, SourceSecondary, merged[1].Source)
}

func TestMergeOrderIndependentDedup(t *testing.T) {
	t.Parallel()

	// Three primaries, one secondary duplicating the middle primary.
	primaries := []*geom.Polygon{
		nearAirport(0.005, 0.005),
		nearAirport(0.010, 0.010),
		nearAirport(0.015, 0.015),
	}
	dup := nearAirport(0.010, 0.010)
	extra := nearAirport(-0.012, 0.004)

	merged := Merge(primaries, []*geom.Polygon{dup, extra}, atlanta, 5)

	require.Len(t, merged, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, SourcePrimary, merged[i].Source)
	}
	assert.Equal(t, SourceSecondary, merged[3].Source)
}

func TestMergeRadiusFilter(t *testing.T) {
	t.Parallel()

	inside := nearAirport(0.01, 0.01)     // ~1.5 km out
	outside := nearAirport(0.20, 0.20)    // ~28 km out
	secondaryFar := nearAirport(0.3, 0.3) // well outside

	merged := Merge(
		[]*geom.Polygon{inside, outside},
		[]*geom.Polygon{secondaryFar},
		atlanta, 5,
	)

	require.Len(t, merged, 1)
	assert.InDelta(t, 1.6, merged[0].DistanceKM, 0.5)
}

// concaveHangar returns a closed L-shaped footprint, the shape class the
// secondary source exists to supplement.
func concaveHangar(dLon, dLat float64) *geom.Polygon {
	lon, lat := atlanta[0]+dLon, atlanta[1]+dLat
	const u = 0.0003
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{lon, lat},
		{lon + 3*u, lat},
		{lon + 3*u, lat + u},
		{lon + u, lat + u},
		{lon + u, lat + 3*u},
		{lon, lat + 3*u},
		{lon, lat},
	}})
}

func TestMergeIdenticalConcavePolygonsKeepsPrimary(t *testing.T) {
	t.Parallel()

	merged := Merge(
		[]*geom.Polygon{concaveHangar(0.01, 0.01)},
		[]*geom.Polygon{concaveHangar(0.01, 0.01)},
		atlanta, 5,
	)

	require.Len(t, merged, 1)
	assert.Equal(t, SourcePrimary, merged[0].Source)
}

func TestMergeDropsSelfIntersectingGeometry(t *testing.T) {
	t.Parallel()

	// Asymmetric bowtie: nonzero shoelace area, so only the ring
	// crossing check can keep it out of the index.
	lon, lat := atlanta[0]+0.01, atlanta[1]+0.01
	bowtie := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{lon, lat},
		{lon + 0.0004, lat + 0.0004},
		{lon + 0.0004, lat},
		{lon, lat + 0.0003},
		{lon, lat},
	}})

	merged := Merge(
		[]*geom.Polygon{bowtie, nearAirport(0.012, 0)},
		[]*geom.Polygon{bowtie},
		atlanta, 5,
	)

	require.Len(t, merged, 1)
	assert.Equal(t, SourcePrimary, merged[0].Source)
}

func TestMergeDropsInvalidGeometry(t *testing.T) {
	t.Parallel()

	degenerate := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{atlanta[0], atlanta[1]},
		{atlanta[0] + 0.001, atlanta[1]},
		{atlanta[0], atlanta[1]},
	}})

	merged := Merge(
		[]*geom.Polygon{degenerate, nil, nearAirport(0.01, 0)},
		[]*geom.Polygon{degenerate},
		atlanta, 5,
	)

	require.Len(t, merged, 1)
	assert.Equal(t, SourcePrimary, merged[0].Source)
}

func TestMergeEmptySources(t *testing.T) {
	t.Parallel()

	t.Run("empty secondary", func(t *testing.T) {
		t.Parallel()
		merged := Merge([]*geom.Polygon{nearAirport(0.01, 0)}, nil, atlanta, 5)
		assert.Len(t, merged, 1)
	})

	t.Run("empty primary keeps all secondary", func(t *testing.T) {
		t.Parallel()
		merged := Merge(nil, []*geom.Polygon{nearAirport(0.01, 0), nearAirport(0.02, 0)}, atlanta, 5)
		require.Len(t, merged, 2)
		assert.Equal(t, SourceSecondary, merged[0].Source)
	})

	t.Run("both empty", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Merge(nil, nil, atlanta, 5))
	})
}

func TestMergeDeterministicOrder(t *testing.T) {
	t.Parallel()

	primaries := []*geom.Polygon{
		nearAirport(0.004, 0.004),
		nearAirport(0.008, 0.008),
	}
	secondaries := []*geom.Polygon{
		nearAirport(-0.006, 0.002),
		nearAirport(-0.010, 0.006),
	}

	first := Merge(primaries, secondaries, atlanta, 5)
	second := Merge(primaries, secondaries, atlanta, 5)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Source, second[i].Source)
		assert.Equal(t, first[i].AreaM2, second[i].AreaM2)
		assert.Equal(t, first[i].DistanceKM, second[i].DistanceKM)
	}
}

func TestGridIndexCandidates(t *testing.T) {
	t.Parallel()

	buildings := make([]Building, 0, 3)
	for _, p := range []*geom.Polygon{
		nearAirport(0.005, 0.005),
		nearAirport(0.010, 0.010),
		nearAirport(0.050, 0.050),
	} {
		b, ok := New(p, SourcePrimary, atlanta)
		require.True(t, ok)
		buildings = append(buildings, b)
	}

	idx := newGridIndex(buildings)

	// Query over the first building's own footprint.
	got := idx.candidates(buildings[0].Geometry.Bounds())
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0])

	// Query far from everything.
	far, ok := New(nearAirport(1, 1), SourcePrimary, atlanta)
	require.True(t, ok)
	assert.Empty(t, idx.candidates(far.Geometry.Bounds()))
}
