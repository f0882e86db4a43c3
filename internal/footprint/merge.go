package footprint

import (
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/aerosolar/solar-cli/internal/geometry"
)

// DedupOverlapThreshold is the overlap ratio at or above which a
// secondary footprint is considered a duplicate of a primary one.
// Fixed design constant, not user-tunable.
const DedupOverlapThreshold = 0.90

// Merge combines two footprint sources into one deduplicated building
// list for an airport query.
//
// Both sources are filtered to the radius (centroid distance to the
// airport) with invalid polygons dropped up front. Every secondary
// polygon whose overlap ratio with a bbox-intersecting primary polygon
// reaches DedupOverlapThreshold is discarded; the rest are kept as
// supplements for structures the primary source misses. Output order is
// primary insertion order followed by retained secondary order, which is
// the deterministic order the resolver guarantees.
//
// An entirely empty source is not an error here: the merge proceeds with
// whatever remains, and the resolver decides whether no data at all is a
// failure.
func Merge(primary, secondary []*geom.Polygon, airport geom.Coord, radiusKM float64) []Building {
	kept := filterToRadius(primary, SourcePrimary, airport, radiusKM)
	candidates := filterToRadius(secondary, SourceSecondary, airport, radiusKM)

	idx := newGridIndex(kept)
	primaryCount := len(kept)

	dropped := 0
	for _, sec := range candidates {
		if isDuplicate(sec, kept[:primaryCount], idx) {
			dropped++
			continue
		}
		kept = append(kept, sec)
	}

	zap.L().Debug("footprint: merged sources",
		zap.Int("primary", primaryCount),
		zap.Int("secondary_kept", len(candidates)-dropped),
		zap.Int("secondary_duplicates", dropped),
	)
	return kept
}

// filterToRadius derives buildings from raw polygons, dropping malformed
// geometry and anything whose centroid falls outside the radius.
func filterToRadius(polys []*geom.Polygon, src Source, airport geom.Coord, radiusKM float64) []Building {
	var out []Building
	for _, p := range polys {
		b, ok := New(p, src, airport)
		if !ok {
			continue
		}
		if b.DistanceKM > radiusKM {
			continue
		}
		out = append(out, b)
	}
	return out
}

func isDuplicate(sec Building, primaries []Building, idx *gridIndex) bool {
	for _, i := range idx.candidates(sec.Geometry.Bounds()) {
		if geometry.OverlapRatio(primaries[i].Geometry, sec.Geometry) >= DedupOverlapThreshold {
			return true
		}
	}
	return false
}
