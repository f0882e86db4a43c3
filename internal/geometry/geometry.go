// Package geometry provides projection-aware area, distance, and overlap
// calculations for building footprints in WGS84 coordinates.
//
// Coordinates follow the go-geom convention used throughout the repo:
// X is longitude, Y is latitude, both in degrees.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusKM is the mean Earth radius per WGS-84.
const EarthRadiusKM = 6371.0

const earthRadiusM = EarthRadiusKM * 1000

// AreaM2 returns the area of a polygon in square meters. The ring is
// projected into a local equirectangular plane at its mean latitude before
// the shoelace formula is applied, so the result is invariant under
// translation of the ring. Interior rings, if any, are subtracted.
// Degenerate polygons (fewer than 3 distinct vertices) return 0.
func AreaM2(p *geom.Polygon) float64 {
	if p == nil || p.NumLinearRings() == 0 {
		return 0
	}
	area := ringAreaM2(p.LinearRing(0).Coords())
	for i := 1; i < p.NumLinearRings(); i++ {
		area -= ringAreaM2(p.LinearRing(i).Coords())
	}
	if area < 0 {
		return 0
	}
	return area
}

// Centroid returns the arithmetic mean of the exterior ring vertices,
// excluding the closing point. This approximates the true area centroid
// well at building scale. Degenerate polygons return a zero coordinate.
func Centroid(p *geom.Polygon) geom.Coord {
	if p == nil || p.NumLinearRings() == 0 {
		return geom.Coord{0, 0}
	}
	coords := openRing(p.LinearRing(0).Coords())
	if len(coords) == 0 {
		return geom.Coord{0, 0}
	}
	var sx, sy float64
	for _, c := range coords {
		sx += c[0]
		sy += c[1]
	}
	n := float64(len(coords))
	return geom.Coord{sx / n, sy / n}
}

// HaversineKM returns the great-circle distance between two coordinates
// in kilometers.
func HaversineKM(a, b geom.Coord) float64 {
	lat1 := a[1] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b[0] - a[0]) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKM * 2 * math.Asin(math.Sqrt(h))
}

// OverlapRatio returns the intersection area of two polygons divided by
// the area of the smaller polygon, in [0, 1]. It is the duplicate test
// used by the footprint merger. Degenerate inputs return 0.
//
// Both exterior rings are triangulated and the intersection area is the
// sum over all triangle pairs, each clipped with Sutherland-Hodgman.
// Triangles are convex, so every pairwise clip is exact, and the sum is
// exact for simple polygons of any shape, concave hangar footprints
// included.
func OverlapRatio(a, b *geom.Polygon) float64 {
	areaA := AreaM2(a)
	areaB := AreaM2(b)
	if areaA <= 0 || areaB <= 0 {
		return 0
	}

	ringA := openRing(a.LinearRing(0).Coords())
	ringB := openRing(b.LinearRing(0).Coords())

	// Shared projection origin so both rings land in the same plane.
	meanLat := (meanY(ringA) + meanY(ringB)) / 2
	projA := projectRing(ringA, meanLat)
	projB := projectRing(ringB, meanLat)

	inter := intersectionArea(projA, projB)
	smaller := math.Min(areaA, areaB)
	ratio := inter / smaller
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// intersectionArea returns the overlap area of two simple planar rings
// by summing the clipped area of every triangle pair from the two
// triangulations. Triangles within one triangulation have disjoint
// interiors, so the pairwise sum equals the full intersection area.
func intersectionArea(a, b planar) float64 {
	trisB := triangulate(b)
	var sum float64
	for _, ta := range triangulate(a) {
		for _, tb := range trisB {
			sum += math.Abs(shoelace(clipRing(ta, tb)))
		}
	}
	return sum
}

// Valid reports whether a polygon is usable as a building footprint:
// a non-nil exterior ring with at least 3 distinct vertices, no
// self-intersection, and positive area. Bowtie rings have nonzero
// shoelace area but nonsensical overlap ratios, so they are rejected
// here, before any polygon enters the merger's index.
func Valid(p *geom.Polygon) bool {
	if p == nil || p.NumLinearRings() == 0 {
		return false
	}
	open := openRing(p.LinearRing(0).Coords())
	if distinctCount(open) < 3 {
		return false
	}
	if ringSelfIntersects(open) {
		return false
	}
	return AreaM2(p) > 0
}

// planar is a ring projected into a local meter-based plane.
type planar [][2]float64

func ringAreaM2(ring []geom.Coord) float64 {
	open := openRing(ring)
	if distinctCount(open) < 3 {
		return 0
	}
	return math.Abs(shoelace(projectRing(open, meanY(open))))
}

// projectRing maps degrees to meters with an equirectangular projection
// at the given reference latitude.
func projectRing(ring []geom.Coord, refLat float64) planar {
	cosLat := math.Cos(refLat * math.Pi / 180)
	out := make(planar, len(ring))
	for i, c := range ring {
		out[i] = [2]float64{
			earthRadiusM * c[0] * math.Pi / 180 * cosLat,
			earthRadiusM * c[1] * math.Pi / 180,
		}
	}
	return out
}

// shoelace returns the signed area of a planar ring.
func shoelace(ring planar) float64 {
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return sum / 2
}

// triangulate splits a simple planar ring into triangles by ear
// clipping. The ring is normalized to counter-clockwise first. A ring
// the clipper cannot finish (repeated or collinear vertices) yields the
// triangles found so far, never an infinite loop.
func triangulate(ring planar) []planar {
	if len(ring) < 3 {
		return nil
	}
	if shoelace(ring) < 0 {
		ring = reverseRing(ring)
	}

	idx := make([]int, len(ring))
	for i := range idx {
		idx[i] = i
	}

	var tris []planar
	for len(idx) > 3 {
		clipped := false
		for k := range idx {
			i0 := idx[(k+len(idx)-1)%len(idx)]
			i1 := idx[k]
			i2 := idx[(k+1)%len(idx)]
			a, b, c := ring[i0], ring[i1], ring[i2]
			if cross(a, b, c) <= 0 {
				// Reflex or collinear vertex, not an ear.
				continue
			}
			if anyVertexInTriangle(ring, idx, i0, i1, i2) {
				continue
			}
			tris = append(tris, planar{a, b, c})
			idx = append(idx[:k], idx[k+1:]...)
			clipped = true
			break
		}
		if !clipped {
			return tris
		}
	}
	return append(tris, planar{ring[idx[0]], ring[idx[1]], ring[idx[2]]})
}

// anyVertexInTriangle reports whether a remaining ring vertex lies
// strictly inside the candidate ear.
func anyVertexInTriangle(ring planar, idx []int, i0, i1, i2 int) bool {
	a, b, c := ring[i0], ring[i1], ring[i2]
	for _, j := range idx {
		if j == i0 || j == i1 || j == i2 {
			continue
		}
		p := ring[j]
		if cross(a, b, p) > 0 && cross(b, c, p) > 0 && cross(c, a, p) > 0 {
			return true
		}
	}
	return false
}

// clipRing clips subject against each edge of clip (Sutherland-Hodgman).
// The clip ring must be convex; callers pass triangles. Its winding is
// normalized to counter-clockwise first.
func clipRing(subject, clip planar) planar {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}
	if shoelace(clip) < 0 {
		clip = reverseRing(clip)
	}

	out := subject
	for i := range clip {
		if len(out) == 0 {
			return nil
		}
		a := clip[i]
		b := clip[(i+1)%len(clip)]
		out = clipAgainstEdge(out, a, b)
	}
	return out
}

// clipAgainstEdge keeps the part of ring on the left of edge a->b.
func clipAgainstEdge(ring planar, a, b [2]float64) planar {
	var out planar
	for i := range ring {
		cur := ring[i]
		prev := ring[(i+len(ring)-1)%len(ring)]

		curIn := cross(a, b, cur) >= 0
		prevIn := cross(a, b, prev) >= 0

		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			out = append(out, intersect(prev, cur, a, b), cur)
		case !curIn && prevIn:
			out = append(out, intersect(prev, cur, a, b))
		}
	}
	return out
}

func cross(a, b, p [2]float64) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

// intersect returns the intersection of segment p1->p2 with the infinite
// line through a->b. Callers only invoke it when the segment crosses.
func intersect(p1, p2, a, b [2]float64) [2]float64 {
	dx, dy := p2[0]-p1[0], p2[1]-p1[1]
	ex, ey := b[0]-a[0], b[1]-a[1]
	denom := dx*ey - dy*ex
	if denom == 0 {
		return p2
	}
	t := ((a[0]-p1[0])*ey - (a[1]-p1[1])*ex) / denom
	return [2]float64{p1[0] + t*dx, p1[1] + t*dy}
}

func reverseRing(ring planar) planar {
	out := make(planar, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// openRing drops the closing point when the ring is explicitly closed.
func openRing(ring []geom.Coord) []geom.Coord {
	if len(ring) > 1 && ring[0][0] == ring[len(ring)-1][0] && ring[0][1] == ring[len(ring)-1][1] {
		return ring[:len(ring)-1]
	}
	return ring
}

func meanY(ring []geom.Coord) float64 {
	if len(ring) == 0 {
		return 0
	}
	var sum float64
	for _, c := range ring {
		sum += c[1]
	}
	return sum / float64(len(ring))
}

// ringSelfIntersects reports whether any two non-adjacent edges of the
// open ring properly cross. O(n^2) over the edges, which is nothing at
// building-footprint vertex counts.
func ringSelfIntersects(ring []geom.Coord) bool {
	n := len(ring)
	if n < 4 {
		return false
	}
	at := func(i int) [2]float64 {
		c := ring[i%n]
		return [2]float64{c[0], c[1]}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Adjacent edges share a vertex; skip them.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(at(i), at(i+1), at(j), at(j+1)) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper crossing: each segment's endpoints lie
// strictly on opposite sides of the other's line.
func segmentsCross(p1, p2, q1, q2 [2]float64) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func distinctCount(ring []geom.Coord) int {
	seen := make(map[[2]float64]struct{}, len(ring))
	for _, c := range ring {
		seen[[2]float64{c[0], c[1]}] = struct{}{}
	}
	return len(seen)
}
