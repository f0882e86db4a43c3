package footprint

import (
	"math"

	"github.com/twpayne/go-geom"
)

// gridCellDeg is the spatial index cell size in degrees, roughly 110 m of
// latitude. Building footprints rarely exceed one cell, so candidate
// lookups touch a handful of cells.
const gridCellDeg = 0.001

// gridIndex buckets polygon bounding boxes into fixed-size lat/lon cells
// for duplicate-candidate lookup. It replaces a full R-tree: the merger
// only ever queries bbox intersection within a small radius.
type gridIndex struct {
	cells  map[[2]int][]int
	bounds []*geom.Bounds
}

func newGridIndex(buildings []Building) *gridIndex {
	idx := &gridIndex{
		cells:  make(map[[2]int][]int),
		bounds: make([]*geom.Bounds, len(buildings)),
	}
	for i, b := range buildings {
		bb := b.Geometry.Bounds()
		idx.bounds[i] = bb
		for _, cell := range cellsForBounds(bb) {
			idx.cells[cell] = append(idx.cells[cell], i)
		}
	}
	return idx
}

// candidates returns indices of buildings whose bounding boxes intersect
// the query bounds, in insertion order without duplicates.
func (idx *gridIndex) candidates(query *geom.Bounds) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, cell := range cellsForBounds(query) {
		for _, i := range idx.cells[cell] {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			if boundsIntersect(idx.bounds[i], query) {
				out = append(out, i)
			}
		}
	}
	return out
}

func cellsForBounds(b *geom.Bounds) [][2]int {
	minX := int(math.Floor(b.Min(0) / gridCellDeg))
	maxX := int(math.Floor(b.Max(0) / gridCellDeg))
	minY := int(math.Floor(b.Min(1) / gridCellDeg))
	maxY := int(math.Floor(b.Max(1) / gridCellDeg))

	var cells [][2]int
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			cells = append(cells, [2]int{x, y})
		}
	}
	return cells
}

func boundsIntersect(a, b *geom.Bounds) bool {
	return a.Min(0) <= b.Max(0) && b.Min(0) <= a.Max(0) &&
		a.Min(1) <= b.Max(1) && b.Min(1) <= a.Max(1)
}
