package footprint

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads building footprints from a shapefile. Each polygon
// part becomes one simple polygon; non-polygon shapes and malformed
// rings are skipped rather than failing the load.
func LoadShapefile(path string) ([]*geom.Polygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "footprint: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	var polys []*geom.Polygon
	skipped := 0

	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shape.(*shp.Polygon)
		if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
			skipped++
			continue
		}

		for i := int32(0); i < p.NumParts; i++ {
			start := p.Parts[i]
			end := int32(len(p.Points))
			if i+1 < p.NumParts {
				end = p.Parts[i+1]
			}

			flat := make([]float64, 0, (end-start)*2)
			for j := start; j < end; j++ {
				flat = append(flat, p.Points[j].X, p.Points[j].Y)
			}

			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
				skipped++
				continue
			}
			polys = append(polys, poly)
		}
	}

	if skipped > 0 {
		zap.L().Debug("footprint: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return polys, nil
}
