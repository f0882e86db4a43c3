package footprint

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// LoadGeoJSON reads a FeatureCollection of building footprints and
// returns its polygons. MultiPolygon features are split into their parts
// so every element downstream is a simple polygon. Features with other
// geometry types are skipped, matching the merger's rule that malformed
// records never abort a load.
func LoadGeoJSON(path string) ([]*geom.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "footprint: read geojson %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "footprint: parse geojson %s", path)
	}

	var polys []*geom.Polygon
	skipped := 0
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			polys = append(polys, g)
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				polys = append(polys, g.Polygon(i))
			}
		default:
			skipped++
		}
	}

	if skipped > 0 {
		zap.L().Debug("footprint: skipped non-polygon features",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return polys, nil
}
