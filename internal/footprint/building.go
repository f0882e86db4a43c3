// Package footprint assembles deduplicated building footprints around an
// airport from two independently-sourced polygon sets.
package footprint

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/aerosolar/solar-cli/internal/geometry"
)

// Source tags a footprint's provenance. Primary footprints are
// ML-derived (Microsoft-style); secondary are community-mapped. The tag
// exists only to break duplicate ties: primary always wins.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// Building is one rooftop candidate. Area, centroid, and distance are
// always derived from the geometry, never trusted from source metadata.
// A Building is immutable once created.
type Building struct {
	Geometry   *geom.Polygon `json:"-"`
	AreaM2     float64       `json:"area_m2"`
	Lat        float64       `json:"lat"`
	Lon        float64       `json:"lon"`
	DistanceKM float64       `json:"distance_km"`
	Source     Source        `json:"source"`
}

// New derives a Building from a polygon. It returns false for invalid or
// zero-area geometry; malformed upstream records are dropped, never
// propagated as errors.
func New(p *geom.Polygon, src Source, airport geom.Coord) (Building, bool) {
	if !geometry.Valid(p) {
		return Building{}, false
	}
	c := geometry.Centroid(p)
	return Building{
		Geometry:   p,
		AreaM2:     geometry.AreaM2(p),
		Lat:        c[1],
		Lon:        c[0],
		DistanceKM: geometry.HaversineKM(c, airport),
		Source:     src,
	}, true
}

// Centroid returns the building centroid as a go-geom coordinate
// (X=lon, Y=lat).
func (b Building) Centroid() geom.Coord {
	return geom.Coord{b.Lon, b.Lat}
}

// Clone returns a deep copy, including the geometry's coordinate backing
// array, so cached buildings can be handed to callers safely.
func (b Building) Clone() Building {
	if b.Geometry == nil {
		return b
	}
	coords := b.Geometry.FlatCoords()
	flat := make([]float64, len(coords))
	copy(flat, coords)
	ends := make([]int, len(b.Geometry.Ends()))
	copy(ends, b.Geometry.Ends())
	b.Geometry = geom.NewPolygonFlat(b.Geometry.Layout(), flat, ends)
	return b
}

// buildingJSON is the wire/cache form of a Building, geometry as GeoJSON.
type buildingJSON struct {
	Geometry   json.RawMessage `json:"geometry"`
	AreaM2     float64         `json:"area_m2"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	DistanceKM float64         `json:"distance_km"`
	Source     Source          `json:"source"`
}

// MarshalJSON encodes the building with its geometry as GeoJSON.
func (b Building) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if b.Geometry != nil {
		data, err := geojson.Marshal(b.Geometry)
		if err != nil {
			return nil, eris.Wrap(err, "footprint: marshal geometry")
		}
		raw = data
	}
	return json.Marshal(buildingJSON{
		Geometry:   raw,
		AreaM2:     b.AreaM2,
		Lat:        b.Lat,
		Lon:        b.Lon,
		DistanceKM: b.DistanceKM,
		Source:     b.Source,
	})
}

// UnmarshalJSON decodes a building from its cache/wire form.
func (b *Building) UnmarshalJSON(data []byte) error {
	var bj buildingJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return eris.Wrap(err, "footprint: unmarshal building")
	}

	var poly *geom.Polygon
	if len(bj.Geometry) > 0 {
		var g geom.T
		if err := geojson.Unmarshal(bj.Geometry, &g); err != nil {
			return eris.Wrap(err, "footprint: unmarshal geometry")
		}
		p, ok := g.(*geom.Polygon)
		if !ok {
			return eris.Errorf("footprint: unexpected geometry type %T", g)
		}
		poly = p
	}

	*b = Building{
		Geometry:   poly,
		AreaM2:     bj.AreaM2,
		Lat:        bj.Lat,
		Lon:        bj.Lon,
		DistanceKM: bj.DistanceKM,
		Source:     bj.Source,
	}
	return nil
}
