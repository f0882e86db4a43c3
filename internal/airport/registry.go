// Package airport provides the read-only registry of analyzed airports.
package airport

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Airport is one registered airport: the reference point for a
// building-resolution query and the state used for region lookups.
type Airport struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	State string  `json:"state"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Coord returns the airport reference point as a go-geom coordinate
// (X=lon, Y=lat).
func (a Airport) Coord() geom.Coord {
	return geom.Coord{a.Lon, a.Lat}
}

// Registry is an immutable airport lookup table.
type Registry struct {
	byCode map[string]Airport
	order  []string
}

// NewRegistry builds a registry from a fixed airport list. Later entries
// with a duplicate code replace earlier ones.
func NewRegistry(airports []Airport) *Registry {
	r := &Registry{byCode: make(map[string]Airport, len(airports))}
	for _, a := range airports {
		code := strings.ToUpper(strings.TrimSpace(a.Code))
		if code == "" {
			continue
		}
		a.Code = code
		if _, exists := r.byCode[code]; !exists {
			r.order = append(r.order, code)
		}
		r.byCode[code] = a
	}
	return r
}

// Get looks up an airport by code, case-insensitively.
func (r *Registry) Get(code string) (Airport, bool) {
	a, ok := r.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// All returns every airport in registry insertion order.
func (r *Registry) All() []Airport {
	out := make([]Airport, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.byCode[code])
	}
	return out
}

// Len returns the number of registered airports.
func (r *Registry) Len() int {
	return len(r.order)
}

// LoadCSV reads a registry from a CSV file with a
// code,name,state,lat,lon header. Rows with malformed coordinates are
// skipped with a warning rather than failing the whole load.
func LoadCSV(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "airport: open %s", path)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "airport: read header of %s", path)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"code", "name", "state", "lat", "lon"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("airport: %s missing column %q", path, required)
		}
	}

	var airports []Airport
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "airport: read row of %s", path)
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[col["lat"]]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(record[col["lon"]]), 64)
		if latErr != nil || lonErr != nil {
			skipped++
			continue
		}

		airports = append(airports, Airport{
			Code:  record[col["code"]],
			Name:  strings.TrimSpace(record[col["name"]]),
			State: strings.TrimSpace(record[col["state"]]),
			Lat:   lat,
			Lon:   lon,
		})
	}

	if skipped > 0 {
		zap.L().Warn("airport: skipped malformed rows",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	zap.L().Info("airport: loaded registry",
		zap.String("path", path),
		zap.Int("airports", len(airports)),
	)
	return NewRegistry(airports), nil
}
