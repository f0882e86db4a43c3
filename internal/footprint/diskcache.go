package footprint

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// DiskCache reads and writes pre-computed per-airport building lists as
// <dir>/<CODE>.json. Entries store merged, deduplicated buildings with
// derived fields at the widest supported radius; queries narrow them with
// Filter. This is the only persistence the engine has.
type DiskCache struct {
	dir string
}

// NewDiskCache creates a cache rooted at dir. An empty dir disables the
// cache: Load always misses and Write is a no-op.
func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{dir: dir}
}

// Load returns the cached buildings for an airport code, or ok=false on
// a miss. A corrupt entry is treated as a miss by the caller's choice:
// the error is returned alongside ok=false.
func (c *DiskCache) Load(code string) ([]Building, bool, error) {
	if c.dir == "" {
		return nil, false, nil
	}

	data, err := os.ReadFile(c.path(code))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, eris.Wrapf(err, "footprint: read cache for %s", code)
	}

	var buildings []Building
	if err := json.Unmarshal(data, &buildings); err != nil {
		return nil, false, eris.Wrapf(err, "footprint: parse cache for %s", code)
	}
	return buildings, true, nil
}

// Write stores the buildings for an airport code, creating the cache
// directory if needed.
func (c *DiskCache) Write(code string, buildings []Building) error {
	if c.dir == "" {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return eris.Wrapf(err, "footprint: create cache dir %s", c.dir)
	}

	data, err := json.Marshal(buildings)
	if err != nil {
		return eris.Wrapf(err, "footprint: marshal cache for %s", code)
	}
	if err := os.WriteFile(c.path(code), data, 0o644); err != nil {
		return eris.Wrapf(err, "footprint: write cache for %s", code)
	}
	return nil
}

func (c *DiskCache) path(code string) string {
	return filepath.Join(c.dir, code+".json")
}

// Filter narrows a building list to a radius and minimum area without
// reordering, so a wide cached list serves any narrower query with the
// same deterministic order.
func Filter(buildings []Building, radiusKM, minAreaM2 float64) []Building {
	var out []Building
	for _, b := range buildings {
		if b.DistanceKM <= radiusKM && b.AreaM2 >= minAreaM2 {
			out = append(out, b)
		}
	}
	return out
}
