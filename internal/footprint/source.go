package footprint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// SourceSet provides the raw footprint polygons for a state. The primary
// set is ML-derived GeoJSON; the secondary set is community-mapped
// shapefile data. Either slice may be empty when that source has no
// coverage for the state.
type SourceSet interface {
	Load(ctx context.Context, state string) (primary, secondary []*geom.Polygon, err error)
}

// DirSource loads footprint sources from a data directory laid out as
//
//	<dir>/primary/<State>.geojson
//	<dir>/secondary/<State>.shp
//
// with spaces stripped from state names ("North Carolina" →
// "NorthCarolina"). State loads are memoized so several airports in one
// state read the files once.
type DirSource struct {
	dir string

	mu   sync.Mutex
	memo map[string]*stateSet
}

type stateSet struct {
	primary   []*geom.Polygon
	secondary []*geom.Polygon
}

// NewDirSource creates a file-backed SourceSet rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir, memo: make(map[string]*stateSet)}
}

// Load returns both polygon sets for a state. A missing file is treated
// as an empty source, not an error; the merger proceeds with whatever
// remains. Parse failures on present files are errors.
func (s *DirSource) Load(ctx context.Context, state string) ([]*geom.Polygon, []*geom.Polygon, error) {
	key := strings.ReplaceAll(state, " ", "")

	s.mu.Lock()
	cached, ok := s.memo[key]
	s.mu.Unlock()
	if ok {
		return cached.primary, cached.secondary, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	primary, err := s.loadPrimary(filepath.Join(s.dir, "primary", key+".geojson"), state)
	if err != nil {
		return nil, nil, err
	}
	secondary, err := s.loadSecondary(filepath.Join(s.dir, "secondary", key+".shp"), state)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.memo[key] = &stateSet{primary: primary, secondary: secondary}
	s.mu.Unlock()

	zap.L().Info("footprint: loaded state sources",
		zap.String("state", state),
		zap.Int("primary", len(primary)),
		zap.Int("secondary", len(secondary)),
	)
	return primary, secondary, nil
}

func (s *DirSource) loadPrimary(path, state string) ([]*geom.Polygon, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zap.L().Warn("footprint: primary source missing", zap.String("state", state), zap.String("path", path))
		return nil, nil
	}
	return LoadGeoJSON(path)
}

func (s *DirSource) loadSecondary(path, state string) ([]*geom.Polygon, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zap.L().Warn("footprint: secondary source missing", zap.String("state", state), zap.String("path", path))
		return nil, nil
	}
	return LoadShapefile(path)
}

// StaticSource is an in-memory SourceSet for tests and cache generation.
type StaticSource struct {
	Primary   map[string][]*geom.Polygon
	Secondary map[string][]*geom.Polygon
}

// Load returns the configured polygon sets for a state.
func (s StaticSource) Load(_ context.Context, state string) ([]*geom.Polygon, []*geom.Polygon, error) {
	return s.Primary[state], s.Secondary[state], nil
}
