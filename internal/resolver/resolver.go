// Package resolver ties the footprint, airport and solar packages into a
// single staged pipeline: resolve an airport code to the buildings around
// it, size each rooftop, and attach a solar production and financial
// estimate to every building plus a site-wide total.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aerosolar/solar-cli/internal/airport"
	"github.com/aerosolar/solar-cli/internal/footprint"
	"github.com/aerosolar/solar-cli/internal/solar"
)

// Radius and building-size bounds applied to every query before the
// pipeline runs. Values outside the range are clamped, not rejected.
const (
	MinRadiusKM = 0.5
	MaxRadiusKM = 20.0

	DefaultRadiusKM          = 5.0
	DefaultMinBuildingAreaM2 = 100.0
)

// Query describes one resolution request. The zero value is not usable;
// start from DefaultQuery.
type Query struct {
	AirportCode       string
	RadiusKM          float64
	MinBuildingAreaM2 float64
	Params            solar.Params
}

// DefaultQuery returns a query for code with the default radius, size
// floor and solar parameters.
func DefaultQuery(code string) Query {
	return Query{
		AirportCode:       code,
		RadiusKM:          DefaultRadiusKM,
		MinBuildingAreaM2: DefaultMinBuildingAreaM2,
		Params:            solar.DefaultParams(),
	}
}

// Clamped returns a copy with the radius, size floor and solar parameters
// forced into their supported ranges.
func (q Query) Clamped() Query {
	out := q
	if out.RadiusKM < MinRadiusKM {
		out.RadiusKM = MinRadiusKM
	}
	if out.RadiusKM > MaxRadiusKM {
		out.RadiusKM = MaxRadiusKM
	}
	if out.MinBuildingAreaM2 < 0 {
		out.MinBuildingAreaM2 = 0
	}
	out.Params = out.Params.Clamped()
	return out
}

// Key returns a cache key covering every input that affects the result.
func (q Query) Key() string {
	return fmt.Sprintf("%s|r=%.3f|min=%.1f|uf=%.4f|eff=%.1f|price=%.4f|itc=%t",
		q.AirportCode, q.RadiusKM, q.MinBuildingAreaM2,
		q.Params.UsableFraction, q.Params.PanelEfficiencyWM2,
		q.Params.ElectricityPriceUSDKWh, q.Params.IncludeITC)
}

// ResolvedBuilding is one footprint with its per-roof solar estimate.
type ResolvedBuilding struct {
	footprint.Building
	Solar solar.Estimate `json:"solar"`
}

// MarshalJSON merges the building's wire form with the solar estimate.
// The embedded Building's own marshaler would otherwise shadow Solar.
func (rb ResolvedBuilding) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(rb.Building)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	est, err := json.Marshal(rb.Solar)
	if err != nil {
		return nil, err
	}
	fields["solar"] = est
	return json.Marshal(fields)
}

// Totals is the site-wide estimate computed over the summed roof area.
// Because generation and cash flows are linear in area, estimating the
// summed area equals summing the per-building cash flows, so the payback
// and NPV here are true portfolio figures rather than sums of ratios.
type Totals struct {
	BuildingCount   int     `json:"building_count"`
	TotalRoofAreaM2 float64 `json:"total_roof_area_m2"`
	solar.Estimate
}

// Result is the full output for one airport query.
type Result struct {
	Airport   airport.Airport    `json:"airport"`
	Query     Query              `json:"-"`
	Buildings []ResolvedBuilding `json:"buildings"`
	Totals    Totals             `json:"totals"`
}

// Clone deep-copies the result so cached values cannot be mutated by
// callers. Geometry backing arrays and yearly curves are copied.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		Airport: r.Airport,
		Query:   r.Query,
		Totals:  r.Totals,
	}
	out.Totals.Estimate = r.Totals.Estimate.Clone()
	out.Buildings = make([]ResolvedBuilding, len(r.Buildings))
	for i, b := range r.Buildings {
		out.Buildings[i] = ResolvedBuilding{
			Building: b.Building.Clone(),
			Solar:    b.Solar.Clone(),
		}
	}
	return out
}

// Interface is the resolve entry point shared by Resolver and Cache, so
// multi-airport operations and the HTTP layer can take either.
type Interface interface {
	Resolve(ctx context.Context, q Query) (*Result, error)
}

// Resolver runs the pipeline directly with no caching. Wrap it in a Cache
// for serving.
type Resolver struct {
	registry *airport.Registry
	source   footprint.SourceSet
	disk     *footprint.DiskCache
	regions  solar.Regions
}

// New returns a resolver over the given registry and footprint sources.
// disk may be a disabled cache.
func New(reg *airport.Registry, source footprint.SourceSet, disk *footprint.DiskCache, regions solar.Regions) *Resolver {
	return &Resolver{registry: reg, source: source, disk: disk, regions: regions}
}

// Registry exposes the airport registry for callers that enumerate codes.
func (r *Resolver) Registry() *airport.Registry { return r.registry }

// Regions exposes the regional constant tables.
func (r *Resolver) Regions() solar.Regions { return r.regions }

// Resolve runs the full pipeline for one airport. The query is clamped
// first, so out-of-range inputs degrade to the nearest supported value.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Result, error) {
	q = q.Clamped()
	start := time.Now()

	ap, ok := r.registry.Get(q.AirportCode)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownAirport, "resolver: %q", q.AirportCode)
	}

	buildings, err := r.footprints(ctx, ap, q)
	if err != nil {
		return nil, err
	}

	cf := r.regions.CapacityFactor(ap.State)
	co2 := r.regions.CO2Rate(ap.State)

	resolved := make([]ResolvedBuilding, 0, len(buildings))
	totalArea := 0.0
	for _, b := range buildings {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "resolver: estimating cancelled")
		}
		resolved = append(resolved, ResolvedBuilding{
			Building: b,
			Solar:    solar.Compute(b.AreaM2, cf, co2, q.Params),
		})
		totalArea += b.AreaM2
	}

	res := &Result{
		Airport:   ap,
		Query:     q,
		Buildings: resolved,
		Totals:    TotalsOf(len(resolved), totalArea, cf, co2, q.Params),
	}

	zap.L().Info("airport resolved",
		zap.String("airport", ap.Code),
		zap.Int("buildings", len(resolved)),
		zap.Float64("total_roof_m2", totalArea),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// footprints loads, merges and filters buildings for the airport. Both
// tiers merge at MaxRadiusKM and then filter down, so a query sees the
// same building set whether or not the disk cache is warm.
func (r *Resolver) footprints(ctx context.Context, ap airport.Airport, q Query) ([]footprint.Building, error) {
	if r.disk != nil {
		if cached, ok, err := r.disk.Load(ap.Code); err != nil {
			zap.L().Warn("disk cache read failed", zap.String("airport", ap.Code), zap.Error(err))
		} else if ok {
			zap.L().Debug("disk cache hit", zap.String("airport", ap.Code), zap.Int("buildings", len(cached)))
			return footprint.Filter(cached, q.RadiusKM, q.MinBuildingAreaM2), nil
		}
	}

	primary, secondary, err := r.source.Load(ctx, ap.State)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: loading footprints for %s", ap.State)
	}
	if len(primary) == 0 && len(secondary) == 0 {
		return nil, eris.Wrapf(ErrNoData, "resolver: %s (%s)", ap.Code, ap.State)
	}

	merged := footprint.Merge(primary, secondary, ap.Coord(), MaxRadiusKM)
	return footprint.Filter(merged, q.RadiusKM, q.MinBuildingAreaM2), nil
}

// TotalsOf folds building count and summed roof area into a site-wide
// estimate. It is a pure function of its inputs, so totals over any
// subset of buildings can be recomputed without a resolver.
func TotalsOf(count int, totalAreaM2, capacityFactor, co2RateKgKWh float64, p solar.Params) Totals {
	return Totals{
		BuildingCount:   count,
		TotalRoofAreaM2: totalAreaM2,
		Estimate:        solar.Compute(totalAreaM2, capacityFactor, co2RateKgKWh, p),
	}
}
