package resolver

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aerosolar/solar-cli/internal/airport"
	"github.com/aerosolar/solar-cli/internal/solar"
)

// Fan-out bounds for multi-airport operations. CompareMaxAirports caps a
// single compare request; resolveConcurrency caps in-flight resolves so a
// full-registry aggregate does not load every state's footprints at once.
const (
	CompareMaxAirports = 8
	resolveConcurrency = 4
)

// CompareEntry is one airport's row in a comparison. A failed airport
// carries its error text and nil totals rather than failing the batch.
type CompareEntry struct {
	Code      string  `json:"code"`
	Name      string  `json:"name,omitempty"`
	State     string  `json:"state,omitempty"`
	Buildings int     `json:"buildings"`
	Totals    *Totals `json:"totals,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Compare resolves up to CompareMaxAirports codes concurrently and
// returns one entry per requested code in request order.
func Compare(ctx context.Context, res Interface, codes []string, base Query) ([]CompareEntry, error) {
	if len(codes) == 0 {
		return nil, eris.New("resolver: compare needs at least one airport code")
	}
	if len(codes) > CompareMaxAirports {
		return nil, eris.Errorf("resolver: compare limited to %d airports, got %d", CompareMaxAirports, len(codes))
	}

	entries := make([]CompareEntry, len(codes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, code := range codes {
		g.Go(func() error {
			q := base
			q.AirportCode = strings.ToUpper(strings.TrimSpace(code))
			entries[i] = CompareEntry{Code: q.AirportCode}

			r, err := res.Resolve(ctx, q)
			if err != nil {
				entries[i].Error = eris.Cause(err).Error()
				zap.L().Warn("compare airport failed", zap.String("airport", q.AirportCode), zap.Error(err))
				return nil
			}
			entries[i].Name = r.Airport.Name
			entries[i].State = r.Airport.State
			entries[i].Buildings = r.Totals.BuildingCount
			totals := r.Totals
			entries[i].Totals = &totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// AggregateResult sums per-airport totals across the whole registry.
// Grand totals are a fold over the summed roof area with the national
// default capacity factor, plus straight sums of the figures that do not
// survive a single-region recompute.
type AggregateResult struct {
	Airports       []CompareEntry `json:"airports"`
	AirportCount   int            `json:"airport_count"`
	FailedAirports []string       `json:"failed_airports,omitempty"`
	Grand          Totals         `json:"grand_totals"`
}

// AggregateAll resolves every registered airport and sums the results.
// Individual airport failures are recorded and skipped; the aggregate
// fails only when the context is cancelled.
func AggregateAll(ctx context.Context, res Interface, reg *airport.Registry, base Query) (*AggregateResult, error) {
	airports := reg.All()
	entries := make([]CompareEntry, len(airports))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, ap := range airports {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "resolver: aggregate cancelled")
			}
			q := base
			q.AirportCode = ap.Code
			entries[i] = CompareEntry{Code: ap.Code, Name: ap.Name, State: ap.State}

			r, err := res.Resolve(ctx, q)
			if err != nil {
				entries[i].Error = eris.Cause(err).Error()
				return nil
			}
			entries[i].Buildings = r.Totals.BuildingCount
			totals := r.Totals
			entries[i].Totals = &totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &AggregateResult{Airports: entries}
	count := 0
	totalArea := 0.0
	var annualKWh, revenue, cost, co2, homes float64
	for _, e := range entries {
		if e.Error != "" {
			out.FailedAirports = append(out.FailedAirports, e.Code)
			continue
		}
		out.AirportCount++
		count += e.Totals.BuildingCount
		totalArea += e.Totals.TotalRoofAreaM2
		annualKWh += e.Totals.AnnualKWh
		revenue += e.Totals.AnnualRevenue
		cost += e.Totals.InstallCost
		co2 += e.Totals.CO2AvoidedTons
		homes += e.Totals.HomesPowered
	}

	// Capacity factors differ by state, so the grand fold uses the
	// national default and the true per-state sums override the figures
	// that depend on it.
	grand := TotalsOf(count, totalArea, solar.DefaultCapacityFactor, solar.DefaultCO2RateKgPerKWh, base.Params)
	grand.AnnualKWh = annualKWh
	grand.AnnualMWh = annualKWh / 1000
	grand.AnnualRevenue = revenue
	grand.InstallCost = cost
	grand.CO2AvoidedTons = co2
	grand.HomesPowered = homes
	out.Grand = grand
	return out, nil
}
