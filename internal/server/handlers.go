package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aerosolar/solar-cli/internal/resolver"
	"github.com/aerosolar/solar-cli/internal/solar"
)

// Airport codes are path segments; the format check doubles as input
// sanitation.
var airportCodeRe = regexp.MustCompile(`^[A-Za-z]{3,4}$`)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":           "operational",
		"version":          Version,
		"uptime_seconds":   time.Since(s.startedAt).Seconds(),
		"start_time":       s.startedAt.UTC().Format(time.RFC3339),
		"requests_handled": s.requests.Load(),
		"airports":         s.registry.Len(),
	}
	if s.cache != nil {
		body["cache"] = s.cache.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.registry.Len() == 0 {
		writeError(w, http.StatusServiceUnavailable, "airport registry not loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAirports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleCapacityFactors(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, http.StatusOK, s.regions.CapacityFactors)
}

// queryParams parses the shared estimation parameters, starting from the
// server's configured defaults. Unparseable values are a 400; out-of-range
// values are clamped later by the resolver.
func (s *Server) queryParams(r *http.Request) (resolver.Query, error) {
	q := s.defaults

	var err error
	if q.RadiusKM, err = floatParam(r, "radius", q.RadiusKM); err != nil {
		return q, err
	}
	if q.MinBuildingAreaM2, err = floatParam(r, "min_size", q.MinBuildingAreaM2); err != nil {
		return q, err
	}
	if q.Params.UsableFraction, err = floatParam(r, "usable_pct", q.Params.UsableFraction); err != nil {
		return q, err
	}
	if q.Params.PanelEfficiencyWM2, err = floatParam(r, "panel_eff", q.Params.PanelEfficiencyWM2); err != nil {
		return q, err
	}
	if q.Params.ElectricityPriceUSDKWh, err = floatParam(r, "elec_price", q.Params.ElectricityPriceUSDKWh); err != nil {
		return q, err
	}
	if q.Params.IncludeITC, err = boolParam(r, "include_itc", q.Params.IncludeITC); err != nil {
		return q, err
	}
	return q, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, eris.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// paramsView echoes the effective (clamped) parameters back to clients.
type paramsView struct {
	RadiusKM   float64 `json:"radius_km"`
	MinSizeM2  float64 `json:"min_size_m2"`
	UsablePct  float64 `json:"usable_pct"`
	PanelEff   float64 `json:"panel_eff"`
	ElecPrice  float64 `json:"elec_price"`
	IncludeITC bool    `json:"include_itc"`
}

func viewOfParams(q resolver.Query) paramsView {
	return paramsView{
		RadiusKM:   q.RadiusKM,
		MinSizeM2:  q.MinBuildingAreaM2,
		UsablePct:  q.Params.UsableFraction,
		PanelEff:   q.Params.PanelEfficiencyWM2,
		ElecPrice:  q.Params.ElectricityPriceUSDKWh,
		IncludeITC: q.Params.IncludeITC,
	}
}

type totalsView struct {
	BuildingCount   int     `json:"building_count"`
	TotalRoofAreaM2 float64 `json:"total_roof_area_m2"`
	solar.Estimate
}

func viewOfTotals(t resolver.Totals) totalsView {
	return totalsView{
		BuildingCount:   t.BuildingCount,
		TotalRoofAreaM2: t.TotalRoofAreaM2,
		Estimate:        t.Estimate.Rounded(),
	}
}

// maxBuildingsReturn caps the per-airport building payload. Totals still
// cover the full set; the cap keeps the largest rooftops.
const maxBuildingsReturn = 5000

// capBuildings keeps the limit largest buildings by roof area, preserving
// the resolver's ordering among those kept.
func capBuildings(bs []resolver.ResolvedBuilding, limit int) []resolver.ResolvedBuilding {
	if len(bs) <= limit {
		return bs
	}
	idx := make([]int, len(bs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return bs[idx[i]].AreaM2 > bs[idx[j]].AreaM2 })
	keep := make([]bool, len(bs))
	for _, i := range idx[:limit] {
		keep[i] = true
	}
	out := make([]resolver.ResolvedBuilding, 0, limit)
	for i, b := range bs {
		if keep[i] {
			out = append(out, b)
		}
	}
	return out
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !airportCodeRe.MatchString(code) {
		writeError(w, http.StatusBadRequest, "invalid airport code format")
		return
	}

	q, err := s.queryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q.AirportCode = strings.ToUpper(code)

	start := time.Now()
	res, err := s.res.Resolve(r.Context(), q)
	s.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		switch {
		case eris.Is(err, resolver.ErrUnknownAirport):
			writeError(w, http.StatusNotFound, "airport "+q.AirportCode+" not found")
		case eris.Is(err, resolver.ErrNoData):
			writeError(w, http.StatusNotFound, "no building data for "+q.AirportCode)
		default:
			zap.L().Error("resolve failed", zap.String("airport", q.AirportCode), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	capped := capBuildings(res.Buildings, maxBuildingsReturn)
	buildings := make([]resolver.ResolvedBuilding, len(capped))
	for i, b := range capped {
		b.Solar = b.Solar.Rounded()
		buildings[i] = b
	}

	body := map[string]any{
		"airport":    res.Airport,
		"buildings":  buildings,
		"totals":     viewOfTotals(res.Totals),
		"parameters": viewOfParams(res.Query),
	}
	if len(buildings) == 0 {
		body["totals"] = nil
		body["error"] = "No buildings found"
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q, err := s.queryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var codes []string
	for _, c := range strings.Split(r.URL.Query().Get("codes"), ",") {
		c = strings.TrimSpace(c)
		if airportCodeRe.MatchString(c) {
			codes = append(codes, c)
		}
	}
	if len(codes) == 0 {
		writeError(w, http.StatusBadRequest, "no valid airport codes provided")
		return
	}
	if len(codes) > resolver.CompareMaxAirports {
		codes = codes[:resolver.CompareMaxAirports]
	}

	entries, err := resolver.Compare(r.Context(), s.res, codes, q)
	if err != nil {
		zap.L().Error("compare failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"airports":   compareViews(entries),
		"parameters": viewOfParams(q.Clamped()),
	})
}

type compareView struct {
	Code      string      `json:"code"`
	Name      string      `json:"name,omitempty"`
	State     string      `json:"state,omitempty"`
	Buildings int         `json:"building_count"`
	Totals    *totalsView `json:"totals,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func compareViews(entries []resolver.CompareEntry) []compareView {
	out := make([]compareView, len(entries))
	for i, e := range entries {
		out[i] = compareView{
			Code:      e.Code,
			Name:      e.Name,
			State:     e.State,
			Buildings: e.Buildings,
			Error:     e.Error,
		}
		if e.Totals != nil {
			v := viewOfTotals(*e.Totals)
			out[i].Totals = &v
		}
	}
	return out
}

// aggregateRow is one airport's line in the registry-wide report, sorted
// by annual generation.
type aggregateRow struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	State          string  `json:"state"`
	Buildings      int     `json:"buildings"`
	CapacityMW     float64 `json:"capacity_mw"`
	AnnualMWh      float64 `json:"annual_mwh"`
	AnnualRevenue  float64 `json:"annual_revenue"`
	CO2AvoidedTons float64 `json:"co2_avoided_tons"`
	PaybackYears   float64 `json:"payback_years"`
	NPV25Yr        float64 `json:"npv_25yr"`
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	q, err := s.queryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	agg, err := resolver.AggregateAll(r.Context(), s.res, s.registry, q)
	if err != nil {
		zap.L().Error("aggregate failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rows := make([]aggregateRow, 0, len(agg.Airports))
	for _, e := range agg.Airports {
		if e.Totals == nil {
			continue
		}
		t := e.Totals.Rounded()
		rows = append(rows, aggregateRow{
			Code:           e.Code,
			Name:           e.Name,
			State:          e.State,
			Buildings:      e.Buildings,
			CapacityMW:     t.CapacityMW,
			AnnualMWh:      t.AnnualMWh,
			AnnualRevenue:  t.AnnualRevenue,
			CO2AvoidedTons: t.CO2AvoidedTons,
			PaybackYears:   t.PaybackYears,
			NPV25Yr:        t.NPV25Yr,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AnnualMWh > rows[j].AnnualMWh })

	grand := agg.Grand.Rounded()
	writeJSON(w, http.StatusOK, map[string]any{
		"airports": rows,
		"totals": map[string]any{
			"airport_count":    agg.AirportCount,
			"building_count":   agg.Grand.BuildingCount,
			"capacity_mw":      grand.CapacityMW,
			"annual_mwh":       grand.AnnualMWh,
			"annual_revenue":   grand.AnnualRevenue,
			"co2_avoided_tons": grand.CO2AvoidedTons,
			"homes_powered":    int(grand.HomesPowered),
		},
	})
}
