package solar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeReferenceScenario(t *testing.T) {
	t.Parallel()

	// 10,000 m2 warehouse in a US-mean resource region.
	p := Params{
		UsableFraction:         0.65,
		PanelEfficiencyWM2:     200,
		ElectricityPriceUSDKWh: 0.12,
		IncludeITC:             true,
	}
	e := Compute(10000, 0.158, DefaultCO2RateKgPerKWh, p)

	assert.InDelta(t, 6500, e.UsableAreaM2, 1e-9)
	assert.InDelta(t, 1300, e.CapacityKW, 1e-9)
	assert.InDelta(t, 1.3, e.CapacityMW, 1e-9)

	wantAnnual := 1300 * HoursPerYear * 0.158
	assert.InDelta(t, wantAnnual, e.AnnualKWh, 1e-6)

	assert.InDelta(t, 1820000, e.GrossInstallCost, 1e-6)
	assert.InDelta(t, 546000, e.ITCSavings, 1e-6)
	assert.InDelta(t, 1274000, e.InstallCost, 1e-6)
	assert.InDelta(t, wantAnnual*0.12, e.AnnualRevenue, 1e-6)
	assert.InDelta(t, 19500, e.AnnualOM, 1e-9)
	assert.InDelta(t, 6.5, e.PaybackYears, 0.05)

	assert.Len(t, e.YearlyGenerationMWh, LifetimeYears)
	assert.Positive(t, e.NPV25Yr)
	assert.InDelta(t, wantAnnual/HomeAnnualKWh, e.HomesPowered, 1e-9)
}

func TestComputeDegenerateInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		area float64
		cf   float64
	}{
		{"zero area", 0, 0.158},
		{"negative area", -50, 0.158},
		{"zero capacity factor", 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := Compute(tt.area, tt.cf, DefaultCO2RateKgPerKWh, DefaultParams())

			assert.Zero(t, e.CapacityKW)
			assert.Zero(t, e.AnnualKWh)
			assert.Zero(t, e.InstallCost)
			assert.Zero(t, e.NPV25Yr)
			assert.Zero(t, e.CO2AvoidedTons)
			assert.Equal(t, PaybackSentinelYears, e.PaybackYears)
		})
	}
}

func TestComputeMonotonicInUsableFraction(t *testing.T) {
	t.Parallel()

	base := DefaultParams()
	prev := Compute(2500, 0.171, 0.525, base)

	for _, uf := range []float64{0.45, 0.55, 0.66, 0.80} {
		p := base
		p.UsableFraction = uf
		cur := Compute(2500, 0.171, 0.525, p)

		assert.Greater(t, cur.CapacityKW, prev.CapacityKW, "usable_fraction %v", uf)
		assert.Greater(t, cur.AnnualMWh, prev.AnnualMWh, "usable_fraction %v", uf)
		assert.Greater(t, cur.AnnualRevenue, prev.AnnualRevenue, "usable_fraction %v", uf)
		prev = cur
	}
}

func TestComputeNonNegativity(t *testing.T) {
	t.Parallel()

	areas := []float64{0, 1, 120.5, 5000, 2.5e6}
	cfs := []float64{0, 0.05, 0.140, 0.198}

	for _, area := range areas {
		for _, cf := range cfs {
			e := Compute(area, cf, DefaultCO2RateKgPerKWh, DefaultParams())
			assert.GreaterOrEqual(t, e.CapacityKW, 0.0)
			assert.GreaterOrEqual(t, e.AnnualMWh, 0.0)
			assert.GreaterOrEqual(t, e.InstallCost, 0.0)
			assert.GreaterOrEqual(t, e.AnnualOM, 0.0)
			assert.GreaterOrEqual(t, e.CO2AvoidedTons, 0.0)
		}
	}
}

func TestComputeWithoutITC(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	p.IncludeITC = false
	e := Compute(10000, 0.158, DefaultCO2RateKgPerKWh, p)

	assert.Zero(t, e.ITCSavings)
	assert.InDelta(t, e.GrossInstallCost, e.InstallCost, 1e-9)

	withITC := Compute(10000, 0.158, DefaultCO2RateKgPerKWh, DefaultParams())
	assert.Greater(t, e.PaybackYears, withITC.PaybackYears)
	assert.Less(t, e.NPV25Yr, withITC.NPV25Yr)
}

func TestComputeDegradationCurve(t *testing.T) {
	t.Parallel()

	e := Compute(8000, 0.185, 0.211, DefaultParams())
	require.Len(t, e.YearlyGenerationMWh, LifetimeYears)

	// Year 1 equals the undegraded annual output.
	assert.InDelta(t, e.AnnualMWh, e.YearlyGenerationMWh[0], 1e-9)

	// Strictly decreasing, with the cumulative sum matching lifetime totals.
	var sum float64
	for i, mwh := range e.YearlyGenerationMWh {
		if i > 0 {
			assert.Less(t, mwh, e.YearlyGenerationMWh[i-1])
		}
		sum += mwh
	}
	assert.InDelta(t, e.LifetimeMWh, sum, 1e-6)

	// Lifetime CO2 follows the same degraded energy sum.
	assert.InDelta(t, sum*1000*0.211/1000, e.CO2AvoidedLifetimeTons, 1e-6)
}

func TestComputePaybackSentinel(t *testing.T) {
	t.Parallel()

	// Price low enough that O&M exceeds revenue: no payback.
	p := Params{
		UsableFraction:         0.30,
		PanelEfficiencyWM2:     150,
		ElectricityPriceUSDKWh: 0.001,
		IncludeITC:             true,
	}
	e := Compute(100, 0.05, DefaultCO2RateKgPerKWh, p)

	assert.Equal(t, PaybackSentinelYears, e.PaybackYears)
	assert.False(t, math.IsNaN(e.NPV25Yr))
	assert.False(t, math.IsInf(e.NPV25Yr, 0))
}

func TestRounded(t *testing.T) {
	t.Parallel()

	e := Compute(10000, 0.158, DefaultCO2RateKgPerKWh, DefaultParams())
	r := e.Rounded()

	assert.InDelta(t, e.AnnualKWh, r.AnnualKWh, 0.5)
	assert.Equal(t, math.Round(e.InstallCost), r.InstallCost)
	assert.Equal(t, math.Round(e.PaybackYears*10)/10, r.PaybackYears)
	assert.Len(t, r.YearlyGenerationMWh, LifetimeYears)
}

func TestParamsClamped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{
			name: "below range",
			in:   Params{UsableFraction: 0.1, PanelEfficiencyWM2: 90, ElectricityPriceUSDKWh: 0.01},
			want: Params{UsableFraction: 0.30, PanelEfficiencyWM2: 150, ElectricityPriceUSDKWh: 0.06},
		},
		{
			name: "above range",
			in:   Params{UsableFraction: 0.95, PanelEfficiencyWM2: 400, ElectricityPriceUSDKWh: 1.50},
			want: Params{UsableFraction: 0.80, PanelEfficiencyWM2: 250, ElectricityPriceUSDKWh: 0.25},
		},
		{
			name: "in range unchanged",
			in:   Params{UsableFraction: 0.65, PanelEfficiencyWM2: 200, ElectricityPriceUSDKWh: 0.12, IncludeITC: true},
			want: Params{UsableFraction: 0.65, PanelEfficiencyWM2: 200, ElectricityPriceUSDKWh: 0.12, IncludeITC: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.in.Clamped())
		})
	}
}
