// Package solar converts roof area and regional solar resource data into
// generation, financial, and environmental estimates.
//
// Methodology follows the NREL 2023 Annual Technology Baseline for
// commercial rooftop PV, SEIA/Wood Mackenzie 2025 install costs, and EPA
// eGRID 2022 grid emissions.
package solar

// Fixed model constants. These are design constants, not user-tunable.
const (
	// CostPerWattUSD is the commercial rooftop install cost per DC watt.
	CostPerWattUSD = 1.40

	// ITCRate is the federal Investment Tax Credit for commercial solar.
	ITCRate = 0.30

	// OMUSDPerKWYear is the annual operations and maintenance cost per kW.
	OMUSDPerKWYear = 15.0

	// DegradationRatePerYear is the annual panel output degradation.
	DegradationRatePerYear = 0.005

	// DiscountRate is the rate used for NPV calculations.
	DiscountRate = 0.06

	// LifetimeYears is the modeled system lifetime.
	LifetimeYears = 25

	// HomeAnnualKWh is average US home consumption (EIA 2022).
	HomeAnnualKWh = 10500.0

	// HoursPerYear converts capacity to annual energy.
	HoursPerYear = 8760.0

	// PaybackSentinelYears replaces non-finite or non-positive payback so
	// downstream aggregation stays well-defined.
	PaybackSentinelYears = 999.0
)

// Tunable parameter bounds. The request layer clamps to these before the
// estimator runs.
const (
	MinUsableFraction = 0.30
	MaxUsableFraction = 0.80

	MinPanelEfficiencyWM2 = 150.0
	MaxPanelEfficiencyWM2 = 250.0

	MinElectricityPriceUSDKWh = 0.06
	MaxElectricityPriceUSDKWh = 0.25
)

// Params holds the tunable estimation parameters.
type Params struct {
	UsableFraction         float64 `json:"usable_fraction"`
	PanelEfficiencyWM2     float64 `json:"panel_efficiency_w_m2"`
	ElectricityPriceUSDKWh float64 `json:"electricity_price_usd_kwh"`
	IncludeITC             bool    `json:"include_itc"`
}

// DefaultParams returns the estimation defaults used by the API and CLI.
func DefaultParams() Params {
	return Params{
		UsableFraction:         0.65,
		PanelEfficiencyWM2:     200,
		ElectricityPriceUSDKWh: 0.12,
		IncludeITC:             true,
	}
}

// Clamped returns a copy of p with each tunable forced into its valid
// range. Out-of-range values never reach the formula chain through the
// API, but the formulas themselves stay well-defined regardless.
func (p Params) Clamped() Params {
	p.UsableFraction = clamp(p.UsableFraction, MinUsableFraction, MaxUsableFraction)
	p.PanelEfficiencyWM2 = clamp(p.PanelEfficiencyWM2, MinPanelEfficiencyWM2, MaxPanelEfficiencyWM2)
	p.ElectricityPriceUSDKWh = clamp(p.ElectricityPriceUSDKWh, MinElectricityPriceUSDKWh, MaxElectricityPriceUSDKWh)
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
