package solar

import "math"

// Estimate holds the full generation, financial, and environmental model
// for one roof area. All values carry full float64 precision; rounding is
// a presentation concern handled by Rounded at the output boundary so
// errors never compound across buildings.
type Estimate struct {
	// Generation
	UsableAreaM2   float64 `json:"usable_area_m2"`
	CapacityKW     float64 `json:"capacity_kw"`
	CapacityMW     float64 `json:"capacity_mw"`
	AnnualKWh      float64 `json:"annual_kwh"`
	AnnualMWh      float64 `json:"annual_mwh"`
	CapacityFactor float64 `json:"capacity_factor"`

	// Financials
	AnnualRevenue       float64   `json:"annual_revenue"`
	GrossInstallCost    float64   `json:"gross_install_cost"`
	ITCSavings          float64   `json:"itc_savings"`
	InstallCost         float64   `json:"install_cost"`
	AnnualOM            float64   `json:"annual_om"`
	PaybackYears        float64   `json:"payback_years"`
	CashflowPaybackYr   int       `json:"cashflow_payback_year,omitempty"`
	NPV25Yr             float64   `json:"npv_25yr"`
	LifetimeMWh         float64   `json:"lifetime_mwh"`
	YearlyGenerationMWh []float64 `json:"yearly_generation_mwh,omitempty"`

	// Environmental
	CO2AvoidedTons         float64 `json:"co2_avoided_tons"`
	CO2AvoidedLifetimeTons float64 `json:"co2_avoided_lifetime_tons"`
	HomesPowered           float64 `json:"homes_powered"`
	CO2RateKgKWh           float64 `json:"co2_rate_kg_kwh"`
}

// Compute runs the full solar model for one roof area. It is a pure
// function of its inputs: identical inputs always produce identical
// output. Degenerate inputs (area or capacity factor <= 0) yield all-zero
// metrics with the payback sentinel, never an error — a building too
// small to matter is a valid, uninteresting result.
func Compute(areaM2, capacityFactor, co2RateKgKWh float64, p Params) Estimate {
	if areaM2 <= 0 || capacityFactor <= 0 {
		return Estimate{
			CapacityFactor: math.Max(capacityFactor, 0),
			CO2RateKgKWh:   co2RateKgKWh,
			PaybackYears:   PaybackSentinelYears,
		}
	}

	// Generation.
	usable := areaM2 * p.UsableFraction
	capacityKW := usable * p.PanelEfficiencyWM2 / 1000
	annualKWhYr1 := capacityKW * HoursPerYear * capacityFactor

	// Costs.
	grossCost := capacityKW * 1000 * CostPerWattUSD
	itcSavings := 0.0
	if p.IncludeITC {
		itcSavings = grossCost * ITCRate
	}
	installCost := grossCost - itcSavings
	annualOM := capacityKW * OMUSDPerKWYear

	// Year-1 cash flow.
	annualRevenue := annualKWhYr1 * p.ElectricityPriceUSDKWh
	netAnnual := annualRevenue - annualOM

	payback := PaybackSentinelYears
	if netAnnual > 0 {
		payback = installCost / netAnnual
		if !isFinite(payback) {
			payback = PaybackSentinelYears
		}
	}

	// Lifetime model with degradation, discounting, and cumulative
	// cash flow for the payback-year marker.
	npv := -installCost
	cumulativeKWh := 0.0
	cumulativeCashflow := -installCost
	cashflowPaybackYr := 0
	yearly := make([]float64, 0, LifetimeYears)

	for year := 1; year <= LifetimeYears; year++ {
		degradation := math.Pow(1-DegradationRatePerYear, float64(year-1))
		yearKWh := annualKWhYr1 * degradation
		yearCashflow := yearKWh*p.ElectricityPriceUSDKWh - annualOM

		npv += yearCashflow / math.Pow(1+DiscountRate, float64(year))
		cumulativeKWh += yearKWh
		cumulativeCashflow += yearCashflow

		if cashflowPaybackYr == 0 && cumulativeCashflow >= 0 {
			cashflowPaybackYr = year
		}
		yearly = append(yearly, yearKWh/1000)
	}

	return Estimate{
		UsableAreaM2:   usable,
		CapacityKW:     capacityKW,
		CapacityMW:     capacityKW / 1000,
		AnnualKWh:      annualKWhYr1,
		AnnualMWh:      annualKWhYr1 / 1000,
		CapacityFactor: capacityFactor,

		AnnualRevenue:       annualRevenue,
		GrossInstallCost:    grossCost,
		ITCSavings:          itcSavings,
		InstallCost:         installCost,
		AnnualOM:            annualOM,
		PaybackYears:        payback,
		CashflowPaybackYr:   cashflowPaybackYr,
		NPV25Yr:             npv,
		LifetimeMWh:         cumulativeKWh / 1000,
		YearlyGenerationMWh: yearly,

		CO2AvoidedTons:         annualKWhYr1 * co2RateKgKWh / 1000,
		CO2AvoidedLifetimeTons: cumulativeKWh * co2RateKgKWh / 1000,
		HomesPowered:           annualKWhYr1 / HomeAnnualKWh,
		CO2RateKgKWh:           co2RateKgKWh,
	}
}

// Rounded returns a presentation copy with the rounding policy of the
// original report format: areas and capacity to 0.1, dollar amounts and
// kWh to whole units, payback to 0.1 years.
func (e Estimate) Rounded() Estimate {
	e.UsableAreaM2 = round1(e.UsableAreaM2)
	e.CapacityKW = round1(e.CapacityKW)
	e.CapacityMW = round3(e.CapacityMW)
	e.AnnualKWh = math.Round(e.AnnualKWh)
	e.AnnualMWh = round1(e.AnnualMWh)

	e.AnnualRevenue = math.Round(e.AnnualRevenue)
	e.GrossInstallCost = math.Round(e.GrossInstallCost)
	e.ITCSavings = math.Round(e.ITCSavings)
	e.InstallCost = math.Round(e.InstallCost)
	e.AnnualOM = math.Round(e.AnnualOM)
	e.PaybackYears = round1(e.PaybackYears)
	e.NPV25Yr = math.Round(e.NPV25Yr)
	e.LifetimeMWh = math.Round(e.LifetimeMWh)

	rounded := make([]float64, len(e.YearlyGenerationMWh))
	for i, v := range e.YearlyGenerationMWh {
		rounded[i] = round1(v)
	}
	e.YearlyGenerationMWh = rounded

	e.CO2AvoidedTons = round1(e.CO2AvoidedTons)
	e.CO2AvoidedLifetimeTons = math.Round(e.CO2AvoidedLifetimeTons)
	e.HomesPowered = math.Round(e.HomesPowered)
	return e
}

// Clone copies the estimate including its yearly generation curve.
func (e Estimate) Clone() Estimate {
	out := e
	out.YearlyGenerationMWh = append([]float64(nil), e.YearlyGenerationMWh...)
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
