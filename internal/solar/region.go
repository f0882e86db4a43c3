package solar

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultCapacityFactor is the US mean AC capacity factor for commercial
// rooftop PV (NREL 2023 ATB), used for states missing from the table.
const DefaultCapacityFactor = 0.158

// DefaultCO2RateKgPerKWh is the US average grid CO2 intensity
// (EPA eGRID 2022), used for states missing from the table.
const DefaultCO2RateKgPerKWh = 0.386

// Regions holds the read-only per-state solar resource and grid emission
// tables. It is injected into the resolver rather than accessed globally
// so tests can substitute fixtures.
type Regions struct {
	CapacityFactors map[string]float64 `yaml:"capacity_factors"`
	CO2Rates        map[string]float64 `yaml:"co2_rates_kg_per_kwh"`
}

// CapacityFactor returns the capacity factor for a state, falling back
// to the US mean for unknown states.
func (r Regions) CapacityFactor(state string) float64 {
	if cf, ok := r.CapacityFactors[state]; ok {
		return cf
	}
	return DefaultCapacityFactor
}

// CO2Rate returns the grid CO2 intensity in kg/kWh for a state, falling
// back to the US average for unknown states.
func (r Regions) CO2Rate(state string) float64 {
	if rate, ok := r.CO2Rates[state]; ok {
		return rate
	}
	return DefaultCO2RateKgPerKWh
}

// DefaultRegions returns the built-in NREL 2023 ATB capacity factors and
// EPA eGRID 2022 CO2 rates by state. Capacity factors are AC values for
// commercial rooftop PV with ~14% system losses included.
func DefaultRegions() Regions {
	return Regions{
		CapacityFactors: map[string]float64{
			// Sunny Southwest (GHI > 5.5)
			"Arizona":    0.198,
			"Nevada":     0.191,
			"New Mexico": 0.198,

			"California": 0.185,

			// Texas & South
			"Texas":     0.175,
			"Florida":   0.171,
			"Louisiana": 0.168,
			"Hawaii":    0.180,

			// Mountain West
			"Colorado": 0.171,
			"Utah":     0.175,

			// Southeast
			"Georgia":        0.168,
			"North Carolina": 0.163,
			"South Carolina": 0.168,
			"Tennessee":      0.161,
			"Alabama":        0.168,

			// Mid-Atlantic
			"Virginia":     0.161,
			"Maryland":     0.158,
			"New Jersey":   0.158,
			"Pennsylvania": 0.153,
			"Delaware":     0.158,

			// Northeast
			"New York":      0.153,
			"Massachusetts": 0.153,
			"Connecticut":   0.153,
			"Rhode Island":  0.153,

			// Midwest
			"Illinois":  0.153,
			"Michigan":  0.146,
			"Minnesota": 0.153,
			"Ohio":      0.146,
			"Indiana":   0.153,
			"Wisconsin": 0.146,

			// Pacific Northwest (low GHI)
			"Washington": 0.140,
			"Oregon":     0.146,
		},
		CO2Rates: map[string]float64{
			"Arizona":        0.397,
			"California":     0.211,
			"Colorado":       0.525,
			"Florida":        0.379,
			"Georgia":        0.404,
			"Hawaii":         0.531,
			"Illinois":       0.301,
			"Maryland":       0.297,
			"Massachusetts":  0.270,
			"Michigan":       0.428,
			"Minnesota":      0.351,
			"Nevada":         0.307,
			"New Jersey":     0.217,
			"New York":       0.190,
			"North Carolina": 0.343,
			"Ohio":           0.489,
			"Pennsylvania":   0.336,
			"Tennessee":      0.302,
			"Texas":          0.380,
			"Virginia":       0.298,
			"Washington":     0.076,
		},
	}
}

// LoadRegions reads a YAML regions file and merges it over the built-in
// tables. A missing path returns the defaults unchanged.
func LoadRegions(path string) (Regions, error) {
	base := DefaultRegions()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return Regions{}, eris.Wrapf(err, "solar: read regions file %s", path)
	}

	var override Regions
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Regions{}, eris.Wrapf(err, "solar: parse regions file %s", path)
	}

	for state, cf := range override.CapacityFactors {
		base.CapacityFactors[state] = cf
	}
	for state, rate := range override.CO2Rates {
		base.CO2Rates[state] = rate
	}
	return base, nil
}
