package models

import (
	"fmt"
	"math"
	"time"
)

// StateVector is the plant and environment snapshot handed to the control
// core once per decision cycle. The core reads it and never mutates it.
type StateVector struct {
	Current           float64   `json:"current"`            // applied electrolyzer current (A)
	ResourceLevel     float64   `json:"resource_level"`     // stored feed water (L)
	GridRatio         float64   `json:"grid_ratio"`         // grid share of the power blend, 0..1
	PVRatio           float64   `json:"pv_ratio"`           // renewable share, 1 - GridRatio
	Tariff            float64   `json:"tariff"`             // grid energy price (currency/kWh)
	RenewableForecast []float64 `json:"renewable_forecast"` // short-term renewable power forecast (kW)
}

// Scenario is a read-only capture of external conditions at decision time.
// It is an input to fitness and cost evaluation and is never mutated.
type Scenario struct {
	Demand          float64   `json:"demand"`           // oxygen demand (L/min)
	Tariff          float64   `json:"tariff"`           // grid energy price (currency/kWh)
	SolarAvailable  float64   `json:"solar_available"`  // renewable power on offer (kW)
	GridReliability float64   `json:"grid_reliability"` // 0..1
	Forecast        []float64 `json:"forecast"`         // renewable forecast sequence (kW)
}

// ControlGuess is an initial control point fed to a refinement stage.
type ControlGuess struct {
	Current   float64 `json:"current"`
	GridRatio float64 `json:"grid_ratio"`
}

// Decision is the sole externally observable artifact of an optimization
// call. It is created fresh per call and immutable after creation.
type Decision struct {
	ID                 string    `json:"id"`
	OptimalCurrent     float64   `json:"optimal_current"`
	GridRatio          float64   `json:"grid_ratio"`
	PVRatio            float64   `json:"pv_ratio"`
	ExpectedProduction float64   `json:"expected_production"`
	Fitness            float64   `json:"fitness"`
	Cost               float64   `json:"cost"`
	Confidence         float64   `json:"confidence"`
	Reasoning          []string  `json:"reasoning"`
	Strategy           string    `json:"strategy"`
	Timestamp          time.Time `json:"timestamp"`
}

// Flatten returns the decision as a flat key-value structure suitable for
// message payloads. Non-finite numbers are zeroed so the result always
// marshals cleanly.
func (d *Decision) Flatten() map[string]any {
	flat := map[string]any{
		"id":                  d.ID,
		"optimal_current":     finiteOrZero(d.OptimalCurrent),
		"grid_ratio":          finiteOrZero(d.GridRatio),
		"pv_ratio":            finiteOrZero(d.PVRatio),
		"expected_production": finiteOrZero(d.ExpectedProduction),
		"fitness":             finiteOrZero(d.Fitness),
		"cost":                finiteOrZero(d.Cost),
		"confidence":          finiteOrZero(d.Confidence),
		"strategy":            d.Strategy,
		"timestamp":           d.Timestamp.UTC().Format(time.RFC3339),
	}
	for i, r := range d.Reasoning {
		flat[fmt.Sprintf("reason_%d", i)] = r
	}
	return flat
}

// PerformanceRecord is one entry per optimization generation or comparator
// run. Histories holding these are bounded; oldest entries are evicted.
type PerformanceRecord struct {
	Generation  int           `json:"generation"`
	Timestamp   time.Time     `json:"timestamp"`
	BestFitness float64       `json:"best_fitness"`
	AvgFitness  float64       `json:"avg_fitness"`
	ComputeTime time.Duration `json:"compute_time"`
	Strategy    string        `json:"strategy"`
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
