// Package refine implements the stochastic local-search refinement stage: a
// pure greedy hill climb around a warm-start guess. It never accepts a worse
// candidate, so the result is only as good as its starting point. That is
// why it is paired with the warm-start predictor.
package refine

import (
	"time"

	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/config"
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Cost tuning constants.
const (
	revenuePerL        = 0.07  // combined O2 + byproduct revenue, currency/L
	purityPenaltyScale = 0.5   // quadratic slope below the purity floor
	pvCostDefault      = 0.04  // currency/kWh when no economics are configured
	strategyName       = "local_refinement"
)

// Config holds the refinement parameters.
type Config struct {
	Iterations       int
	CurrentStep      float64 // A, perturbation width
	RatioStep        float64
	CurrentMin       float64
	CurrentMax       float64
	PurityFloor      float64
	SmoothnessWeight float64
	PVCost           float64
}

// FromConfig derives a refiner Config from the loaded controller config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Iterations:       cfg.Refine.Iterations,
		CurrentStep:      cfg.Refine.CurrentStep,
		RatioStep:        cfg.Refine.RatioStep,
		CurrentMin:       cfg.Bounds.CurrentMin,
		CurrentMax:       cfg.Bounds.CurrentMax,
		PurityFloor:      cfg.Refine.PurityFloor,
		SmoothnessWeight: cfg.Refine.SmoothnessWeight,
		PVCost:           cfg.Economics.PVCost,
	}
}

// Refiner perturbs a control guess to minimize the surrogate-derived cost.
type Refiner struct {
	cfg   Config
	model *surrogate.Model
	rng   *utils.RandSource
}

// NewRefiner creates a refiner with an injected surrogate and random source.
func NewRefiner(cfg Config, model *surrogate.Model, rng *utils.RandSource) *Refiner {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 150
	}
	if cfg.PVCost <= 0 {
		cfg.PVCost = pvCostDefault
	}
	return &Refiner{cfg: cfg, model: model, rng: rng}
}

// Refine hill-climbs from the initial guess for a fixed number of
// iterations: perturb, clamp, evaluate, accept only strictly better. The
// returned decision's cost is never worse than the cost of the guess.
func (r *Refiner) Refine(sv models.StateVector, guess models.ControlGuess) models.Decision {
	bestCurrent := utils.ClampFloat64(guess.Current, r.cfg.CurrentMin, r.cfg.CurrentMax)
	bestRatio := utils.ClampFloat64(guess.GridRatio, 0, 1)
	bestCost := r.Cost(sv, bestCurrent, bestRatio)

	for i := 0; i < r.cfg.Iterations; i++ {
		current := utils.ClampFloat64(
			bestCurrent+r.rng.JitterFloat64(r.cfg.CurrentStep),
			r.cfg.CurrentMin, r.cfg.CurrentMax)
		ratio := utils.ClampFloat64(
			bestRatio+r.rng.JitterFloat64(r.cfg.RatioStep),
			0, 1)

		cost := r.Cost(sv, current, ratio)
		if cost < bestCost {
			bestCurrent, bestRatio, bestCost = current, ratio, cost
		}
	}

	pred := r.predict(sv, bestCurrent, bestRatio)
	return models.Decision{
		ID:                 utils.GenerateDecisionID(),
		OptimalCurrent:     utils.Round(bestCurrent, 2),
		GridRatio:          utils.Round(bestRatio, 4),
		PVRatio:            utils.Round(1-bestRatio, 4),
		ExpectedProduction: utils.Round(pred.ProductionRate, 2),
		Cost:               bestCost,
		Fitness:            -bestCost,
		Confidence:         0.7, // single-shot correction, no convergence history to judge
		Reasoning: []string{
			"stochastic local refinement around warm-start guess",
		},
		Strategy:  strategyName,
		Timestamp: time.Now(),
	}
}

// Cost is the minimization objective: energy cost minus revenue, plus a
// steep quadratic purity penalty and a smoothness penalty on deviation from
// the previously applied current.
func (r *Refiner) Cost(sv models.StateVector, current, gridRatio float64) float64 {
	pvRatio := 1 - gridRatio
	pred := r.predict(sv, current, gridRatio)

	powerKW := r.model.PowerDrawKW(current)
	energyCost := powerKW * (gridRatio*sv.Tariff + pvRatio*r.cfg.PVCost) / 60

	revenue := pred.ProductionRate * revenuePerL

	purityPenalty := 0.0
	if pred.Purity < r.cfg.PurityFloor {
		short := r.cfg.PurityFloor - pred.Purity
		purityPenalty = purityPenaltyScale * short * short
	}

	smoothness := 0.0
	if sv.Current > 0 {
		delta := current - sv.Current
		smoothness = r.cfg.SmoothnessWeight * delta * delta / 100
	}

	return energyCost - revenue + purityPenalty + smoothness
}

func (r *Refiner) predict(sv models.StateVector, current, gridRatio float64) surrogate.Prediction {
	return r.model.Predict(surrogate.Input{
		Current:       current,
		GridRatio:     gridRatio,
		PVRatio:       1 - gridRatio,
		ResourceLevel: sv.ResourceLevel,
		Tariff:        sv.Tariff,
		Forecast:      sv.RenewableForecast,
	})
}
