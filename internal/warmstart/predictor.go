// Package warmstart produces an initial control guess from the current state
// vector. The guess seeds the evolutionary and local-refinement stages so
// they start near a sensible operating point instead of a random one.
package warmstart

import (
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Input normalization scales. Each state-vector field is divided by its
// scale before entering the first linear stage.
const (
	scaleCurrent  = 200.0 // A
	scaleResource = 100.0 // L
	scaleTariff   = 0.5   // currency/kWh
	scaleForecast = 100.0 // kW
)

// Bounds limit the emitted guess.
type Bounds struct {
	CurrentMin float64
	CurrentMax float64
}

// DefaultBounds matches the warm-start output contract.
func DefaultBounds() Bounds {
	return Bounds{CurrentMin: 50, CurrentMax: 200}
}

// Predictor maps a state vector to a control guess through a small
// normalize -> linear -> ReLU -> linear pipeline with fixed weights. When no
// weights are configured it degrades to a documented heuristic fallback.
type Predictor struct {
	w1     [][]float64 // hidden x 6
	b1     []float64
	w2     [][]float64 // 2 x hidden
	b2     []float64
	bounds Bounds
}

// NewPredictor creates a predictor with the baked-in parametric
// approximation of the trained warm-start model.
func NewPredictor(bounds Bounds) *Predictor {
	p := &Predictor{bounds: bounds}
	p.w1 = defaultW1
	p.b1 = defaultB1
	p.w2 = defaultW2
	p.b2 = defaultB2
	return p
}

// NewFallbackPredictor creates a predictor with no backing model. Predict
// then always returns the heuristic fallback guess.
func NewFallbackPredictor(bounds Bounds) *Predictor {
	return &Predictor{bounds: bounds}
}

// ModelBacked reports whether a weight set is configured. Callers lower the
// decision confidence when it is not.
func (p *Predictor) ModelBacked() bool {
	return len(p.w1) > 0
}

// Predict returns an initial control guess for the given state. The grid
// ratio is clamped to [0,1] and the current to the configured bounds. A
// predictor without weights returns the fallback guess: a balanced power
// blend and the midpoint of the valid current range.
func (p *Predictor) Predict(sv models.StateVector) models.ControlGuess {
	if !p.ModelBacked() {
		return p.fallback()
	}

	x := p.normalize(sv)

	hidden := make([]float64, len(p.w1))
	for i, row := range p.w1 {
		sum := p.b1[i]
		for j, w := range row {
			sum += w * x[j]
		}
		// rectifying nonlinearity between the two linear stages
		if sum < 0 {
			sum = 0
		}
		hidden[i] = sum
	}

	out := make([]float64, len(p.w2))
	for i, row := range p.w2 {
		sum := p.b2[i]
		for j, w := range row {
			sum += w * hidden[j]
		}
		out[i] = sum
	}

	guess := models.ControlGuess{
		GridRatio: utils.ClampFloat64(out[0], 0, 1),
		Current:   utils.ClampFloat64(out[1]*scaleCurrent, p.bounds.CurrentMin, p.bounds.CurrentMax),
	}
	return guess
}

func (p *Predictor) fallback() models.ControlGuess {
	return models.ControlGuess{
		GridRatio: 0.5,
		Current:   (p.bounds.CurrentMin + p.bounds.CurrentMax) / 2,
	}
}

func (p *Predictor) normalize(sv models.StateVector) [6]float64 {
	forecastMean := utils.Mean(sv.RenewableForecast)
	return [6]float64{
		safeDiv(sv.Current, scaleCurrent),
		safeDiv(sv.ResourceLevel, scaleResource),
		clamp01(sv.GridRatio),
		clamp01(sv.PVRatio),
		safeDiv(sv.Tariff, scaleTariff),
		safeDiv(forecastMean, scaleForecast),
	}
}

func safeDiv(v, scale float64) float64 {
	if !utils.IsFinite(v) {
		return 0
	}
	return v / scale
}

func clamp01(v float64) float64 {
	if !utils.IsFinite(v) {
		return 0
	}
	return utils.ClampFloat64(v, 0, 1)
}

// Fixed parametric approximation of the trained warm-start model. Hidden
// units roughly encode: tariff pressure, renewable surplus, resource
// headroom, and load carry-over.
var (
	defaultW1 = [][]float64{
		{0.10, 0.00, 0.20, -0.10, 1.40, -0.60},
		{-0.20, 0.10, -0.30, 0.40, -0.50, 1.60},
		{0.00, 1.20, 0.00, 0.00, -0.20, 0.30},
		{0.90, 0.20, 0.10, 0.10, 0.20, 0.40},
	}
	defaultB1 = []float64{0.05, 0.10, 0.00, 0.15}

	defaultW2 = [][]float64{
		// grid ratio: rises with tariff-pressure unit, falls with renewable surplus
		{0.55, -0.45, 0.05, 0.10},
		// normalized current: rises with resource headroom and load carry-over
		{-0.05, 0.10, 0.25, 0.45},
	}
	defaultB2 = []float64{0.45, 0.35}
)
