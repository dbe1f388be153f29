// Package surrogate provides a fast surrogate process model of the
// electrolyzer stack. It maps a control point and context to predicted plant
// outputs without touching any shared state, so optimizers can call it
// thousands of times per decision cycle.
package surrogate

import (
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Tuning constants of the surrogate. These are plant-study fit values kept
// as named constants rather than derived physical quantities.
const (
	// ConversionLPerAmp is the oxygen production slope: L/min produced per
	// ampere at unit efficiency.
	ConversionLPerAmp = 0.42

	// PowerPerAmpKW approximates stack power draw per ampere (cell voltage
	// times cell count, lumped).
	PowerPerAmpKW = 0.24

	baseEfficiency     = 0.92
	efficiencyDecay    = 0.0028 // per A above the soft threshold
	softCurrentA       = 110.0
	minEfficiency      = 0.65
	maxEfficiency      = 0.95
	basePurity         = 99.5
	purityFloor        = 90.0
	lowResourceL       = 30.0
	purityResourceLoss = 0.08 // % per L below the resource threshold
	highCurrentA       = 130.0
	purityCurrentLoss  = 0.05 // % per A above the high-current threshold
	baselineCurrentA   = 50.0
	ambientTempC       = 45.0
	tempRisePerAmp     = 0.25
)

// Input is one control+context point to evaluate.
type Input struct {
	Current       float64 // A
	GridRatio     float64 // 0..1
	PVRatio       float64 // 0..1
	ResourceLevel float64 // L
	Tariff        float64 // currency/kWh
	Forecast      []float64
}

// Prediction holds the predicted plant outputs for one input.
type Prediction struct {
	ProductionRate float64 // L/min O2
	Efficiency     float64 // 0..1
	Purity         float64 // %
	Temperature    float64 // degrees C
}

// Model is the surrogate process model. The zero value is not usable; use
// NewModel. An optional noise source adds bounded jitter to predictions;
// with a nil source the model is fully deterministic.
type Model struct {
	noise       *utils.RandSource
	jitterWidth float64 // relative, applied to production rate
}

// NewModel creates a deterministic surrogate model.
func NewModel() *Model {
	return &Model{}
}

// WithNoise enables bounded stochastic jitter drawn from the given source.
// The source must be dedicated to this model for reproducibility.
func (m *Model) WithNoise(rng *utils.RandSource, relativeWidth float64) *Model {
	m.noise = rng
	m.jitterWidth = relativeWidth
	return m
}

// Predict maps a control+context input to predicted plant outputs. Malformed
// inputs (non-finite or negative where impossible) are clamped to the nearest
// plausible value rather than rejected; a generation step must never fail on
// one bad candidate.
func (m *Model) Predict(in Input) Prediction {
	current := sanitize(in.Current, 0)
	if current < 0 {
		current = 0
	}
	resource := sanitize(in.ResourceLevel, 0)
	if resource < 0 {
		resource = 0
	}

	efficiency := baseEfficiency
	if current > softCurrentA {
		efficiency -= (current - softCurrentA) * efficiencyDecay
	}
	efficiency = utils.ClampFloat64(efficiency, minEfficiency, maxEfficiency)

	production := ConversionLPerAmp * current * efficiency
	if m.noise != nil && m.jitterWidth > 0 {
		production *= 1 + m.noise.JitterFloat64(m.jitterWidth)
	}
	if production < 0 {
		production = 0
	}

	purity := basePurity
	if resource < lowResourceL {
		purity -= (lowResourceL - resource) * purityResourceLoss
	}
	if current > highCurrentA {
		purity -= (current - highCurrentA) * purityCurrentLoss
	}
	purity = utils.ClampFloat64(purity, purityFloor, 100)

	temperature := ambientTempC
	if current > baselineCurrentA {
		temperature += (current - baselineCurrentA) * tempRisePerAmp
	}

	return Prediction{
		ProductionRate: production,
		Efficiency:     efficiency,
		Purity:         purity,
		Temperature:    temperature,
	}
}

// PowerDrawKW returns the lumped stack power draw for a given current.
func (m *Model) PowerDrawKW(current float64) float64 {
	current = sanitize(current, 0)
	if current < 0 {
		current = 0
	}
	return current * PowerPerAmpKW
}

func sanitize(v, fallback float64) float64 {
	if !utils.IsFinite(v) {
		return fallback
	}
	return v
}
