package evolve

import (
	"math"

	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/config"
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Weights is the multi-objective weight vector. Each preset sums to 1.
type Weights struct {
	Economic       float64
	Reliability    float64
	Efficiency     float64
	Sustainability float64
	Safety         float64
}

// Presets selectable through the controller configuration.
var presets = map[string]Weights{
	"economic":    {Economic: 0.40, Reliability: 0.15, Efficiency: 0.15, Sustainability: 0.15, Safety: 0.15},
	"reliability": {Economic: 0.15, Reliability: 0.40, Efficiency: 0.15, Sustainability: 0.15, Safety: 0.15},
	"efficiency":  {Economic: 0.15, Reliability: 0.15, Efficiency: 0.40, Sustainability: 0.15, Safety: 0.15},
}

// PresetWeights returns the weight vector for a named preset.
func PresetWeights(name string) (Weights, bool) {
	w, ok := presets[name]
	return w, ok
}

// Fitness tuning constants. Illustrative plant-study values, named so they
// can be read against the configuration defaults.
const (
	constraintPenalty = 10.0

	economicScale   = 10.0 // currency/min mapped onto the unit interval
	byproductFactor = 2.0  // L H2 per L O2 (stoichiometric)

	jumpPenaltyWeight = 0.3

	efficientBandLowA  = 90.0
	efficientBandHighA = 120.0
	bandFalloffA       = 30.0

	blendExtremeStart = 0.35 // |grid-0.5| where the safety blend penalty starts
	blendExtremeWidth = 0.15

	defaultTariff = 0.15 // substituted for malformed tariff inputs
)

// sanitizeScenario clamps malformed scenario fields to documented defaults
// and returns how many fields were out of contract. The count feeds the
// constraint penalty of every candidate evaluated against this scenario, so
// bad inputs degrade fitness instead of aborting the generation step.
func sanitizeScenario(scn models.Scenario) (models.Scenario, int) {
	violations := 0

	if !utils.IsFinite(scn.Demand) || scn.Demand < 0 {
		scn.Demand = 0
		violations++
	}
	if !utils.IsFinite(scn.Tariff) || scn.Tariff < 0 {
		scn.Tariff = defaultTariff
		violations++
	}
	if !utils.IsFinite(scn.SolarAvailable) || scn.SolarAvailable < 0 {
		scn.SolarAvailable = 0
		violations++
	}
	if !utils.IsFinite(scn.GridReliability) || scn.GridReliability < 0 || scn.GridReliability > 1 {
		scn.GridReliability = utils.ClampFloat64(scn.GridReliability, 0, 1)
		if !utils.IsFinite(scn.GridReliability) {
			scn.GridReliability = 1
		}
		violations++
	}

	return scn, violations
}

// evaluator computes the weighted multi-objective fitness of candidates.
type evaluator struct {
	model      *surrogate.Model
	econ       config.Economics
	weights    Weights
	currentMin float64
	currentMax float64
}

// evaluate scores one candidate against a sanitized scenario. prevCurrent is
// the setpoint of the previous generation's best, used for the jump penalty.
func (e *evaluator) evaluate(c *Candidate, scn models.Scenario, sv models.StateVector, scenarioViolations int, prevCurrent float64) {
	pred := e.model.Predict(surrogate.Input{
		Current:       c.CurrentSetpoint,
		GridRatio:     c.GridRatio,
		PVRatio:       c.PVRatio,
		ResourceLevel: sv.ResourceLevel,
		Tariff:        scn.Tariff,
		Forecast:      scn.Forecast,
	})

	violations := scenarioViolations + e.countViolations(c, pred)

	economic := e.economicScore(c, pred, scn)
	reliability := e.reliabilityScore(c, pred, scn, prevCurrent)
	efficiency := e.efficiencyScore(c, scn)
	sustainability := e.sustainabilityScore(c)
	safety := e.safetyScore(c)

	w := e.weights
	c.Fitness = w.Economic*economic +
		w.Reliability*reliability +
		w.Efficiency*efficiency +
		w.Sustainability*sustainability +
		w.Safety*safety -
		constraintPenalty*float64(violations)
	c.ConstraintsViolated = violations
}

// countViolations checks the hard operating constraints. Violating
// candidates are penalized, not discarded, to keep population diversity.
func (e *evaluator) countViolations(c *Candidate, pred surrogate.Prediction) int {
	violations := 0
	if c.CurrentSetpoint < e.currentMin || c.CurrentSetpoint > e.currentMax {
		violations++
	}
	if c.GridRatio < 0 || c.GridRatio > 1 {
		violations++
	}
	if c.PVRatio < 0 || c.PVRatio > 1 {
		violations++
	}
	if math.Abs(c.GridRatio+c.PVRatio-1) > ratioTolerance {
		violations++
	}
	if pred.ProductionRate < 0 {
		violations++
	}
	return violations
}

// economicScore maps per-minute profit onto [0,1], with 0.5 at break-even.
func (e *evaluator) economicScore(c *Candidate, pred surrogate.Prediction, scn models.Scenario) float64 {
	oxygenRevenue := pred.ProductionRate * e.econ.OxygenPrice
	byproductRevenue := pred.ProductionRate * byproductFactor * e.econ.ByproductPrice

	powerKW := e.model.PowerDrawKW(c.CurrentSetpoint)
	blendPrice := c.GridRatio*scn.Tariff + c.PVRatio*e.econ.PVCost
	energyCost := powerKW * blendPrice / 60 // currency/min

	profit := oxygenRevenue + byproductRevenue - energyCost - e.econ.OperationalCost/60

	return utils.ClampFloat64(0.5+profit/economicScale, 0, 1)
}

// reliabilityScore rewards meeting demand, penalizes grid dependence when
// the grid is unreliable, and discourages large setpoint jumps.
func (e *evaluator) reliabilityScore(c *Candidate, pred surrogate.Prediction, scn models.Scenario, prevCurrent float64) float64 {
	demandScore := 1.0
	if scn.Demand > 0 {
		demandScore = utils.ClampFloat64(pred.ProductionRate/scn.Demand, 0, 1)
	}

	gridExposure := c.GridRatio * (1 - scn.GridReliability)

	jump := 0.0
	span := e.currentMax - e.currentMin
	if span > 0 && utils.IsFinite(prevCurrent) && prevCurrent > 0 {
		jump = math.Abs(c.CurrentSetpoint-prevCurrent) / span
	}

	score := 0.5*demandScore + 0.5*(1-gridExposure) - jumpPenaltyWeight*jump
	return utils.ClampFloat64(score, 0, 1)
}

// efficiencyScore rewards matching the renewable share the available solar
// power could actually carry, and operating inside the efficient band.
func (e *evaluator) efficiencyScore(c *Candidate, scn models.Scenario) float64 {
	supportable := 1.0
	powerKW := e.model.PowerDrawKW(c.CurrentSetpoint)
	if powerKW > 0 {
		supportable = utils.ClampFloat64(scn.SolarAvailable/powerKW, 0, 1)
	}
	match := 1 - math.Abs(c.PVRatio-supportable)

	band := 1.0
	switch {
	case c.CurrentSetpoint < efficientBandLowA:
		band = 1 - (efficientBandLowA-c.CurrentSetpoint)/bandFalloffA
	case c.CurrentSetpoint > efficientBandHighA:
		band = 1 - (c.CurrentSetpoint-efficientBandHighA)/bandFalloffA
	}
	band = utils.ClampFloat64(band, 0, 1)

	return utils.ClampFloat64(0.6*match+0.4*band, 0, 1)
}

// sustainabilityScore is 1 minus emissions relative to the all-grid worst
// case, using the configured per-source emission factors.
func (e *evaluator) sustainabilityScore(c *Candidate) float64 {
	gridEF := e.econ.GridEmissionFactor
	pvEF := e.econ.PVEmissionFactor
	if gridEF <= 0 {
		return 1
	}
	emissionRate := c.GridRatio*gridEF + c.PVRatio*pvEF
	return utils.ClampFloat64(1-emissionRate/gridEF, 0, 1)
}

// safetyScore penalizes operation near the current bounds and extreme power
// blends.
func (e *evaluator) safetyScore(c *Candidate) float64 {
	span := e.currentMax - e.currentMin
	margin := 1.0
	if span > 0 {
		edge := math.Min(c.CurrentSetpoint-e.currentMin, e.currentMax-c.CurrentSetpoint)
		margin = utils.ClampFloat64(edge/(span/2), 0, 1)
	}

	extremity := math.Abs(c.GridRatio - 0.5)
	blend := 1 - utils.ClampFloat64((extremity-blendExtremeStart)/blendExtremeWidth, 0, 1)

	return utils.ClampFloat64(0.7*margin+0.3*blend, 0, 1)
}
