package evolve

import (
	"context"
	"fmt"
	"time"

	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Rationale and confidence thresholds.
const (
	highTariff         = 0.20 // currency/kWh
	lowGridReliability = 0.80
	confidenceMin      = 0.30
	confidenceMax      = 0.98
	stabilityWindow    = 5
)

// GenerateControlDecision advances the optimizer by exactly one generation
// and packages the retained best solution as an immutable Decision with a
// rule-based rationale and a confidence score.
func (o *Optimizer) GenerateControlDecision(scn models.Scenario, sv models.StateVector) models.Decision {
	o.mu.Lock()
	o.step(scn, sv)
	best := *o.best
	cleanScn, _ := sanitizeScenario(scn)
	confidence := o.confidence(best)
	o.mu.Unlock()

	pred := o.eval.model.Predict(surrogate.Input{
		Current:       best.CurrentSetpoint,
		GridRatio:     best.GridRatio,
		PVRatio:       best.PVRatio,
		ResourceLevel: sv.ResourceLevel,
		Tariff:        cleanScn.Tariff,
		Forecast:      cleanScn.Forecast,
	})

	decision := models.Decision{
		ID:                 utils.GenerateDecisionID(),
		OptimalCurrent:     utils.Round(best.CurrentSetpoint, 2),
		GridRatio:          utils.Round(best.GridRatio, 4),
		PVRatio:            utils.Round(best.PVRatio, 4),
		ExpectedProduction: utils.Round(pred.ProductionRate, 2),
		Fitness:            best.Fitness,
		Cost:               -best.Fitness, // negated formulation for cost-oriented consumers
		Confidence:         confidence,
		Reasoning:          o.buildRationale(best, pred, cleanScn),
		Strategy:           o.cfg.Preset,
		Timestamp:          time.Now(),
	}

	o.snapMu.Lock()
	snapshot := decision
	o.lastDecision = &snapshot
	o.snapMu.Unlock()

	return decision
}

// DecideWithTimeout runs GenerateControlDecision, falling back to the last
// known decision if the context deadline expires first. A generation step is
// short and bounded, so the step itself is never interrupted; only the call
// is abandoned.
func (o *Optimizer) DecideWithTimeout(ctx context.Context, scn models.Scenario, sv models.StateVector) models.Decision {
	done := make(chan models.Decision, 1)
	go func() {
		done <- o.GenerateControlDecision(scn, sv)
	}()

	select {
	case d := <-done:
		return d
	case <-ctx.Done():
		return o.fallbackDecision(sv)
	}
}

// fallbackDecision reuses the last published decision with reduced
// confidence, or synthesizes a conservative midpoint decision if none
// exists yet.
func (o *Optimizer) fallbackDecision(sv models.StateVector) models.Decision {
	o.snapMu.Lock()
	last := o.lastDecision
	o.snapMu.Unlock()

	if last != nil {
		d := *last
		d.ID = utils.GenerateDecisionID()
		d.Confidence = utils.ClampFloat64(d.Confidence*0.7, confidenceMin, confidenceMax)
		d.Reasoning = append(append([]string{}, d.Reasoning...),
			"optimization deadline exceeded; reusing last best solution")
		d.Timestamp = time.Now()
		return d
	}

	mid := (o.cfg.CurrentMin + o.cfg.CurrentMax) / 2
	pred := o.eval.model.Predict(surrogate.Input{
		Current:       mid,
		GridRatio:     0.5,
		PVRatio:       0.5,
		ResourceLevel: sv.ResourceLevel,
	})
	return models.Decision{
		ID:                 utils.GenerateDecisionID(),
		OptimalCurrent:     mid,
		GridRatio:          0.5,
		PVRatio:            0.5,
		ExpectedProduction: utils.Round(pred.ProductionRate, 2),
		Confidence:         confidenceMin,
		Reasoning:          []string{"optimization deadline exceeded before any solution was found; holding midpoint setpoint"},
		Strategy:           o.cfg.Preset,
		Timestamp:          time.Now(),
	}
}

// confidence derives a score from recent best-fitness stability and the
// current constraint-violation count, bounded to a plausible range.
// Callers must hold o.mu.
func (o *Optimizer) confidence(best Candidate) float64 {
	recent := o.history
	if len(recent) > stabilityWindow {
		recent = recent[len(recent)-stabilityWindow:]
	}
	values := make([]float64, len(recent))
	for i, r := range recent {
		values[i] = r.BestFitness
	}

	conf := 0.9
	if len(values) >= 2 {
		mean := utils.Mean(values)
		denom := mean
		if denom < 0 {
			denom = -denom
		}
		if denom < 1e-9 {
			denom = 1e-9
		}
		conf -= 2 * (utils.StdDev(values) / denom)
	} else {
		// not enough history to judge stability yet
		conf = 0.6
	}
	conf -= 0.05 * float64(best.ConstraintsViolated)

	return utils.ClampFloat64(conf, confidenceMin, confidenceMax)
}

// buildRationale compares the scenario against fixed thresholds and emits
// human-readable reasoning strings for the published decision.
func (o *Optimizer) buildRationale(best Candidate, pred surrogate.Prediction, scn models.Scenario) []string {
	reasons := make([]string, 0, 4)

	if scn.Tariff > highTariff {
		reasons = append(reasons, fmt.Sprintf(
			"grid tariff %.3f/kWh above %.2f threshold; shifting %.0f%% of load to renewables",
			scn.Tariff, highTariff, best.PVRatio*100))
	} else {
		reasons = append(reasons, fmt.Sprintf(
			"grid tariff %.3f/kWh acceptable; grid share %.0f%%",
			scn.Tariff, best.GridRatio*100))
	}

	powerKW := o.eval.model.PowerDrawKW(best.CurrentSetpoint)
	if scn.SolarAvailable >= powerKW*best.PVRatio {
		reasons = append(reasons, fmt.Sprintf(
			"renewable supply %.1f kW covers the planned %.1f kW PV draw",
			scn.SolarAvailable, powerKW*best.PVRatio))
	} else {
		reasons = append(reasons, fmt.Sprintf(
			"renewable supply %.1f kW short of planned PV draw; grid makes up the balance",
			scn.SolarAvailable))
	}

	if scn.GridReliability < lowGridReliability {
		reasons = append(reasons, fmt.Sprintf(
			"grid reliability %.2f below %.2f; limiting grid dependence",
			scn.GridReliability, lowGridReliability))
	}

	if scn.Demand > 0 {
		if pred.ProductionRate >= scn.Demand {
			reasons = append(reasons, fmt.Sprintf(
				"predicted production %.1f L/min meets demand %.1f L/min",
				pred.ProductionRate, scn.Demand))
		} else {
			reasons = append(reasons, fmt.Sprintf(
				"predicted production %.1f L/min below demand %.1f L/min; setpoint at efficiency limit",
				pred.ProductionRate, scn.Demand))
		}
	}

	return reasons
}
