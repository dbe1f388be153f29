package compare

import (
	"errors"

	"github.com/voltaic-sim/control-core/internal/evolve"
	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// ErrNonFiniteTariff is returned by tariff-aware strategies when the
// scenario's tariff is NaN or infinite.
var ErrNonFiniteTariff = errors.New("tariff is not finite")

// Reference is the target the strategies steer toward.
type Reference struct {
	Target float64 // desired current setpoint (A)
}

// Constraints bound the control action.
type Constraints struct {
	MinCurrent float64
	MaxCurrent float64
}

// Action is a decision-like record each strategy produces. Robustness is an
// optional variant-reported metric; when reported it overrides the
// comparator's own robustness estimate.
type Action struct {
	Control            float64 // A
	GridRatio          float64 // 0..1
	Cost               float64
	Robustness         float64
	RobustnessReported bool
}

// Strategy is the single capability every compared controller exposes. The
// set of strategies is closed and registered explicitly at construction;
// there is no string-keyed lookup at runtime.
type Strategy interface {
	Name() string
	ComputeControl(scn models.Scenario, ref Reference, cons Constraints) (Action, error)
}

// EvolutionaryStrategy adapts the population-based optimizer to the
// comparator capability. Each invocation advances the optimizer by one
// generation against the shared scenario.
type EvolutionaryStrategy struct {
	opt           *evolve.Optimizer
	resourceLevel float64
}

// NewEvolutionaryStrategy wraps an optimizer. resourceLevel is the assumed
// stored-resource level for comparator runs, which have no live plant state.
func NewEvolutionaryStrategy(opt *evolve.Optimizer, resourceLevel float64) *EvolutionaryStrategy {
	return &EvolutionaryStrategy{opt: opt, resourceLevel: resourceLevel}
}

func (s *EvolutionaryStrategy) Name() string { return "evolutionary" }

func (s *EvolutionaryStrategy) ComputeControl(scn models.Scenario, ref Reference, cons Constraints) (Action, error) {
	sv := models.StateVector{
		Current:           ref.Target,
		ResourceLevel:     s.resourceLevel,
		GridRatio:         0.5,
		PVRatio:           0.5,
		Tariff:            scn.Tariff,
		RenewableForecast: scn.Forecast,
	}
	d := s.opt.GenerateControlDecision(scn, sv)
	return Action{
		Control:   utils.ClampFloat64(d.OptimalCurrent, cons.MinCurrent, cons.MaxCurrent),
		GridRatio: d.GridRatio,
		Cost:      d.Cost,
	}, nil
}

// ProportionalStrategy is a first-order feedback law: it moves a fraction of
// the way from its last output toward the reference each call.
type ProportionalStrategy struct {
	Gain float64 // 0..1
	last float64
}

func NewProportionalStrategy(gain float64) *ProportionalStrategy {
	return &ProportionalStrategy{Gain: utils.ClampFloat64(gain, 0, 1)}
}

func (s *ProportionalStrategy) Name() string { return "proportional" }

func (s *ProportionalStrategy) ComputeControl(scn models.Scenario, ref Reference, cons Constraints) (Action, error) {
	if s.last == 0 {
		s.last = (cons.MinCurrent + cons.MaxCurrent) / 2
	}
	control := s.last + s.Gain*(ref.Target-s.last)
	control = utils.ClampFloat64(control, cons.MinCurrent, cons.MaxCurrent)
	s.last = control

	// lean on the grid only as much as the renewables fall short
	grid := 1 - renewableShare(scn, control)
	return Action{Control: control, GridRatio: grid}, nil
}

// TariffEconomizerStrategy backs off to the efficient band and renewable
// supply when the tariff is high, and tracks the reference on cheap power.
type TariffEconomizerStrategy struct {
	HighTariff float64
	model      *surrogate.Model
}

func NewTariffEconomizerStrategy(model *surrogate.Model, highTariff float64) *TariffEconomizerStrategy {
	return &TariffEconomizerStrategy{HighTariff: highTariff, model: model}
}

func (s *TariffEconomizerStrategy) Name() string { return "tariff_economizer" }

func (s *TariffEconomizerStrategy) ComputeControl(scn models.Scenario, ref Reference, cons Constraints) (Action, error) {
	if !utils.IsFinite(scn.Tariff) {
		return Action{}, ErrNonFiniteTariff
	}

	var control, grid float64
	if scn.Tariff > s.HighTariff {
		control = utils.ClampFloat64(ref.Target*0.85, cons.MinCurrent, cons.MaxCurrent)
		grid = 0.2
	} else {
		control = utils.ClampFloat64(ref.Target, cons.MinCurrent, cons.MaxCurrent)
		grid = 0.7
	}

	pred := s.model.Predict(surrogate.Input{Current: control, GridRatio: grid, PVRatio: 1 - grid, Tariff: scn.Tariff})
	power := s.model.PowerDrawKW(control)
	cost := power*(grid*scn.Tariff)/60 - pred.ProductionRate*0.05
	return Action{Control: control, GridRatio: grid, Cost: cost}, nil
}

// RenewableFollowerStrategy sizes the setpoint to what the available solar
// power can carry, importing from the grid only for the remainder.
type RenewableFollowerStrategy struct{}

func NewRenewableFollowerStrategy() *RenewableFollowerStrategy {
	return &RenewableFollowerStrategy{}
}

func (s *RenewableFollowerStrategy) Name() string { return "renewable_follower" }

func (s *RenewableFollowerStrategy) ComputeControl(scn models.Scenario, ref Reference, cons Constraints) (Action, error) {
	solarCurrent := scn.SolarAvailable / surrogate.PowerPerAmpKW
	control := utils.ClampFloat64(
		minFloat(ref.Target, solarCurrent*1.25), // allow modest grid top-up
		cons.MinCurrent, cons.MaxCurrent)
	grid := 1 - renewableShare(scn, control)
	return Action{Control: control, GridRatio: grid}, nil
}

// FixedSetpointStrategy is the do-nothing baseline: midpoint setpoint and a
// balanced blend, regardless of the scenario. It self-reports high
// robustness because it cannot be destabilized.
type FixedSetpointStrategy struct{}

func NewFixedSetpointStrategy() *FixedSetpointStrategy {
	return &FixedSetpointStrategy{}
}

func (s *FixedSetpointStrategy) Name() string { return "fixed_setpoint" }

func (s *FixedSetpointStrategy) ComputeControl(scn models.Scenario, ref Reference, cons Constraints) (Action, error) {
	return Action{
		Control:            (cons.MinCurrent + cons.MaxCurrent) / 2,
		GridRatio:          0.5,
		Robustness:         0.9,
		RobustnessReported: true,
	}, nil
}

// renewableShare is the fraction of the stack draw the available solar
// power can carry at the given current.
func renewableShare(scn models.Scenario, current float64) float64 {
	power := current * surrogate.PowerPerAmpKW
	if power <= 0 {
		return 1
	}
	return utils.ClampFloat64(scn.SolarAvailable/power, 0, 1)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
