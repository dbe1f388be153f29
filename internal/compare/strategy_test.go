package compare

import (
	"errors"
	"math"
	"testing"

	"github.com/voltaic-sim/control-core/internal/evolve"
	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/config"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

func TestProportionalStrategyConverges(t *testing.T) {
	s := NewProportionalStrategy(0.6)
	scn := compareScenario()
	cons := compareConstraints()
	ref := Reference{Target: 130}

	var last float64
	for i := 0; i < 20; i++ {
		action, err := s.ComputeControl(scn, ref, cons)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last = action.Control
	}
	if math.Abs(last-130) > 1 {
		t.Fatalf("proportional law should converge to the target, got %f", last)
	}
}

func TestTariffEconomizerBacksOffOnHighTariff(t *testing.T) {
	s := NewTariffEconomizerStrategy(surrogate.NewModel(), 0.20)
	cons := compareConstraints()
	ref := Reference{Target: 120}

	cheap := compareScenario()
	cheap.Tariff = 0.10
	expensive := compareScenario()
	expensive.Tariff = 0.30

	low, err := s.ComputeControl(cheap, ref, cons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high, err := s.ComputeControl(expensive, ref, cons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if high.Control >= low.Control {
		t.Fatalf("high tariff should back the setpoint off: %f >= %f", high.Control, low.Control)
	}
	if high.GridRatio >= low.GridRatio {
		t.Fatalf("high tariff should cut grid dependence: %f >= %f", high.GridRatio, low.GridRatio)
	}
}

func TestTariffEconomizerRejectsNonFiniteTariff(t *testing.T) {
	s := NewTariffEconomizerStrategy(surrogate.NewModel(), 0.20)

	scn := compareScenario()
	scn.Tariff = math.NaN()
	_, err := s.ComputeControl(scn, Reference{Target: 100}, compareConstraints())
	if !errors.Is(err, ErrNonFiniteTariff) {
		t.Fatalf("expected ErrNonFiniteTariff, got %v", err)
	}
}

func TestRenewableFollowerTracksSolar(t *testing.T) {
	s := NewRenewableFollowerStrategy()
	cons := compareConstraints()
	ref := Reference{Target: 150}

	dark := compareScenario()
	dark.SolarAvailable = 0
	sunny := compareScenario()
	sunny.SolarAvailable = 40

	nightAction, err := s.ComputeControl(dark, ref, cons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dayAction, err := s.ComputeControl(sunny, ref, cons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if nightAction.Control != cons.MinCurrent {
		t.Fatalf("no solar should pin the setpoint at the floor, got %f", nightAction.Control)
	}
	if dayAction.Control <= nightAction.Control {
		t.Fatalf("solar should raise the setpoint: %f <= %f", dayAction.Control, nightAction.Control)
	}
}

func TestFixedSetpointStrategy(t *testing.T) {
	s := NewFixedSetpointStrategy()

	action, err := s.ComputeControl(compareScenario(), Reference{Target: 140}, compareConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Control != 100 {
		t.Fatalf("expected midpoint regardless of reference, got %f", action.Control)
	}
	if !action.RobustnessReported || action.Robustness != 0.9 {
		t.Fatalf("expected self-reported robustness: %+v", action)
	}
}

func TestEvolutionaryStrategyRespectsConstraints(t *testing.T) {
	cfg := evolve.Config{
		PopulationSize:   12,
		TournamentSize:   3,
		CrossoverRate:    0.8,
		MutationRate:     0.15,
		CurrentMin:       50,
		CurrentMax:       150,
		HistoryRetention: 20,
		Preset:           "economic",
		Economics:        config.DefaultConfig().Economics,
	}
	opt, err := evolve.NewOptimizer(cfg, surrogate.NewModel(), utils.NewRandSource(42))
	if err != nil {
		t.Fatalf("NewOptimizer error: %v", err)
	}
	s := NewEvolutionaryStrategy(opt, 60)

	action, err := s.ComputeControl(compareScenario(), Reference{Target: 100}, compareConstraints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Control < 50 || action.Control > 150 {
		t.Fatalf("evolved setpoint out of constraints: %f", action.Control)
	}
	if action.GridRatio < 0 || action.GridRatio > 1 {
		t.Fatalf("evolved blend out of range: %f", action.GridRatio)
	}
}
