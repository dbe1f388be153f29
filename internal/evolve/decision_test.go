package evolve

import (
	"context"
	"strings"
	"testing"

	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

func TestGenerateControlDecision(t *testing.T) {
	opt := newTestOptimizer(t, 21)

	d := opt.GenerateControlDecision(testScenario(), testState())

	if d.ID == "" {
		t.Fatalf("decision ID must be set")
	}
	if d.OptimalCurrent < 50 || d.OptimalCurrent > 150 {
		t.Fatalf("optimal current out of bounds: %f", d.OptimalCurrent)
	}
	if d.GridRatio < 0 || d.GridRatio > 1 {
		t.Fatalf("grid ratio out of range: %f", d.GridRatio)
	}
	if sum := d.GridRatio + d.PVRatio; sum < 0.999 || sum > 1.001 {
		t.Fatalf("power blend does not sum to 1: %f", sum)
	}
	if d.Confidence < 0.30 || d.Confidence > 0.98 {
		t.Fatalf("confidence out of range: %f", d.Confidence)
	}
	if d.ExpectedProduction < 0 {
		t.Fatalf("negative expected production: %f", d.ExpectedProduction)
	}
	if d.Cost != -d.Fitness {
		t.Fatalf("cost must be negated fitness: %f vs %f", d.Cost, d.Fitness)
	}
	if len(d.Reasoning) == 0 {
		t.Fatalf("decision must carry a rationale")
	}
	if d.Strategy != "economic" {
		t.Fatalf("expected strategy economic, got %s", d.Strategy)
	}
	if d.Timestamp.IsZero() {
		t.Fatalf("timestamp must be set")
	}
}

func TestGenerateControlDecisionIDsAreUnique(t *testing.T) {
	opt := newTestOptimizer(t, 22)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		d := opt.GenerateControlDecision(testScenario(), testState())
		if seen[d.ID] {
			t.Fatalf("duplicate decision ID %s", d.ID)
		}
		seen[d.ID] = true
	}
}

func TestDecideWithTimeoutCompletes(t *testing.T) {
	opt := newTestOptimizer(t, 23)

	d := opt.DecideWithTimeout(context.Background(), testScenario(), testState())
	if d.ID == "" {
		t.Fatalf("expected a real decision with an open deadline")
	}
	for _, r := range d.Reasoning {
		if strings.Contains(r, "deadline exceeded") {
			t.Fatalf("unexpected fallback: %v", d.Reasoning)
		}
	}
}

// newSlowTestOptimizer uses a population large enough that a generation step
// cannot finish before an already-cancelled context is observed.
func newSlowTestOptimizer(t *testing.T, seed int64) *Optimizer {
	t.Helper()
	cfg := testOptimizerConfig()
	cfg.PopulationSize = 2000
	opt, err := NewOptimizer(cfg, surrogate.NewModel(), utils.NewRandSource(seed))
	if err != nil {
		t.Fatalf("NewOptimizer error: %v", err)
	}
	return opt
}

func TestDecideWithTimeoutFallsBackToMidpoint(t *testing.T) {
	opt := newSlowTestOptimizer(t, 24)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := opt.DecideWithTimeout(ctx, testScenario(), testState())

	if d.OptimalCurrent != 100 {
		t.Fatalf("expected midpoint fallback current, got %f", d.OptimalCurrent)
	}
	if d.Confidence != 0.30 {
		t.Fatalf("expected floor confidence, got %f", d.Confidence)
	}
	if len(d.Reasoning) == 0 || !strings.Contains(d.Reasoning[0], "deadline exceeded") {
		t.Fatalf("fallback rationale missing: %v", d.Reasoning)
	}
}

func TestDecideWithTimeoutReusesLastDecision(t *testing.T) {
	opt := newSlowTestOptimizer(t, 25)

	first := opt.GenerateControlDecision(testScenario(), testState())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fallback := opt.DecideWithTimeout(ctx, testScenario(), testState())

	if fallback.ID == first.ID {
		t.Fatalf("fallback must mint a fresh decision ID")
	}
	if fallback.OptimalCurrent != first.OptimalCurrent {
		t.Fatalf("fallback should reuse the last setpoint: %f vs %f", fallback.OptimalCurrent, first.OptimalCurrent)
	}
	if fallback.Confidence >= first.Confidence {
		t.Fatalf("fallback confidence should drop: %f >= %f", fallback.Confidence, first.Confidence)
	}
	last := fallback.Reasoning[len(fallback.Reasoning)-1]
	if !strings.Contains(last, "deadline exceeded") {
		t.Fatalf("fallback rationale missing: %v", fallback.Reasoning)
	}
}
