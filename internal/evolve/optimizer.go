// Package evolve implements the primary control engine: a population-based
// evolutionary optimizer that performs one generation step per invocation.
// Repeated invocation on the control interval is what converges it over
// time (receding horizon), so there is no internal termination criterion.
package evolve

import (
	"fmt"
	"sync"
	"time"

	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/config"
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Config holds the evolutionary engine parameters.
type Config struct {
	PopulationSize   int
	TournamentSize   int
	CrossoverRate    float64
	MutationRate     float64
	CurrentMin       float64
	CurrentMax       float64
	HistoryRetention int
	Preset           string
	Economics        config.Economics
}

// FromConfig derives an engine Config from the loaded controller config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		PopulationSize:   cfg.Controller.PopulationSize,
		TournamentSize:   cfg.Controller.TournamentSize,
		CrossoverRate:    cfg.Controller.CrossoverRate,
		MutationRate:     cfg.Controller.MutationRate,
		CurrentMin:       cfg.Bounds.CurrentMin,
		CurrentMax:       cfg.Bounds.CurrentMax,
		HistoryRetention: cfg.Controller.HistoryRetention,
		Preset:           cfg.Controller.Preset,
		Economics:        cfg.Economics,
	}
}

// Optimizer owns a population of candidate control solutions and evolves it
// one generation per Step call. The population is owned exclusively by this
// instance; a per-instance run lock serializes steps, and the best solution
// is only exposed through copy-out accessors.
type Optimizer struct {
	cfg  Config
	eval evaluator
	rng  *utils.RandSource

	mu          sync.Mutex // run lock: one generation or decision at a time
	population  []Candidate
	generation  int
	best        *Candidate
	prevCurrent float64 // previous best setpoint, for the jump penalty
	history     []models.PerformanceRecord

	snapMu       sync.Mutex // guards lastDecision for timeout fallback reads
	lastDecision *models.Decision
}

// NewOptimizer creates an evolutionary optimizer. The surrogate model and
// random source are injected; the optimizer never reaches for ambient
// randomness.
func NewOptimizer(cfg Config, model *surrogate.Model, rng *utils.RandSource) (*Optimizer, error) {
	if model == nil {
		return nil, fmt.Errorf("surrogate model is required")
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if cfg.PopulationSize < 4 {
		return nil, fmt.Errorf("population size must be at least 4, got %d", cfg.PopulationSize)
	}
	if cfg.TournamentSize <= 0 || cfg.TournamentSize > cfg.PopulationSize {
		return nil, fmt.Errorf("tournament size must be in 1..population size, got %d", cfg.TournamentSize)
	}
	if cfg.CurrentMax <= cfg.CurrentMin {
		return nil, fmt.Errorf("current bounds are inverted: [%f, %f]", cfg.CurrentMin, cfg.CurrentMax)
	}
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = 100
	}
	weights, ok := PresetWeights(cfg.Preset)
	if !ok {
		return nil, fmt.Errorf("unknown weight preset: %s", cfg.Preset)
	}

	return &Optimizer{
		cfg: cfg,
		rng: rng,
		eval: evaluator{
			model:      model,
			econ:       cfg.Economics,
			weights:    weights,
			currentMin: cfg.CurrentMin,
			currentMax: cfg.CurrentMax,
		},
	}, nil
}

// Step runs exactly one generation against the given scenario and state and
// returns the appended performance record.
func (o *Optimizer) Step(scn models.Scenario, sv models.StateVector) models.PerformanceRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step(scn, sv)
}

// step is the unlocked generation step. Callers must hold o.mu.
func (o *Optimizer) step(scn models.Scenario, sv models.StateVector) models.PerformanceRecord {
	start := time.Now()

	cleanScn, scnViolations := sanitizeScenario(scn)

	if len(o.population) == 0 {
		o.initPopulation()
	}

	// Evaluate. The jump penalty references the best of the previous
	// generation, falling back to the applied current for the first one.
	prev := o.prevCurrent
	if prev == 0 {
		prev = sv.Current
	}
	total := 0.0
	bestIdx := 0
	for i := range o.population {
		o.eval.evaluate(&o.population[i], cleanScn, sv, scnViolations, prev)
		total += o.population[i].Fitness
		if o.population[i].Fitness > o.population[bestIdx].Fitness {
			bestIdx = i
		}
	}

	// Capture the best solution by value. The retained snapshot is only
	// replaced by an equal-or-better generation best, so its fitness never
	// regresses for a fixed scenario and seed.
	genBest := o.population[bestIdx]
	if o.best == nil || genBest.Fitness >= o.best.Fitness {
		snapshot := genBest
		o.best = &snapshot
	}
	o.prevCurrent = o.best.CurrentSetpoint

	next := o.selectPopulation(bestIdx)
	o.crossover(next)
	o.mutate(next)
	o.population = next

	o.generation++
	record := models.PerformanceRecord{
		Generation:  o.generation,
		Timestamp:   time.Now(),
		BestFitness: o.best.Fitness,
		AvgFitness:  total / float64(len(o.population)),
		ComputeTime: time.Since(start),
		Strategy:    o.cfg.Preset,
	}
	o.appendRecord(record)
	return record
}

// initPopulation samples the initial population uniformly within bounds.
// Skipped when a population already exists from a prior call: the population
// persists across calls within one optimizer instance.
func (o *Optimizer) initPopulation() {
	o.population = make([]Candidate, o.cfg.PopulationSize)
	for i := range o.population {
		o.population[i] = newRandomCandidate(o.rng, o.cfg.CurrentMin, o.cfg.CurrentMax)
	}
}

// selectPopulation builds the next generation: the best candidate is copied
// forward unconditionally (elitism), and the remaining slots are filled by
// tournament selection with replacement.
func (o *Optimizer) selectPopulation(bestIdx int) []Candidate {
	next := make([]Candidate, len(o.population))
	next[0] = o.population[bestIdx]
	for i := 1; i < len(next); i++ {
		next[i] = o.tournament()
	}
	return next
}

func (o *Optimizer) tournament() Candidate {
	winner := o.population[o.rng.Intn(len(o.population))]
	for i := 1; i < o.cfg.TournamentSize; i++ {
		challenger := o.population[o.rng.Intn(len(o.population))]
		if challenger.Fitness > winner.Fitness {
			winner = challenger
		}
	}
	return winner
}

// crossover recombines adjacent pairs with fixed probability, applying one
// randomly chosen single-point swap per pair. The elite at index 0 is left
// untouched.
func (o *Optimizer) crossover(pop []Candidate) {
	for i := 1; i+1 < len(pop); i += 2 {
		if !o.rng.BernoulliBool(o.cfg.CrossoverRate) {
			continue
		}
		a, b := &pop[i], &pop[i+1]
		switch o.rng.Intn(3) {
		case 0:
			a.CurrentSetpoint, b.CurrentSetpoint = b.CurrentSetpoint, a.CurrentSetpoint
		case 1:
			ga, gb := a.GridRatio, b.GridRatio
			a.setGridRatio(gb)
			b.setGridRatio(ga)
		case 2:
			a.Aggressiveness, b.Aggressiveness = b.Aggressiveness, a.Aggressiveness
			a.RiskTolerance, b.RiskTolerance = b.RiskTolerance, a.RiskTolerance
		}
	}
}

// mutate perturbs each non-elite candidate's genes independently with fixed
// probability, re-clamping immediately after each perturbation.
func (o *Optimizer) mutate(pop []Candidate) {
	span := o.cfg.CurrentMax - o.cfg.CurrentMin
	for i := 1; i < len(pop); i++ {
		c := &pop[i]
		width := 1 + c.Aggressiveness // aggressive candidates take larger moves
		if o.rng.BernoulliBool(o.cfg.MutationRate) {
			c.CurrentSetpoint += o.rng.NormFloat64(0, 0.08*span*width)
		}
		if o.rng.BernoulliBool(o.cfg.MutationRate) {
			c.setGridRatio(c.GridRatio + o.rng.NormFloat64(0, 0.08*width))
		}
		if o.rng.BernoulliBool(o.cfg.MutationRate) {
			c.Aggressiveness += o.rng.NormFloat64(0, 0.05)
		}
		if o.rng.BernoulliBool(o.cfg.MutationRate) {
			c.RiskTolerance += o.rng.NormFloat64(0, 0.05)
		}
		c.clampToBounds(o.cfg.CurrentMin, o.cfg.CurrentMax)
	}
}

func (o *Optimizer) appendRecord(r models.PerformanceRecord) {
	o.history = append(o.history, r)
	if len(o.history) > o.cfg.HistoryRetention {
		o.history = o.history[len(o.history)-o.cfg.HistoryRetention:]
	}
}

// Best returns a copy of the retained best solution.
func (o *Optimizer) Best() (Candidate, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.best == nil {
		return Candidate{}, false
	}
	return *o.best, true
}

// Generation returns the number of completed generation steps.
func (o *Optimizer) Generation() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

// History returns a copy of the bounded performance history, oldest first.
func (o *Optimizer) History() []models.PerformanceRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.PerformanceRecord, len(o.history))
	copy(out, o.history)
	return out
}

// Population returns a copy of the current population. Intended for tests
// and inspection endpoints.
func (o *Optimizer) Population() []Candidate {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Candidate, len(o.population))
	copy(out, o.population)
	return out
}
