// Package controld wires the control stages into the long-running daemon: a
// scenario provider feeds the warm-start predictor and the selected engine on
// a fixed interval, and every decision is published to the configured sinks
// and retained for inspection over HTTP.
package controld

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voltaic-sim/control-core/internal/compare"
	"github.com/voltaic-sim/control-core/internal/evolve"
	"github.com/voltaic-sim/control-core/internal/publish"
	"github.com/voltaic-sim/control-core/internal/refine"
	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/internal/warmstart"
	"github.com/voltaic-sim/control-core/pkg/config"
	"github.com/voltaic-sim/control-core/pkg/logger"
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

const (
	// EngineEvolutionary selects the population-based engine for the loop.
	EngineEvolutionary = "evolutionary"
	// EngineRefine selects warm-start plus local refinement.
	EngineRefine = "refine"

	// Assumed stored-resource level. The daemon controls a simulated plant
	// with no live telemetry feed, so the resource tank is treated as held
	// at a nominal level.
	nominalResourceLevel = 60.0

	surrogateNoiseWidth = 0.02
)

// Controller owns the engines and runs the receding-horizon loop: one
// snapshot, one warm start, one engine invocation, one published decision
// per tick.
type Controller struct {
	cfg        *config.Config
	provider   ContextProvider
	predictor  *warmstart.Predictor
	optimizer  *evolve.Optimizer
	refiner    *refine.Refiner
	comparator *compare.Comparator
	sink       publish.Sink

	mu        sync.Mutex
	state     models.StateVector
	decisions []models.Decision
}

// New assembles a controller from the loaded configuration. Engine instances
// get independent random streams derived from the configured seed so the
// comparator's evolutionary variant cannot perturb the main loop's engine.
func New(cfg *config.Config, provider ContextProvider, sink publish.Sink) (*Controller, error) {
	if provider == nil {
		return nil, fmt.Errorf("context provider is required")
	}
	if sink == nil {
		sink = publish.NewLogSink(logger.With("component", "publisher"))
	}

	// Each engine gets its own noise-enabled model and random stream. The
	// comparator runs on HTTP handler goroutines concurrently with the
	// control loop, and a RandSource is not safe for concurrent use, so the
	// loop engines and the comparator must never share one.
	seed := cfg.Controller.Seed
	loopModel := surrogate.NewModel().WithNoise(utils.NewRandSource(deriveSeed(seed, 1)), surrogateNoiseWidth)
	refineModel := surrogate.NewModel().WithNoise(utils.NewRandSource(deriveSeed(seed, 5)), surrogateNoiseWidth)
	compareModel := surrogate.NewModel().WithNoise(utils.NewRandSource(deriveSeed(seed, 6)), surrogateNoiseWidth)

	opt, err := evolve.NewOptimizer(evolve.FromConfig(cfg), loopModel, utils.NewRandSource(deriveSeed(seed, 2)))
	if err != nil {
		return nil, fmt.Errorf("failed to build evolutionary engine: %w", err)
	}

	ref := refine.NewRefiner(refine.FromConfig(cfg), refineModel, utils.NewRandSource(deriveSeed(seed, 3)))

	cmpOpt, err := evolve.NewOptimizer(evolve.FromConfig(cfg), compareModel, utils.NewRandSource(deriveSeed(seed, 4)))
	if err != nil {
		return nil, fmt.Errorf("failed to build comparator engine: %w", err)
	}
	comparator := compare.New(
		compare.Config{
			MaxLatency: time.Duration(cfg.Compare.MaxLatencyMs) * time.Millisecond,
			WindowSize: cfg.Compare.WindowSize,
		},
		compareModel,
		logger.With("component", "comparator"),
		compare.NewEvolutionaryStrategy(cmpOpt, nominalResourceLevel),
		compare.NewProportionalStrategy(0.6),
		compare.NewTariffEconomizerStrategy(compareModel, 0.20),
		compare.NewRenewableFollowerStrategy(),
		compare.NewFixedSetpointStrategy(),
	)

	c := &Controller{
		cfg:        cfg,
		provider:   provider,
		predictor:  warmstart.NewPredictor(warmstart.Bounds{CurrentMin: cfg.Bounds.CurrentMin, CurrentMax: cfg.Bounds.WarmStartCurrentMax}),
		optimizer:  opt,
		refiner:    ref,
		comparator: comparator,
		sink:       sink,
		state: models.StateVector{
			Current:       (cfg.Bounds.CurrentMin + cfg.Bounds.CurrentMax) / 2,
			ResourceLevel: nominalResourceLevel,
			GridRatio:     0.5,
			PVRatio:       0.5,
		},
	}
	return c, nil
}

// deriveSeed gives each consumer its own stream. Seed 0 stays 0 so every
// stream falls back to time-based seeding independently.
func deriveSeed(seed, stream int64) int64 {
	if seed == 0 {
		return 0
	}
	return seed + stream*1_000_003
}

// Tick performs one control cycle and returns the published decision.
func (c *Controller) Tick(ctx context.Context) (models.Decision, error) {
	scn := c.provider.Snapshot()

	c.mu.Lock()
	sv := c.state
	sv.Tariff = scn.Tariff
	sv.RenewableForecast = scn.Forecast
	c.mu.Unlock()

	guess := c.predictor.Predict(sv)

	var d models.Decision
	switch c.cfg.Controller.Engine {
	case EngineRefine:
		d = c.refiner.Refine(sv, guess)
	default:
		stepCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Controller.StepTimeoutMs)*time.Millisecond)
		d = c.optimizer.DecideWithTimeout(stepCtx, scn, sv)
		cancel()
	}

	if !c.predictor.ModelBacked() {
		// heuristic warm start gives the engine a weaker starting point
		d.Confidence = utils.ClampFloat64(d.Confidence*0.85, 0, 1)
	}

	c.mu.Lock()
	c.state.Current = d.OptimalCurrent
	c.state.GridRatio = d.GridRatio
	c.state.PVRatio = d.PVRatio
	c.decisions = append(c.decisions, d)
	if limit := c.cfg.Controller.HistoryRetention; limit > 0 && len(c.decisions) > limit {
		c.decisions = c.decisions[len(c.decisions)-limit:]
	}
	c.mu.Unlock()

	if err := c.sink.Publish(publish.TopicDecisions, d); err != nil {
		return d, fmt.Errorf("failed to publish decision %s: %w", d.ID, err)
	}
	return d, nil
}

// Run drives the control loop on the configured interval until the context
// is cancelled. Publish failures are logged, not fatal: the loop holds the
// last decision and keeps going.
func (c *Controller) Run(ctx context.Context) error {
	interval := time.Duration(c.cfg.Controller.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}

	logger.Info("control loop started",
		"engine", c.cfg.Controller.Engine,
		"preset", c.cfg.Controller.Preset,
		"interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("control loop stopped", "decisions", len(c.Decisions()))
			return ctx.Err()
		case <-ticker.C:
			d, err := c.Tick(ctx)
			if err != nil {
				logger.Warn("decision publish failed", "error", err)
				continue
			}
			logger.Debug("decision applied",
				"id", d.ID,
				"current", d.OptimalCurrent,
				"grid_ratio", d.GridRatio,
				"confidence", d.Confidence)
		}
	}
}

// RunComparison executes one strategy comparison against the provider's next
// scenario snapshot. The reference is the current demanded production mapped
// back to a setpoint.
func (c *Controller) RunComparison() compare.Result {
	scn := c.provider.Snapshot()

	target := c.cfg.Bounds.CurrentMax
	if scn.Demand > 0 {
		target = scn.Demand / surrogate.ConversionLPerAmp / 0.9
	}
	ref := compare.Reference{
		Target: utils.ClampFloat64(target, c.cfg.Bounds.CurrentMin, c.cfg.Bounds.CurrentMax),
	}
	cons := compare.Constraints{
		MinCurrent: c.cfg.Bounds.CurrentMin,
		MaxCurrent: c.cfg.Bounds.CurrentMax,
	}
	return c.comparator.Compare(scn, ref, cons)
}

// Comparator exposes the comparator for winner statistics.
func (c *Controller) Comparator() *compare.Comparator {
	return c.comparator
}

// LatestDecision returns the most recent decision, if any.
func (c *Controller) LatestDecision() (models.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.decisions) == 0 {
		return models.Decision{}, false
	}
	return c.decisions[len(c.decisions)-1], true
}

// Decisions returns a copy of the retained decisions, oldest first.
func (c *Controller) Decisions() []models.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Decision, len(c.decisions))
	copy(out, c.decisions)
	return out
}

// History returns the evolutionary engine's per-generation performance
// records.
func (c *Controller) History() []models.PerformanceRecord {
	return c.optimizer.History()
}
