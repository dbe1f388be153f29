// Package compare runs several independently implemented controller
// strategies against one shared scenario, scores each on economic
// efficiency, tracking, robustness, and computation cost, and ranks them.
package compare

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/voltaic-sim/control-core/internal/surrogate"
	"github.com/voltaic-sim/control-core/pkg/models"
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Overall score weights. Fixed and documented; they do not vary per run.
const (
	weightEconomic    = 0.35
	weightTracking    = 0.25
	weightRobustness  = 0.25
	weightComputation = 0.15

	revenuePerL = 0.07 // combined O2 + byproduct revenue, currency/L
	pvCost      = 0.04 // currency/kWh
)

// Config holds comparator parameters.
type Config struct {
	MaxLatency time.Duration // latency at which the computation score hits 0
	WindowSize int           // retained comparisons for winner statistics
}

// VariantResult is the scored outcome of one strategy in one comparison.
type VariantResult struct {
	Name        string        `json:"name"`
	Action      Action        `json:"action"`
	Economic    float64       `json:"economic"`
	Tracking    float64       `json:"tracking"`
	Robustness  float64       `json:"robustness"`
	Computation float64       `json:"computation"`
	Overall     float64       `json:"overall"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Result is one complete comparison across all registered strategies.
// Failed variants appear in Failures and are absent from the ranking.
type Result struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Scenario  models.Scenario `json:"scenario"`
	Ranking   []VariantResult `json:"ranking"` // descending by overall score
	Failures  []string        `json:"failures,omitempty"`
	Winner    string          `json:"winner"`
}

// Comparator owns a closed, explicitly registered strategy set and a rolling
// window of recent comparisons.
type Comparator struct {
	cfg        Config
	model      *surrogate.Model
	log        *slog.Logger
	strategies []Strategy

	mu     sync.Mutex
	window []Result
}

// New creates a comparator. Strategies are evaluated and tie-broken in
// registration order.
func New(cfg Config, model *surrogate.Model, log *slog.Logger, strategies ...Strategy) *Comparator {
	if cfg.MaxLatency <= 0 {
		cfg.MaxLatency = 250 * time.Millisecond
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	return &Comparator{
		cfg:        cfg,
		model:      model,
		log:        log,
		strategies: strategies,
	}
}

// Compare runs every registered strategy against the scenario and ranks
// them. One variant failing (error or panic) excludes only that variant.
func (c *Comparator) Compare(scn models.Scenario, ref Reference, cons Constraints) Result {
	result := Result{
		ID:        utils.GenerateComparisonID(),
		Timestamp: time.Now(),
		Scenario:  scn,
	}

	maxProfit := c.estimateMaxProfit(scn, cons)

	for _, strategy := range c.strategies {
		start := time.Now()
		action, err := c.computeSafely(strategy, scn, ref, cons)
		elapsed := time.Since(start)

		if err != nil {
			if c.log != nil {
				c.log.Warn("strategy variant failed; excluded from ranking",
					"variant", strategy.Name(), "error", err)
			}
			result.Failures = append(result.Failures, strategy.Name())
			continue
		}

		vr := VariantResult{
			Name:    strategy.Name(),
			Action:  action,
			Elapsed: elapsed,
		}
		vr.Economic = c.economicScore(scn, action, maxProfit)
		vr.Tracking = trackingScore(action, ref, cons)
		vr.Robustness = robustnessScore(action, cons)
		vr.Computation = c.computationScore(elapsed)
		vr.Overall = weightEconomic*vr.Economic +
			weightTracking*vr.Tracking +
			weightRobustness*vr.Robustness +
			weightComputation*vr.Computation

		result.Ranking = append(result.Ranking, vr)
	}

	// Stable sort keeps registration order for equal scores.
	sort.SliceStable(result.Ranking, func(i, j int) bool {
		return result.Ranking[i].Overall > result.Ranking[j].Overall
	})
	if len(result.Ranking) > 0 {
		result.Winner = result.Ranking[0].Name
	}

	c.mu.Lock()
	c.window = append(c.window, result)
	if len(c.window) > c.cfg.WindowSize {
		c.window = c.window[len(c.window)-c.cfg.WindowSize:]
	}
	c.mu.Unlock()

	return result
}

// computeSafely isolates variant failures: a panicking strategy is reported
// as an error instead of taking the comparison down.
func (c *Comparator) computeSafely(s Strategy, scn models.Scenario, ref Reference, cons Constraints) (action Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.ComputeControl(scn, ref, cons)
}

// economicScore is the action's estimated per-minute profit normalized
// against the scenario's estimated maximum.
func (c *Comparator) economicScore(scn models.Scenario, action Action, maxProfit float64) float64 {
	profit := c.profit(scn, action.Control, action.GridRatio)
	if maxProfit <= 0 {
		return 0
	}
	return utils.ClampFloat64(profit/maxProfit, 0, 1)
}

func (c *Comparator) profit(scn models.Scenario, current, gridRatio float64) float64 {
	pred := c.model.Predict(surrogate.Input{
		Current:   current,
		GridRatio: gridRatio,
		PVRatio:   1 - gridRatio,
		Tariff:    scn.Tariff,
		Forecast:  scn.Forecast,
	})
	power := c.model.PowerDrawKW(current)
	energy := power * (gridRatio*scn.Tariff + (1-gridRatio)*pvCost) / 60
	return pred.ProductionRate*revenuePerL - energy
}

// estimateMaxProfit probes the constraint range on all-renewable supply for
// the best achievable per-minute profit.
func (c *Comparator) estimateMaxProfit(scn models.Scenario, cons Constraints) float64 {
	best := 0.0
	span := cons.MaxCurrent - cons.MinCurrent
	if span <= 0 {
		return c.profit(scn, cons.MinCurrent, 0)
	}
	const probes = 8
	for i := 0; i <= probes; i++ {
		current := cons.MinCurrent + span*float64(i)/probes
		if p := c.profit(scn, current, 0); p > best {
			best = p
		}
	}
	return best
}

// trackingScore is 1 minus the tracking error normalized by the constraint
// span.
func trackingScore(action Action, ref Reference, cons Constraints) float64 {
	span := cons.MaxCurrent - cons.MinCurrent
	if span <= 0 {
		return 0
	}
	err := math.Abs(action.Control-ref.Target) / span
	return utils.ClampFloat64(1-err, 0, 1)
}

// robustnessScore penalizes actions near the constraint edges and rewards
// balanced power blends. A variant-reported robustness metric overrides the
// estimate.
func robustnessScore(action Action, cons Constraints) float64 {
	if action.RobustnessReported {
		return utils.ClampFloat64(action.Robustness, 0, 1)
	}
	span := cons.MaxCurrent - cons.MinCurrent
	edge := 1.0
	if span > 0 {
		margin := math.Min(action.Control-cons.MinCurrent, cons.MaxCurrent-action.Control)
		edge = utils.ClampFloat64(margin/(span/2), 0, 1)
	}
	balance := 1 - utils.ClampFloat64(math.Abs(action.GridRatio-0.5)*2, 0, 1)
	return utils.ClampFloat64(0.6*edge+0.4*balance, 0, 1)
}

func (c *Comparator) computationScore(elapsed time.Duration) float64 {
	return utils.ClampFloat64(1-float64(elapsed)/float64(c.cfg.MaxLatency), 0, 1)
}

// Window returns a copy of the retained comparisons, oldest first.
func (c *Comparator) Window() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.window))
	copy(out, c.window)
	return out
}

// MostFrequentWinner reports which strategy won the most comparisons in the
// retained window, and how many times.
func (c *Comparator) MostFrequentWinner() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[string]int)
	for _, r := range c.window {
		if r.Winner != "" {
			counts[r.Winner]++
		}
	}
	winner := ""
	max := 0
	for _, r := range c.window { // window order keeps the statistic deterministic
		if n := counts[r.Winner]; n > max {
			winner = r.Winner
			max = n
		}
	}
	return winner, max
}
