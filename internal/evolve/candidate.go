package evolve

import (
	"github.com/voltaic-sim/control-core/pkg/utils"
)

// Candidate is one control point under search. Fitness and the violation
// count are recomputed every generation and never persisted across runs
// except through the retained best snapshot.
type Candidate struct {
	CurrentSetpoint float64 // A
	GridRatio       float64 // 0..1
	PVRatio         float64 // always 1 - GridRatio
	Aggressiveness  float64 // 0..1, widens mutation moves
	RiskTolerance   float64 // 0..1, biases toward cheap-but-fragile blends

	Fitness             float64
	ConstraintsViolated int
}

// ratioTolerance is the allowed drift of GridRatio+PVRatio from 1 before a
// candidate counts as violating the blend constraint.
const ratioTolerance = 1e-6

func newRandomCandidate(rng *utils.RandSource, currentMin, currentMax float64) Candidate {
	grid := rng.Float64()
	return Candidate{
		CurrentSetpoint: rng.UniformFloat64(currentMin, currentMax),
		GridRatio:       grid,
		PVRatio:         1 - grid,
		Aggressiveness:  rng.Float64(),
		RiskTolerance:   rng.Float64(),
	}
}

// setGridRatio updates the blend and re-enforces the PV invariant.
func (c *Candidate) setGridRatio(grid float64) {
	c.GridRatio = grid
	c.PVRatio = 1 - grid
}

// clampToBounds pulls every gene back into its valid range. Called right
// after any mutation or crossover.
func (c *Candidate) clampToBounds(currentMin, currentMax float64) {
	c.CurrentSetpoint = utils.ClampFloat64(c.CurrentSetpoint, currentMin, currentMax)
	c.setGridRatio(utils.ClampFloat64(c.GridRatio, 0, 1))
	c.Aggressiveness = utils.ClampFloat64(c.Aggressiveness, 0, 1)
	c.RiskTolerance = utils.ClampFloat64(c.RiskTolerance, 0, 1)
}
