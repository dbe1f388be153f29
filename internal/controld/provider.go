package controld

import (
	"sync"

	"github.com/voltaic-sim/control-core/pkg/config"
	"github.com/voltaic-sim/control-core/pkg/models"
)

// ContextProvider exposes the external environmental context. The control
// core only reads the numeric fields of each snapshot; how they are
// generated is not its concern.
type ContextProvider interface {
	Snapshot() models.Scenario
}

// ScriptedProvider replays scenario frames from a loaded script, one frame
// per snapshot. With Loop set it wraps around; otherwise it holds the last
// frame once the script is exhausted.
type ScriptedProvider struct {
	mu     sync.Mutex
	frames []config.Frame
	loop   bool
	idx    int
}

func NewScriptedProvider(script *config.ScenarioScript) *ScriptedProvider {
	return &ScriptedProvider{
		frames: script.Frames,
		loop:   script.Loop,
	}
}

func (p *ScriptedProvider) Snapshot() models.Scenario {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.frames) == 0 {
		return models.Scenario{GridReliability: 1}
	}

	frame := p.frames[p.idx]
	if p.idx < len(p.frames)-1 {
		p.idx++
	} else if p.loop {
		p.idx = 0
	}

	forecast := make([]float64, len(frame.Forecast))
	copy(forecast, frame.Forecast)

	return models.Scenario{
		Demand:          frame.Demand,
		Tariff:          frame.Tariff,
		SolarAvailable:  frame.SolarKW,
		GridReliability: frame.GridReliability,
		Forecast:        forecast,
	}
}

// StaticProvider always returns the same scenario. Useful for tests and
// single-shot comparisons.
type StaticProvider struct {
	Scenario models.Scenario
}

func (p *StaticProvider) Snapshot() models.Scenario {
	return p.Scenario
}
