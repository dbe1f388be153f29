package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses a controller configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadScenario loads and parses a scenario script file
func LoadScenario(path string) (*ScenarioScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	script, err := ParseScenarioYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	return script, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	c := cfg.Controller
	if c.Engine != "evolutionary" && c.Engine != "refine" {
		return fmt.Errorf("invalid engine: %s (must be evolutionary or refine)", c.Engine)
	}
	validPresets := map[string]bool{
		"economic":    true,
		"reliability": true,
		"efficiency":  true,
	}
	if !validPresets[c.Preset] {
		return fmt.Errorf("invalid preset: %s (must be economic, reliability, or efficiency)", c.Preset)
	}
	if c.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be positive, got %d", c.IntervalMs)
	}
	if c.PopulationSize < 4 {
		return fmt.Errorf("population_size must be at least 4, got %d", c.PopulationSize)
	}
	if c.TournamentSize <= 0 || c.TournamentSize > c.PopulationSize {
		return fmt.Errorf("tournament_size must be in 1..population_size, got %d", c.TournamentSize)
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		return fmt.Errorf("crossover_rate must be between 0 and 1, got %f", c.CrossoverRate)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation_rate must be between 0 and 1, got %f", c.MutationRate)
	}
	if c.HistoryRetention <= 0 {
		return fmt.Errorf("history_retention must be positive, got %d", c.HistoryRetention)
	}

	b := cfg.Bounds
	if b.CurrentMin <= 0 {
		return fmt.Errorf("current_min must be positive, got %f", b.CurrentMin)
	}
	if b.CurrentMax <= b.CurrentMin {
		return fmt.Errorf("current_max must exceed current_min, got %f <= %f", b.CurrentMax, b.CurrentMin)
	}
	if b.WarmStartCurrentMax < b.CurrentMax {
		return fmt.Errorf("warm_start_current_max must be at least current_max, got %f", b.WarmStartCurrentMax)
	}

	e := cfg.Economics
	if e.OxygenPrice < 0 || e.ByproductPrice < 0 || e.OperationalCost < 0 || e.PVCost < 0 {
		return fmt.Errorf("economic prices and costs cannot be negative")
	}
	if e.GridEmissionFactor <= 0 {
		return fmt.Errorf("grid_emission_factor must be positive, got %f", e.GridEmissionFactor)
	}
	if e.PVEmissionFactor < 0 || e.PVEmissionFactor > e.GridEmissionFactor {
		return fmt.Errorf("pv_emission_factor must be in 0..grid_emission_factor, got %f", e.PVEmissionFactor)
	}

	r := cfg.Refine
	if r.Iterations <= 0 {
		return fmt.Errorf("refine iterations must be positive, got %d", r.Iterations)
	}
	if r.CurrentStep <= 0 || r.RatioStep <= 0 {
		return fmt.Errorf("refine step widths must be positive")
	}
	if r.PurityFloor <= 0 || r.PurityFloor > 100 {
		return fmt.Errorf("purity_floor must be in (0, 100], got %f", r.PurityFloor)
	}

	cp := cfg.Compare
	if cp.MaxLatencyMs <= 0 {
		return fmt.Errorf("compare max_latency_ms must be positive, got %d", cp.MaxLatencyMs)
	}
	if cp.WindowSize <= 0 {
		return fmt.Errorf("compare window_size must be positive, got %d", cp.WindowSize)
	}

	return nil
}

// validateScenario validates a scenario script
func validateScenario(s *ScenarioScript) error {
	if len(s.Frames) == 0 {
		return fmt.Errorf("scenario must define at least one frame")
	}
	for i, f := range s.Frames {
		if f.Demand < 0 {
			return fmt.Errorf("frame %d: demand cannot be negative, got %f", i, f.Demand)
		}
		if f.Tariff < 0 {
			return fmt.Errorf("frame %d: tariff cannot be negative, got %f", i, f.Tariff)
		}
		if f.SolarKW < 0 {
			return fmt.Errorf("frame %d: solar_kw cannot be negative, got %f", i, f.SolarKW)
		}
		if f.GridReliability < 0 || f.GridReliability > 1 {
			return fmt.Errorf("frame %d: grid_reliability must be between 0 and 1, got %f", i, f.GridReliability)
		}
	}
	return nil
}
