package config

import (
	"strings"
	"testing"
)

func TestParseConfigYAMLDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString("{}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Controller.Engine != "evolutionary" {
		t.Fatalf("expected default engine evolutionary, got %s", cfg.Controller.Engine)
	}
	if cfg.Controller.PopulationSize != 40 {
		t.Fatalf("expected default population 40, got %d", cfg.Controller.PopulationSize)
	}
	if cfg.Controller.TournamentSize != 5 {
		t.Fatalf("expected default tournament size 5, got %d", cfg.Controller.TournamentSize)
	}
	if cfg.Bounds.CurrentMin != 50 || cfg.Bounds.CurrentMax != 150 {
		t.Fatalf("unexpected default bounds: [%f, %f]", cfg.Bounds.CurrentMin, cfg.Bounds.CurrentMax)
	}
}

func TestParseConfigYAMLOverrides(t *testing.T) {
	yaml := `
log_level: debug
controller:
  engine: refine
  preset: efficiency
  population_size: 20
bounds:
  current_min: 60
  current_max: 140
`
	cfg, err := ParseConfigYAMLString(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Controller.Engine != "refine" {
		t.Fatalf("expected engine refine, got %s", cfg.Controller.Engine)
	}
	if cfg.Controller.Preset != "efficiency" {
		t.Fatalf("expected preset efficiency, got %s", cfg.Controller.Preset)
	}
	if cfg.Controller.PopulationSize != 20 {
		t.Fatalf("expected population 20, got %d", cfg.Controller.PopulationSize)
	}
	// untouched fields keep defaults
	if cfg.Controller.CrossoverRate != 0.8 {
		t.Fatalf("expected default crossover rate 0.8, got %f", cfg.Controller.CrossoverRate)
	}
	if cfg.Bounds.CurrentMin != 60 {
		t.Fatalf("expected current_min 60, got %f", cfg.Bounds.CurrentMin)
	}
}

func TestParseConfigYAMLValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad engine",
			yaml: "controller:\n  engine: simulated_annealing\n",
			want: "invalid engine",
		},
		{
			name: "bad preset",
			yaml: "controller:\n  preset: sustainability_only\n",
			want: "invalid preset",
		},
		{
			name: "inverted bounds",
			yaml: "bounds:\n  current_min: 150\n  current_max: 50\n",
			want: "current_max must exceed current_min",
		},
		{
			name: "population too small",
			yaml: "controller:\n  population_size: 2\n",
			want: "population_size must be at least 4",
		},
		{
			name: "bad crossover rate",
			yaml: "controller:\n  crossover_rate: 1.5\n",
			want: "crossover_rate must be between 0 and 1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tc.yaml)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseConfigYAMLMalformed(t *testing.T) {
	if _, err := ParseConfigYAMLString("controller: [not, a, map]"); err == nil {
		t.Fatalf("expected parse error for malformed yaml")
	}
}

func TestParseScenarioYAML(t *testing.T) {
	yaml := `
name: morning-ramp
loop: true
frames:
  - demand: 30
    tariff: 0.12
    solar_kw: 5
    grid_reliability: 0.95
    forecast: [5, 10, 18]
  - demand: 45
    tariff: 0.22
    solar_kw: 20
    grid_reliability: 0.95
`
	script, err := ParseScenarioYAMLString(yaml)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if script.Name != "morning-ramp" {
		t.Fatalf("expected name morning-ramp, got %s", script.Name)
	}
	if !script.Loop {
		t.Fatalf("expected loop true")
	}
	if len(script.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(script.Frames))
	}
	if script.Frames[0].Forecast[2] != 18 {
		t.Fatalf("unexpected forecast: %v", script.Frames[0].Forecast)
	}
}

func TestParseScenarioYAMLRejectsEmptyAndInvalid(t *testing.T) {
	if _, err := ParseScenarioYAMLString("name: empty\nframes: []\n"); err == nil {
		t.Fatalf("expected error for empty frame list")
	}

	bad := "frames:\n  - demand: 30\n    grid_reliability: 1.4\n"
	if _, err := ParseScenarioYAMLString(bad); err == nil {
		t.Fatalf("expected error for out-of-range grid_reliability")
	}
}

func TestMarshalConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Controller.Seed = 99

	data, err := MarshalConfigYAML(cfg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	parsed, err := ParseConfigYAML(data)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if parsed.Controller.Seed != 99 {
		t.Fatalf("seed lost in round trip, got %d", parsed.Controller.Seed)
	}
}
