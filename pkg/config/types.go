package config

// Config represents the main controller configuration
type Config struct {
	LogLevel   string     `yaml:"log_level"`
	Controller Controller `yaml:"controller"`
	Bounds     Bounds     `yaml:"bounds"`
	Economics  Economics  `yaml:"economics"`
	Refine     Refine     `yaml:"refine"`
	Compare    Compare    `yaml:"compare"`
}

// Controller configures the receding-horizon control loop and the
// evolutionary engine behind it.
type Controller struct {
	Engine           string  `yaml:"engine"` // evolutionary or refine
	Preset           string  `yaml:"preset"` // economic, reliability, or efficiency
	IntervalMs       int     `yaml:"interval_ms"`
	PopulationSize   int     `yaml:"population_size"`
	TournamentSize   int     `yaml:"tournament_size"`
	CrossoverRate    float64 `yaml:"crossover_rate"`
	MutationRate     float64 `yaml:"mutation_rate"`
	HistoryRetention int     `yaml:"history_retention"`
	StepTimeoutMs    int     `yaml:"step_timeout_ms"`
	Seed             int64   `yaml:"seed"`
}

// Bounds holds the operating envelope of the electrolyzer stack.
type Bounds struct {
	CurrentMin          float64 `yaml:"current_min"`            // A
	CurrentMax          float64 `yaml:"current_max"`            // A
	WarmStartCurrentMax float64 `yaml:"warm_start_current_max"` // A, wider than the operating range
}

// Economics holds the tuning constants of the economic objective. These are
// illustrative plant-study values, kept overridable rather than derived.
type Economics struct {
	OxygenPrice        float64 `yaml:"oxygen_price"`         // currency per L of O2
	ByproductPrice     float64 `yaml:"byproduct_price"`      // currency per L of H2 byproduct
	OperationalCost    float64 `yaml:"operational_cost"`     // currency per decision interval
	PVCost             float64 `yaml:"pv_cost"`              // currency/kWh of renewable supply
	GridEmissionFactor float64 `yaml:"grid_emission_factor"` // kgCO2/kWh
	PVEmissionFactor   float64 `yaml:"pv_emission_factor"`   // kgCO2/kWh
}

// Refine configures the stochastic local refinement stage.
type Refine struct {
	Iterations       int     `yaml:"iterations"`
	CurrentStep      float64 `yaml:"current_step"` // A, perturbation width
	RatioStep        float64 `yaml:"ratio_step"`   // perturbation width on the grid ratio
	PurityFloor      float64 `yaml:"purity_floor"` // % below which the purity penalty kicks in
	SmoothnessWeight float64 `yaml:"smoothness_weight"`
}

// Compare configures the strategy comparator.
type Compare struct {
	MaxLatencyMs int `yaml:"max_latency_ms"` // latency treated as a zero computation score
	WindowSize   int `yaml:"window_size"`    // retained comparisons for winner statistics
}

// DefaultConfig returns a configuration with the documented tuning defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Controller: Controller{
			Engine:           "evolutionary",
			Preset:           "economic",
			IntervalMs:       2000,
			PopulationSize:   40,
			TournamentSize:   5,
			CrossoverRate:    0.8,
			MutationRate:     0.15,
			HistoryRetention: 100,
			StepTimeoutMs:    500,
			Seed:             0,
		},
		Bounds: Bounds{
			CurrentMin:          50,
			CurrentMax:          150,
			WarmStartCurrentMax: 200,
		},
		Economics: Economics{
			OxygenPrice:        0.05,
			ByproductPrice:     0.02,
			OperationalCost:    0.8,
			PVCost:             0.04,
			GridEmissionFactor: 0.45,
			PVEmissionFactor:   0.05,
		},
		Refine: Refine{
			Iterations:       150,
			CurrentStep:      8,
			RatioStep:        0.08,
			PurityFloor:      95,
			SmoothnessWeight: 0.02,
		},
		Compare: Compare{
			MaxLatencyMs: 250,
			WindowSize:   20,
		},
	}
}
