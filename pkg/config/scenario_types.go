package config

// ScenarioScript is a sequence of environmental frames the daemon replays on
// the control interval. Frame generation itself (hospital demand curves,
// solar irradiance, tariff schedules) happens outside this module; a script
// is just the captured numbers.
type ScenarioScript struct {
	Name   string  `yaml:"name"`
	Loop   bool    `yaml:"loop"` // restart from the first frame when exhausted
	Frames []Frame `yaml:"frames"`
}

// Frame is one captured snapshot of external conditions.
type Frame struct {
	Demand          float64   `yaml:"demand"`           // L/min oxygen demand
	Tariff          float64   `yaml:"tariff"`           // currency/kWh
	SolarKW         float64   `yaml:"solar_kw"`         // available renewable power
	GridReliability float64   `yaml:"grid_reliability"` // 0..1
	Forecast        []float64 `yaml:"forecast"`         // renewable forecast (kW)
}
