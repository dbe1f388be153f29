package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes and validates it. Fields
// left unset keep their documented defaults.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

// ParseScenarioYAML parses a ScenarioScript from YAML bytes and validates it.
func ParseScenarioYAML(data []byte) (*ScenarioScript, error) {
	var script ScenarioScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse scenario yaml: %w", err)
	}

	if err := validateScenario(&script); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &script, nil
}

// ParseScenarioYAMLString parses a ScenarioScript from a YAML string and validates it.
func ParseScenarioYAMLString(yamlText string) (*ScenarioScript, error) {
	return ParseScenarioYAML([]byte(yamlText))
}

// MarshalConfigYAML serializes a Config back to YAML.
func MarshalConfigYAML(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
