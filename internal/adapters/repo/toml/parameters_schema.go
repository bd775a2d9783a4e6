package toml

import "fmt"

type parametersFileSchema struct {
	Version    int              `toml:"version"`
	Parameters parametersSchema `toml:"parameters"`
}

func (s *parametersFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s parametersFileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported parameters schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type parametersSchema struct {
	LarmorFrequency  float64              `toml:"larmor_frequency"`
	B1Scaling        float64              `toml:"b1_scaling"`
	GradientOffset   gradientOffsetSchema `toml:"gradient_offset"`
	DecimationFactor int                  `toml:"decimation_factor"`
	Repetitions      int                  `toml:"repetitions"`
	TimeoutRetries   int                  `toml:"timeout_retries"`
	Accumulation     string               `toml:"accumulation"`
}

type gradientOffsetSchema struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
	Z float64 `toml:"z"`
}
