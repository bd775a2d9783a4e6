package toml

import "fmt"

const currentSchemaVersion = 1

type sequencesFileSchema struct {
	Version   int              `toml:"version"`
	Sequences []sequenceSchema `toml:"sequences"`
}

func (s *sequencesFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s sequencesFileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported sequences schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sequenceSchema struct {
	Name        string        `toml:"name"`
	Description string        `toml:"description,omitempty"`
	Blocks      []blockSchema `toml:"blocks"`
}

type blockSchema struct {
	Kind    string `toml:"kind"`
	Channel string `toml:"channel,omitempty"`

	Start    float64 `toml:"start"`
	Duration float64 `toml:"duration"`

	Amplitude       float64 `toml:"amplitude,omitempty"`
	Phase           float64 `toml:"phase,omitempty"`
	FrequencyOffset float64 `toml:"frequency_offset,omitempty"`

	Envelope []float64 `toml:"envelope,omitempty"`

	RiseTime float64 `toml:"rise_time,omitempty"`
	FlatTime float64 `toml:"flat_time,omitempty"`
	FallTime float64 `toml:"fall_time,omitempty"`

	Receive int `toml:"receive,omitempty"`
}
