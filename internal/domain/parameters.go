package domain

import "fmt"

type AccumulationMode string

const (
	AccumulationStack   AccumulationMode = "stack"
	AccumulationAverage AccumulationMode = "average"
)

// GradientOffset is a static per-axis output offset in mV, applied to the
// whole gradient waveform of the corresponding channel.
type GradientOffset struct {
	X float64
	Y float64
	Z float64
}

// Parameters are the experiment settings of one acquisition. They are set
// independently of the sequence; changing them requires a re-unroll.
type Parameters struct {
	// LarmorFrequency is the RF carrier frequency in Hz.
	LarmorFrequency float64

	// B1Scaling calibrates the RF amplitude per coil and load.
	B1Scaling float64

	GradientOffset GradientOffset

	// DecimationFactor is the integer downsampling factor applied during
	// post-processing.
	DecimationFactor int

	// Repetitions is the number of replay cycles of one run.
	Repetitions int

	// TimeoutRetries bounds how often a timed-out repetition is retried
	// before the run aborts.
	TimeoutRetries int

	Accumulation AccumulationMode
}

func (p Parameters) Validate() error {
	if p.LarmorFrequency <= 0 {
		return fmt.Errorf("larmor frequency must be positive, got %g", p.LarmorFrequency)
	}
	if p.LarmorFrequency > 10e6 {
		return fmt.Errorf("larmor frequency above 10 MHz: %g MHz", p.LarmorFrequency*1e-6)
	}
	if p.B1Scaling <= 0 {
		return fmt.Errorf("b1 scaling must be positive, got %g", p.B1Scaling)
	}
	if p.DecimationFactor < 1 {
		return fmt.Errorf("decimation factor must be at least 1, got %d", p.DecimationFactor)
	}
	if p.Repetitions < 1 {
		return fmt.Errorf("repetitions must be at least 1, got %d", p.Repetitions)
	}
	if p.TimeoutRetries < 0 {
		return fmt.Errorf("timeout retries must not be negative, got %d", p.TimeoutRetries)
	}

	switch p.Accumulation {
	case AccumulationStack, AccumulationAverage:
	default:
		return fmt.Errorf("unsupported accumulation mode %q", p.Accumulation)
	}

	return nil
}

// DefaultParameters returns a parameter set for a plain FID experiment.
func DefaultParameters() Parameters {
	return Parameters{
		LarmorFrequency:  2.031e6,
		B1Scaling:        1.0,
		DecimationFactor: 200,
		Repetitions:      1,
		TimeoutRetries:   1,
		Accumulation:     AccumulationStack,
	}
}
