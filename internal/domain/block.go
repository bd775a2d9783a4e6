package domain

import (
	"fmt"
	"math"
)

type BlockKind string

type ChannelID string

// PhysicalChannel is a card output index, ReceiveChannel a card input index.
type PhysicalChannel int
type ReceiveChannel int

const (
	BlockRF       BlockKind = "rf"
	BlockGradient BlockKind = "gradient"
	BlockADC      BlockKind = "adc"
	BlockDelay    BlockKind = "delay"
)

// SequenceBlock is one timed unit of a pulse sequence. Blocks are handed to
// the unroller once per compile and are never mutated afterwards.
type SequenceBlock struct {
	Kind    BlockKind
	Channel ChannelID

	// Start and Duration are given in seconds relative to sequence start.
	Start    float64
	Duration float64

	// Amplitude is the peak output in mV (RF envelope peak, gradient flat
	// amplitude). Phase and FrequencyOffset modulate the RF carrier.
	Amplitude       float64
	Phase           float64
	FrequencyOffset float64

	// Envelope holds optional normalized shape samples in [-1, 1]. RF blocks
	// without an envelope replay a rectangular pulse; gradient blocks without
	// one use the trapezoid timing below.
	Envelope []float64

	// Trapezoid timing for gradient blocks, in seconds. When all three are
	// zero the gradient is a flat rectangle over Duration.
	RiseTime float64
	FlatTime float64
	FallTime float64

	// Receive designates the input channel an ADC block records on.
	Receive ReceiveChannel
}

func (b SequenceBlock) End() float64 {
	return b.Start + b.Duration
}

func (b SequenceBlock) Validate() error {
	switch b.Kind {
	case BlockRF, BlockGradient, BlockADC, BlockDelay:
	default:
		return fmt.Errorf("unknown block kind %q", b.Kind)
	}

	if b.Start < 0 {
		return fmt.Errorf("block start must not be negative, got %g", b.Start)
	}
	if b.Duration < 0 {
		return fmt.Errorf("block duration must not be negative, got %g", b.Duration)
	}

	switch b.Kind {
	case BlockRF:
		if b.Channel == "" {
			return fmt.Errorf("rf block requires a channel")
		}
		if b.Duration == 0 {
			return fmt.Errorf("rf block requires a positive duration")
		}
	case BlockGradient:
		if b.Channel == "" {
			return fmt.Errorf("gradient block requires a channel")
		}
		if b.Duration == 0 {
			return fmt.Errorf("gradient block requires a positive duration")
		}
		if b.RiseTime < 0 || b.FlatTime < 0 || b.FallTime < 0 {
			return fmt.Errorf("gradient ramp times must not be negative")
		}
		if trap := b.RiseTime + b.FlatTime + b.FallTime; trap > 0 {
			if len(b.Envelope) > 0 {
				return fmt.Errorf("gradient block cannot combine trapezoid timing with an envelope")
			}
			if math.Abs(trap-b.Duration) > 1e-12 {
				return fmt.Errorf("gradient trapezoid timing %g does not match duration %g", trap, b.Duration)
			}
		}
	case BlockADC:
		if b.Duration == 0 {
			return fmt.Errorf("adc block requires a positive duration")
		}
		if b.Receive < 0 {
			return fmt.Errorf("adc block receive channel must not be negative")
		}
	case BlockDelay:
		if len(b.Envelope) > 0 || b.Amplitude != 0 {
			return fmt.Errorf("delay block must not carry waveform data")
		}
	}

	return nil
}

// Overlaps reports whether two half-open spans [Start, End) intersect.
func (b SequenceBlock) Overlaps(other SequenceBlock) bool {
	return b.Start < other.End() && other.Start < b.End()
}
