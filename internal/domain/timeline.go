package domain

import "fmt"

type TriggerSignal string

const (
	TriggerADCGate   TriggerSignal = "adc_gate"
	TriggerRFUnblank TriggerSignal = "rf_unblank"
)

// Trigger marks a hardware signal transition at an absolute sample index.
type Trigger struct {
	Index  int
	Signal TriggerSignal
}

// OutputTimeline is the replay buffer for one physical output channel.
// Samples are card DAC values; triggers carry the RF unblanking transitions
// for blocks played on this output.
type OutputTimeline struct {
	Channel  PhysicalChannel
	Samples  []int16
	Triggers []Trigger
}

// ReceiveTimeline carries the ADC gate map for one receive channel. Every
// acquisition window opens a gate trigger at its first sample.
type ReceiveTimeline struct {
	Channel ReceiveChannel
	Gates   []Trigger
	Windows []AcquisitionWindow
}

// Timeline is the unrolled, sample-accurate form of a sequence. All outputs
// share one hardware clock: every output buffer has exactly NumSamples
// entries. A timeline is produced once per unroll and replayed as-is;
// parameter changes require a new unroll.
type Timeline struct {
	SampleRate float64
	NumSamples int
	Outputs    []OutputTimeline
	Receives   []ReceiveTimeline
}

func (t Timeline) Duration() float64 {
	if t.SampleRate == 0 {
		return 0
	}
	return float64(t.NumSamples) / t.SampleRate
}

func (t Timeline) Output(ch PhysicalChannel) (OutputTimeline, bool) {
	for _, out := range t.Outputs {
		if out.Channel == ch {
			return out, true
		}
	}
	return OutputTimeline{}, false
}

func (t Timeline) Receive(ch ReceiveChannel) (ReceiveTimeline, bool) {
	for _, rx := range t.Receives {
		if rx.Channel == ch {
			return rx, true
		}
	}
	return ReceiveTimeline{}, false
}

// Windows returns all acquisition windows across receive channels, in
// receive-channel order.
func (t Timeline) Windows() []AcquisitionWindow {
	var windows []AcquisitionWindow
	for _, rx := range t.Receives {
		windows = append(windows, rx.Windows...)
	}
	return windows
}

func (t Timeline) Validate() error {
	if t.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", t.SampleRate)
	}

	for _, out := range t.Outputs {
		if len(out.Samples) != t.NumSamples {
			return fmt.Errorf("output channel %d holds %d samples, expected %d",
				out.Channel, len(out.Samples), t.NumSamples)
		}
		if err := validateTriggers(out.Triggers, t.NumSamples); err != nil {
			return fmt.Errorf("output channel %d: %w", out.Channel, err)
		}
	}

	for _, rx := range t.Receives {
		if err := validateTriggers(rx.Gates, t.NumSamples); err != nil {
			return fmt.Errorf("receive channel %d: %w", rx.Channel, err)
		}
		for i, window := range rx.Windows {
			if window.Channel != rx.Channel {
				return fmt.Errorf("receive channel %d holds window for channel %d", rx.Channel, window.Channel)
			}
			if window.End() > t.NumSamples {
				return fmt.Errorf("acquisition window [%d, %d) exceeds timeline length %d",
					window.Start, window.End(), t.NumSamples)
			}
			for _, prev := range rx.Windows[:i] {
				if window.Overlaps(prev) {
					return fmt.Errorf("acquisition windows [%d, %d) and [%d, %d) overlap on receive channel %d",
						prev.Start, prev.End(), window.Start, window.End(), rx.Channel)
				}
			}
		}
	}

	return nil
}

func validateTriggers(triggers []Trigger, numSamples int) error {
	for i, trigger := range triggers {
		if trigger.Index < 0 || trigger.Index >= numSamples {
			return fmt.Errorf("trigger index %d outside timeline [0, %d)", trigger.Index, numSamples)
		}
		if i > 0 && triggers[i-1].Index >= trigger.Index {
			return fmt.Errorf("trigger indices not strictly increasing at position %d", i)
		}
	}
	return nil
}
