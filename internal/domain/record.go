package domain

// WindowSamples is the raw readback of one acquisition window.
type WindowSamples struct {
	Window  AcquisitionWindow
	Samples []int16
}

// RawAcquisitionRecord holds the raw samples captured during one replay of a
// timeline. Records live only until post-processing has consumed them.
type RawAcquisitionRecord struct {
	Repetition int
	Windows    []WindowSamples
}

// ProcessedRecord is the structured output of one acquisition run: complex
// samples indexed by (repetition, channel, time), plus the metadata a
// downstream reconstruction needs to reshape them. Immutable once produced.
type ProcessedRecord struct {
	// SampleRate of the processed data, after decimation.
	SampleRate float64

	// Data is indexed [repetition][channel][sample]. The channel axis follows
	// Channels; samples of a channel's windows are concatenated in ascending
	// window order. When Averaged is set the repetition axis has length one.
	Data [][][]complex128

	// Channels maps the channel axis index to the receive channel.
	Channels []ReceiveChannel

	// WindowBounds are the original acquisition window boundaries, before
	// decimation, ordered like the concatenated sample axis.
	WindowBounds []AcquisitionWindow

	DecimationFactor int
	Averaged         bool
}

func (r ProcessedRecord) Repetitions() int {
	return len(r.Data)
}

// ChannelData returns the time series of one receive channel for a given
// repetition index, or nil if either index is out of range.
func (r ProcessedRecord) ChannelData(repetition int, ch ReceiveChannel) []complex128 {
	if repetition < 0 || repetition >= len(r.Data) {
		return nil
	}
	for i, channel := range r.Channels {
		if channel == ch {
			return r.Data[repetition][i]
		}
	}
	return nil
}
