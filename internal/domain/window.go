package domain

// AcquisitionWindow is a contiguous ADC-active span on one receive channel,
// expressed in absolute sample indices of the owning timeline.
type AcquisitionWindow struct {
	Channel    ReceiveChannel
	Start      int
	NumSamples int
}

func (w AcquisitionWindow) End() int {
	return w.Start + w.NumSamples
}

func (w AcquisitionWindow) Overlaps(other AcquisitionWindow) bool {
	if w.Channel != other.Channel {
		return false
	}
	return w.Start < other.End() && other.Start < w.End()
}
