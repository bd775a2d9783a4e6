package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOverlap                 = errors.New("sequence blocks overlap")
	ErrQuantization            = errors.New("timing exceeds quantization tolerance")
	ErrOutputLimit             = errors.New("waveform exceeds output limit")
	ErrTimeout                 = errors.New("hardware completion timed out")
	ErrFault                   = errors.New("hardware fault")
	ErrInvalidDecimationFactor = errors.New("invalid decimation factor")
	ErrUnknownChannel          = errors.New("unknown channel")
	ErrSequenceNotFound        = errors.New("sequence not found")
)

// OverlapError reports two blocks competing for the same logical channel.
// The input sequence must be fixed; the error is not retryable.
type OverlapError struct {
	Channel                ChannelID
	FirstStart, FirstEnd   float64
	SecondStart, SecondEnd float64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("blocks [%g, %g) and [%g, %g) overlap on channel %q",
		e.FirstStart, e.FirstEnd, e.SecondStart, e.SecondEnd, e.Channel)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// QuantizationError reports a block timing that cannot be placed on the
// sample raster within the configured tolerance. Sub-sample drift between RF
// and gradient channels invalidates the experiment, so this is fatal.
type QuantizationError struct {
	Channel   ChannelID
	Offset    float64
	Residual  float64
	Tolerance float64
}

func (e *QuantizationError) Error() string {
	return fmt.Sprintf("offset %gs on channel %q is %gs off the sample raster (tolerance %gs)",
		e.Offset, e.Channel, e.Residual, e.Tolerance)
}

func (e *QuantizationError) Unwrap() error { return ErrQuantization }

// TimeoutError reports a repetition whose completion wait exceeded the
// configured timeout after exhausting its retry budget.
type TimeoutError struct {
	Repetition int
	Attempts   int
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("repetition %d timed out after %s (%d attempts)",
		e.Repetition, e.Timeout, e.Attempts)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// FaultError carries a card-reported fault such as a buffer underrun. Faults
// end the run; repetitions captured before the fault stay valid.
type FaultError struct {
	Repetition int
	Detail     string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("hardware fault during repetition %d: %s", e.Repetition, e.Detail)
}

func (e *FaultError) Unwrap() error { return ErrFault }
