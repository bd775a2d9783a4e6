package ports

import (
	"context"
	"time"

	"github.com/openmri/mrc/internal/domain"
)

type TriggerMode string

const (
	TriggerModeSoftware TriggerMode = "software"
	TriggerModeExternal TriggerMode = "external"
)

type CardConfig struct {
	SampleRate      float64
	OutputChannels  int
	ReceiveChannels int
	TriggerMode     TriggerMode
}

type CompletionStatus string

const (
	CompletionDone    CompletionStatus = "done"
	CompletionTimeout CompletionStatus = "timeout"
	CompletionFault   CompletionStatus = "fault"
)

// Completion is the outcome of waiting for a replay cycle. FaultDetail is
// set for CompletionFault only.
type Completion struct {
	Status      CompletionStatus
	FaultDetail string
}

// WindowSpec addresses a span of the receive buffer in absolute samples.
type WindowSpec struct {
	Start      int
	NumSamples int
}

// Card is the capability boundary to the measurement card driver. The core
// never touches hardware registers; a concrete adapter translates these
// operations into vendor API calls. A card handle is owned exclusively by
// one acquisition run at a time.
type Card interface {
	Configure(ctx context.Context, cfg CardConfig) error
	LoadBuffer(ctx context.Context, channel domain.PhysicalChannel, samples []int16) error
	Arm(ctx context.Context) error
	Start(ctx context.Context) error

	// WaitComplete blocks until the current replay cycle finishes, the
	// timeout elapses, or the card reports a fault. A timeout is reported
	// through the Completion status, not the error.
	WaitComplete(ctx context.Context, timeout time.Duration) (Completion, error)

	ReadBuffer(ctx context.Context, channel domain.ReceiveChannel, window WindowSpec) ([]int16, error)

	// Abort stops any running replay and leaves the card re-armable.
	Abort(ctx context.Context) error
}
