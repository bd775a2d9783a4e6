package application

import (
	"time"

	"github.com/openmri/mrc/internal/domain"
)

type RunState string

const (
	StateIdle       RunState = "idle"
	StateConfigured RunState = "configured"
	StateArmed      RunState = "armed"
	StateRunning    RunState = "running"
	StateCompleted  RunState = "completed"
	StateError      RunState = "error"
)

type RunConfig struct {
	Repetitions int

	// Timeout bounds the completion wait of one repetition. Zero derives it
	// from the timeline duration plus a fixed margin.
	Timeout time.Duration

	// TimeoutRetries is the per-repetition retry budget for timed-out
	// completion waits.
	TimeoutRetries int
}

// RunResult collects whatever an acquisition run produced. When a run fails
// partway, Records still holds every repetition captured before the failure.
type RunResult struct {
	Records    []domain.RawAcquisitionRecord
	Completed  int
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r RunResult) Elapsed() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
