package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/ports"
)

// defaultTimeoutMargin pads the replay duration when the caller does not
// supply an explicit completion timeout.
const defaultTimeoutMargin = 5 * time.Second

// AcquisitionService drives one measurement card through the
// arm/start/wait/readback cycle. It owns the card handle exclusively: the
// run mutex is held for the lifetime of a run, so no two acquisitions can be
// armed concurrently against the same card.
type AcquisitionService struct {
	card  ports.Card
	clock ports.Clock

	mu       sync.Mutex
	state    RunState
	timeline domain.Timeline
}

func NewAcquisitionService(card ports.Card, clock ports.Clock) *AcquisitionService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &AcquisitionService{
		card:  card,
		clock: clock,
		state: StateIdle,
	}
}

func (s *AcquisitionService) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Configure pushes the timeline onto the card: sample clock, channel count,
// trigger mode, and one replay buffer per output. A configured timeline can
// be replayed any number of times; re-configuration is needed only when the
// timeline content changes.
func (s *AcquisitionService) Configure(ctx context.Context, timeline domain.Timeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := timeline.Validate(); err != nil {
		return fmt.Errorf("validate timeline: %w", err)
	}

	outputChannels := 0
	for _, out := range timeline.Outputs {
		if n := int(out.Channel) + 1; n > outputChannels {
			outputChannels = n
		}
	}
	receiveChannels := 0
	for _, rx := range timeline.Receives {
		if n := int(rx.Channel) + 1; n > receiveChannels {
			receiveChannels = n
		}
	}

	cfg := ports.CardConfig{
		SampleRate:      timeline.SampleRate,
		OutputChannels:  outputChannels,
		ReceiveChannels: receiveChannels,
		TriggerMode:     ports.TriggerModeSoftware,
	}
	if err := s.card.Configure(ctx, cfg); err != nil {
		s.state = StateError
		return fmt.Errorf("configure card: %w", err)
	}

	for _, out := range timeline.Outputs {
		if err := s.card.LoadBuffer(ctx, out.Channel, out.Samples); err != nil {
			s.state = StateError
			return fmt.Errorf("load buffer for channel %d: %w", out.Channel, err)
		}
	}

	s.timeline = timeline
	s.state = StateConfigured

	return nil
}

// Run replays the configured timeline for the requested repetition count and
// collects the raw samples of every acquisition window. On failure the
// records of all completed repetitions are returned alongside the error, so
// the caller always knows which repetitions succeeded.
//
// Timeouts are recoverable: the affected repetition is retried within the
// configured budget, then the run aborts with a TimeoutError. Card-reported
// faults end the run immediately with a FaultError.
func (s *AcquisitionService) Run(ctx context.Context, cfg RunConfig) (RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := RunResult{StartedAt: s.clock.Now()}

	if s.state != StateConfigured && s.state != StateCompleted {
		return result, fmt.Errorf("cannot run from state %q, configure a timeline first", s.state)
	}
	if cfg.Repetitions < 1 {
		return result, fmt.Errorf("repetitions must be at least 1, got %d", cfg.Repetitions)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Duration(s.timeline.Duration()*float64(time.Second)) + defaultTimeoutMargin
	}

	for rep := 1; rep <= cfg.Repetitions; rep++ {
		record, err := s.runRepetition(ctx, rep, timeout, cfg.TimeoutRetries)
		if err != nil {
			result.FinishedAt = s.clock.Now()
			return result, err
		}
		result.Records = append(result.Records, record)
		result.Completed++
	}

	s.state = StateCompleted
	result.FinishedAt = s.clock.Now()

	return result, nil
}

func (s *AcquisitionService) runRepetition(ctx context.Context, rep int, timeout time.Duration, retries int) (domain.RawAcquisitionRecord, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.RawAcquisitionRecord{}, s.cancelRun(ctx, err)
		}

		s.state = StateArmed
		if err := s.card.Arm(ctx); err != nil {
			return domain.RawAcquisitionRecord{}, s.failRun(ctx, rep, fmt.Errorf("arm card: %w", err))
		}

		s.state = StateRunning
		if err := s.card.Start(ctx); err != nil {
			return domain.RawAcquisitionRecord{}, s.failRun(ctx, rep, fmt.Errorf("start card: %w", err))
		}

		completion, err := s.card.WaitComplete(ctx, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return domain.RawAcquisitionRecord{}, s.cancelRun(ctx, err)
			}
			return domain.RawAcquisitionRecord{}, s.failRun(ctx, rep, fmt.Errorf("wait for completion: %w", err))
		}

		switch completion.Status {
		case ports.CompletionDone:
			record, err := s.readback(ctx, rep)
			if err != nil {
				return domain.RawAcquisitionRecord{}, s.failRun(ctx, rep, err)
			}
			// Running -> Armed happens at the top of the next repetition;
			// the buffers stay loaded.
			return record, nil

		case ports.CompletionTimeout:
			// Abort returns the card to a re-armable state before a retry.
			if err := s.card.Abort(ctx); err != nil {
				return domain.RawAcquisitionRecord{}, s.failRun(ctx, rep, fmt.Errorf("abort after timeout: %w", err))
			}
			if attempt > retries {
				s.state = StateConfigured
				return domain.RawAcquisitionRecord{}, &domain.TimeoutError{
					Repetition: rep,
					Attempts:   attempt,
					Timeout:    timeout,
				}
			}

		case ports.CompletionFault:
			_ = s.card.Abort(ctx)
			s.state = StateError
			return domain.RawAcquisitionRecord{}, &domain.FaultError{
				Repetition: rep,
				Detail:     completion.FaultDetail,
			}

		default:
			return domain.RawAcquisitionRecord{}, s.failRun(ctx, rep, fmt.Errorf("unexpected completion status %q", completion.Status))
		}
	}
}

func (s *AcquisitionService) readback(ctx context.Context, rep int) (domain.RawAcquisitionRecord, error) {
	record := domain.RawAcquisitionRecord{Repetition: rep}

	for _, rx := range s.timeline.Receives {
		for _, window := range rx.Windows {
			samples, err := s.card.ReadBuffer(ctx, rx.Channel, ports.WindowSpec{
				Start:      window.Start,
				NumSamples: window.NumSamples,
			})
			if err != nil {
				return domain.RawAcquisitionRecord{}, fmt.Errorf("read window [%d, %d) on channel %d: %w",
					window.Start, window.End(), rx.Channel, err)
			}
			record.Windows = append(record.Windows, domain.WindowSamples{
				Window:  window,
				Samples: samples,
			})
		}
	}

	return record, nil
}

// cancelRun handles caller cancellation: the card gets an explicit abort so
// no further buffer transfer happens and the hardware stays re-armable.
func (s *AcquisitionService) cancelRun(ctx context.Context, cause error) error {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := s.card.Abort(abortCtx); err != nil {
		s.state = StateError
		return fmt.Errorf("abort after cancellation: %w", err)
	}

	s.state = StateConfigured
	return cause
}

// failRun handles hardware-reported failures, which are non-recoverable for
// the current run.
func (s *AcquisitionService) failRun(ctx context.Context, rep int, cause error) error {
	abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = s.card.Abort(abortCtx)

	s.state = StateError
	return fmt.Errorf("repetition %d: %w", rep, cause)
}
