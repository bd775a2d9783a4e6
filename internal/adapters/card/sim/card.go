// Package sim provides an in-memory measurement card for development and
// testing. It implements the full card capability interface: replay buffers
// are accepted and held, completion waits can be scripted to time out or
// fault on chosen repetitions, and readback synthesizes a deterministic
// free-induction-decay signal.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/ports"
)

type Option func(*Card)

// WithFaultOnRepetition makes the completion wait of the given repetition
// (1-based) report a hardware fault with the given detail.
func WithFaultOnRepetition(rep int, detail string) Option {
	return func(c *Card) {
		c.faultRep = rep
		c.faultDetail = detail
	}
}

// WithTimeoutsOnRepetition makes the completion wait of the given repetition
// (1-based) report a timeout the given number of times before succeeding.
func WithTimeoutsOnRepetition(rep int, count int) Option {
	return func(c *Card) {
		c.timeouts[rep] = count
	}
}

// WithSignal replaces the synthesized receive signal. The function is called
// with the receive channel and the absolute sample index and returns a raw
// DAC value.
func WithSignal(signal func(ch domain.ReceiveChannel, index int) int16) Option {
	return func(c *Card) {
		c.signal = signal
	}
}

type Card struct {
	mu sync.Mutex

	cfg        ports.CardConfig
	configured bool
	armed      bool
	running    bool

	buffers map[domain.PhysicalChannel][]int16
	starts  int
	dones   int
	aborts  int

	faultRep    int
	faultDetail string
	timeouts    map[int]int

	signal func(ch domain.ReceiveChannel, index int) int16
}

var _ ports.Card = (*Card)(nil)

func New(opts ...Option) *Card {
	c := &Card{
		buffers:  make(map[domain.PhysicalChannel][]int16),
		timeouts: make(map[int]int),
	}
	c.signal = c.fidSignal

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Card) Configure(ctx context.Context, cfg ports.CardConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %g", cfg.SampleRate)
	}
	if cfg.OutputChannels < 1 {
		return fmt.Errorf("at least one output channel required, got %d", cfg.OutputChannels)
	}

	c.cfg = cfg
	c.configured = true
	c.armed = false
	c.running = false
	c.buffers = make(map[domain.PhysicalChannel][]int16)
	c.starts = 0
	c.dones = 0

	return nil
}

func (c *Card) LoadBuffer(ctx context.Context, channel domain.PhysicalChannel, samples []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.configured {
		return fmt.Errorf("card not configured")
	}
	if int(channel) < 0 || int(channel) >= c.cfg.OutputChannels {
		return fmt.Errorf("output channel %d outside configured range [0, %d)", channel, c.cfg.OutputChannels)
	}

	buf := make([]int16, len(samples))
	copy(buf, samples)
	c.buffers[channel] = buf

	return nil
}

func (c *Card) Arm(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.configured {
		return fmt.Errorf("card not configured")
	}
	if c.running {
		return fmt.Errorf("card still running, abort first")
	}

	c.armed = true
	return nil
}

func (c *Card) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armed {
		return fmt.Errorf("card not armed")
	}

	c.armed = false
	c.running = true
	c.starts++

	return nil
}

func (c *Card) WaitComplete(ctx context.Context, timeout time.Duration) (ports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return ports.Completion{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ports.Completion{}, fmt.Errorf("card not running")
	}

	// Scripted outcomes address logical repetitions: a retry of a timed-out
	// repetition consults the same entry again.
	rep := c.dones + 1
	if remaining := c.timeouts[rep]; remaining > 0 {
		c.timeouts[rep] = remaining - 1
		return ports.Completion{Status: ports.CompletionTimeout}, nil
	}
	if c.faultRep != 0 && rep == c.faultRep {
		return ports.Completion{Status: ports.CompletionFault, FaultDetail: c.faultDetail}, nil
	}

	c.running = false
	c.dones++
	return ports.Completion{Status: ports.CompletionDone}, nil
}

func (c *Card) ReadBuffer(ctx context.Context, channel domain.ReceiveChannel, window ports.WindowSpec) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.configured {
		return nil, fmt.Errorf("card not configured")
	}
	if int(channel) < 0 || int(channel) >= c.cfg.ReceiveChannels {
		return nil, fmt.Errorf("receive channel %d outside configured range [0, %d)", channel, c.cfg.ReceiveChannels)
	}
	if window.Start < 0 || window.NumSamples < 0 {
		return nil, fmt.Errorf("invalid window spec [%d, %d)", window.Start, window.Start+window.NumSamples)
	}

	samples := make([]int16, window.NumSamples)
	for i := range samples {
		samples[i] = c.signal(channel, window.Start+i)
	}

	return samples, nil
}

func (c *Card) Abort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.armed = false
	c.running = false
	c.aborts++

	return nil
}

// Starts reports how many replay cycles were started.
func (c *Card) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

// Aborts reports how many abort commands the card received.
func (c *Card) Aborts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborts
}

// fidSignal synthesizes a decaying sinusoid: a crude free induction decay
// whose frequency sits at 1/64 of the sample clock. Deterministic in the
// absolute sample index, so repeated reads are identical.
func (c *Card) fidSignal(ch domain.ReceiveChannel, index int) int16 {
	dt := 1 / c.cfg.SampleRate
	t := float64(index) * dt
	freq := c.cfg.SampleRate / 64
	decay := math.Exp(-t * c.cfg.SampleRate / 2048)
	amplitude := 12000.0 / float64(int(ch)+1)

	return int16(amplitude * decay * math.Sin(2*math.Pi*freq*t))
}
