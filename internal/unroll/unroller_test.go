package unroll

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmri/mrc/internal/domain"
)

// testConfig uses a 1 Hz sample rate so block timings read directly as
// sample indices, and a 1 Hz carrier so every RF sample sits on a carrier
// maximum.
func testConfig() Config {
	return Config{
		SampleRate:            1,
		QuantizationTolerance: 0.01,
		LarmorFrequency:       1,
		B1Scaling:             1,
		OutputMap: map[domain.ChannelID]domain.PhysicalChannel{
			"rf0":    0,
			"grad.x": 1,
			"shim.x": 1,
		},
		OutputLimits: map[domain.PhysicalChannel]float64{
			0: 200,
			1: 6000,
		},
	}
}

func mustUnroller(t *testing.T, cfg Config) *Unroller {
	t.Helper()
	u, err := New(cfg)
	require.NoError(t, err)
	return u
}

// dacValue converts an amplitude in mV to the DAC code expected for a given
// output limit.
func dacValue(amplitude, limit float64) int16 {
	return int16(math.Round(amplitude / limit * dacMax))
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "zero sample rate", mutate: func(c *Config) { c.SampleRate = 0 }, wantErr: "sample rate"},
		{name: "zero tolerance", mutate: func(c *Config) { c.QuantizationTolerance = 0 }, wantErr: "tolerance"},
		{name: "zero larmor", mutate: func(c *Config) { c.LarmorFrequency = 0 }, wantErr: "larmor"},
		{name: "empty output map", mutate: func(c *Config) { c.OutputMap = nil }, wantErr: "output map"},
		{
			name:    "missing output limit",
			mutate:  func(c *Config) { delete(c.OutputLimits, 1) },
			wantErr: "missing output limit",
		},
		{
			name: "offset beyond limit",
			mutate: func(c *Config) {
				c.GradientOffsets = map[domain.PhysicalChannel]float64{1: 7000}
			},
			wantErr: "exceeds output limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestUnrollRFAndADCScenario(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockRF, Channel: "rf0", Start: 0, Duration: 50, Amplitude: 100},
		{Kind: domain.BlockADC, Channel: "adc0", Start: 60, Duration: 100, Receive: 1},
	}

	timeline, err := u.Unroll(blocks)
	require.NoError(t, err)

	require.GreaterOrEqual(t, timeline.NumSamples, 160)
	for _, out := range timeline.Outputs {
		assert.Len(t, out.Samples, timeline.NumSamples, "all channels share one clock")
	}

	rf, ok := timeline.Output(0)
	require.True(t, ok)
	for i, sample := range rf.Samples {
		if i < 50 {
			assert.NotZero(t, sample, "sample %d inside RF block", i)
		} else {
			assert.Zero(t, sample, "sample %d outside RF block", i)
		}
	}
	require.Len(t, rf.Triggers, 1)
	assert.Equal(t, domain.Trigger{Index: 0, Signal: domain.TriggerRFUnblank}, rf.Triggers[0])

	rx, ok := timeline.Receive(1)
	require.True(t, ok)
	require.Len(t, rx.Windows, 1)
	assert.Equal(t, domain.AcquisitionWindow{Channel: 1, Start: 60, NumSamples: 100}, rx.Windows[0])
	require.Len(t, rx.Gates, 1)
	assert.Equal(t, domain.Trigger{Index: 60, Signal: domain.TriggerADCGate}, rx.Gates[0])
}

func TestUnrollIsDeterministic(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockRF, Channel: "rf0", Start: 0, Duration: 50, Amplitude: 100, Phase: 0.5},
		{Kind: domain.BlockGradient, Channel: "grad.x", Start: 10, Duration: 80, Amplitude: 3000,
			RiseTime: 10, FlatTime: 60, FallTime: 10},
		{Kind: domain.BlockGradient, Channel: "shim.x", Start: 0, Duration: 200, Amplitude: 50},
		{Kind: domain.BlockADC, Start: 100, Duration: 80, Receive: 0},
	}

	first, err := u.Unroll(blocks)
	require.NoError(t, err)
	second, err := u.Unroll(blocks)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must produce byte-identical timelines")
}

func TestUnrollRejectsOverlapOnSameChannel(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockRF, Channel: "rf0", Start: 0, Duration: 100, Amplitude: 10},
		{Kind: domain.BlockRF, Channel: "rf0", Start: 50, Duration: 100, Amplitude: 10},
	}

	_, err := u.Unroll(blocks)
	require.ErrorIs(t, err, domain.ErrOverlap)

	var overlapErr *domain.OverlapError
	require.ErrorAs(t, err, &overlapErr)
	assert.Equal(t, domain.ChannelID("rf0"), overlapErr.Channel)
}

func TestUnrollRejectsOverlappingAcquisitionWindows(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockADC, Channel: "adc0", Start: 0, Duration: 100, Receive: 0},
		{Kind: domain.BlockADC, Channel: "adc0", Start: 80, Duration: 100, Receive: 0},
	}

	_, err := u.Unroll(blocks)
	assert.ErrorIs(t, err, domain.ErrOverlap)
}

func TestUnrollAllowsAdjacentWindowsOnDistinctChannels(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockADC, Start: 0, Duration: 100, Receive: 0},
		{Kind: domain.BlockADC, Start: 80, Duration: 100, Receive: 1},
		{Kind: domain.BlockADC, Start: 100, Duration: 50, Receive: 0},
	}

	timeline, err := u.Unroll(blocks)
	require.NoError(t, err)
	assert.Len(t, timeline.Windows(), 3)
}

func TestUnrollRejectsOffRasterTiming(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockRF, Channel: "rf0", Start: 10.4, Duration: 50, Amplitude: 10},
	}

	_, err := u.Unroll(blocks)
	require.ErrorIs(t, err, domain.ErrQuantization)

	var quantErr *domain.QuantizationError
	require.ErrorAs(t, err, &quantErr)
	assert.InDelta(t, 0.4, quantErr.Residual, 1e-9)
}

func TestUnrollSnapsTimingWithinTolerance(t *testing.T) {
	cfg := testConfig()
	cfg.QuantizationTolerance = 0.5
	u := mustUnroller(t, cfg)

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockRF, Channel: "rf0", Start: 10.4, Duration: 50, Amplitude: 10},
	}

	timeline, err := u.Unroll(blocks)
	require.NoError(t, err)

	rf, ok := timeline.Output(0)
	require.True(t, ok)
	assert.Zero(t, rf.Samples[9])
	assert.NotZero(t, rf.Samples[10], "start snapped to nearest sample")
}

func TestUnrollSumsMultiplexedChannels(t *testing.T) {
	u := mustUnroller(t, testConfig())

	// grad.x and shim.x share physical output 1 and overlap in time; their
	// amplitudes accumulate instead of overwriting each other.
	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockGradient, Channel: "grad.x", Start: 0, Duration: 100, Amplitude: 1000},
		{Kind: domain.BlockGradient, Channel: "shim.x", Start: 0, Duration: 100, Amplitude: 500},
	}

	timeline, err := u.Unroll(blocks)
	require.NoError(t, err)

	out, ok := timeline.Output(1)
	require.True(t, ok)

	want := dacValue(1500, 6000)
	assert.InDelta(t, want, out.Samples[50], 1)
}

func TestUnrollRejectsUnknownChannel(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockGradient, Channel: "grad.q", Start: 0, Duration: 10, Amplitude: 10},
	}

	_, err := u.Unroll(blocks)
	assert.ErrorIs(t, err, domain.ErrUnknownChannel)
}

func TestUnrollRejectsOutputLimitViolation(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockGradient, Channel: "grad.x", Start: 0, Duration: 100, Amplitude: 4000},
		{Kind: domain.BlockGradient, Channel: "shim.x", Start: 0, Duration: 100, Amplitude: 4000},
	}

	_, err := u.Unroll(blocks)
	assert.ErrorIs(t, err, domain.ErrOutputLimit)
}

func TestUnrollAppliesGradientOffset(t *testing.T) {
	cfg := testConfig()
	cfg.GradientOffsets = map[domain.PhysicalChannel]float64{1: 600}
	u := mustUnroller(t, cfg)

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockGradient, Channel: "grad.x", Start: 0, Duration: 10, Amplitude: 1000},
		{Kind: domain.BlockDelay, Start: 10, Duration: 10},
	}

	timeline, err := u.Unroll(blocks)
	require.NoError(t, err)

	out, ok := timeline.Output(1)
	require.True(t, ok)

	offsetOnly := dacValue(600, 6000)
	assert.InDelta(t, offsetOnly, out.Samples[15], 1, "offset persists outside the block")
	withBlock := dacValue(1600, 6000)
	assert.InDelta(t, withBlock, out.Samples[5], 1)
}

func TestUnrollTrapezoidShape(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockGradient, Channel: "grad.x", Start: 0, Duration: 100, Amplitude: 3000,
			RiseTime: 20, FlatTime: 60, FallTime: 20},
	}

	timeline, err := u.Unroll(blocks)
	require.NoError(t, err)

	out, ok := timeline.Output(1)
	require.True(t, ok)

	flat := dacValue(3000, 6000)
	assert.InDelta(t, flat, out.Samples[50], 1, "flat top at amplitude")
	assert.Less(t, out.Samples[5], out.Samples[15], "rising edge")
	assert.Greater(t, out.Samples[85], out.Samples[95], "falling edge")
}

func TestUnrollArbitraryEnvelopeGradient(t *testing.T) {
	u := mustUnroller(t, testConfig())

	blocks := []domain.SequenceBlock{
		{Kind: domain.BlockGradient, Channel: "grad.x", Start: 0, Duration: 101, Amplitude: 3000,
			Envelope: []float64{0, 1, 0}},
	}

	timeline, err := u.Unroll(blocks)
	require.NoError(t, err)

	out, ok := timeline.Output(1)
	require.True(t, ok)

	peak := dacValue(3000, 6000)
	assert.InDelta(t, peak, out.Samples[50], 2, "interpolated envelope peaks mid-block")
	assert.InDelta(t, 0, out.Samples[0], 1)
	assert.InDelta(t, 0, out.Samples[100], 1)
}

func TestUnrollEmptyInput(t *testing.T) {
	u := mustUnroller(t, testConfig())
	_, err := u.Unroll(nil)
	assert.ErrorContains(t, err, "no sequence blocks")
}
