package postproc

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmri/mrc/internal/domain"
)

func rawRecord(rep int, windows ...domain.WindowSamples) domain.RawAcquisitionRecord {
	return domain.RawAcquisitionRecord{Repetition: rep, Windows: windows}
}

func constantWindow(ch domain.ReceiveChannel, start, n int, value int16) domain.WindowSamples {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = value
	}
	return domain.WindowSamples{
		Window:  domain.AcquisitionWindow{Channel: ch, Start: start, NumSamples: n},
		Samples: samples,
	}
}

func TestProcessRejectsNonDividingDecimationFactor(t *testing.T) {
	records := []domain.RawAcquisitionRecord{rawRecord(1, constantWindow(0, 0, 1000, 100))}

	_, err := Process(records, Options{SampleRate: 1e6, DecimationFactor: 3})
	require.ErrorIs(t, err, domain.ErrInvalidDecimationFactor)
	assert.ErrorContains(t, err, "window length 1000")
}

func TestProcessDecimatesByIntegerFactor(t *testing.T) {
	records := []domain.RawAcquisitionRecord{rawRecord(1, constantWindow(0, 0, 1000, 100))}

	record, err := Process(records, Options{SampleRate: 1e6, DecimationFactor: 4})
	require.NoError(t, err)

	require.Equal(t, 1, record.Repetitions())
	assert.Len(t, record.ChannelData(0, 0), 250)
	assert.Equal(t, 250e3, record.SampleRate)
	assert.Equal(t, 4, record.DecimationFactor)
}

func TestProcessRemovesDCOffset(t *testing.T) {
	records := []domain.RawAcquisitionRecord{rawRecord(1, constantWindow(0, 0, 64, 500))}

	record, err := Process(records, Options{
		SampleRate:       1e6,
		DecimationFactor: 1,
		RemoveDCOffset:   true,
	})
	require.NoError(t, err)

	for _, z := range record.ChannelData(0, 0) {
		assert.InDelta(t, 0, real(z), 1e-9)
		assert.InDelta(t, 0, imag(z), 1e-9)
	}
}

func TestProcessScalesRawSamples(t *testing.T) {
	records := []domain.RawAcquisitionRecord{rawRecord(1, constantWindow(0, 0, 8, 1000))}

	record, err := Process(records, Options{
		SampleRate:       1e6,
		DecimationFactor: 1,
		ScalePerLSB:      0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, complex(500, 0), record.ChannelData(0, 0)[0])
}

func TestProcessDemodulatesToBaseband(t *testing.T) {
	const (
		sampleRate = 1000.0
		freq       = 50.0
		amplitude  = 10000.0
		n          = 400 // whole number of carrier periods
	)

	samples := make([]int16, n)
	for i := range samples {
		ts := float64(i) / sampleRate
		samples[i] = int16(math.Round(amplitude * math.Cos(2*math.Pi*freq*ts)))
	}

	records := []domain.RawAcquisitionRecord{rawRecord(1, domain.WindowSamples{
		Window:  domain.AcquisitionWindow{Channel: 0, Start: 0, NumSamples: n},
		Samples: samples,
	})}

	record, err := Process(records, Options{
		SampleRate:            sampleRate,
		DecimationFactor:      1,
		DemodulationFrequency: freq,
	})
	require.NoError(t, err)

	series := record.ChannelData(0, 0)
	require.Len(t, series, n)

	var sum complex128
	for _, z := range series {
		sum += z
	}
	mean := sum / complex(float64(n), 0)

	// Mixing cos(wt) down by w leaves A/2 at DC plus a zero-mean image at 2w.
	assert.InDelta(t, amplitude/2, real(mean), amplitude*0.01)
	assert.InDelta(t, 0, imag(mean), amplitude*0.01)
}

func TestProcessDemodulationPhaseFollowsAbsoluteTime(t *testing.T) {
	const (
		sampleRate = 1000.0
		freq       = 50.0
		start      = 105 // off the carrier raster
	)

	samples := make([]int16, 40)
	for i := range samples {
		ts := float64(start+i) / sampleRate
		samples[i] = int16(math.Round(10000 * math.Cos(2*math.Pi*freq*ts)))
	}

	records := []domain.RawAcquisitionRecord{rawRecord(1, domain.WindowSamples{
		Window:  domain.AcquisitionWindow{Channel: 0, Start: start, NumSamples: len(samples)},
		Samples: samples,
	})}

	record, err := Process(records, Options{
		SampleRate:            sampleRate,
		DecimationFactor:      1,
		DemodulationFrequency: freq,
	})
	require.NoError(t, err)

	var sum complex128
	for _, z := range record.ChannelData(0, 0) {
		sum += z
	}
	mean := sum / complex(float64(len(samples)), 0)

	// Coherent demodulation lands the baseband component on the positive real
	// axis regardless of where the window starts.
	assert.InDelta(t, 0, cmplx.Phase(mean), 0.05)
}

func TestProcessStacksRepetitions(t *testing.T) {
	records := []domain.RawAcquisitionRecord{
		rawRecord(1, constantWindow(0, 0, 8, 100)),
		rawRecord(2, constantWindow(0, 0, 8, 300)),
	}

	record, err := Process(records, Options{SampleRate: 1e6, DecimationFactor: 1})
	require.NoError(t, err)

	require.Equal(t, 2, record.Repetitions())
	assert.False(t, record.Averaged)
	assert.Equal(t, complex(100, 0), record.ChannelData(0, 0)[0])
	assert.Equal(t, complex(300, 0), record.ChannelData(1, 0)[0])
}

func TestProcessAveragesRepetitions(t *testing.T) {
	records := []domain.RawAcquisitionRecord{
		rawRecord(1, constantWindow(0, 0, 8, 100)),
		rawRecord(2, constantWindow(0, 0, 8, 300)),
	}

	record, err := Process(records, Options{
		SampleRate:       1e6,
		DecimationFactor: 1,
		Accumulation:     domain.AccumulationAverage,
	})
	require.NoError(t, err)

	require.Equal(t, 1, record.Repetitions())
	assert.True(t, record.Averaged)
	assert.Equal(t, complex(200, 0), record.ChannelData(0, 0)[0])
}

func TestProcessConcatenatesWindowsPerChannel(t *testing.T) {
	records := []domain.RawAcquisitionRecord{rawRecord(1,
		constantWindow(0, 100, 8, 10),
		constantWindow(1, 100, 8, 20),
		constantWindow(0, 0, 8, 30),
	)}

	record, err := Process(records, Options{SampleRate: 1e6, DecimationFactor: 1})
	require.NoError(t, err)

	require.Equal(t, []domain.ReceiveChannel{0, 1}, record.Channels)

	series := record.ChannelData(0, 0)
	require.Len(t, series, 16)
	assert.Equal(t, complex(30, 0), series[0], "earlier window comes first")
	assert.Equal(t, complex(10, 0), series[8])

	assert.Len(t, record.ChannelData(0, 1), 8)
	require.Len(t, record.WindowBounds, 3)
	assert.Equal(t, domain.AcquisitionWindow{Channel: 0, Start: 0, NumSamples: 8}, record.WindowBounds[0])
}

func TestProcessRejectsMismatchedWindowLayouts(t *testing.T) {
	records := []domain.RawAcquisitionRecord{
		rawRecord(1, constantWindow(0, 0, 8, 100)),
		rawRecord(2, constantWindow(0, 16, 8, 100)),
	}

	_, err := Process(records, Options{SampleRate: 1e6, DecimationFactor: 1})
	assert.ErrorContains(t, err, "unexpected window")
}

func TestProcessRejectsEmptyInput(t *testing.T) {
	_, err := Process(nil, Options{SampleRate: 1e6, DecimationFactor: 1})
	assert.ErrorContains(t, err, "no acquisition records")
}

func TestSummarizeReportsMagnitudeStatistics(t *testing.T) {
	n := 128
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Exp(-float64(i)/16) * math.Cos(float64(i)/3))
	}

	records := []domain.RawAcquisitionRecord{rawRecord(1, domain.WindowSamples{
		Window:  domain.AcquisitionWindow{Channel: 0, Start: 0, NumSamples: n},
		Samples: samples,
	})}

	record, err := Process(records, Options{SampleRate: 1e6, DecimationFactor: 1})
	require.NoError(t, err)

	summaries, err := Summarize(record)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	assert.Equal(t, domain.ReceiveChannel(0), summary.Channel)
	assert.Equal(t, n, summary.Samples)
	assert.InDelta(t, 8000, summary.PeakMagnitude, 1)
	assert.Greater(t, summary.MeanMagnitude, 0.0)
	assert.Less(t, summary.MeanMagnitude, summary.PeakMagnitude)
	assert.Less(t, summary.NoiseSD, summary.MeanMagnitude, "tail noise sits below the mean signal level")
}
