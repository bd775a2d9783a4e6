// Package postproc reshapes raw acquisition records into reconstructable
// arrays. It performs only linear corrections: DAC scaling, DC offset
// removal, complex demodulation, anti-alias filtering and decimation.
// Reconstruction physics stays downstream.
package postproc

import (
	"fmt"
	"math"
	"sort"

	"github.com/jfcg/butter"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/openmri/mrc/internal/domain"
)

type Options struct {
	// SampleRate of the raw data in Hz.
	SampleRate float64

	// ScalePerLSB converts raw DAC units to mV. Zero keeps DAC units.
	ScalePerLSB float64

	// DemodulationFrequency shifts the signal to baseband. Zero skips
	// demodulation; the imaginary part stays zero then.
	DemodulationFrequency float64

	// RemoveDCOffset subtracts the per-channel per-repetition mean.
	RemoveDCOffset bool

	// DecimationFactor is the integer downsampling factor. It must divide
	// every acquisition window length. 1 disables decimation.
	DecimationFactor int

	// FilterCutoff is the anti-alias low-pass corner in Hz. Zero derives it
	// from the decimated bandwidth.
	FilterCutoff float64

	Accumulation domain.AccumulationMode
}

// Process turns the raw records of one run into a ProcessedRecord indexed by
// (repetition, channel, time). Every record must stem from the same timeline:
// the window layout has to be identical across repetitions.
func Process(records []domain.RawAcquisitionRecord, opts Options) (domain.ProcessedRecord, error) {
	if len(records) == 0 {
		return domain.ProcessedRecord{}, fmt.Errorf("no acquisition records to process")
	}
	if opts.SampleRate <= 0 {
		return domain.ProcessedRecord{}, fmt.Errorf("sample rate must be positive, got %g", opts.SampleRate)
	}
	if opts.DecimationFactor < 1 {
		return domain.ProcessedRecord{}, fmt.Errorf("decimation factor %d: %w", opts.DecimationFactor, domain.ErrInvalidDecimationFactor)
	}
	if opts.Accumulation == "" {
		opts.Accumulation = domain.AccumulationStack
	}
	if opts.ScalePerLSB == 0 {
		opts.ScalePerLSB = 1
	}

	channels, windowsByChannel, err := windowLayout(records)
	if err != nil {
		return domain.ProcessedRecord{}, err
	}

	for _, ch := range channels {
		for _, window := range windowsByChannel[ch] {
			if window.NumSamples%opts.DecimationFactor != 0 {
				return domain.ProcessedRecord{}, fmt.Errorf(
					"window length %d on channel %d not divisible by factor %d: %w",
					window.NumSamples, ch, opts.DecimationFactor, domain.ErrInvalidDecimationFactor)
			}
		}
	}

	data := make([][][]complex128, len(records))
	for rep, record := range records {
		byWindow := make(map[domain.AcquisitionWindow][]int16, len(record.Windows))
		for _, ws := range record.Windows {
			byWindow[ws.Window] = ws.Samples
		}

		data[rep] = make([][]complex128, len(channels))
		for i, ch := range channels {
			series, err := processChannel(byWindow, windowsByChannel[ch], opts)
			if err != nil {
				return domain.ProcessedRecord{}, fmt.Errorf("repetition %d channel %d: %w", record.Repetition, ch, err)
			}
			data[rep][i] = series
		}
	}

	averaged := false
	if opts.Accumulation == domain.AccumulationAverage {
		data = [][][]complex128{averageRepetitions(data)}
		averaged = true
	}

	var bounds []domain.AcquisitionWindow
	for _, ch := range channels {
		bounds = append(bounds, windowsByChannel[ch]...)
	}

	return domain.ProcessedRecord{
		SampleRate:       opts.SampleRate / float64(opts.DecimationFactor),
		Data:             data,
		Channels:         channels,
		WindowBounds:     bounds,
		DecimationFactor: opts.DecimationFactor,
		Averaged:         averaged,
	}, nil
}

// windowLayout extracts the per-channel window structure from the first
// record and verifies every other record matches it.
func windowLayout(records []domain.RawAcquisitionRecord) ([]domain.ReceiveChannel, map[domain.ReceiveChannel][]domain.AcquisitionWindow, error) {
	layout := make(map[domain.ReceiveChannel][]domain.AcquisitionWindow)
	for _, ws := range records[0].Windows {
		layout[ws.Window.Channel] = append(layout[ws.Window.Channel], ws.Window)
	}

	channels := make([]domain.ReceiveChannel, 0, len(layout))
	for ch := range layout {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	for _, ch := range channels {
		windows := layout[ch]
		sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
	}

	for _, record := range records[1:] {
		if len(record.Windows) != len(records[0].Windows) {
			return nil, nil, fmt.Errorf("repetition %d captured %d windows, expected %d",
				record.Repetition, len(record.Windows), len(records[0].Windows))
		}
		for _, ws := range record.Windows {
			if !containsWindow(layout[ws.Window.Channel], ws.Window) {
				return nil, nil, fmt.Errorf("repetition %d captured unexpected window [%d, %d) on channel %d",
					record.Repetition, ws.Window.Start, ws.Window.End(), ws.Window.Channel)
			}
			if len(ws.Samples) != ws.Window.NumSamples {
				return nil, nil, fmt.Errorf("repetition %d window [%d, %d) holds %d samples, expected %d",
					record.Repetition, ws.Window.Start, ws.Window.End(), len(ws.Samples), ws.Window.NumSamples)
			}
		}
	}

	return channels, layout, nil
}

func containsWindow(windows []domain.AcquisitionWindow, window domain.AcquisitionWindow) bool {
	for _, w := range windows {
		if w == window {
			return true
		}
	}
	return false
}

// processChannel runs the correction pipeline over one channel of one
// repetition: scale, DC removal across the whole channel, then per window
// demodulation, filtering and decimation. Windows are concatenated in
// ascending start order.
func processChannel(byWindow map[domain.AcquisitionWindow][]int16, windows []domain.AcquisitionWindow, opts Options) ([]complex128, error) {
	scaled := make([][]float64, len(windows))
	total := 0
	for i, window := range windows {
		raw, ok := byWindow[window]
		if !ok {
			return nil, fmt.Errorf("missing samples for window [%d, %d)", window.Start, window.End())
		}
		values := make([]float64, len(raw))
		for k, s := range raw {
			values[k] = float64(s) * opts.ScalePerLSB
		}
		scaled[i] = values
		total += len(values)
	}

	if opts.RemoveDCOffset && total > 0 {
		flat := make([]float64, 0, total)
		for _, values := range scaled {
			flat = append(flat, values...)
		}
		mean := stat.Mean(flat, nil)
		for _, values := range scaled {
			floats.AddConst(-mean, values)
		}
	}

	out := make([]complex128, 0, total/opts.DecimationFactor)
	for i, window := range windows {
		series, err := demodulateAndDecimate(scaled[i], window, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, series...)
	}

	return out, nil
}

func demodulateAndDecimate(values []float64, window domain.AcquisitionWindow, opts Options) ([]complex128, error) {
	re := values
	im := make([]float64, len(values))

	if opts.DemodulationFrequency > 0 {
		re = make([]float64, len(values))
		dt := 1 / opts.SampleRate
		for i, v := range values {
			// Phase follows the absolute sample index, keeping the
			// demodulated signal coherent with the transmit carrier.
			t := float64(window.Start+i) * dt
			phase := -2 * math.Pi * opts.DemodulationFrequency * t
			re[i] = v * math.Cos(phase)
			im[i] = v * math.Sin(phase)
		}
	}

	if opts.DecimationFactor > 1 {
		cutoff := opts.FilterCutoff
		if cutoff == 0 {
			cutoff = 0.4 * opts.SampleRate / float64(opts.DecimationFactor)
		}
		wc := 2 * math.Pi * cutoff / opts.SampleRate

		lowPassRe := butter.NewLowPass1(wc)
		lowPassIm := butter.NewLowPass1(wc)
		if lowPassRe == nil || lowPassIm == nil {
			return nil, fmt.Errorf("anti-alias cutoff %g Hz outside filter range at sample rate %g", cutoff, opts.SampleRate)
		}

		for i := range re {
			re[i] = lowPassRe.Next(re[i])
			im[i] = lowPassIm.Next(im[i])
		}
	}

	out := make([]complex128, 0, len(re)/opts.DecimationFactor)
	for i := 0; i < len(re); i += opts.DecimationFactor {
		out = append(out, complex(re[i], im[i]))
	}

	return out, nil
}

func averageRepetitions(data [][][]complex128) [][]complex128 {
	if len(data) == 0 {
		return nil
	}

	avg := make([][]complex128, len(data[0]))
	for ch := range data[0] {
		avg[ch] = make([]complex128, len(data[0][ch]))
		for i := range avg[ch] {
			var sum complex128
			for rep := range data {
				sum += data[rep][ch][i]
			}
			avg[ch][i] = sum / complex(float64(len(data)), 0)
		}
	}

	return avg
}
