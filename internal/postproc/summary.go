package postproc

import (
	"fmt"
	"math/cmplx"

	"github.com/montanaflynn/stats"

	"github.com/openmri/mrc/internal/domain"
)

// ChannelSummary condenses one receive channel of a processed record into the
// figures an operator checks between scans.
type ChannelSummary struct {
	Channel       domain.ReceiveChannel
	Samples       int
	MeanMagnitude float64
	PeakMagnitude float64

	// NoiseSD is the standard deviation of the magnitude over the trailing
	// quarter of the series, where the signal has largely decayed.
	NoiseSD float64
}

// Summarize computes per-channel magnitude statistics over the first
// repetition of a processed record.
func Summarize(record domain.ProcessedRecord) ([]ChannelSummary, error) {
	if record.Repetitions() == 0 {
		return nil, fmt.Errorf("processed record holds no repetitions")
	}

	summaries := make([]ChannelSummary, 0, len(record.Channels))
	for i, ch := range record.Channels {
		series := record.Data[0][i]
		if len(series) == 0 {
			summaries = append(summaries, ChannelSummary{Channel: ch})
			continue
		}

		magnitudes := make(stats.Float64Data, len(series))
		for k, z := range series {
			magnitudes[k] = cmplx.Abs(z)
		}

		mean, err := stats.Mean(magnitudes)
		if err != nil {
			return nil, fmt.Errorf("mean magnitude for channel %d: %w", ch, err)
		}
		peak, err := stats.Max(magnitudes)
		if err != nil {
			return nil, fmt.Errorf("peak magnitude for channel %d: %w", ch, err)
		}

		tail := magnitudes[len(magnitudes)-len(magnitudes)/4:]
		noise := 0.0
		if len(tail) > 1 {
			noise, err = stats.StandardDeviation(tail)
			if err != nil {
				return nil, fmt.Errorf("noise estimate for channel %d: %w", ch, err)
			}
		}

		summaries = append(summaries, ChannelSummary{
			Channel:       ch,
			Samples:       len(series),
			MeanMagnitude: mean,
			PeakMagnitude: peak,
			NoiseSD:       noise,
		})
	}

	return summaries, nil
}
