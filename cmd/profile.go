package cmd

import (
	"math"

	"github.com/openmri/mrc/internal/application"
	"github.com/openmri/mrc/internal/domain"
)

// defaultProfile describes the reference low-field console: one RF output,
// three gradient axes, two receive inputs, all clocked at 10 MHz.
func defaultProfile() application.HardwareProfile {
	return application.HardwareProfile{
		SampleRate: 10e6,

		// A tenth of the sample period. Tighter than the raster itself so
		// deliberate off-raster timings fail instead of silently snapping.
		QuantizationTolerance: 10e-9,

		OutputMap: map[domain.ChannelID]domain.PhysicalChannel{
			"rf0":    0,
			"grad.x": 1,
			"grad.y": 2,
			"grad.z": 3,
			"shim.x": 1,
			"shim.y": 2,
			"shim.z": 3,
		},
		OutputLimits: map[domain.PhysicalChannel]float64{
			0: 200,
			1: 6000,
			2: 6000,
			3: 6000,
		},
		GradientAxes: map[string]domain.PhysicalChannel{
			"x": 1,
			"y": 2,
			"z": 3,
		},

		ReceiveChannels:    2,
		ReceiveScalePerLSB: 200.0 / math.MaxInt16,
	}
}
