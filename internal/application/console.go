package application

import (
	"context"
	"fmt"

	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/ports"
	"github.com/openmri/mrc/internal/postproc"
	"github.com/openmri/mrc/internal/unroll"
)

// HardwareProfile describes the fixed properties of the installed card and
// coil wiring. Unlike Parameters it does not change between experiments.
type HardwareProfile struct {
	// SampleRate is the shared output and receive clock in Hz.
	SampleRate float64

	// QuantizationTolerance is the largest raster residual, in seconds,
	// accepted when placing block timings.
	QuantizationTolerance float64

	// OutputMap routes logical sequence channels onto physical card outputs.
	OutputMap map[domain.ChannelID]domain.PhysicalChannel

	// OutputLimits holds the maximum amplitude per physical output in mV.
	OutputLimits map[domain.PhysicalChannel]float64

	// GradientAxes names the physical output of each gradient axis, so the
	// per-axis offsets from Parameters land on the right channel.
	GradientAxes map[string]domain.PhysicalChannel

	// ReceiveChannels is the number of card inputs.
	ReceiveChannels int

	// ReceiveScalePerLSB converts raw receive samples to mV.
	ReceiveScalePerLSB float64
}

func (p HardwareProfile) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("profile sample rate must be positive, got %g", p.SampleRate)
	}
	if p.QuantizationTolerance <= 0 {
		return fmt.Errorf("profile quantization tolerance must be positive, got %g", p.QuantizationTolerance)
	}
	if len(p.OutputMap) == 0 {
		return fmt.Errorf("profile must route at least one logical channel")
	}
	if p.ReceiveChannels < 1 {
		return fmt.Errorf("profile must expose at least one receive channel, got %d", p.ReceiveChannels)
	}

	for axis, physical := range p.GradientAxes {
		if _, ok := p.OutputLimits[physical]; !ok {
			return fmt.Errorf("gradient axis %q routes to channel %d which has no output limit", axis, physical)
		}
	}

	return nil
}

// ConsoleService wires the stored sequences and parameters to the unroller.
// It owns no card; acquisition itself runs through an AcquisitionService.
type ConsoleService struct {
	sequences  ports.SequenceRepository
	parameters ports.ParameterRepository
	profile    HardwareProfile
}

func NewConsoleService(sequences ports.SequenceRepository, parameters ports.ParameterRepository, profile HardwareProfile) (*ConsoleService, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("validate hardware profile: %w", err)
	}

	return &ConsoleService{
		sequences:  sequences,
		parameters: parameters,
		profile:    profile,
	}, nil
}

func (s *ConsoleService) Profile() HardwareProfile {
	return s.profile
}

func (s *ConsoleService) ListSequences(ctx context.Context) ([]string, error) {
	return s.sequences.List(ctx)
}

func (s *ConsoleService) Parameters(ctx context.Context) (domain.Parameters, error) {
	return s.parameters.Load(ctx)
}

func (s *ConsoleService) SaveParameters(ctx context.Context, params domain.Parameters) error {
	return s.parameters.Save(ctx, params)
}

// Compile loads a stored sequence and unrolls it under the current
// parameters. The returned parameters are the ones the timeline was built
// with; a later parameter change requires a recompile.
func (s *ConsoleService) Compile(ctx context.Context, name string) (domain.Timeline, domain.Parameters, error) {
	params, err := s.parameters.Load(ctx)
	if err != nil {
		return domain.Timeline{}, domain.Parameters{}, fmt.Errorf("load parameters: %w", err)
	}

	timeline, err := s.CompileWith(ctx, name, params)
	if err != nil {
		return domain.Timeline{}, domain.Parameters{}, err
	}

	return timeline, params, nil
}

// CompileWith unrolls a stored sequence under explicit parameters.
func (s *ConsoleService) CompileWith(ctx context.Context, name string, params domain.Parameters) (domain.Timeline, error) {
	if err := params.Validate(); err != nil {
		return domain.Timeline{}, fmt.Errorf("validate parameters: %w", err)
	}

	blocks, err := s.sequences.Load(ctx, name)
	if err != nil {
		return domain.Timeline{}, fmt.Errorf("load sequence %q: %w", name, err)
	}

	unroller, err := unroll.New(unroll.Config{
		SampleRate:            s.profile.SampleRate,
		QuantizationTolerance: s.profile.QuantizationTolerance,
		LarmorFrequency:       params.LarmorFrequency,
		B1Scaling:             params.B1Scaling,
		OutputMap:             s.profile.OutputMap,
		OutputLimits:          s.profile.OutputLimits,
		GradientOffsets:       s.gradientOffsets(params.GradientOffset),
	})
	if err != nil {
		return domain.Timeline{}, fmt.Errorf("configure unroller: %w", err)
	}

	timeline, err := unroller.Unroll(blocks)
	if err != nil {
		return domain.Timeline{}, fmt.Errorf("unroll sequence %q: %w", name, err)
	}

	return timeline, nil
}

// ProcessOptions derives the post-processing pipeline settings from the
// experiment parameters.
func (s *ConsoleService) ProcessOptions(params domain.Parameters) postproc.Options {
	return postproc.Options{
		SampleRate:            s.profile.SampleRate,
		ScalePerLSB:           s.profile.ReceiveScalePerLSB,
		DemodulationFrequency: params.LarmorFrequency,
		RemoveDCOffset:        true,
		DecimationFactor:      params.DecimationFactor,
		Accumulation:          params.Accumulation,
	}
}

func (s *ConsoleService) gradientOffsets(offset domain.GradientOffset) map[domain.PhysicalChannel]float64 {
	offsets := make(map[domain.PhysicalChannel]float64, len(s.profile.GradientAxes))
	for axis, physical := range s.profile.GradientAxes {
		switch axis {
		case "x":
			offsets[physical] = offset.X
		case "y":
			offsets[physical] = offset.Y
		case "z":
			offsets[physical] = offset.Z
		}
	}
	return offsets
}
