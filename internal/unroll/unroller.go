package unroll

import (
	"fmt"
	"math"
	"sort"

	"github.com/sourcegraph/conc"
	"gonum.org/v1/gonum/floats"

	"github.com/openmri/mrc/internal/domain"
)

const dacMax = math.MaxInt16

// Config fixes everything the unroller needs besides the block list. The
// unroll result is a pure function of (blocks, config): identical inputs
// produce byte-identical timelines.
type Config struct {
	// SampleRate is the card clock in Hz; all channels share it.
	SampleRate float64

	// QuantizationTolerance is the largest residual, in seconds, allowed
	// when a block timing is snapped to the sample raster.
	QuantizationTolerance float64

	// LarmorFrequency is the RF carrier frequency in Hz.
	LarmorFrequency float64

	// B1Scaling calibrates RF amplitudes per coil and load.
	B1Scaling float64

	// OutputMap routes logical channels onto physical outputs. Several
	// logical channels may share one output; their contributions are summed
	// per sample.
	OutputMap map[domain.ChannelID]domain.PhysicalChannel

	// OutputLimits is the maximum amplitude per physical output in mV.
	// Values are scaled against this limit when quantized to DAC units.
	OutputLimits map[domain.PhysicalChannel]float64

	// GradientOffsets adds a static offset, in mV, to a physical output.
	GradientOffsets map[domain.PhysicalChannel]float64
}

type Unroller struct {
	cfg Config
}

func New(cfg Config) (*Unroller, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %g", cfg.SampleRate)
	}
	if cfg.QuantizationTolerance <= 0 {
		return nil, fmt.Errorf("quantization tolerance must be positive, got %g", cfg.QuantizationTolerance)
	}
	if cfg.LarmorFrequency <= 0 {
		return nil, fmt.Errorf("larmor frequency must be positive, got %g", cfg.LarmorFrequency)
	}
	if len(cfg.OutputMap) == 0 {
		return nil, fmt.Errorf("output map must route at least one channel")
	}
	if cfg.B1Scaling == 0 {
		cfg.B1Scaling = 1
	}

	for logical, physical := range cfg.OutputMap {
		limit, ok := cfg.OutputLimits[physical]
		if !ok || limit <= 0 {
			return nil, fmt.Errorf("missing output limit for physical channel %d (routed from %q)", physical, logical)
		}
		if offset, ok := cfg.GradientOffsets[physical]; ok && math.Abs(offset) > limit {
			return nil, fmt.Errorf("gradient offset %g mV exceeds output limit of channel %d", offset, physical)
		}
	}

	return &Unroller{cfg: cfg}, nil
}

// placed is a block snapped onto the sample raster.
type placed struct {
	block    domain.SequenceBlock
	startIdx int
	n        int
}

func (p placed) endIdx() int { return p.startIdx + p.n }

// Unroll converts the ordered block list into one replay buffer per physical
// output plus the acquisition window and trigger maps. Construction errors
// (overlap, quantization, output limit) abort before any buffer is produced.
func (u *Unroller) Unroll(blocks []domain.SequenceBlock) (domain.Timeline, error) {
	if len(blocks) == 0 {
		return domain.Timeline{}, fmt.Errorf("no sequence blocks provided")
	}

	placedBlocks := make([]placed, 0, len(blocks))
	numSamples := 0

	for i, block := range blocks {
		if err := block.Validate(); err != nil {
			return domain.Timeline{}, fmt.Errorf("block %d: %w", i, err)
		}
		if block.Kind == domain.BlockRF || block.Kind == domain.BlockGradient {
			if _, ok := u.cfg.OutputMap[block.Channel]; !ok {
				return domain.Timeline{}, fmt.Errorf("block %d routes to %q: %w", i, block.Channel, domain.ErrUnknownChannel)
			}
		}

		startIdx, err := u.quantize(block.Start, block.Channel)
		if err != nil {
			return domain.Timeline{}, err
		}
		n, err := u.quantize(block.Duration, block.Channel)
		if err != nil {
			return domain.Timeline{}, err
		}

		p := placed{block: block, startIdx: startIdx, n: n}
		placedBlocks = append(placedBlocks, p)
		if p.endIdx() > numSamples {
			numSamples = p.endIdx()
		}
	}

	if err := checkOverlaps(placedBlocks); err != nil {
		return domain.Timeline{}, err
	}

	outputs, err := u.unrollOutputs(placedBlocks, numSamples)
	if err != nil {
		return domain.Timeline{}, err
	}

	timeline := domain.Timeline{
		SampleRate: u.cfg.SampleRate,
		NumSamples: numSamples,
		Outputs:    outputs,
		Receives:   buildReceives(placedBlocks),
	}

	if err := timeline.Validate(); err != nil {
		return domain.Timeline{}, fmt.Errorf("unrolled timeline inconsistent: %w", err)
	}

	return timeline, nil
}

func (u *Unroller) quantize(offset float64, channel domain.ChannelID) (int, error) {
	samples := math.Round(offset * u.cfg.SampleRate)
	residual := math.Abs(offset - samples/u.cfg.SampleRate)
	if residual > u.cfg.QuantizationTolerance {
		return 0, &domain.QuantizationError{
			Channel:   channel,
			Offset:    offset,
			Residual:  residual,
			Tolerance: u.cfg.QuantizationTolerance,
		}
	}
	return int(samples), nil
}

// checkOverlaps rejects blocks competing for the same logical channel, and
// ADC blocks competing for the same receive channel. Logical channels that
// share one physical output are legal; their samples are summed.
func checkOverlaps(placedBlocks []placed) error {
	byLogical := make(map[domain.ChannelID][]placed)
	byReceive := make(map[domain.ReceiveChannel][]placed)

	for _, p := range placedBlocks {
		switch p.block.Kind {
		case domain.BlockRF, domain.BlockGradient:
			byLogical[p.block.Channel] = append(byLogical[p.block.Channel], p)
		case domain.BlockADC:
			byReceive[p.block.Receive] = append(byReceive[p.block.Receive], p)
		}
	}

	check := func(group []placed) error {
		sort.Slice(group, func(i, j int) bool { return group[i].startIdx < group[j].startIdx })
		for i := 1; i < len(group); i++ {
			prev, cur := group[i-1], group[i]
			if cur.startIdx < prev.endIdx() {
				return &domain.OverlapError{
					Channel:     cur.block.Channel,
					FirstStart:  prev.block.Start,
					FirstEnd:    prev.block.End(),
					SecondStart: cur.block.Start,
					SecondEnd:   cur.block.End(),
				}
			}
		}
		return nil
	}

	for _, ch := range sortedKeys(byLogical) {
		if err := check(byLogical[ch]); err != nil {
			return err
		}
	}
	for _, ch := range sortedReceiveKeys(byReceive) {
		if err := check(byReceive[ch]); err != nil {
			return err
		}
	}

	return nil
}

// unrollOutputs accumulates block contributions per physical output. Each
// channel is independent, so channels unroll concurrently; the limit check
// and DAC quantization run serially afterwards to keep error reporting
// deterministic.
func (u *Unroller) unrollOutputs(placedBlocks []placed, numSamples int) ([]domain.OutputTimeline, error) {
	physicals := sortedPhysicals(u.cfg.OutputMap)

	buffers := make([][]float64, len(physicals))
	triggers := make([][]domain.Trigger, len(physicals))

	var wg conc.WaitGroup
	for i, physical := range physicals {
		i, physical := i, physical
		wg.Go(func() {
			buffers[i], triggers[i] = u.accumulate(physical, placedBlocks, numSamples)
		})
	}
	wg.Wait()

	outputs := make([]domain.OutputTimeline, 0, len(physicals))
	for i, physical := range physicals {
		limit := u.cfg.OutputLimits[physical]
		buf := buffers[i]

		if len(buf) > 0 {
			if peak := math.Max(floats.Max(buf), -floats.Min(buf)); peak > limit {
				return nil, fmt.Errorf("physical channel %d peaks at %.1f mV, limit %.1f mV: %w",
					physical, peak, limit, domain.ErrOutputLimit)
			}
		}

		samples := make([]int16, numSamples)
		for k, v := range buf {
			samples[k] = int16(math.Round(v / limit * dacMax))
		}

		outputs = append(outputs, domain.OutputTimeline{
			Channel:  physical,
			Samples:  samples,
			Triggers: triggers[i],
		})
	}

	return outputs, nil
}

// accumulate sums all contributions for one physical output into a float64
// buffer. Iteration order is fixed by the deterministic block sort, so the
// floating point sum is reproducible.
func (u *Unroller) accumulate(physical domain.PhysicalChannel, placedBlocks []placed, numSamples int) ([]float64, []domain.Trigger) {
	buf := make([]float64, numSamples)

	contributing := make([]placed, 0)
	for _, p := range placedBlocks {
		if p.block.Kind != domain.BlockRF && p.block.Kind != domain.BlockGradient {
			continue
		}
		if u.cfg.OutputMap[p.block.Channel] == physical {
			contributing = append(contributing, p)
		}
	}
	sort.Slice(contributing, func(i, j int) bool {
		if contributing[i].startIdx != contributing[j].startIdx {
			return contributing[i].startIdx < contributing[j].startIdx
		}
		return contributing[i].block.Channel < contributing[j].block.Channel
	})

	var unblank []domain.Trigger
	for _, p := range contributing {
		switch p.block.Kind {
		case domain.BlockRF:
			u.addRF(buf, p)
			unblank = append(unblank, domain.Trigger{Index: p.startIdx, Signal: domain.TriggerRFUnblank})
		case domain.BlockGradient:
			addGradient(buf, p)
		}
	}

	if offset := u.cfg.GradientOffsets[physical]; offset != 0 {
		floats.AddConst(offset, buf)
	}

	return buf, dedupeTriggers(unblank)
}

func buildReceives(placedBlocks []placed) []domain.ReceiveTimeline {
	byReceive := make(map[domain.ReceiveChannel][]placed)
	for _, p := range placedBlocks {
		if p.block.Kind == domain.BlockADC {
			byReceive[p.block.Receive] = append(byReceive[p.block.Receive], p)
		}
	}

	receives := make([]domain.ReceiveTimeline, 0, len(byReceive))
	for _, ch := range sortedReceiveKeys(byReceive) {
		group := byReceive[ch]
		sort.Slice(group, func(i, j int) bool { return group[i].startIdx < group[j].startIdx })

		rx := domain.ReceiveTimeline{Channel: ch}
		for _, p := range group {
			rx.Windows = append(rx.Windows, domain.AcquisitionWindow{
				Channel:    ch,
				Start:      p.startIdx,
				NumSamples: p.n,
			})
			rx.Gates = append(rx.Gates, domain.Trigger{Index: p.startIdx, Signal: domain.TriggerADCGate})
		}
		receives = append(receives, rx)
	}

	return receives
}

func dedupeTriggers(triggers []domain.Trigger) []domain.Trigger {
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].Index < triggers[j].Index })
	out := triggers[:0]
	for i, trigger := range triggers {
		if i > 0 && out[len(out)-1].Index == trigger.Index {
			continue
		}
		out = append(out, trigger)
	}
	return out
}

func sortedKeys(m map[domain.ChannelID][]placed) []domain.ChannelID {
	keys := make([]domain.ChannelID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedReceiveKeys(m map[domain.ReceiveChannel][]placed) []domain.ReceiveChannel {
	keys := make([]domain.ReceiveChannel, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedPhysicals(outputMap map[domain.ChannelID]domain.PhysicalChannel) []domain.PhysicalChannel {
	seen := make(map[domain.PhysicalChannel]struct{}, len(outputMap))
	physicals := make([]domain.PhysicalChannel, 0, len(outputMap))
	for _, physical := range outputMap {
		if _, ok := seen[physical]; ok {
			continue
		}
		seen[physical] = struct{}{}
		physicals = append(physicals, physical)
	}
	sort.Slice(physicals, func(i, j int) bool { return physicals[i] < physicals[j] })
	return physicals
}
