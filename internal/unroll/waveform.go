package unroll

import "math"

// addRF mixes a carrier-modulated RF envelope into the accumulator. The
// carrier phase is computed from the absolute sample index, which keeps all
// RF blocks of a sequence phase coherent with each other and with the
// receive demodulation.
func (u *Unroller) addRF(buf []float64, p placed) {
	envelope := resample(p.block.Envelope, p.n)
	amplitude := p.block.Amplitude * u.cfg.B1Scaling
	carrierFreq := u.cfg.LarmorFrequency + p.block.FrequencyOffset
	dt := 1 / u.cfg.SampleRate

	for i := 0; i < p.n; i++ {
		t := float64(p.startIdx+i) * dt
		carrier := math.Cos(2*math.Pi*carrierFreq*t + p.block.Phase)
		buf[p.startIdx+i] += amplitude * envelope[i] * carrier
	}
}

// addGradient mixes a gradient waveform into the accumulator: either a
// trapezoid built from the block's ramp timing, an arbitrary envelope
// interpolated onto the raster, or a flat rectangle.
func addGradient(buf []float64, p placed) {
	block := p.block

	if len(block.Envelope) > 0 {
		envelope := resample(block.Envelope, p.n)
		for i := 0; i < p.n; i++ {
			buf[p.startIdx+i] += block.Amplitude * envelope[i]
		}
		return
	}

	riseN := int(math.Round(block.RiseTime * float64(p.n) / block.Duration))
	fallN := int(math.Round(block.FallTime * float64(p.n) / block.Duration))
	if block.RiseTime+block.FlatTime+block.FallTime == 0 {
		riseN, fallN = 0, 0
	}
	flatEnd := p.n - fallN

	for i := 0; i < p.n; i++ {
		var v float64
		switch {
		case i < riseN:
			v = block.Amplitude * float64(i+1) / float64(riseN)
		case i < flatEnd:
			v = block.Amplitude
		default:
			v = block.Amplitude * float64(p.n-1-i) / float64(fallN)
		}
		buf[p.startIdx+i] += v
	}
}

// resample maps a normalized envelope onto n raster samples by linear
// interpolation. A missing envelope yields a rectangle.
func resample(envelope []float64, n int) []float64 {
	out := make([]float64, n)

	if len(envelope) == 0 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	if len(envelope) == 1 || n == 1 {
		for i := range out {
			out[i] = envelope[0]
		}
		return out
	}

	scale := float64(len(envelope)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * scale
		lo := int(pos)
		if lo >= len(envelope)-1 {
			out[i] = envelope[len(envelope)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = envelope[lo]*(1-frac) + envelope[lo+1]*frac
	}

	return out
}
