package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// stage transforms interleaved 16-bit samples. Stages never modify their input.
type stage func(samples []int16) []int16

// Converter turns raw native packets into output-format PCM bytes by running
// an ordered pipeline: decode to 16-bit, channel conversion, resampling.
// Stages whose formats already match are left out.
type Converter struct {
	in, out Format
	stages  []stage
}

// NewConverter builds the pipeline from in to out. The output must be 16-bit
// integer PCM.
func NewConverter(in, out Format) (*Converter, error) {
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("native format: %w", err)
	}
	if out.Float || out.BitsPerSample != 16 || out.SampleRate <= 0 || out.Channels <= 0 {
		return nil, fmt.Errorf("output format %s: only 16-bit PCM is supported", out)
	}

	c := &Converter{in: in, out: out}
	if in.Channels != out.Channels {
		from, to := in.Channels, out.Channels
		c.stages = append(c.stages, func(s []int16) []int16 { return ConvertChannels(s, from, to) })
	}
	if in.SampleRate != out.SampleRate {
		ch, from, to := out.Channels, in.SampleRate, out.SampleRate
		c.stages = append(c.stages, func(s []int16) []int16 { return Resample(s, ch, from, to) })
	}
	return c, nil
}

// Passthrough reports whether native and output formats are identical.
func (c *Converter) Passthrough() bool {
	return c.in == c.out
}

// Convert converts one packet of native bytes. Trailing bytes that do not
// form a whole frame are dropped.
func (c *Converter) Convert(raw []byte) []byte {
	if ba := c.in.BlockAlign(); ba > 0 {
		raw = raw[:len(raw)-len(raw)%ba]
	}
	if len(raw) == 0 {
		return nil
	}
	if c.Passthrough() {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}

	samples := decode(raw, c.in)
	for _, st := range c.stages {
		samples = st(samples)
	}
	return Int16ToBytes(samples)
}

func decode(raw []byte, f Format) []int16 {
	switch {
	case f.Float:
		return Float32ToInt16(raw)
	case f.BitsPerSample == 16:
		return BytesToInt16(raw)
	case f.BitsPerSample == 24:
		out := make([]int16, len(raw)/3)
		for i := range out {
			// Keep the two most significant bytes.
			out[i] = int16(binary.LittleEndian.Uint16(raw[i*3+1:]))
		}
		return out
	default:
		out := make([]int16, len(raw)/4)
		for i := range out {
			out[i] = int16(int32(binary.LittleEndian.Uint32(raw[i*4:])) >> 16)
		}
		return out
	}
}

// Float32ToInt16 converts little-endian IEEE float samples to 16-bit PCM:
// clamp to [-1, 1], scale by 32767, truncate.
func Float32ToInt16(raw []byte) []int16 {
	out := make([]int16, len(raw)/4)
	for i := range out {
		v := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		switch {
		case v != v:
			v = 0
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		out[i] = int16(v * 32767)
	}
	return out
}

// ConvertChannels maps interleaved frames from one channel count to another.
// Down to mono averages every channel with integer truncation (for stereo
// that is (L+R)/2); up from mono duplicates the sample. Other combinations
// keep the leading channels and pad with the last one.
func ConvertChannels(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 {
		return append([]int16(nil), samples...)
	}
	frames := len(samples) / from
	out := make([]int16, frames*to)
	for f := 0; f < frames; f++ {
		in := samples[f*from : (f+1)*from]
		dst := out[f*to : (f+1)*to]
		switch {
		case to == 1:
			sum := 0
			for _, s := range in {
				sum += int(s)
			}
			dst[0] = int16(sum / from)
		case from == 1:
			for c := range dst {
				dst[c] = in[0]
			}
		default:
			for c := range dst {
				if c < from {
					dst[c] = in[c]
				} else {
					dst[c] = in[from-1]
				}
			}
		}
	}
	return out
}

// Resample converts interleaved frames from inRate to outRate by linear
// interpolation between neighbouring frames. outFrames = int(inFrames*ratio)
// where ratio = outRate/inRate. A single input frame is held.
func Resample(samples []int16, channels, inRate, outRate int) []int16 {
	if channels <= 0 || inRate <= 0 || outRate <= 0 || inRate == outRate {
		return append([]int16(nil), samples...)
	}
	inFrames := len(samples) / channels
	if inFrames == 0 {
		return nil
	}

	ratio := float64(outRate) / float64(inRate)
	outFrames := int(float64(inFrames) * ratio)
	out := make([]int16, outFrames*channels)

	for i := 0; i < outFrames; i++ {
		src := float64(i) / ratio
		idx := int(src)
		if idx > inFrames-2 {
			idx = inFrames - 2
		}
		if idx < 0 {
			idx = 0
		}
		frac := src - float64(idx)

		for c := 0; c < channels; c++ {
			s1 := samples[idx*channels+c]
			if inFrames < 2 {
				out[i*channels+c] = s1
				continue
			}
			s2 := samples[(idx+1)*channels+c]
			out[i*channels+c] = clamp16(float64(s1) + (float64(s2)-float64(s1))*frac)
		}
	}
	return out
}

// clamp16 truncates v toward zero into the int16 range. Past the last input
// frame the interpolation extrapolates, which can leave the range.
func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// BytesToInt16 decodes little-endian 16-bit samples.
func BytesToInt16(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

// Int16ToBytes encodes samples as little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
