// Package audio captures the system's output audio (loopback), converts it to
// a fixed PCM output format and keeps the most recent window in a bounded
// buffer for HTTP consumers to drain as WAV chunks.
package audio

import (
	"fmt"
	"time"
)

// Format describes interleaved PCM audio. Float marks 32-bit IEEE float
// samples; otherwise samples are signed little-endian integers.
type Format struct {
	SampleRate    int  `json:"sampleRate"`
	Channels      int  `json:"channels"`
	BitsPerSample int  `json:"bitsPerSample"`
	Float         bool `json:"float,omitempty"`
}

// DefaultOutput is the format delivered to viewers: 22050 Hz mono 16-bit.
var DefaultOutput = Format{SampleRate: 22050, Channels: 1, BitsPerSample: 16}

// BytesPerSample is the size of one sample of one channel.
func (f Format) BytesPerSample() int { return f.BitsPerSample / 8 }

// BlockAlign is the size of one frame (one sample for every channel).
func (f Format) BlockAlign() int { return f.Channels * f.BytesPerSample() }

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() int { return f.SampleRate * f.BlockAlign() }

// BytesFor returns the byte length of d worth of audio, rounded down to a
// whole frame.
func (f Format) BytesFor(d time.Duration) int {
	n := int(int64(f.ByteRate()) * int64(d) / int64(time.Second))
	if ba := f.BlockAlign(); ba > 0 {
		n -= n % ba
	}
	return n
}

func (f Format) String() string {
	kind := "pcm"
	if f.Float {
		kind = "float"
	}
	return fmt.Sprintf("%dHz/%dch/%dbit-%s", f.SampleRate, f.Channels, f.BitsPerSample, kind)
}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("invalid audio format %s", f)
	}
	switch {
	case f.Float && f.BitsPerSample == 32:
	case !f.Float && (f.BitsPerSample == 16 || f.BitsPerSample == 24 || f.BitsPerSample == 32):
	default:
		return fmt.Errorf("unsupported sample encoding %s", f)
	}
	return nil
}
