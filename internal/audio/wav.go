package audio

import (
	"encoding/binary"
	"time"
)

// WavHeaderSize is the length of the canonical RIFF/fmt/data header.
const WavHeaderSize = 44

// CreateCompleteWav wraps PCM data in a self-contained WAV file.
func CreateCompleteWav(data []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, WavHeaderSize+len(data))
	le := binary.LittleEndian

	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(36+len(data)))
	copy(out[8:], "WAVE")

	copy(out[12:], "fmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 1) // PCM
	le.PutUint16(out[22:], uint16(channels))
	le.PutUint32(out[24:], uint32(sampleRate))
	le.PutUint32(out[28:], uint32(byteRate))
	le.PutUint16(out[32:], uint16(blockAlign))
	le.PutUint16(out[34:], uint16(bitsPerSample))

	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(len(data)))
	copy(out[WavHeaderSize:], data)
	return out
}

// WAV wraps data as a WAV file in format f.
func (f Format) WAV(data []byte) []byte {
	return CreateCompleteWav(data, f.SampleRate, f.Channels, f.BitsPerSample)
}

// Silence returns d worth of zeroed PCM in format f.
func Silence(f Format, d time.Duration) []byte {
	return make([]byte, f.BytesFor(d))
}
