package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	waveFormatPCM        = 0x0001
	waveFormatIEEEFloat  = 0x0003
	waveFormatExtensible = 0xFFFE

	// waveFormatExSize is sizeof(WAVEFORMATEX); WAVEFORMATEXTENSIBLE adds 22.
	waveFormatExSize         = 18
	waveFormatExtensibleSize = waveFormatExSize + 22
)

// parseWaveFormat reads a WAVEFORMATEX or WAVEFORMATEXTENSIBLE structure.
// For the extensible form the sub-format GUID's first field carries the
// format tag.
func parseWaveFormat(b []byte) (Format, error) {
	if len(b) < waveFormatExSize {
		return Format{}, fmt.Errorf("wave format truncated: %d bytes", len(b))
	}
	le := binary.LittleEndian
	tag := le.Uint16(b[0:])
	f := Format{
		Channels:      int(le.Uint16(b[2:])),
		SampleRate:    int(le.Uint32(b[4:])),
		BitsPerSample: int(le.Uint16(b[14:])),
	}

	if tag == waveFormatExtensible {
		cbSize := le.Uint16(b[16:])
		if cbSize < 22 || len(b) < waveFormatExtensibleSize {
			return Format{}, fmt.Errorf("extensible wave format truncated")
		}
		tag = uint16(le.Uint32(b[24:]))
	}

	switch tag {
	case waveFormatIEEEFloat:
		f.Float = true
	case waveFormatPCM:
	default:
		return Format{}, fmt.Errorf("unsupported wave format tag 0x%04X", tag)
	}
	return f, f.validate()
}
