package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestCreateCompleteWav(t *testing.T) {
	data := make([]byte, 4410)
	data[0], data[4409] = 0x11, 0x22

	wav := CreateCompleteWav(data, 22050, 1, 16)
	if len(wav) != 4454 {
		t.Fatalf("len = %d, want 4454", len(wav))
	}

	le := binary.LittleEndian
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"riff", string(wav[0:4]), "RIFF"},
		{"riff size", le.Uint32(wav[4:]), uint32(36 + 4410)},
		{"wave", string(wav[8:12]), "WAVE"},
		{"fmt id", string(wav[12:16]), "fmt "},
		{"fmt size", le.Uint32(wav[16:]), uint32(16)},
		{"audio format", le.Uint16(wav[20:]), uint16(1)},
		{"channels", le.Uint16(wav[22:]), uint16(1)},
		{"sample rate", le.Uint32(wav[24:]), uint32(22050)},
		{"byte rate", le.Uint32(wav[28:]), uint32(44100)},
		{"block align", le.Uint16(wav[32:]), uint16(2)},
		{"bits", le.Uint16(wav[34:]), uint16(16)},
		{"data id", string(wav[36:40]), "data"},
		{"data size", le.Uint32(wav[40:]), uint32(4410)},
		{"first byte", wav[44], byte(0x11)},
		{"last byte", wav[len(wav)-1], byte(0x22)},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestFormatWAVUsesFormatFields(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2, BitsPerSample: 16}
	wav := f.WAV(make([]byte, 8))
	le := binary.LittleEndian
	if le.Uint16(wav[22:]) != 2 || le.Uint32(wav[28:]) != 192000 || le.Uint16(wav[32:]) != 4 {
		t.Fatalf("unexpected header fields: %v", wav[:44])
	}
}

func TestSilenceIsFrameAligned(t *testing.T) {
	s := Silence(DefaultOutput, 50*time.Millisecond)
	if len(s) != 2204 {
		t.Fatalf("len = %d, want 2204", len(s))
	}
	for _, b := range s {
		if b != 0 {
			t.Fatal("silence must be zeroed")
		}
	}
	if got := DefaultOutput.BytesFor(100 * time.Millisecond); got != 4410 {
		t.Fatalf("BytesFor(100ms) = %d, want 4410", got)
	}
}
