package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func floatBytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestFloat32ToInt16Clamps(t *testing.T) {
	got := Float32ToInt16(floatBytes(0, 0.5, -0.5, 1, -1, 2, -3, float32(math.NaN())))
	want := []int16{0, 16383, -16383, 32767, -32767, 32767, -32767, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestConvertChannels(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		from, to int
		want     []int16
	}{
		{"stereo to mono", []int16{100, 201, -3, 0, 32767, 32767}, 2, 1, []int16{150, -1, 32767}},
		{"quad to mono", []int16{4, 8, 12, 16}, 4, 1, []int16{10}},
		{"mono to stereo", []int16{7, -7}, 1, 2, []int16{7, 7, -7, -7}},
		{"same", []int16{1, 2}, 2, 2, []int16{1, 2}},
		{"partial frame dropped", []int16{10, 20, 30}, 2, 1, []int16{15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertChannels(tt.in, tt.from, tt.to)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResampleLinear(t *testing.T) {
	got := Resample([]int16{0, 100}, 1, 1, 2)
	want := []int16{0, 50, 100, 150}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestResampleHoldsSingleFrame(t *testing.T) {
	got := Resample([]int16{42}, 1, 8000, 24000)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for _, s := range got {
		if s != 42 {
			t.Fatalf("got %v, want all 42", got)
		}
	}
}

func TestResampleExtrapolationStaysInRange(t *testing.T) {
	got := Resample([]int16{-32767, 32767}, 1, 1, 4)
	if got[len(got)-1] != 32767 {
		t.Fatalf("last sample = %d, want clamped 32767", got[len(got)-1])
	}
}

func TestResampleStereoKeepsChannelsApart(t *testing.T) {
	// Left constant 1000, right constant -1000.
	in := make([]int16, 0, 200)
	for i := 0; i < 100; i++ {
		in = append(in, 1000, -1000)
	}
	got := Resample(in, 2, 44100, 22050)
	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	for i := 0; i < len(got); i += 2 {
		if got[i] != 1000 || got[i+1] != -1000 {
			t.Fatalf("frame %d = (%d,%d)", i/2, got[i], got[i+1])
		}
	}
}

func TestConverterFloatStereo48kToPCMMono22k(t *testing.T) {
	in := Format{SampleRate: 48000, Channels: 2, BitsPerSample: 32, Float: true}
	conv, err := NewConverter(in, DefaultOutput)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	const frames = 4800
	vals := make([]float32, 0, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(1.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
		vals = append(vals, v, -v/2)
	}

	out := conv.Convert(floatBytes(vals...))
	wantSamples := int(math.Floor(frames * 22050.0 / 48000.0))
	if got := len(out) / 2; got < wantSamples-1 || got > wantSamples+1 {
		t.Fatalf("output samples = %d, want %d (+/-1)", got, wantSamples)
	}
	if len(out)%2 != 0 {
		t.Fatalf("odd output length %d", len(out))
	}
	for i, s := range BytesToInt16(out) {
		if s < -32767 || s > 32767 {
			t.Fatalf("sample %d = %d out of [-32767, 32767]", i, s)
		}
	}
}

func TestConverterPassthroughCopies(t *testing.T) {
	conv, err := NewConverter(DefaultOutput, DefaultOutput)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	if !conv.Passthrough() {
		t.Fatal("identical formats should pass through")
	}
	raw := []byte{1, 2, 3, 4, 5}
	out := conv.Convert(raw)
	if len(out) != 4 || out[0] != 1 || out[3] != 4 {
		t.Fatalf("Convert = %v, want first whole frames", out)
	}
	out[0] = 99
	if raw[0] != 1 {
		t.Fatal("Convert aliased its input")
	}
}

func TestConverterInt16Stereo44kToMono22k(t *testing.T) {
	in := Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}
	conv, err := NewConverter(in, DefaultOutput)
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	samples := make([]int16, 0, 882)
	for i := 0; i < 441; i++ {
		samples = append(samples, 200, 400)
	}
	out := BytesToInt16(conv.Convert(Int16ToBytes(samples)))
	if len(out) != 220 {
		t.Fatalf("len = %d, want 220", len(out))
	}
	for _, s := range out {
		if s != 300 {
			t.Fatalf("sample = %d, want 300", s)
		}
	}
}

func TestNewConverterRejectsUnsupported(t *testing.T) {
	if _, err := NewConverter(Format{SampleRate: 48000, Channels: 2, BitsPerSample: 8}, DefaultOutput); err == nil {
		t.Error("expected error for 8-bit input")
	}
	if _, err := NewConverter(DefaultOutput, Format{SampleRate: 22050, Channels: 1, BitsPerSample: 32, Float: true}); err == nil {
		t.Error("expected error for float output")
	}
}

func TestParseWaveFormatExtensibleFloat(t *testing.T) {
	b := make([]byte, waveFormatExtensibleSize)
	le := binary.LittleEndian
	le.PutUint16(b[0:], waveFormatExtensible)
	le.PutUint16(b[2:], 2)
	le.PutUint32(b[4:], 48000)
	le.PutUint32(b[8:], 48000*8)
	le.PutUint16(b[12:], 8)
	le.PutUint16(b[14:], 32)
	le.PutUint16(b[16:], 22)
	le.PutUint32(b[24:], waveFormatIEEEFloat)

	f, err := parseWaveFormat(b)
	if err != nil {
		t.Fatalf("parseWaveFormat: %v", err)
	}
	want := Format{SampleRate: 48000, Channels: 2, BitsPerSample: 32, Float: true}
	if f != want {
		t.Fatalf("got %+v, want %+v", f, want)
	}
}

func TestParseWaveFormatPCM(t *testing.T) {
	b := make([]byte, waveFormatExSize)
	le := binary.LittleEndian
	le.PutUint16(b[0:], waveFormatPCM)
	le.PutUint16(b[2:], 1)
	le.PutUint32(b[4:], 16000)
	le.PutUint16(b[14:], 16)

	f, err := parseWaveFormat(b)
	if err != nil {
		t.Fatalf("parseWaveFormat: %v", err)
	}
	if f.Float || f.SampleRate != 16000 || f.Channels != 1 {
		t.Fatalf("unexpected format %+v", f)
	}

	if _, err := parseWaveFormat(b[:10]); err == nil {
		t.Fatal("expected error for truncated structure")
	}
}
