package audio

import (
	"bytes"
	"sync"
	"testing"
)

func TestFrameBufferCeiling(t *testing.T) {
	b := NewFrameBuffer(DefaultOutput)
	if b.Cap() != 8820 {
		t.Fatalf("Cap = %d, want 8820", b.Cap())
	}

	b.Write(bytes.Repeat([]byte{1}, 8000))
	b.Write(bytes.Repeat([]byte{2}, 2000))

	got := b.Drain()
	if len(got) > b.Cap() {
		t.Fatalf("buffer grew to %d, ceiling %d", len(got), b.Cap())
	}
	if len(got) != 8820 {
		t.Fatalf("len = %d, want 8820", len(got))
	}
	if got[0] != 1 {
		t.Fatal("oldest retained byte should be from the first write")
	}
	if !bytes.Equal(got[len(got)-2000:], bytes.Repeat([]byte{2}, 2000)) {
		t.Fatal("newest bytes were discarded")
	}
}

func TestFrameBufferOversizedWriteKeepsTail(t *testing.T) {
	b := NewFrameBuffer(DefaultOutput)
	b.Write([]byte{9, 9, 9, 9})

	in := make([]byte, 20000)
	for i := range in {
		in[i] = byte(i % 251)
	}
	n, err := b.Write(in)
	if err != nil || n != len(in) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	got := b.Drain()
	if !bytes.Equal(got, in[len(in)-8820:]) {
		t.Fatalf("retained %d bytes, want the last 8820 of the write", len(got))
	}
}

func TestFrameBufferDropsWholeFrames(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}
	b := NewFrameBuffer(f)
	if b.Cap() != 35280 {
		t.Fatalf("Cap = %d, want 35280", b.Cap())
	}

	b.Write(make([]byte, b.Cap()))
	b.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	// 10 bytes over; 12 are dropped to stay frame aligned.
	if got := b.Len(); got != b.Cap()-2 {
		t.Fatalf("Len = %d, want %d", got, b.Cap()-2)
	}
	got := b.Drain()
	if got[len(got)-1] != 10 {
		t.Fatal("newest byte lost")
	}
}

func TestFrameBufferDrainResets(t *testing.T) {
	b := NewFrameBuffer(DefaultOutput)
	if b.Drain() != nil {
		t.Fatal("empty drain should return nil")
	}
	b.Write([]byte{1, 2})
	if got := b.Drain(); len(got) != 2 {
		t.Fatalf("Drain = %v", got)
	}
	if b.Len() != 0 {
		t.Fatal("Drain did not reset the buffer")
	}
}

func TestFrameBufferCeilingRoundsUp(t *testing.T) {
	b := NewFrameBuffer(Format{SampleRate: 11025, Channels: 1, BitsPerSample: 16})
	// 11025 Hz mono 16-bit is 22050 B/s.
	if b.Cap() != 4410 {
		t.Fatalf("Cap = %d, want 4410", b.Cap())
	}
	b = NewFrameBuffer(Format{SampleRate: 22051, Channels: 1, BitsPerSample: 16})
	if b.Cap() != 8821 {
		t.Fatalf("Cap = %d, want ceil(44102/5) = 8821", b.Cap())
	}
}

func TestFrameBufferConcurrentWriteDrain(t *testing.T) {
	b := NewFrameBuffer(DefaultOutput)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Write(make([]byte, 441))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if n := len(b.Drain()); n > b.Cap() {
				t.Errorf("drained %d bytes, ceiling %d", n, b.Cap())
				return
			}
		}
	}()
	wg.Wait()
	if b.Len() > b.Cap() {
		t.Fatalf("Len %d exceeds ceiling", b.Len())
	}
}
