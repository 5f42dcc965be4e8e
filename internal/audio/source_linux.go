//go:build linux

package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

const (
	pulseRate     = 48000
	pulseChannels = 2
	// 20 ms fragments.
	pulseFragment = pulseRate * pulseChannels * 2 / 50
	// Held bytes are capped at one second if Read falls behind.
	pulseMaxHeld = pulseRate * pulseChannels * 2
)

// pulseSource records the monitor of the default PulseAudio sink, which
// carries whatever the system is playing.
type pulseSource struct {
	log    *slog.Logger
	client *pulse.Client
	stream *pulse.RecordStream
	pcm    *pcmCollector
}

func newPlatformSource(logger *slog.Logger) Source {
	return &pulseSource{log: logger, pcm: &pcmCollector{}}
}

func (s *pulseSource) Open() (Format, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("deskcast"))
	if err != nil {
		return Format{}, fmt.Errorf("pulse connect: %w", err)
	}
	s.client = client

	sink, err := client.DefaultSink()
	if err != nil {
		return Format{}, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	stream, err := client.NewRecord(s.pcm,
		pulse.RecordMonitor(sink),
		pulse.RecordStereo,
		pulse.RecordSampleRate(pulseRate),
		pulse.RecordBufferFragmentSize(pulseFragment),
	)
	if err != nil {
		return Format{}, fmt.Errorf("pulse record stream: %w", err)
	}
	s.stream = stream
	stream.Start()

	return Format{SampleRate: pulseRate, Channels: pulseChannels, BitsPerSample: 16}, nil
}

func (s *pulseSource) Read() ([]byte, error) {
	if s.stream == nil {
		return nil, errors.New("pulse record stream not open")
	}
	if err := s.stream.Error(); err != nil {
		return nil, fmt.Errorf("pulse record stream: %w", err)
	}
	return s.pcm.drain(), nil
}

func (s *pulseSource) Close() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}

// pcmCollector receives S16LE frames from the pulse client goroutine.
type pcmCollector struct {
	mu  sync.Mutex
	buf []byte
}

func (p *pcmCollector) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = append(p.buf, data...)
	if over := len(p.buf) - pulseMaxHeld; over > 0 {
		over += (4 - over%4) % 4
		n := copy(p.buf, p.buf[over:])
		p.buf = p.buf[:n]
	}
	return len(data), nil
}

func (p *pcmCollector) Format() byte {
	return proto.FormatInt16LE
}

func (p *pcmCollector) drain() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil
	}
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	p.buf = p.buf[:0]
	return out
}
