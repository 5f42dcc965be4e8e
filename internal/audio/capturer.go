package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

var (
	// ErrNotSupported is returned when loopback capture is unavailable on the platform.
	ErrNotSupported = errors.New("loopback audio capture not supported on this platform")

	// ErrNoDevice is returned when there is no default output device to capture.
	ErrNoDevice = errors.New("no default audio output device")

	// ErrAlreadyRunning is returned by Start when capture is already running.
	ErrAlreadyRunning = errors.New("audio capture already running")
)

const (
	pollInterval  = 5 * time.Millisecond
	errorInterval = 50 * time.Millisecond
	stopTimeout   = time.Second
)

// Source is a platform loopback endpoint. Open, Read and Close are called
// from the capture goroutine only, which is locked to its OS thread.
type Source interface {
	// Open acquires the endpoint and returns its native format.
	Open() (Format, error)
	// Read returns the bytes of every packet available now, possibly none.
	Read() ([]byte, error)
	// Close releases everything Open acquired, in reverse order. It must
	// tolerate a partially opened source and never fail.
	Close()
}

// State is the capturer lifecycle state.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Capturer runs a loopback Source on a dedicated goroutine, converts its
// packets to the output format and keeps the latest 200 ms in a FrameBuffer.
type Capturer struct {
	log       *slog.Logger
	out       Format
	newSource func(*slog.Logger) Source
	buf       *FrameBuffer

	state  atomic.Int32
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	native Format
}

// New returns a stopped capturer delivering audio in out.
func New(out Format, logger *slog.Logger) *Capturer {
	return &Capturer{
		log:       logging.Or(logger, "audio"),
		out:       out,
		newSource: newPlatformSource,
		buf:       NewFrameBuffer(out),
	}
}

// Format is the output format of GetAudioData.
func (c *Capturer) Format() Format { return c.out }

// NativeFormat is the device format seen at the last successful Start.
func (c *Capturer) NativeFormat() Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.native
}

// State returns the current lifecycle state.
func (c *Capturer) State() State { return State(c.state.Load()) }

// Start opens the default output device for loopback capture and starts the
// capture goroutine. It returns once the device is open or has failed.
// Failure leaves the capturer stopped; callers continue without audio.
func (c *Capturer) Start() error {
	if !c.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ready := make(chan error, 1)

	go c.run(ctx, ready, done)

	if err := <-ready; err != nil {
		cancel()
		<-done
		c.state.Store(int32(Stopped))
		return fmt.Errorf("start loopback capture: %w", err)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()
	c.state.Store(int32(Running))
	return nil
}

// Stop ends capture, waits up to a second for the goroutine to release the
// device and clears buffered audio. It is a no-op unless running. The
// capturer stays Stopping, and Start keeps failing, until the device is
// released, even when that outlasts the wait.
func (c *Capturer) Stop() {
	if !c.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return
	}

	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
		c.released()
	case <-time.After(stopTimeout):
		c.log.Warn("audio capture did not stop in time, device still held")
		go func() {
			<-done
			c.released()
		}()
	}
}

func (c *Capturer) released() {
	c.buf.Drain()
	c.state.Store(int32(Stopped))
	c.log.Info("audio capture stopped")
}

// GetAudioData returns everything buffered since the last call and resets
// the buffer.
func (c *Capturer) GetAudioData() []byte {
	return c.buf.Drain()
}

func (c *Capturer) run(ctx context.Context, ready chan<- error, done chan<- struct{}) {
	defer close(done)

	// COM apartments are per thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	src := c.newSource(c.log)
	defer src.Close()

	native, err := src.Open()
	if err != nil {
		ready <- err
		return
	}
	conv, err := NewConverter(native, c.out)
	if err != nil {
		ready <- err
		return
	}

	c.mu.Lock()
	c.native = native
	c.mu.Unlock()
	c.log.Info("audio capture started", "native", native.String(), "output", c.out.String())
	ready <- nil

	var failures int
	for {
		data, err := src.Read()
		wait := pollInterval
		if err != nil {
			failures++
			if failures == 1 || failures%100 == 0 {
				c.log.Warn("audio packet read failed", logging.KeyError, err.Error(), "consecutive", failures)
			}
			wait = errorInterval
		} else {
			failures = 0
			if len(data) > 0 {
				c.buf.Write(conv.Convert(data))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
