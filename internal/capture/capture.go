// Package capture grabs display regions, composites the pointer and encodes
// JPEG frames for the MJPEG stream.
package capture

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

var (
	// ErrNotSupported is returned when screen capture is not available on the platform.
	ErrNotSupported = errors.New("screen capture not supported on this platform")

	// ErrNoDisplays is returned when no active display can be found.
	ErrNoDisplays = errors.New("no active displays")
)

// Target is a physical display in virtual-desktop coordinates.
type Target struct {
	Index   int    `json:"index" yaml:"index"`
	Name    string `json:"name" yaml:"name"`
	X       int    `json:"x" yaml:"x"`
	Y       int    `json:"y" yaml:"y"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Primary bool   `json:"primary" yaml:"primary"`
}

// Bounds returns the target rectangle in virtual-desktop coordinates.
func (t Target) Bounds() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Width, t.Y+t.Height)
}

// Contains reports whether the virtual-desktop point (x, y) lies on the target.
func (t Target) Contains(x, y int) bool {
	return image.Pt(x, y).In(t.Bounds())
}

// grabber copies a virtual-desktop rectangle into an RGBA image.
type grabber interface {
	grab(r image.Rectangle) (*image.RGBA, error)
	release(img *image.RGBA)
	close()
}

// cursorSource reports the pointer hotspot in virtual-desktop coordinates.
// The drawn glyph is an arrow whose hotspot is its tip, so no further
// adjustment is needed.
type cursorSource func() (pos image.Point, visible bool)

// Capturer captures frames of a Target. It is safe for concurrent use; each
// MJPEG viewer calls CaptureFrame from its own goroutine.
type Capturer struct {
	log    *slog.Logger
	grab   grabber
	cursor cursorSource

	mu          sync.Mutex
	failures    int
	lastFailLog time.Time
}

// New returns a Capturer backed by the platform grabber.
func New(logger *slog.Logger) *Capturer {
	return &Capturer{
		log:    logging.Or(logger, "capture"),
		grab:   newPlatformGrabber(),
		cursor: platformCursor,
	}
}

// CaptureFrame grabs target, draws the pointer when it is visible on the
// target and returns the JPEG encoding at quality (0-100). It returns nil on
// any failure; callers skip the frame.
func (c *Capturer) CaptureFrame(target Target, quality int) []byte {
	if target.Width <= 0 || target.Height <= 0 {
		c.recordFailure(errors.New("empty capture target"))
		return nil
	}

	img, err := c.grab.grab(target.Bounds())
	if err != nil || img == nil {
		if err == nil {
			err = errors.New("no frame")
		}
		c.recordFailure(err)
		return nil
	}
	defer c.grab.release(img)

	if c.cursor != nil {
		if pos, visible := c.cursor(); visible && target.Contains(pos.X, pos.Y) {
			drawCursor(img, pos.X-target.X, pos.Y-target.Y)
		}
	}

	data, err := EncodeJPEG(img, quality)
	if err != nil {
		c.recordFailure(err)
		return nil
	}
	c.resetFailures()
	return data
}

// ConsecutiveFailures is the number of failed captures since the last success.
func (c *Capturer) ConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Close releases platform capture handles.
func (c *Capturer) Close() {
	c.grab.close()
}

func (c *Capturer) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	now := time.Now()
	if c.failures == 1 || now.Sub(c.lastFailLog) >= 2*time.Second {
		c.log.Warn("screen capture unavailable, skipping frame",
			logging.KeyError, err.Error(),
			"consecutive", c.failures)
		c.lastFailLog = now
	}
}

func (c *Capturer) resetFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.log.Info("screen capture recovered", "failedFrames", c.failures)
	}
	c.failures = 0
}
