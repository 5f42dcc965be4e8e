//go:build !windows

package capture

import (
	"image"

	"github.com/kbinani/screenshot"
)

// screenshotGrabber captures through kbinani/screenshot (X11 on Linux,
// CoreGraphics on macOS). The pointer is not exposed there, so no cursor is
// composited.
type screenshotGrabber struct{}

func newPlatformGrabber() grabber {
	return screenshotGrabber{}
}

func (screenshotGrabber) grab(r image.Rectangle) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(r)
	if err != nil {
		return nil, err
	}
	if img.Rect.Min != (image.Point{}) {
		img.Rect = img.Rect.Sub(img.Rect.Min)
	}
	return img, nil
}

func (screenshotGrabber) release(*image.RGBA) {}

func (screenshotGrabber) close() {}

func platformCursor() (image.Point, bool) {
	return image.Point{}, false
}
