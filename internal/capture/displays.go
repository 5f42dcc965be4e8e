package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Displays enumerates the active displays in virtual-desktop coordinates.
// The display whose bounds contain the origin is marked primary.
func Displays() ([]Target, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, ErrNoDisplays
	}
	bounds := make([]image.Rectangle, n)
	for i := 0; i < n; i++ {
		bounds[i] = screenshot.GetDisplayBounds(i)
	}
	return targetsFromBounds(bounds), nil
}

func targetsFromBounds(bounds []image.Rectangle) []Target {
	targets := make([]Target, 0, len(bounds))
	for i, b := range bounds {
		targets = append(targets, Target{
			Index:   i,
			Name:    fmt.Sprintf("Display %d", i+1),
			X:       b.Min.X,
			Y:       b.Min.Y,
			Width:   b.Dx(),
			Height:  b.Dy(),
			Primary: image.Pt(0, 0).In(b),
		})
	}
	if len(targets) > 0 && !anyPrimary(targets) {
		targets[0].Primary = true
	}
	return targets
}

func anyPrimary(targets []Target) bool {
	for _, t := range targets {
		if t.Primary {
			return true
		}
	}
	return false
}

// Select returns the display at index, falling back to the primary display
// (and reporting false) when index is out of range.
func Select(targets []Target, index int) (Target, bool) {
	if index >= 0 && index < len(targets) {
		return targets[index], true
	}
	for _, t := range targets {
		if t.Primary {
			return t, false
		}
	}
	if len(targets) > 0 {
		return targets[0], false
	}
	return Target{}, false
}
