// Package input injects synthetic pointer events on the host.
package input

import (
	"fmt"
	"strings"
)

// Injector issues absolute pointer events. Coordinates are pixels relative
// to a capture target of boundsW x boundsH at (offsetX, offsetY) on the
// virtual desktop. Injection failures are not reported.
type Injector interface {
	MoveTo(x, y, boundsW, boundsH, offsetX, offsetY int)
	ButtonDown()
	ButtonUp()
	// Click and RightClick move, press and release as one batch.
	Click(x, y, boundsW, boundsH, offsetX, offsetY int)
	RightClick(x, y, boundsW, boundsH, offsetX, offsetY int)
}

// Action is a touch action accepted by the touch endpoint.
type Action string

const (
	ActionDown       Action = "down"
	ActionUp         Action = "up"
	ActionMove       Action = "move"
	ActionClick      Action = "click"
	ActionRightClick Action = "rightclick"
)

// ParseAction maps a request value to an Action. Empty means click.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case "":
		return ActionClick, nil
	case ActionDown, ActionUp, ActionMove, ActionClick, ActionRightClick:
		return a, nil
	}
	return "", fmt.Errorf("unknown action: %s", s)
}

// Region is a target rectangle in virtual-desktop pixels.
type Region struct {
	X, Y, Width, Height int
}

// Perform runs action at target-relative (x, y).
func Perform(inj Injector, action Action, x, y int, r Region) error {
	switch action {
	case ActionDown:
		inj.MoveTo(x, y, r.Width, r.Height, r.X, r.Y)
		inj.ButtonDown()
	case ActionUp:
		inj.MoveTo(x, y, r.Width, r.Height, r.X, r.Y)
		inj.ButtonUp()
	case ActionMove:
		inj.MoveTo(x, y, r.Width, r.Height, r.X, r.Y)
	case ActionClick:
		inj.Click(x, y, r.Width, r.Height, r.X, r.Y)
	case ActionRightClick:
		inj.RightClick(x, y, r.Width, r.Height, r.X, r.Y)
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	return nil
}

// Absolute clamps (x, y) into the target bounds and translates it to
// virtual-desktop pixels.
func Absolute(x, y, boundsW, boundsH, offsetX, offsetY int) (int, int) {
	return offsetX + clamp(x, boundsW), offsetY + clamp(y, boundsH)
}

func clamp(v, size int) int {
	if v < 0 || size <= 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}

// VirtualScreen is the bounding rectangle of all monitors.
type VirtualScreen struct {
	X, Y, Width, Height int
}

// Normalize maps a virtual-desktop pixel onto the 0..65535 range spanning
// the virtual screen, as absolute pointer events expect.
func (vs VirtualScreen) Normalize(x, y int) (int32, int32) {
	return normalizeAxis(x, vs.X, vs.Width), normalizeAxis(y, vs.Y, vs.Height)
}

func normalizeAxis(v, origin, size int) int32 {
	if size <= 0 {
		return 0
	}
	n := int64(v-origin) * 65535 / int64(size)
	switch {
	case n < 0:
		return 0
	case n > 65535:
		return 65535
	}
	return int32(n)
}
