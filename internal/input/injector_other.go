//go:build !windows

package input

import (
	"log/slog"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

// logInjector records requested pointer events at debug level. Pointer
// injection is only implemented on Windows.
type logInjector struct {
	log *slog.Logger
}

// New returns an injector that only logs.
func New(logger *slog.Logger) Injector {
	return logInjector{log: logging.Or(logger, "input")}
}

func (l logInjector) MoveTo(x, y, boundsW, boundsH, offsetX, offsetY int) {
	ax, ay := Absolute(x, y, boundsW, boundsH, offsetX, offsetY)
	l.log.Debug("pointer move not supported on this platform", "x", ax, "y", ay)
}

func (l logInjector) ButtonDown() {
	l.log.Debug("pointer button down not supported on this platform")
}

func (l logInjector) ButtonUp() {
	l.log.Debug("pointer button up not supported on this platform")
}

func (l logInjector) Click(x, y, boundsW, boundsH, offsetX, offsetY int) {
	ax, ay := Absolute(x, y, boundsW, boundsH, offsetX, offsetY)
	l.log.Debug("pointer click not supported on this platform", "x", ax, "y", ay)
}

func (l logInjector) RightClick(x, y, boundsW, boundsH, offsetX, offsetY int) {
	ax, ay := Absolute(x, y, boundsW, boundsH, offsetX, offsetY)
	l.log.Debug("pointer right click not supported on this platform", "x", ax, "y", ay)
}
