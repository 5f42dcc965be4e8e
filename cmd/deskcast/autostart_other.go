//go:build !windows

package main

import (
	"errors"
	"log/slog"
)

var errAutostartUnsupported = errors.New("autostart is only supported on Windows; use your desktop session's startup applications")

func setAutostart(bool) error { return errAutostartUnsupported }

func autostartEnabled() (bool, error) { return false, errAutostartUnsupported }

func syncAutostart(want bool, log *slog.Logger) {
	if want {
		log.Warn("auto_start is set but not supported on this platform")
	}
}
