// Package privilege reports process privileges that limit what the stream
// server can capture and control.
package privilege

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned where the platform has no secure desktop.
	ErrUnsupported = errors.New("secure desktop setting is only available on Windows")
	// ErrNotElevated is returned when changing a machine policy without
	// administrator rights.
	ErrNotElevated = errors.New("changing the secure desktop setting requires an elevated process")
)

// Platform hooks, replaced in tests.
var (
	supported          = secureDesktopSupported
	elevated           = isElevated
	writeSecureDesktop = setSecureDesktopPolicy
)

// Status describes the privilege-related limits of the current process.
type Status struct {
	// Elevated is true for an elevated administrator on Windows or root elsewhere.
	Elevated bool `json:"elevated"`
	// SecureDesktop is true when UAC prompts are shown on the secure desktop,
	// which no user process can capture or send input to.
	SecureDesktop bool `json:"secureDesktop"`
}

// Warnings lists the limitations a viewer will run into.
func (s Status) Warnings() []string {
	var w []string
	if !s.Elevated {
		w = append(w, "not running elevated: input to elevated windows will be ignored")
	}
	if s.SecureDesktop {
		w = append(w, "UAC prompts use the secure desktop and will not appear in the stream")
	}
	return w
}

// Check inspects the current process.
func Check() Status {
	return Status{
		Elevated:      elevated(),
		SecureDesktop: secureDesktopEnabled(),
	}
}

// SetSecureDesktop turns the UAC secure desktop on or off. With it off,
// elevation prompts are drawn on the user's desktop, where they can be
// streamed and answered by touch.
func SetSecureDesktop(enable bool) error {
	if !supported {
		return ErrUnsupported
	}
	if !elevated() {
		return ErrNotElevated
	}
	if err := writeSecureDesktop(enable); err != nil {
		return fmt.Errorf("write PromptOnSecureDesktop: %w", err)
	}
	return nil
}
