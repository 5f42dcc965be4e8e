//go:build !windows

package privilege

import "os"

func isElevated() bool {
	return os.Getuid() == 0
}

const secureDesktopSupported = false

func secureDesktopEnabled() bool { return false }

func setSecureDesktopPolicy(bool) error { return ErrUnsupported }
