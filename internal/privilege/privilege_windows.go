//go:build windows

package privilege

import (
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const (
	uacPolicyKey           = `SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\System`
	promptOnSecureDesktop  = "PromptOnSecureDesktop"
	secureDesktopSupported = true
)

func isElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// secureDesktopEnabled reads PromptOnSecureDesktop, which defaults to on.
func secureDesktopEnabled() bool {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, uacPolicyKey, registry.QUERY_VALUE)
	if err != nil {
		return true
	}
	defer key.Close()

	v, _, err := key.GetIntegerValue(promptOnSecureDesktop)
	if err != nil {
		return true
	}
	return v != 0
}

func setSecureDesktopPolicy(enable bool) error {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, uacPolicyKey, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer key.Close()

	var v uint32
	if enable {
		v = 1
	}
	return key.SetDWordValue(promptOnSecureDesktop, v)
}
