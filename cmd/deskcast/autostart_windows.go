//go:build windows

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows/registry"

	"github.com/breeze-rmm/deskcast/internal/logging"
)

const (
	runKeyPath   = `Software\Microsoft\Windows\CurrentVersion\Run`
	runValueName = "Deskcast"
)

func autostartCommand() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.Abs(exe)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%q run", exe), nil
}

func setAutostart(enable bool) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE|registry.QUERY_VALUE)
	if err != nil {
		return fmt.Errorf("open Run key: %w", err)
	}
	defer key.Close()

	if !enable {
		if err := key.DeleteValue(runValueName); err != nil && !errors.Is(err, registry.ErrNotExist) {
			return fmt.Errorf("remove autostart entry: %w", err)
		}
		return nil
	}

	cmd, err := autostartCommand()
	if err != nil {
		return err
	}
	if err := key.SetStringValue(runValueName, cmd); err != nil {
		return fmt.Errorf("write autostart entry: %w", err)
	}
	return nil
}

func autostartEnabled() (bool, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer key.Close()

	_, _, err = key.GetStringValue(runValueName)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// syncAutostart makes the Run key match the auto_start setting.
func syncAutostart(want bool, log *slog.Logger) {
	have, err := autostartEnabled()
	if err != nil {
		log.Warn("autostart state unreadable", logging.KeyError, err.Error())
		return
	}
	if have == want {
		return
	}
	if err := setAutostart(want); err != nil {
		log.Warn("autostart update failed", logging.KeyError, err.Error())
		return
	}
	log.Info("autostart updated", "enabled", want)
}
