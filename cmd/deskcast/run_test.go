package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/breeze-rmm/deskcast/internal/config"
	"github.com/breeze-rmm/deskcast/internal/logging"
)

func TestInitLoggingSendsValidationWarningsToLogFile(t *testing.T) {
	t.Cleanup(func() { logging.Init("text", "info", nil) })

	cfg := config.Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "deskcast.log")
	cfg.LogFormat = "json"
	cfg.FPS = 500

	rw := initLogging(cfg)
	if rw == nil {
		t.Fatal("expected a rotating writer for log_file")
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}

	if cfg.FPS != 60 {
		t.Errorf("fps = %d, want clamped to 60", cfg.FPS)
	}
	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"config validation"`) {
		t.Fatalf("validation warning missing from JSON log file: %s", out)
	}
	if !strings.Contains(out, "fps 500 exceeds maximum 60") {
		t.Errorf("expected fps warning, got: %s", out)
	}
}
