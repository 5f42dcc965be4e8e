package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("server")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("listening", "addr", "0.0.0.0:8080")

	out := buf.String()
	if !strings.Contains(out, "msg=listening") {
		t.Fatalf("expected plain listening message, got: %s", out)
	}
	if !strings.Contains(out, "component=server") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "addr=0.0.0.0:8080") {
		t.Fatalf("expected addr field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("audio")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	L("capture").Debug("frame skipped")

	out := buf.String()
	if !strings.Contains(out, `"msg":"frame skipped"`) {
		t.Fatalf("expected JSON message, got: %s", out)
	}
	if !strings.Contains(out, `"component":"capture"`) {
		t.Fatalf("expected JSON component, got: %s", out)
	}
}

func TestWithConnAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	WithConn(L("server"), "abc123", "10.0.0.5:51234").Info("request")

	out := buf.String()
	if !strings.Contains(out, "connId=abc123") {
		t.Fatalf("expected connId, got: %s", out)
	}
	if !strings.Contains(out, "remote=10.0.0.5:51234") {
		t.Fatalf("expected remote, got: %s", out)
	}
}

func TestOrFallsBackToComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	Or(nil, "input").Info("fallback")
	if !strings.Contains(buf.String(), "component=input") {
		t.Fatalf("expected component logger, got: %s", buf.String())
	}
}

func TestGroupsAndAttrsKeepOrder(t *testing.T) {
	logger := L("server").WithGroup("req").With("path", "/stream")

	var buf bytes.Buffer
	Init("json", "info", &buf)

	logger.Info("served", "status", 200)
	out := buf.String()
	if !strings.Contains(out, `"component":"server"`) {
		t.Fatalf("component should stay outside the group: %s", out)
	}
	if !strings.Contains(out, `"req":{"path":"/stream","status":200}`) {
		t.Fatalf("expected grouped fields, got: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestShiftBackupsSkipsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	if err := os.WriteFile(path, []byte("current"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := ShiftBackups(path, 3); err != nil {
		t.Fatalf("ShiftBackups: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("current file should have moved, stat err = %v", err)
	}
	data, err := os.ReadFile(BackupName(path, 1))
	if err != nil || string(data) != "current" {
		t.Fatalf("backup 1 = %q, %v", data, err)
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deskcast.log")

	rw, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()
	rw.limit = 16

	for i := 0; i < 4; i++ {
		if _, err := rw.Write([]byte("0123456789\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected first backup: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Fatalf("expected second backup: %v", err)
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Fatal("backups beyond maxBackups should be removed")
	}
}

func TestOpenOutputWithoutFileIsStdout(t *testing.T) {
	w, rw, err := OpenOutput("", 0, 0)
	if err != nil {
		t.Fatalf("OpenOutput: %v", err)
	}
	if rw != nil {
		t.Fatal("no rotating writer expected without a path")
	}
	if w != os.Stdout {
		t.Fatal("expected stdout")
	}
}
