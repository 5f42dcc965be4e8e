package config

import (
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config should validate cleanly, got %v", errs)
	}
}

func TestValidateClampsFPS(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{-5, 1},
		{15, 15},
		{240, 60},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.FPS = tt.in
		cfg.Validate()
		if cfg.FPS != tt.want {
			t.Errorf("FPS %d clamped to %d, want %d", tt.in, cfg.FPS, tt.want)
		}
	}
}

func TestValidateClampsQuality(t *testing.T) {
	cfg := Default()
	cfg.JPEGQuality = 0
	errs := cfg.Validate()
	if cfg.JPEGQuality != 1 {
		t.Fatalf("JPEGQuality = %d, want 1", cfg.JPEGQuality)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "below minimum") {
		t.Fatalf("expected clamping error, got %v", errs)
	}
}

func TestValidateRejectsUnsupportedAudioFormat(t *testing.T) {
	cfg := Default()
	cfg.AudioSampleRate = 12345
	cfg.AudioBitsPerSample = 24
	cfg.AudioChannels = 6
	errs := cfg.Validate()
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	if cfg.AudioSampleRate != 22050 || cfg.AudioBitsPerSample != 16 || cfg.AudioChannels != 2 {
		t.Fatalf("unexpected corrected format: %d Hz %d ch %d bit",
			cfg.AudioSampleRate, cfg.AudioChannels, cfg.AudioBitsPerSample)
	}
}

func TestValidateTLSPortCollision(t *testing.T) {
	cfg := Default()
	cfg.TLSPort = cfg.Port
	cfg.Validate()
	if cfg.TLSPort != 0 {
		t.Fatalf("TLSPort = %d, want 0 after collision", cfg.TLSPort)
	}
	if got := cfg.HTTPSPort(); got != 8081 {
		t.Fatalf("HTTPSPort() = %d, want 8081", got)
	}
}

func TestValidateControlCharsInPassword(t *testing.T) {
	cfg := Default()
	cfg.Password = "pa\x00ss"
	errs := cfg.Validate()
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "control characters") {
		t.Fatalf("expected control character error, got %v", errs)
	}
}

func TestValidateLogSettings(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	cfg.LogFormat = "xml"
	errs := cfg.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestValidateConnectionLimits(t *testing.T) {
	cfg := Default()
	cfg.MaxConnections = 0
	cfg.ConnectionQueue = 100000
	cfg.Validate()
	if cfg.MaxConnections != 1 {
		t.Fatalf("MaxConnections = %d, want 1", cfg.MaxConnections)
	}
	if cfg.ConnectionQueue != 1024 {
		t.Fatalf("ConnectionQueue = %d, want 1024", cfg.ConnectionQueue)
	}
}

func TestHTTPSPortExplicit(t *testing.T) {
	cfg := Default()
	cfg.TLSPort = 9443
	if got := cfg.HTTPSPort(); got != 9443 {
		t.Fatalf("HTTPSPort() = %d, want 9443", got)
	}
}
