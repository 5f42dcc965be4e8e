package config

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validSampleRates = map[int]bool{
	8000:  true,
	11025: true,
	16000: true,
	22050: true,
	32000: true,
	44100: true,
	48000: true,
}

// Validate checks the config for invalid values and returns all errors found.
// Out-of-range numbers are clamped to safe values; the rest are logged as
// warnings and do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	clamp := func(name string, v *int, lo, hi int) {
		if *v < lo {
			errs = append(errs, fmt.Errorf("%s %d is below minimum %d, clamping", name, *v, lo))
			*v = lo
		} else if *v > hi {
			errs = append(errs, fmt.Errorf("%s %d exceeds maximum %d, clamping", name, *v, hi))
			*v = hi
		}
	}

	clamp("port", &c.Port, 0, 65534)
	clamp("tls_port", &c.TLSPort, 0, 65535)
	if c.TLSPort != 0 && c.TLSPort == c.Port {
		errs = append(errs, fmt.Errorf("tls_port %d equals port, using port+1", c.TLSPort))
		c.TLSPort = 0
	}

	if c.DisplayIndex < 0 {
		errs = append(errs, fmt.Errorf("display_index %d is negative, using primary display", c.DisplayIndex))
		c.DisplayIndex = 0
	}

	clamp("fps", &c.FPS, 1, 60)
	clamp("jpeg_quality", &c.JPEGQuality, 1, 100)

	if !validSampleRates[c.AudioSampleRate] {
		errs = append(errs, fmt.Errorf("audio_sample_rate %d is not supported, using 22050", c.AudioSampleRate))
		c.AudioSampleRate = 22050
	}
	clamp("audio_channels", &c.AudioChannels, 1, 2)
	if c.AudioBitsPerSample != 16 {
		errs = append(errs, fmt.Errorf("audio_bits_per_sample %d is not supported, using 16", c.AudioBitsPerSample))
		c.AudioBitsPerSample = 16
	}

	clamp("max_connections", &c.MaxConnections, 1, 256)
	clamp("connection_queue", &c.ConnectionQueue, 1, 1024)

	if c.TouchRateLimit < 0 {
		errs = append(errs, fmt.Errorf("touch_rate_limit %.0f is negative, disabling limit", c.TouchRateLimit))
		c.TouchRateLimit = 0
	}
	if c.TouchRateLimit > 0 && c.TouchBurst < 1 {
		errs = append(errs, fmt.Errorf("touch_burst %d is below minimum 1, clamping", c.TouchBurst))
		c.TouchBurst = 1
	}

	if c.AuditLog != "" {
		clamp("audit_max_size_mb", &c.AuditMaxSizeMB, 1, 1024)
		clamp("audit_max_backups", &c.AuditMaxBackups, 1, 20)
	}

	for _, r := range c.Password {
		if unicode.IsControl(r) {
			errs = append(errs, fmt.Errorf("password contains control characters"))
			break
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
