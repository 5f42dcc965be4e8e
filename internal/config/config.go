package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

const fileName = "deskcast"

type Config struct {
	Port        int    `mapstructure:"port" yaml:"port"`
	TLSPort     int    `mapstructure:"tls_port" yaml:"tls_port"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Password    string `mapstructure:"password" yaml:"password"`

	DisplayIndex int  `mapstructure:"display_index" yaml:"display_index"`
	FPS          int  `mapstructure:"fps" yaml:"fps"`
	JPEGQuality  int  `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	EnableAudio  bool `mapstructure:"enable_audio" yaml:"enable_audio"`
	EnableHTTPS  bool `mapstructure:"enable_https" yaml:"enable_https"`
	AutoStart    bool `mapstructure:"auto_start" yaml:"auto_start"`

	AudioSampleRate    int `mapstructure:"audio_sample_rate" yaml:"audio_sample_rate"`
	AudioChannels      int `mapstructure:"audio_channels" yaml:"audio_channels"`
	AudioBitsPerSample int `mapstructure:"audio_bits_per_sample" yaml:"audio_bits_per_sample"`

	MaxConnections  int     `mapstructure:"max_connections" yaml:"max_connections"`
	ConnectionQueue int     `mapstructure:"connection_queue" yaml:"connection_queue"`
	TouchRateLimit  float64 `mapstructure:"touch_rate_limit" yaml:"touch_rate_limit"`
	TouchBurst      int     `mapstructure:"touch_burst" yaml:"touch_burst"`

	CertDir string `mapstructure:"cert_dir" yaml:"cert_dir"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	// AuditLog is the viewer access log path; empty disables it.
	AuditLog        string `mapstructure:"audit_log" yaml:"audit_log"`
	AuditMaxSizeMB  int    `mapstructure:"audit_max_size_mb" yaml:"audit_max_size_mb"`
	AuditMaxBackups int    `mapstructure:"audit_max_backups" yaml:"audit_max_backups"`
}

func Default() *Config {
	return &Config{
		Port:               8080,
		FPS:                15,
		JPEGQuality:        50,
		EnableAudio:        true,
		EnableHTTPS:        true,
		AudioSampleRate:    22050,
		AudioChannels:      1,
		AudioBitsPerSample: 16,
		MaxConnections:     16,
		ConnectionQueue:    8,
		TouchRateLimit:     120,
		TouchBurst:         60,
		CertDir:            filepath.Join(ConfigDir(), "certs"),
		LogLevel:           "info",
		LogFormat:          "text",
		LogMaxSizeMB:       10,
		LogMaxBackups:      3,
		AuditMaxSizeMB:     10,
		AuditMaxBackups:    3,
	}
}

// HTTPSPort returns the TLS listener port: the configured one, or the
// plain port plus one.
func (c *Config) HTTPSPort() int {
	if c.TLSPort != 0 {
		return c.TLSPort
	}
	if c.Port == 0 {
		return 0
	}
	return c.Port + 1
}

func Load(cfgFile string) (*Config, error) {
	return load(viper.New(), cfgFile)
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := Default()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DESKCAST")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override values that
// are absent from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	for key, value := range values(cfg) {
		v.SetDefault(key, value)
	}
}

func values(cfg *Config) map[string]any {
	return map[string]any{
		"port":                  cfg.Port,
		"tls_port":              cfg.TLSPort,
		"bind_address":          cfg.BindAddress,
		"password":              cfg.Password,
		"display_index":         cfg.DisplayIndex,
		"fps":                   cfg.FPS,
		"jpeg_quality":          cfg.JPEGQuality,
		"enable_audio":          cfg.EnableAudio,
		"enable_https":          cfg.EnableHTTPS,
		"auto_start":            cfg.AutoStart,
		"audio_sample_rate":     cfg.AudioSampleRate,
		"audio_channels":        cfg.AudioChannels,
		"audio_bits_per_sample": cfg.AudioBitsPerSample,
		"max_connections":       cfg.MaxConnections,
		"connection_queue":      cfg.ConnectionQueue,
		"touch_rate_limit":      cfg.TouchRateLimit,
		"touch_burst":           cfg.TouchBurst,
		"cert_dir":              cfg.CertDir,
		"log_level":             cfg.LogLevel,
		"log_format":            cfg.LogFormat,
		"log_file":              cfg.LogFile,
		"log_max_size_mb":       cfg.LogMaxSizeMB,
		"log_max_backups":       cfg.LogMaxBackups,
		"audit_log":             cfg.AuditLog,
		"audit_max_size_mb":     cfg.AuditMaxSizeMB,
		"audit_max_backups":     cfg.AuditMaxBackups,
	}
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	for key, value := range values(cfg) {
		v.Set(key, value)
	}

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = DefaultPath()
	}
	if dir := filepath.Dir(cfgPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Owner-only: the file holds the viewer password.
	return os.Chmod(cfgPath, 0600)
}

// DefaultPath is where Save writes when no explicit file is given.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), fileName+".yaml")
}

func ConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Deskcast")
	case "darwin":
		return "/Library/Application Support/Deskcast"
	default:
		return "/etc/deskcast"
	}
}
