package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/deskcast/internal/audio"
	"github.com/breeze-rmm/deskcast/internal/audit"
	"github.com/breeze-rmm/deskcast/internal/capture"
	"github.com/breeze-rmm/deskcast/internal/certs"
	"github.com/breeze-rmm/deskcast/internal/collectors"
	"github.com/breeze-rmm/deskcast/internal/config"
	"github.com/breeze-rmm/deskcast/internal/input"
	"github.com/breeze-rmm/deskcast/internal/logging"
	"github.com/breeze-rmm/deskcast/internal/privilege"
	"github.com/breeze-rmm/deskcast/internal/server"
)

var (
	flagPort    int
	flagDisplay int
	flagNoAudio bool
	flagNoHTTPS bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the stream server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = flagPort
		}
		if cmd.Flags().Changed("display") {
			cfg.DisplayIndex = flagDisplay
		}
		if flagNoAudio {
			cfg.EnableAudio = false
		}
		if flagNoHTTPS {
			cfg.EnableHTTPS = false
		}
		return runServer(cfg)
	},
}

func init() {
	runCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "HTTP port (overrides config)")
	runCmd.Flags().IntVarP(&flagDisplay, "display", "d", 0, "display index (see 'deskcast displays')")
	runCmd.Flags().BoolVar(&flagNoAudio, "no-audio", false, "disable audio streaming")
	runCmd.Flags().BoolVar(&flagNoHTTPS, "no-https", false, "disable the HTTPS listener")
}

func runServer(cfg *config.Config) error {
	if rw := initLogging(cfg); rw != nil {
		defer rw.Close()
	}
	log := logging.L("main")

	targets, err := capture.Displays()
	if err != nil {
		return fmt.Errorf("enumerate displays: %w", err)
	}
	target, ok := capture.Select(targets, cfg.DisplayIndex)
	if !ok {
		log.Warn("display index out of range, using primary display",
			"requested", cfg.DisplayIndex, "using", target.Index, "displays", len(targets))
	}

	syncAutostart(cfg.AutoStart, log)
	for _, w := range privilege.Check().Warnings() {
		log.Warn(w)
	}

	var access *audit.Logger
	if cfg.AuditLog != "" {
		access, err = audit.NewLogger(cfg.AuditLog, cfg.AuditMaxSizeMB, cfg.AuditMaxBackups)
		if err != nil {
			log.Warn("access log disabled", logging.KeyError, err.Error())
		}
		defer access.Close()
	}

	frames := capture.New(logging.L("capture"))
	defer frames.Close()

	srv := server.New(server.Options{
		BindAddress:     cfg.BindAddress,
		Port:            cfg.Port,
		TLSPort:         cfg.HTTPSPort(),
		FPS:             cfg.FPS,
		Quality:         cfg.JPEGQuality,
		MaxConnections:  cfg.MaxConnections,
		ConnectionQueue: cfg.ConnectionQueue,
		TouchRateLimit:  cfg.TouchRateLimit,
		TouchBurst:      cfg.TouchBurst,
		AudioFormat: audio.Format{
			SampleRate:    cfg.AudioSampleRate,
			Channels:      cfg.AudioChannels,
			BitsPerSample: cfg.AudioBitsPerSample,
		},
		Frames:   frames,
		Injector: input.New(logging.L("input")),
		Certs:    certs.NewProvider(cfg.CertDir, logging.L("certs")),
		Host:     collectors.NewMetricsCollector(),
		Audit:    access,
		Logger:   logging.L("server"),
	})

	log.Info("starting deskcast", "version", version)
	if err := srv.Start(target, cfg.Password, cfg.EnableAudio, cfg.EnableHTTPS); err != nil {
		return err
	}

	printBanner(os.Stdout, bannerInfo{
		Version:  version,
		Target:   target,
		Port:     portOf(srv.Addr()),
		TLSPort:  portOf(srv.TLSAddr()),
		Audio:    srv.AudioEnabled(),
		Password: cfg.Password != "",
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down", "signal", sig.String())
	srv.Stop()
	return nil
}

// initLogging installs the configured handler and then validates cfg, so
// validation warnings reach the configured format, level and file.
func initLogging(cfg *config.Config) *logging.RotatingWriter {
	out, rw, err := logging.OpenOutput(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file, logging to stdout only: %v\n", err)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	cfg.Validate()
	return rw
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
