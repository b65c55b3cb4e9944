package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/vcompress/cmd"
	"github.com/smazurov/vcompress/internal/api"
	"github.com/smazurov/vcompress/internal/config"
	"github.com/smazurov/vcompress/internal/events"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/metrics"
	"github.com/smazurov/vcompress/internal/settings"
	"github.com/smazurov/vcompress/internal/systemd"
	"github.com/smazurov/vcompress/internal/updater"
	"github.com/smazurov/vcompress/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	AllowOrigin string `help:"CORS allowed origin" default:"*" toml:"server.allow_origin" env:"SERVER_ALLOW_ORIGIN"`

	// Auth settings, disabled when either is empty
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Batch settings
	OutputDir      string `help:"Initial output directory" default:"" toml:"batch.output_dir" env:"BATCH_OUTPUT_DIR"`
	PollIntervalMs int    `help:"How often a paused run rechecks its flags" default:"100" toml:"batch.poll_interval_ms" env:"BATCH_POLL_INTERVAL_MS"`
	KillGraceMs    int    `help:"Wait after SIGINT before killing a cancelled encoder" default:"5000" toml:"batch.kill_grace_ms" env:"BATCH_KILL_GRACE_MS"`

	// Tool settings
	FfmpegPath  string `help:"ffmpeg binary" default:"ffmpeg" toml:"tools.ffmpeg" env:"TOOLS_FFMPEG"`
	FfprobePath string `help:"ffprobe binary" default:"ffprobe" toml:"tools.ffprobe" env:"TOOLS_FFPROBE"`

	// Thumbnail settings
	ThumbnailsEnabled   bool `help:"Sample preview frames while encoding" default:"true" toml:"thumbnails.enabled" env:"THUMBNAILS_ENABLED"`
	ThumbnailIntervalMs int  `help:"Minimum time between preview frames" default:"33300" toml:"thumbnails.interval_ms" env:"THUMBNAILS_INTERVAL_MS"`
	ThumbnailWidth      int  `help:"Preview frame width" default:"240" toml:"thumbnails.width" env:"THUMBNAILS_WIDTH"`

	// Feature settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"features.metrics" env:"FEATURES_METRICS"`
	UpdateEnabled  bool `help:"Expose the self-update API" default:"false" toml:"features.update" env:"FEATURES_UPDATE"`

	// Logging settings, per-module levels live under [logging.modules]
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)
		logger := logging.GetLogger("main")

		eventBus := events.New()
		logging.SetLogCallback(api.LogPublisher(eventBus))

		toolchain := cmd.Toolchain{
			FFmpeg:            opts.FfmpegPath,
			FFprobe:           opts.FfprobePath,
			Thumbnails:        opts.ThumbnailsEnabled,
			ThumbnailInterval: time.Duration(opts.ThumbnailIntervalMs) * time.Millisecond,
			ThumbnailWidth:    opts.ThumbnailWidth,
			PollInterval:      time.Duration(opts.PollIntervalMs) * time.Millisecond,
			KillGrace:         time.Duration(opts.KillGraceMs) * time.Millisecond,
			Hardware:          settings.HardwareAvailable(),
		}
		ffmpegErr := toolchain.Check()
		if ffmpegErr != nil {
			logger.Warn("Encoding unavailable until ffmpeg is installed", "error", ffmpegErr)
		}

		orchestrator := toolchain.NewOrchestrator(eventBus, opts.OutputDir, settings.Defaults(toolchain.Hardware))

		runCtx, cancelRuns := context.WithCancel(context.Background())

		apiOpts := &api.Options{
			AuthUsername:    opts.AuthUsername,
			AuthPassword:    opts.AuthPassword,
			AllowOrigin:     opts.AllowOrigin,
			Orchestrator:    orchestrator,
			Recommender:     toolchain.Recommender(),
			Bus:             eventBus,
			Hardware:        toolchain.Hardware,
			FFmpegAvailable: ffmpegErr == nil,
			RunContext:      runCtx,
		}

		var recorder *metrics.Recorder
		if opts.MetricsEnabled {
			recorder = metrics.NewRecorder(eventBus)
			apiOpts.PrometheusHandler = metrics.Handler()
		}

		if opts.UpdateEnabled {
			svc, err := updater.NewService(updater.Options{})
			if err != nil {
				logger.Warn("Update service unavailable", "error", err)
			} else {
				apiOpts.Updater = svc
			}
		}

		server := api.NewServer(apiOpts)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		// Log levels follow the config file without a restart
		watcher := config.NewConfigWatcher(opts.Config, config.ReadLoggingConfig, logging.GetLogger("config"),
			config.WithDebounce[logging.Config](500*time.Millisecond))
		watcher.OnReload(logging.SetLevels)

		hooks.OnStart(func() {
			logger.Info("Starting vcompress", "version", version.String())

			if recorder != nil {
				recorder.Start()
			}
			if _, statErr := os.Stat(opts.Config); statErr == nil {
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Config watcher not started", "error", startErr)
				}
			}

			notifier.Watch(eventBus)
			notifier.Ready()
			notifier.Status("Idle")

			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			notifier.Close()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Terminates the running encoder, if any
			orchestrator.Cancel()
			cancelRuns()
			orchestrator.Wait()

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			if recorder != nil {
				recorder.Stop()
			}
		})
	})

	cli.Root().Use = "vcompress"
	cli.Root().Short = "Batch video transcoder"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateRunCmd())
	cli.Root().AddCommand(cmd.CreateRecommendCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())

	// Run the CLI
	cli.Run()
}
