package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcompress/internal/batch"
	"github.com/smazurov/vcompress/internal/config"
	"github.com/smazurov/vcompress/internal/events"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/metrics"
	"github.com/smazurov/vcompress/internal/recommend"
	"github.com/smazurov/vcompress/internal/settings"
)

// ErrBatchCancelled is returned by the run command when the batch was cancelled.
var ErrBatchCancelled = errors.New("batch cancelled")

// RunOptions configures one headless batch run.
type RunOptions struct {
	Manifest string
	// OutputDir overrides the manifest's output_dir.
	OutputDir string
	// ConfigPath is watched for logging level changes while the batch runs.
	ConfigPath  string
	MetricsAddr string
	Toolchain   Toolchain
}

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	opts := RunOptions{Toolchain: DefaultToolchain()}
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "run <manifest.toml>",
		Short: "Transcode the files of a batch manifest",
		Long: `Loads a TOML batch manifest, applies per-file settings and recommendations, ` +
			`and encodes every file in order. SIGUSR1 pauses, SIGUSR2 resumes, SIGINT or SIGTERM cancels.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Manifest = args[0]
			if configPath, err := cmd.Flags().GetString("config"); err == nil {
				opts.ConfigPath = configPath
			}

			loggingConfig := config.LoadLoggingConfig(opts.ConfigPath)
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			cmd.SilenceUsage = true
			return RunBatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.OutputDir, "output", "o", "", "Output directory, overrides the manifest")
	flags.StringVar(&opts.Toolchain.FFmpeg, "ffmpeg", opts.Toolchain.FFmpeg, "ffmpeg binary")
	flags.StringVar(&opts.Toolchain.FFprobe, "ffprobe", opts.Toolchain.FFprobe, "ffprobe binary")
	flags.BoolVar(&opts.Toolchain.Thumbnails, "thumbnails", opts.Toolchain.Thumbnails, "Sample preview frames while encoding")
	flags.DurationVar(&opts.Toolchain.KillGrace, "kill-grace", opts.Toolchain.KillGrace, "Wait after SIGINT before killing a cancelled encoder")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	flags.BoolVar(&logJSON, "log-json", false, "Log in JSON format")

	return cmd
}

// RunBatch executes the manifest synchronously and prints progress to out.
// A batch with failed files, a failed run and a cancelled run all return
// an error.
func RunBatch(ctx context.Context, out io.Writer, opts RunOptions) error {
	logger := logging.GetLogger("main")
	if ctx == nil {
		ctx = context.Background()
	}

	if err := opts.Toolchain.Check(); err != nil {
		return err
	}

	manifest, err := config.LoadManifest(opts.Manifest)
	if err != nil {
		return err
	}
	outputDir := manifest.OutputDir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}

	defaults, err := manifest.DefaultBundle(settings.Defaults(opts.Toolchain.Hardware))
	if err != nil {
		return err
	}

	bus := events.New()
	recorder := metrics.NewRecorder(bus)
	recorder.Start()
	defer recorder.Stop()

	if opts.MetricsAddr != "" {
		stop := serveMetrics(opts.MetricsAddr, logger)
		defer stop()
	}

	if opts.ConfigPath != "" {
		if _, statErr := os.Stat(opts.ConfigPath); statErr == nil {
			watcher := config.NewConfigWatcher(opts.ConfigPath, config.ReadLoggingConfig, logging.GetLogger("config"),
				config.WithDebounce[logging.Config](500*time.Millisecond))
			watcher.OnReload(logging.SetLevels)
			if err := watcher.Start(); err != nil {
				logger.Warn("Config watcher not started", "error", err)
			} else {
				defer watcher.Stop()
			}
		}
	}

	orch := opts.Toolchain.NewOrchestrator(events.Publishers{newConsolePresenter(out), bus}, outputDir, defaults)
	if err := loadManifest(ctx, orch, manifest, defaults, opts.Toolchain, out); err != nil {
		return err
	}

	stopSignals := handleSignals(orch, logger)
	defer stopSignals()

	status, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	snap := orch.Snapshot()
	switch {
	case status == batch.StatusCancelled:
		return ErrBatchCancelled
	case snap.Failed > 0:
		return fmt.Errorf("%d of %d files failed", snap.Failed, snap.Total)
	}
	return nil
}

// loadManifest adds the manifest files with their bundles. A failed
// recommendation keeps the file's manifest bundle.
func loadManifest(ctx context.Context, orch *batch.Orchestrator, m *config.Manifest, defaults settings.Bundle, tc Toolchain, out io.Writer) error {
	paths := make([]string, len(m.Files))
	for i, f := range m.Files {
		paths[i] = f.Path
	}
	if _, err := orch.AddFiles(paths...); err != nil {
		return err
	}

	var engine *recommend.Engine
	for i, f := range m.Files {
		b, err := m.FileBundle(i, defaults)
		if err != nil {
			return err
		}
		orch.Store().Put(f.Path, b)

		if !f.Recommend {
			continue
		}
		if engine == nil {
			engine = tc.Recommender()
		}
		rec, err := engine.Apply(ctx, orch.Store(), f.Path, f.Mono)
		if err != nil {
			_, _ = fmt.Fprintf(out, "warning: %s: no recommendation: %v\n", f.Path, err)
			continue
		}
		for _, w := range rec.Warnings {
			_, _ = fmt.Fprintf(out, "warning: %s: %s\n", f.Path, w)
		}
	}
	return nil
}

// handleSignals maps SIGUSR1, SIGUSR2 and SIGINT/SIGTERM to pause, resume
// and cancel. The returned func stops the handling.
func handleSignals(orch *batch.Orchestrator, logger logging.Logger) func() {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGUSR1:
					orch.Pause()
				case syscall.SIGUSR2:
					orch.Resume()
				default:
					logger.Info("Cancelling batch", "signal", sig.String())
					orch.Cancel()
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func serveMetrics(addr string, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return func() { _ = srv.Close() }
}
