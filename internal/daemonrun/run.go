package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"framewatch/internal/config"
	"framewatch/internal/daemon"
	"framewatch/internal/deps"
	"framewatch/internal/faults"
	"framewatch/internal/frame"
	"framewatch/internal/ipc"
	"framewatch/internal/logging"
	"framewatch/internal/metrics"
	"framewatch/internal/pipeline"
	"framewatch/internal/store"
	"framewatch/internal/vision"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// RunID overrides the generated run identifier.
	RunID string
}

// Run starts a daemon, runs one pipeline to completion or until SIGINT or
// SIGTERM, and tears everything down in reverse order.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("framewatch-%s.log", stamp))

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update framewatch.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RunLogTarget(cfg.Paths.LogDir, logPath))

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open capture store", logging.Error(err))
		return err
	}
	defer st.Close()

	ledger := frame.NewLedger()
	backend, err := vision.Open(cfg.Processing.Backend, ledger)
	if err != nil {
		return faults.Configuration("vision", "open processing backend", err)
	}

	reg := metrics.New()
	pipelineOpts := []pipeline.Option{pipeline.WithLedger(ledger)}
	if opts.RunID != "" {
		pipelineOpts = append(pipelineOpts, pipeline.WithRunID(opts.RunID))
	}

	d, err := daemon.New(cfg, st, backend, reg, logger, pipelineOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if cfg.Metrics.Bind != "" {
		srv, err := metrics.Listen(cfg.Metrics.Bind, reg, logger)
		if err != nil {
			logger.Warn("metrics endpoint unavailable",
				logging.String("bind", cfg.Metrics.Bind),
				logging.Error(err),
				logging.String(logging.FieldEventType, "metrics_listen_failed"),
				logging.String(logging.FieldImpact, "pipeline counters are not exported"),
				logging.String(logging.FieldErrorHint, "choose a free address for metrics.bind"))
		} else {
			metricsCtx, stopMetrics := context.WithCancel(context.Background())
			defer stopMetrics()
			go func() {
				if err := srv.Serve(metricsCtx); err != nil {
					logger.Warn("metrics endpoint stopped", logging.Error(err))
				}
			}()
		}
	}

	runErr := d.Run(signalCtx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	logger.Info("framewatch shutting down", logging.String("log", logPath))
	return runErr
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "framewatch.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []any{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Processing.Backend),
		logging.Any("available_backends", vision.Backends()),
		logging.String("camera_source", cfg.Camera.Source),
		logging.Bool("archive_encode", cfg.Output.ArchiveEncode),
	}
	if cfg.Output.ArchiveEncode {
		for _, status := range deps.CheckBinaries(deps.ArchiveRequirements()) {
			attrs = append(attrs, logging.Bool(status.Command+"_available", status.Available))
		}
	}
	logger.Info("dependency snapshot", attrs...)
}
