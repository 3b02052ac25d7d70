package capture

import (
	"fmt"
	"log/slog"

	"framewatch/internal/config"
	"framewatch/internal/faults"
	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

// Open selects, opens, and configures the frame source named by
// cfg.Camera.Source. device sources come from the vision backend.
func Open(cfg *config.Config, ledger *frame.Ledger, backend vision.Backend, logger *slog.Logger) (vision.Capture, error) {
	var src vision.Capture
	switch cfg.Camera.Source {
	case "synthetic":
		src = NewSynthetic(ledger, nil)
	case "directory":
		src = NewDirectory(ledger, cfg.Camera.ReplayDir)
	case "device":
		if backend.Capture == nil {
			return nil, faults.Configuration("capture", "processing backend cannot open camera devices", nil)
		}
		src = backend.Capture
	default:
		return nil, faults.Configuration("capture", fmt.Sprintf("unknown camera source %q", cfg.Camera.Source), nil)
	}
	return Prepare(src, cfg, logger)
}

// Prepare opens and configures src and wraps it with the configured retry
// policy. Failures here are configuration errors: the pipeline cannot start
// without a source.
func Prepare(src vision.Capture, cfg *config.Config, logger *slog.Logger) (vision.Capture, error) {
	if err := src.Open(cfg.Camera.DeviceIndex); err != nil {
		return nil, faults.Configuration("capture", "open source", err)
	}
	if err := src.Configure(cfg.Camera.Width, cfg.Camera.Height); err != nil {
		_ = src.Close()
		return nil, faults.Configuration("capture", "configure source", err)
	}
	if cfg.Camera.ReadRetries <= 0 {
		return src, nil
	}
	return &Retrying{
		Capture: src,
		Retries: cfg.Camera.ReadRetries,
		Backoff: cfg.ReadBackoff(),
		Logger:  logger,
	}, nil
}
