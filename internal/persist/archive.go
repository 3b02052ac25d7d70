package persist

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"

	"framewatch/internal/faults"
	"framewatch/internal/logging"
)

// Archiver re-encodes a finished run video.
type Archiver interface {
	Encode(ctx context.Context, inputPath, outputDir string) (string, error)
}

// Drapto archives through the drapto library.
type Drapto struct {
	Logger *slog.Logger
}

// Encode encodes inputPath into outputDir and returns the output path.
func (d *Drapto) Encode(ctx context.Context, inputPath, outputDir string) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory required")
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", faults.Wrap(faults.ErrNotFound, "archive", "stat input", "", err)
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", faults.Wrap(faults.ErrExternalTool, "archive", "init encoder", "", err)
	}
	var rep draptolib.Reporter
	if d.Logger != nil {
		rep = &archiveReporter{logger: d.Logger}
	}
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", faults.Wrap(faults.ErrExternalTool, "archive", "encode", filepath.Base(inputPath), err)
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv"), nil
}

var _ Archiver = (*Drapto)(nil)

// archiveReporter logs the drapto events worth keeping.
type archiveReporter struct {
	logger *slog.Logger
}

func (r *archiveReporter) Hardware(draptolib.HardwareSummary)             {}
func (r *archiveReporter) Initialization(draptolib.InitializationSummary) {}
func (r *archiveReporter) CropResult(draptolib.CropSummary)               {}
func (r *archiveReporter) EncodingConfig(draptolib.EncodingConfigSummary) {}
func (r *archiveReporter) EncodingProgress(draptolib.ProgressSnapshot)    {}
func (r *archiveReporter) BatchStarted(draptolib.BatchStartInfo)          {}
func (r *archiveReporter) FileProgress(draptolib.FileProgressContext)     {}
func (r *archiveReporter) BatchComplete(draptolib.BatchSummary)           {}

func (r *archiveReporter) StageProgress(s draptolib.StageProgress) {
	r.logger.Debug("archive stage",
		logging.String("stage", s.Stage),
		logging.String("message", s.Message),
	)
}

func (r *archiveReporter) EncodingStarted(totalFrames uint64) {
	r.logger.Info("archive encode started", logging.Uint64("total_frames", totalFrames))
}

func (r *archiveReporter) ValidationComplete(s draptolib.ValidationSummary) {
	r.logger.Info("archive validation complete", logging.Bool("passed", s.Passed))
}

func (r *archiveReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("archive encode complete",
		logging.Any("output", s.OutputPath),
		logging.Any("elapsed", s.TotalTime),
	)
}

func (r *archiveReporter) Warning(message string) {
	r.logger.Warn("archive warning", logging.String("message", message))
}

func (r *archiveReporter) Error(e draptolib.ReporterError) {
	r.logger.Error("archive error",
		logging.String("title", e.Title),
		logging.String("message", e.Message),
	)
}

func (r *archiveReporter) OperationComplete(message string) {
	r.logger.Debug("archive operation complete", logging.String("message", message))
}

var _ draptolib.Reporter = (*archiveReporter)(nil)
