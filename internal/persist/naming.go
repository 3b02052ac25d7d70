package persist

import (
	"fmt"
	"path/filepath"
	"strings"

	"framewatch/internal/textutil"
)

// StillName returns "<variant>_<run>_<seq>.<ext>". run is shortened to its
// first eight characters.
func StillName(variant, runID string, seq uint64, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s_%s_%06d.%s", variant, shortRun(runID), seq, ext)
}

// RunDir is the output directory holding one run's files.
func RunDir(outputDir, runID string) string {
	return filepath.Join(outputDir, "run_"+shortRun(runID))
}

// VideoName returns the running video file name for a run.
func VideoName(runID, ext string) string {
	if ext == "" {
		ext = ".mjpeg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return "video_" + shortRun(runID) + ext
}

func shortRun(runID string) string {
	runID = strings.ReplaceAll(runID, "-", "")
	if runID == "" {
		return "norun"
	}
	runID = textutil.SanitizeToken(runID)
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
