package persist

import (
	"path/filepath"

	"framewatch/internal/config"
	"framewatch/internal/vision"
)

// Output is the per-run persistence target.
type Output struct {
	Persister vision.Persister
	Dir       string
	VideoPath string
	StillExt  string
}

// Open prepares the run directory layout and the backend's persister, or
// the pure-Go Files persister when the backend has none.
func Open(cfg *config.Config, backend vision.Backend, runID string) Output {
	dir := RunDir(cfg.Paths.OutputDir, runID)
	out := Output{Dir: dir, StillExt: StillExt(cfg.Output.StillFormat)}
	opts := vision.PersisterOptions{
		FPS:         float64(cfg.Output.VideoFPS),
		JPEGQuality: cfg.Output.JPEGQuality,
	}
	if cfg.Output.VideoEnabled {
		ext := backend.VideoExt
		if backend.NewPersister == nil {
			ext = ".mjpeg"
		}
		out.VideoPath = filepath.Join(dir, VideoName(runID, ext))
		opts.VideoPath = out.VideoPath
	}
	if backend.NewPersister != nil {
		out.Persister = backend.NewPersister(opts)
	} else {
		out.Persister = NewFiles(opts)
	}
	return out
}

// StillPath returns the still path for a frame of this run.
func (o Output) StillPath(variant, runID string, seq uint64) string {
	return filepath.Join(o.Dir, StillName(variant, runID, seq, o.StillExt))
}
