package testsupport

import (
	"path/filepath"
	"testing"

	"framewatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The camera is synthetic, processing runs on the software backend, and
// frames are small so pipeline tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Camera.Source = "synthetic"
	cfgVal.Camera.Width = 32
	cfgVal.Camera.Height = 24
	cfgVal.Camera.WarmupFrames = 0
	cfgVal.Camera.ReadRetries = 0
	cfgVal.Processing.Backend = "software"
	cfgVal.Output.VideoEnabled = false
	cfgVal.Output.ArchiveEncode = false
	cfgVal.Realtime.Enabled = false
	cfgVal.Metrics.Bind = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithReplayDir switches the camera to directory replay over dir.
func WithReplayDir(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Camera.Source = "directory"
		b.cfg.Camera.ReplayDir = dir
	}
}

// WithFrameSize overrides the capture dimensions.
func WithFrameSize(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Camera.Width = width
		b.cfg.Camera.Height = height
	}
}

// WithCapacities overrides the ring and queue capacities.
func WithCapacities(ring, sel, write int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Channels.RingCapacity = ring
		b.cfg.Channels.SelectCapacity = sel
		b.cfg.Channels.WriteCapacity = write
	}
}

// WithVideo enables the running video output.
func WithVideo() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.VideoEnabled = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
