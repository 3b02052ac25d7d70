package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"framewatch/internal/config"
	"framewatch/internal/faults"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "framewatch", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "framewatch", "captures"); cfg.Paths.OutputDir != want {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, want)
	}
	if cfg.Sequencer.BaseRateHz != 120 || cfg.Sequencer.AcquireHz != 24 {
		t.Fatalf("unexpected sequencer defaults: %+v", cfg.Sequencer)
	}
	if cfg.Camera.Width != 640 || cfg.Camera.Height != 480 {
		t.Fatalf("unexpected camera size %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Motion.PixelThreshold != 50 || cfg.Motion.MotionThreshold != 10 {
		t.Fatalf("unexpected motion defaults: %+v", cfg.Motion)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "framewatch.toml")

	payload := struct {
		Camera struct {
			Source string `toml:"source"`
		} `toml:"camera"`
		Sequencer struct {
			AcquireHz int `toml:"acquire_hz"`
			MaxFrames int `toml:"max_frames"`
		} `toml:"sequencer"`
		Processing struct {
			Backend     string `toml:"backend"`
			SaveVariant string `toml:"save_variant"`
			LineDetect  bool   `toml:"line_detect"`
		} `toml:"processing"`
		Output struct {
			StillFormat string `toml:"still_format"`
		} `toml:"output"`
		Logging struct {
			StageLevels map[string]string `toml:"stage_levels"`
		} `toml:"logging"`
	}{}
	payload.Camera.Source = "Synthetic"
	payload.Sequencer.AcquireHz = 30
	payload.Sequencer.MaxFrames = 10
	payload.Processing.Backend = "software"
	payload.Processing.SaveVariant = " Threshold "
	payload.Processing.LineDetect = true
	payload.Output.StillFormat = "JPEG"
	payload.Logging.StageLevels = map[string]string{" Acquire ": "WARN"}

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.Camera.Source != "synthetic" || cfg.Processing.SaveVariant != "threshold" {
		t.Fatalf("expected normalized enums, got %q %q", cfg.Camera.Source, cfg.Processing.SaveVariant)
	}
	if cfg.Output.StillFormat != "jpg" {
		t.Fatalf("expected jpeg alias to normalize to jpg, got %q", cfg.Output.StillFormat)
	}
	if cfg.Sequencer.AcquireHz != 30 || cfg.Sequencer.MaxFrames != 10 || !cfg.Processing.LineDetect {
		t.Fatalf("custom values not applied: %+v %+v", cfg.Sequencer, cfg.Processing)
	}
	if cfg.Logging.StageLevels["acquire"] != "warn" {
		t.Fatalf("expected normalized stage level, got %v", cfg.Logging.StageLevels)
	}
	if cfg.StageRate(config.StageAcquire) != 30 {
		t.Fatalf("StageRate = %d", cfg.StageRate(config.StageAcquire))
	}
}

func TestLoadUsesEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("[camera]\nsource = \"synthetic\"\n[processing]\nbackend = \"software\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FRAMEWATCH_CONFIG", path)
	t.Setenv("FRAMEWATCH_CAMERA_INDEX", "2")
	t.Setenv("FRAMEWATCH_OUTPUT_DIR", "~/caps")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != path || !exists {
		t.Fatalf("expected FRAMEWATCH_CONFIG to be used, got %q", resolved)
	}
	if cfg.Camera.DeviceIndex != 2 {
		t.Fatalf("device index = %d", cfg.Camera.DeviceIndex)
	}
	if cfg.Paths.OutputDir != filepath.Join(home, "caps") {
		t.Fatalf("output dir = %q", cfg.Paths.OutputDir)
	}
}

func TestValidateRejectsNonDividingRate(t *testing.T) {
	cfg := config.Default()
	cfg.Sequencer.DifferenceHz = 7

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "sequencer.difference_hz") {
		t.Fatalf("expected key in error, got %v", err)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"zero ring":           func(c *config.Config) { c.Channels.RingCapacity = 0 },
		"zero write capacity": func(c *config.Config) { c.Channels.WriteCapacity = 0 },
		"negative timeout":    func(c *config.Config) { c.Timeouts.ProcessMS = -1 },
		"rate above base":     func(c *config.Config) { c.Sequencer.AcquireHz = 240 },
		"bad variant":         func(c *config.Config) { c.Processing.SaveVariant = "sepia" },
		"bad filter":          func(c *config.Config) { c.Processing.Filter = "median" },
		"pixel threshold":     func(c *config.Config) { c.Motion.PixelThreshold = 300 },
		"device needs opencv": func(c *config.Config) { c.Processing.Backend = "software" },
		"replay needs dir":    func(c *config.Config) { c.Camera.Source = "directory" },
		"archive needs video": func(c *config.Config) { c.Output.VideoEnabled = false; c.Output.ArchiveEncode = true },
		"unknown stage level": func(c *config.Config) { c.Logging.StageLevels = map[string]string{"encode": "debug"} },
		"realtime priority":   func(c *config.Config) { c.Realtime.Enabled = true; c.Realtime.Priority = 0 },
		"signal depth":        func(c *config.Config) { c.Sequencer.SignalDepth = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDurationsAndPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = "/var/lib/framewatch"
	if cfg.StopGrace() != 500*time.Millisecond {
		t.Fatalf("StopGrace = %v", cfg.StopGrace())
	}
	if cfg.StageTimeout(config.StageAcquire) != 100*time.Millisecond {
		t.Fatalf("acquire timeout = %v", cfg.StageTimeout(config.StageAcquire))
	}
	if cfg.StageTimeout("unknown") != 0 {
		t.Fatal("unknown stage should have zero timeout")
	}
	if cfg.SocketPath() != "/var/lib/framewatch/framewatch.sock" {
		t.Fatalf("SocketPath = %q", cfg.SocketPath())
	}
	if cfg.DatabasePath() != "/var/lib/framewatch/captures.db" {
		t.Fatalf("DatabasePath = %q", cfg.DatabasePath())
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	def := config.Default()
	if cfg.Sequencer != def.Sequencer || cfg.Channels != def.Channels || cfg.Motion != def.Motion {
		t.Fatalf("sample diverges from defaults: %+v", cfg.Sequencer)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}
