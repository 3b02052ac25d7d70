package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
}

// Camera selects and configures the frame source.
type Camera struct {
	Source        string `toml:"source"`
	DeviceIndex   int    `toml:"device_index"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	WarmupFrames  int    `toml:"warmup_frames"`
	ReadRetries   int    `toml:"read_retries"`
	ReadBackoffMS int    `toml:"read_backoff_ms"`
	ReplayDir     string `toml:"replay_dir"`
}

// Sequencer contains the base tick rate, per-stage release rates, and the
// completion threshold.
type Sequencer struct {
	BaseRateHz     int `toml:"base_rate_hz"`
	AcquireHz      int `toml:"acquire_hz"`
	DifferenceHz   int `toml:"difference_hz"`
	ProcessHz      int `toml:"process_hz"`
	WriteHz        int `toml:"write_hz"`
	MaxFrames      int `toml:"max_frames"`
	StopGraceMS    int `toml:"stop_grace_ms"`
	JitterWarnMS   int `toml:"jitter_warn_ms"`
	SignalDepth    int `toml:"signal_depth"`
	DeadlineFactor int `toml:"deadline_factor"`
}

// Channels sizes the hand-off buffers between stages.
type Channels struct {
	RingCapacity   int `toml:"ring_capacity"`
	SelectCapacity int `toml:"select_capacity"`
	WriteCapacity  int `toml:"write_capacity"`
	SendTimeoutMS  int `toml:"send_timeout_ms"`
}

// Timeouts are the per-stage release wait timeouts in milliseconds.
type Timeouts struct {
	AcquireMS    int `toml:"acquire_ms"`
	DifferenceMS int `toml:"difference_ms"`
	ProcessMS    int `toml:"process_ms"`
	WriteMS      int `toml:"write_ms"`
}

// Motion tunes candidate selection in the difference stage.
type Motion struct {
	PixelThreshold  int `toml:"pixel_threshold"`
	MotionThreshold int `toml:"motion_threshold"`
	SettleFrames    int `toml:"settle_frames"`
}

// Processing toggles the optional transforms applied to candidates.
type Processing struct {
	Backend      string `toml:"backend"`
	EdgeEnhance  bool   `toml:"edge_enhance"`
	LineDetect   bool   `toml:"line_detect"`
	CircleDetect bool   `toml:"circle_detect"`
	Filter       string `toml:"filter"`
	SaveVariant  string `toml:"save_variant"`
}

// Output controls persisted stills, the running video, and archiving.
type Output struct {
	StillFormat   string `toml:"still_format"`
	JPEGQuality   int    `toml:"jpeg_quality"`
	VideoEnabled  bool   `toml:"video_enabled"`
	VideoFPS      int    `toml:"video_fps"`
	ArchiveEncode bool   `toml:"archive_encode"`
	LabelHost     string `toml:"label_host"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string            `toml:"format"`
	Level         string            `toml:"level"`
	RetentionDays int               `toml:"retention_days"`
	StageLevels   map[string]string `toml:"stage_levels"`
}

// Realtime controls OS thread scheduling for stage workers.
type Realtime struct {
	Enabled  bool  `toml:"enabled"`
	Priority int   `toml:"priority"`
	CPUs     []int `toml:"cpus"`
}

// Metrics configures the Prometheus endpoint. An empty bind disables it.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for framewatch.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Camera     Camera     `toml:"camera"`
	Sequencer  Sequencer  `toml:"sequencer"`
	Channels   Channels   `toml:"channels"`
	Timeouts   Timeouts   `toml:"timeouts"`
	Motion     Motion     `toml:"motion"`
	Processing Processing `toml:"processing"`
	Output     Output     `toml:"output"`
	Logging    Logging    `toml:"logging"`
	Realtime   Realtime   `toml:"realtime"`
	Metrics    Metrics    `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path, and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if env, ok := os.LookupEnv("FRAMEWATCH_CONFIG"); ok && strings.TrimSpace(env) != "" {
			path = env
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("framewatch.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the output, log, and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "framewatch.lock")
}

// SocketPath is the IPC control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "framewatch.sock")
}

// DatabasePath is the sqlite capture index.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "captures.db")
}

// PIDPath is the pid file written by `framewatch run`.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "framewatch.pid")
}

// StopGrace is the delay between the first and second stop in the drain order.
func (c *Config) StopGrace() time.Duration {
	return millis(c.Sequencer.StopGraceMS)
}

// JitterWarn is the tick deviation counted as late.
func (c *Config) JitterWarn() time.Duration {
	return millis(c.Sequencer.JitterWarnMS)
}

// SendTimeout bounds TrySend on the select and write channels.
func (c *Config) SendTimeout() time.Duration {
	return millis(c.Channels.SendTimeoutMS)
}

// ReadBackoff is the initial capture retry delay.
func (c *Config) ReadBackoff() time.Duration {
	return millis(c.Camera.ReadBackoffMS)
}

// StageTimeout returns the release wait timeout for the named stage.
func (c *Config) StageTimeout(stage string) time.Duration {
	switch stage {
	case StageAcquire:
		return millis(c.Timeouts.AcquireMS)
	case StageDifference:
		return millis(c.Timeouts.DifferenceMS)
	case StageProcess:
		return millis(c.Timeouts.ProcessMS)
	case StageWrite:
		return millis(c.Timeouts.WriteMS)
	default:
		return 0
	}
}

// StageRate returns the configured release rate for the named stage.
func (c *Config) StageRate(stage string) int {
	switch stage {
	case StageAcquire:
		return c.Sequencer.AcquireHz
	case StageDifference:
		return c.Sequencer.DifferenceHz
	case StageProcess:
		return c.Sequencer.ProcessHz
	case StageWrite:
		return c.Sequencer.WriteHz
	default:
		return 0
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		switch {
		case pathValue == "~":
			pathValue = home
		case len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\'):
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
