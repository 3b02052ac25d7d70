package config

import (
	"errors"
	"fmt"
	"slices"

	"framewatch/internal/faults"
)

// Validate ensures the configuration is usable. Failures wrap
// faults.ErrConfiguration.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateCamera,
		c.validateSequencer,
		c.validateChannels,
		c.validateTimeouts,
		c.validateMotion,
		c.validateProcessing,
		c.validateOutput,
		c.validateLogging,
		c.validateRealtime,
	} {
		if err := check(); err != nil {
			return faults.Wrap(faults.ErrConfiguration, "config", "validate", "", err)
		}
	}
	return nil
}

func (c *Config) validateCamera() error {
	switch c.Camera.Source {
	case "device", "synthetic":
	case "directory":
		if c.Camera.ReplayDir == "" {
			return errors.New("camera.replay_dir must be set when camera.source is directory")
		}
	default:
		return fmt.Errorf("camera.source must be device, synthetic, or directory (got %q)", c.Camera.Source)
	}
	if c.Camera.DeviceIndex < 0 {
		return errors.New("camera.device_index must be zero or positive")
	}
	if err := ensurePositiveMap(map[string]int{
		"camera.width":  c.Camera.Width,
		"camera.height": c.Camera.Height,
	}); err != nil {
		return err
	}
	if c.Camera.WarmupFrames < 0 || c.Camera.ReadRetries < 0 || c.Camera.ReadBackoffMS < 0 {
		return errors.New("camera.warmup_frames, camera.read_retries, and camera.read_backoff_ms must not be negative")
	}
	return nil
}

func (c *Config) validateSequencer() error {
	s := c.Sequencer
	if s.BaseRateHz <= 0 {
		return errors.New("sequencer.base_rate_hz must be positive")
	}
	rates := map[string]int{
		"sequencer.acquire_hz":    s.AcquireHz,
		"sequencer.difference_hz": s.DifferenceHz,
		"sequencer.process_hz":    s.ProcessHz,
		"sequencer.write_hz":      s.WriteHz,
	}
	if err := ensurePositiveMap(rates); err != nil {
		return err
	}
	for _, key := range sortedKeys(rates) {
		rate := rates[key]
		if rate > s.BaseRateHz || s.BaseRateHz%rate != 0 {
			return fmt.Errorf("%s (%d) must evenly divide sequencer.base_rate_hz (%d)", key, rate, s.BaseRateHz)
		}
	}
	if s.MaxFrames < 0 {
		return errors.New("sequencer.max_frames must be zero (unbounded) or positive")
	}
	if s.StopGraceMS < 0 || s.JitterWarnMS < 0 {
		return errors.New("sequencer.stop_grace_ms and sequencer.jitter_warn_ms must not be negative")
	}
	if s.SignalDepth < 1 {
		return errors.New("sequencer.signal_depth must be at least 1")
	}
	if s.DeadlineFactor < 1 {
		return errors.New("sequencer.deadline_factor must be at least 1")
	}
	return nil
}

func (c *Config) validateChannels() error {
	if err := ensurePositiveMap(map[string]int{
		"channels.ring_capacity":   c.Channels.RingCapacity,
		"channels.select_capacity": c.Channels.SelectCapacity,
		"channels.write_capacity":  c.Channels.WriteCapacity,
	}); err != nil {
		return err
	}
	if c.Channels.SendTimeoutMS < 0 {
		return errors.New("channels.send_timeout_ms must not be negative")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"timeouts.acquire_ms":    c.Timeouts.AcquireMS,
		"timeouts.difference_ms": c.Timeouts.DifferenceMS,
		"timeouts.process_ms":    c.Timeouts.ProcessMS,
		"timeouts.write_ms":      c.Timeouts.WriteMS,
	})
}

func (c *Config) validateMotion() error {
	if c.Motion.PixelThreshold < 0 || c.Motion.PixelThreshold > 255 {
		return errors.New("motion.pixel_threshold must be between 0 and 255")
	}
	if c.Motion.MotionThreshold < 0 {
		return errors.New("motion.motion_threshold must not be negative")
	}
	if c.Motion.SettleFrames < 0 {
		return errors.New("motion.settle_frames must not be negative")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if !slices.Contains([]string{"software", "opencv"}, c.Processing.Backend) {
		return fmt.Errorf("processing.backend must be software or opencv (got %q)", c.Processing.Backend)
	}
	if !slices.Contains([]string{"gaussian", "filter2d", "sepfilter2d"}, c.Processing.Filter) {
		return fmt.Errorf("processing.filter must be gaussian, filter2d, or sepfilter2d (got %q)", c.Processing.Filter)
	}
	if !slices.Contains([]string{"color", "gray", "diff", "threshold"}, c.Processing.SaveVariant) {
		return fmt.Errorf("processing.save_variant must be color, gray, diff, or threshold (got %q)", c.Processing.SaveVariant)
	}
	if c.Camera.Source == "device" && c.Processing.Backend != "opencv" {
		return errors.New("camera.source device requires processing.backend opencv")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.StillFormat != "jpg" && c.Output.StillFormat != "png" {
		return fmt.Errorf("output.still_format must be jpg or png (got %q)", c.Output.StillFormat)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return errors.New("output.jpeg_quality must be between 1 and 100")
	}
	if c.Output.VideoEnabled && c.Output.VideoFPS <= 0 {
		return errors.New("output.video_fps must be positive when output.video_enabled is set")
	}
	if c.Output.ArchiveEncode && !c.Output.VideoEnabled {
		return errors.New("output.archive_encode requires output.video_enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	for stage := range c.Logging.StageLevels {
		if !slices.Contains(Stages, stage) {
			return fmt.Errorf("logging.stage_levels: unknown stage %q", stage)
		}
	}
	return nil
}

func (c *Config) validateRealtime() error {
	if !c.Realtime.Enabled {
		return nil
	}
	if c.Realtime.Priority < 1 || c.Realtime.Priority > 99 {
		return errors.New("realtime.priority must be between 1 and 99")
	}
	for _, cpu := range c.Realtime.CPUs {
		if cpu < 0 {
			return errors.New("realtime.cpus entries must not be negative")
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func sortedKeys(values map[string]int) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
