package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCamera()
	c.normalizeProcessing()
	c.normalizeOutput()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("FRAMEWATCH_OUTPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("FRAMEWATCH_CAMERA_INDEX"); ok {
		if idx, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			c.Camera.DeviceIndex = idx
		}
	}
	if value, ok := os.LookupEnv("FRAMEWATCH_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Camera.ReplayDir != "" {
		if c.Camera.ReplayDir, err = expandPath(c.Camera.ReplayDir); err != nil {
			return fmt.Errorf("camera.replay_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeCamera() {
	c.Camera.Source = lowerOr(c.Camera.Source, defaultCameraSource)
}

func (c *Config) normalizeProcessing() {
	c.Processing.Backend = lowerOr(c.Processing.Backend, defaultBackend)
	c.Processing.Filter = lowerOr(c.Processing.Filter, defaultFilter)
	c.Processing.SaveVariant = lowerOr(c.Processing.SaveVariant, defaultSaveVariant)
}

func (c *Config) normalizeOutput() {
	c.Output.StillFormat = strings.TrimPrefix(lowerOr(c.Output.StillFormat, defaultStillFormat), ".")
	if c.Output.StillFormat == "jpeg" {
		c.Output.StillFormat = "jpg"
	}
	c.Output.LabelHost = strings.TrimSpace(c.Output.LabelHost)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = lowerOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
	if len(c.Logging.StageLevels) == 0 {
		return
	}
	levels := make(map[string]string, len(c.Logging.StageLevels))
	for stage, level := range c.Logging.StageLevels {
		stage = strings.ToLower(strings.TrimSpace(stage))
		level = strings.ToLower(strings.TrimSpace(level))
		if stage == "" || level == "" {
			continue
		}
		levels[stage] = level
	}
	c.Logging.StageLevels = levels
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
