package config

const (
	StageAcquire    = "acquire"
	StageDifference = "difference"
	StageProcess    = "process"
	StageWrite      = "write"
)

// Stages lists the pipeline stages in data-flow order.
var Stages = []string{StageAcquire, StageDifference, StageProcess, StageWrite}

const (
	defaultConfigPath = "~/.config/framewatch/config.toml"
	defaultOutputDir  = "~/.local/share/framewatch/captures"
	defaultLogDir     = "~/.local/share/framewatch/logs"
	defaultStateDir   = "~/.local/state/framewatch"

	defaultCameraSource  = "device"
	defaultCameraWidth   = 640
	defaultCameraHeight  = 480
	defaultWarmupFrames  = 30
	defaultReadRetries   = 3
	defaultReadBackoffMS = 5

	defaultBaseRateHz     = 120
	defaultAcquireHz      = 24
	defaultDifferenceHz   = 2
	defaultProcessHz      = 1
	defaultWriteHz        = 1
	defaultMaxFrames      = 1800
	defaultStopGraceMS    = 500
	defaultJitterWarnMS   = 2
	defaultSignalDepth    = 1
	defaultDeadlineFactor = 1

	defaultRingCapacity   = 30
	defaultSelectCapacity = 10
	defaultWriteCapacity  = 10
	defaultSendTimeoutMS  = 10

	defaultAcquireTimeoutMS    = 100
	defaultDifferenceTimeoutMS = 1000
	defaultProcessTimeoutMS    = 2000
	defaultWriteTimeoutMS      = 2000

	defaultPixelThreshold  = 50
	defaultMotionThreshold = 10

	defaultBackend     = "opencv"
	defaultFilter      = "gaussian"
	defaultSaveVariant = "color"

	defaultStillFormat = "jpg"
	defaultJPEGQuality = 90
	defaultVideoFPS    = 1

	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultRetentionDays = 14

	defaultRealtimePriority = 50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Camera: Camera{
			Source:        defaultCameraSource,
			Width:         defaultCameraWidth,
			Height:        defaultCameraHeight,
			WarmupFrames:  defaultWarmupFrames,
			ReadRetries:   defaultReadRetries,
			ReadBackoffMS: defaultReadBackoffMS,
		},
		Sequencer: Sequencer{
			BaseRateHz:     defaultBaseRateHz,
			AcquireHz:      defaultAcquireHz,
			DifferenceHz:   defaultDifferenceHz,
			ProcessHz:      defaultProcessHz,
			WriteHz:        defaultWriteHz,
			MaxFrames:      defaultMaxFrames,
			StopGraceMS:    defaultStopGraceMS,
			JitterWarnMS:   defaultJitterWarnMS,
			SignalDepth:    defaultSignalDepth,
			DeadlineFactor: defaultDeadlineFactor,
		},
		Channels: Channels{
			RingCapacity:   defaultRingCapacity,
			SelectCapacity: defaultSelectCapacity,
			WriteCapacity:  defaultWriteCapacity,
			SendTimeoutMS:  defaultSendTimeoutMS,
		},
		Timeouts: Timeouts{
			AcquireMS:    defaultAcquireTimeoutMS,
			DifferenceMS: defaultDifferenceTimeoutMS,
			ProcessMS:    defaultProcessTimeoutMS,
			WriteMS:      defaultWriteTimeoutMS,
		},
		Motion: Motion{
			PixelThreshold:  defaultPixelThreshold,
			MotionThreshold: defaultMotionThreshold,
		},
		Processing: Processing{
			Backend:     defaultBackend,
			Filter:      defaultFilter,
			SaveVariant: defaultSaveVariant,
		},
		Output: Output{
			StillFormat:  defaultStillFormat,
			JPEGQuality:  defaultJPEGQuality,
			VideoEnabled: true,
			VideoFPS:     defaultVideoFPS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
		Realtime: Realtime{
			Priority: defaultRealtimePriority,
		},
	}
}
