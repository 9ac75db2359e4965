package config

import "runtime"

const (
	defaultConfigPath   = "~/.config/audiomirror/config.toml"
	defaultDatabasePath = "~/.local/share/audiomirror/mirror.db"
	defaultFormat       = "opus"
	defaultBitrateKbps  = 128
	defaultFFmpegBinary = "ffmpeg"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
)

// Default returns a Config populated with repository defaults. Source,
// destination, and allowed extensions have no defaults and must be supplied.
func Default() Config {
	return Config{
		Paths: Paths{
			DatabasePath: defaultDatabasePath,
		},
		Transcode: Transcode{
			Format:       defaultFormat,
			BitrateKbps:  defaultBitrateKbps,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultWorkerCount leaves one core for the aggregator and the rest of the
// system, never going below one worker.
func DefaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0) - 1
	if n < 1 {
		return 1
	}
	return n
}
