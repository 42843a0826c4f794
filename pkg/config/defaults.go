package config

import (
	"time"

	"github.com/Sumatoshi-tech/combogen/pkg/units"
)

// Default configuration values.
const (
	DefaultFlushSize          = units.MiB
	DefaultFlushSizeText      = "1MiB"
	DefaultBufferSizeText     = "2MiB"
	DefaultOutputPath         = "combos.txt"
	DefaultOutputMode         = "file"
	DefaultCompression        = "none"
	DefaultCheckpointInterval = 5 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Generation: GenerationConfig{
			Limit:     NoLimit,
			FlushSize: DefaultFlushSizeText,
		},
		Output: OutputConfig{
			Mode:        DefaultOutputMode,
			Path:        DefaultOutputPath,
			Compression: DefaultCompression,
			BufferSize:  DefaultBufferSizeText,
		},
		Checkpoint: CheckpointConfig{
			Interval: DefaultCheckpointInterval,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
