package commands

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
	"github.com/Sumatoshi-tech/combogen/pkg/config"
	"github.com/Sumatoshi-tech/combogen/pkg/observability"
)

// registerSpaceFlags adds the flags that shape the combination space.
func registerSpaceFlags(fs *pflag.FlagSet) {
	fs.String("charset", "", "explicit alphabet, one symbol per character")
	fs.String("preset", "", fmt.Sprintf("named alphabet %v (default printable ASCII)", alphabet.Presets()))
	fs.IntP("length", "l", 0, "combination length")
	fs.Int64("limit", config.NoLimit, "stop after N combinations (-1 = no limit)")
	fs.String("resume", "", "resume file: read at start, updated while running")
}

// registerGenerateFlags adds the flags that only matter when generating.
func registerGenerateFlags(fs *pflag.FlagSet) {
	fs.IntP("workers", "w", 0, "number of parallel workers (0 = use CPU count)")
	fs.String("flush-size", config.DefaultFlushSizeText, "worker buffer size before a sink write (e.g. '256KiB', '4MiB')")
	fs.Duration("timeout", 0, "stop the run after this duration (0 = none)")
	fs.String("mode", config.DefaultOutputMode, "output mode: file, memory, null")
	fs.StringP("output", "o", config.DefaultOutputPath, "output file path ('-' = stdout)")
	fs.String("compress", config.DefaultCompression, "output compression: none, gzip, lz4")
	fs.String("buffer-size", config.DefaultBufferSizeText, "output writer buffer size")
	fs.Uint64("memory-cap", 0, "maximum records held in memory mode (0 = unbounded)")
	fs.Duration("checkpoint-interval", config.DefaultCheckpointInterval, "resume file update period")
	fs.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", config.DefaultLogFormat, "log format: text, json")
	fs.String("metrics-addr", "", "serve /healthz, /readyz and /metrics on this address while running")
	fs.String("otlp-endpoint", "", "OTLP gRPC collector address for traces and metrics")
	fs.String("otlp-headers", "", "OTLP headers as key=value,key=value")
	fs.Bool("otlp-insecure", false, "disable TLS for the OTLP connection")
	fs.Float64("sample-ratio", 0, "trace sampling ratio (0 = sample everything)")
}

// loadConfig resolves the effective configuration. A positional length
// argument takes precedence over --length.
func loadConfig(cmd *cobra.Command, opts *GlobalOptions, args []string) (*config.Config, error) {
	if len(args) > 0 {
		if _, err := strconv.Atoi(args[0]); err != nil {
			return nil, fmt.Errorf("length %q is not an integer", args[0])
		}

		err := cmd.Flags().Set("length", args[0])
		if err != nil {
			return nil, fmt.Errorf("set length: %w", err)
		}
	}

	cfg, err := config.Load(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// logLevel applies --verbose and --quiet on top of the configured level.
func logLevel(cfg *config.Config, opts *GlobalOptions) slog.Level {
	switch {
	case opts.Verbose:
		return slog.LevelDebug
	case opts.Quiet:
		return slog.LevelWarn
	}

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}

	return level
}
