// Package config loads combogen settings from defaults, an optional YAML
// file, COMBOGEN_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
	"github.com/Sumatoshi-tech/combogen/pkg/sink"
	"github.com/Sumatoshi-tech/combogen/pkg/units"
)

// Sentinel validation errors.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMissingLength    = errors.New("combination length is required")
	ErrAlphabetConflict = errors.New("alphabet charset and preset are mutually exclusive")
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "COMBOGEN"

// NoLimit is the Generation.Limit value for an unbounded run.
const NoLimit int64 = -1

// Config holds all combogen settings.
type Config struct {
	Alphabet   AlphabetConfig   `mapstructure:"alphabet"   yaml:"alphabet"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Output     OutputConfig     `mapstructure:"output"     yaml:"output"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"  yaml:"telemetry"`
}

// AlphabetConfig selects the symbol set: either an explicit charset or a
// named preset. With neither, printable ASCII is used.
type AlphabetConfig struct {
	Charset string `mapstructure:"charset" yaml:"charset,omitempty"`
	Preset  string `mapstructure:"preset"  yaml:"preset,omitempty"  validate:"omitempty,oneof=printable lower upper digits alnum hex"`
}

// GenerationConfig holds the shape and pacing of a run.
type GenerationConfig struct {
	Length    int           `mapstructure:"length"     yaml:"length"               validate:"gte=0"`
	Workers   int           `mapstructure:"workers"    yaml:"workers"              validate:"gte=0,lte=4096"`
	Limit     int64         `mapstructure:"limit"      yaml:"limit"                validate:"gte=-1"`
	FlushSize string        `mapstructure:"flush_size" yaml:"flush_size"           validate:"required"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout,omitempty"    validate:"gte=0"`
}

// OutputConfig selects and tunes the sink.
type OutputConfig struct {
	Mode        string `mapstructure:"mode"        yaml:"mode"        validate:"oneof=file memory null discard void"`
	Path        string `mapstructure:"path"        yaml:"path"`
	Compression string `mapstructure:"compression" yaml:"compression" validate:"oneof=none gzip lz4"`
	BufferSize  string `mapstructure:"buffer_size" yaml:"buffer_size" validate:"required"`
	MemoryCap   uint64 `mapstructure:"memory_cap"  yaml:"memory_cap"`
}

// CheckpointConfig controls resume persistence. An empty path disables it.
type CheckpointConfig struct {
	Path     string        `mapstructure:"path"     yaml:"path,omitempty"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"       validate:"gt=0"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// TelemetryConfig controls metrics and tracing export.
type TelemetryConfig struct {
	MetricsAddr  string  `mapstructure:"metrics_addr"  yaml:"metrics_addr,omitempty"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint,omitempty"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"  yaml:"otlp_headers,omitempty"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"  yaml:"sample_ratio"            validate:"gte=0,lte=1"`
}

// FlagBindings maps configuration keys to the command-line flags that
// override them.
var FlagBindings = map[string]string{
	"alphabet.charset":        "charset",
	"alphabet.preset":         "preset",
	"generation.length":       "length",
	"generation.workers":      "workers",
	"generation.limit":        "limit",
	"generation.flush_size":   "flush-size",
	"generation.timeout":      "timeout",
	"output.mode":             "mode",
	"output.path":             "output",
	"output.compression":      "compress",
	"output.buffer_size":      "buffer-size",
	"output.memory_cap":       "memory-cap",
	"checkpoint.path":         "resume",
	"checkpoint.interval":     "checkpoint-interval",
	"logging.level":           "log-level",
	"logging.format":          "log-format",
	"telemetry.metrics_addr":  "metrics-addr",
	"telemetry.otlp_endpoint": "otlp-endpoint",
	"telemetry.otlp_headers":  "otlp-headers",
	"telemetry.otlp_insecure": "otlp-insecure",
	"telemetry.sample_ratio":  "sample-ratio",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from configPath (optional), the environment and
// flags. Only flags present in flags are bound.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("combogen")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for key, name := range FlagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}

			err := viperCfg.BindPFlag(key, flag)
			if err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// setDefaults registers every key so environment variables can override
// values that appear in no file.
func setDefaults(viperCfg *viper.Viper) {
	d := Default()

	viperCfg.SetDefault("alphabet.charset", d.Alphabet.Charset)
	viperCfg.SetDefault("alphabet.preset", d.Alphabet.Preset)

	viperCfg.SetDefault("generation.length", d.Generation.Length)
	viperCfg.SetDefault("generation.workers", d.Generation.Workers)
	viperCfg.SetDefault("generation.limit", d.Generation.Limit)
	viperCfg.SetDefault("generation.flush_size", d.Generation.FlushSize)
	viperCfg.SetDefault("generation.timeout", d.Generation.Timeout)

	viperCfg.SetDefault("output.mode", d.Output.Mode)
	viperCfg.SetDefault("output.path", d.Output.Path)
	viperCfg.SetDefault("output.compression", d.Output.Compression)
	viperCfg.SetDefault("output.buffer_size", d.Output.BufferSize)
	viperCfg.SetDefault("output.memory_cap", d.Output.MemoryCap)

	viperCfg.SetDefault("checkpoint.path", d.Checkpoint.Path)
	viperCfg.SetDefault("checkpoint.interval", d.Checkpoint.Interval)

	viperCfg.SetDefault("logging.level", d.Logging.Level)
	viperCfg.SetDefault("logging.format", d.Logging.Format)

	viperCfg.SetDefault("telemetry.metrics_addr", d.Telemetry.MetricsAddr)
	viperCfg.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_headers", d.Telemetry.OTLPHeaders)
	viperCfg.SetDefault("telemetry.otlp_insecure", d.Telemetry.OTLPInsecure)
	viperCfg.SetDefault("telemetry.sample_ratio", d.Telemetry.SampleRatio)
}

// Validate checks field constraints and that sizes and the alphabet parse.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Alphabet.Charset != "" && c.Alphabet.Preset != "" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrAlphabetConflict)
	}

	_, err = c.BuildAlphabet()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	_, err = c.FlushBytes()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	_, err = c.SinkOptions()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Telemetry.MetricsAddr != "" {
		_, _, err = net.SplitHostPort(c.Telemetry.MetricsAddr)
		if err != nil {
			return fmt.Errorf("%w: metrics address: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}

// RequireLength reports ErrMissingLength when no length was configured.
func (c *Config) RequireLength() error {
	if c.Generation.Length < 1 {
		return ErrMissingLength
	}

	return nil
}

// BuildAlphabet returns the configured alphabet: the charset when set,
// otherwise the preset, otherwise printable ASCII.
func (c *Config) BuildAlphabet() (*alphabet.Alphabet, error) {
	if c.Alphabet.Charset != "" {
		return alphabet.New(c.Alphabet.Charset)
	}

	if c.Alphabet.Preset != "" {
		return alphabet.Preset(c.Alphabet.Preset)
	}

	return alphabet.Default(), nil
}

// FlushBytes returns the worker buffer size in bytes.
func (c *Config) FlushBytes() (int, error) {
	return units.ParseSize(c.Generation.FlushSize, DefaultFlushSize)
}

// Limit returns the engine limit and whether a limit is set.
func (c *Config) Limit() (uint64, bool) {
	if c.Generation.Limit < 0 {
		return 0, false
	}

	return uint64(c.Generation.Limit), true
}

// SinkOptions translates the output section into sink options.
func (c *Config) SinkOptions() (sink.Options, error) {
	mode, err := sink.ParseMode(c.Output.Mode)
	if err != nil {
		return sink.Options{}, err
	}

	compression, err := sink.ParseCompression(c.Output.Compression)
	if err != nil {
		return sink.Options{}, err
	}

	buffer, err := units.ParseSize(c.Output.BufferSize, sink.DefaultBufferSize)
	if err != nil {
		return sink.Options{}, err
	}

	return sink.Options{
		Mode:        mode,
		Path:        c.Output.Path,
		Compression: compression,
		BufferSize:  buffer,
		MemoryCap:   c.Output.MemoryCap,
	}, nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return out, nil
}
