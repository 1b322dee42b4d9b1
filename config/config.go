// Package config loads process configuration for the dds-core tools from a
// YAML file and DDSCORE_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/dds-core/descriptor"
	"github.com/wippyai/dds-core/keys"
	"github.com/wippyai/dds-core/layout"
	"github.com/wippyai/dds-core/shm"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DDSCORE_LOG_LEVEL.
	EnvPrefix = "DDSCORE"

	DefaultLogLevel       = "info"
	DefaultTransportLevel = "warn"
)

// Config holds all dds-core configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Build     BuildConfig     `mapstructure:"build"`
	Transport TransportConfig `mapstructure:"transport"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// BuildConfig configures descriptor construction.
type BuildConfig struct {
	// Keylists forces keylist key discovery regardless of the type tree.
	Keylists bool `mapstructure:"keylists"`
	// EncodingVersion is "xcdr1", "xcdr2" or empty for the type's default.
	EncodingVersion  string `mapstructure:"encoding-version"`
	DisableTypecheck bool   `mapstructure:"disable-typecheck"`
}

// TransportConfig configures the shared-memory transport. Its log level is
// independent of the process log level.
type TransportConfig struct {
	LogLevel string `mapstructure:"log-level"`
}

// settings lists every key so environment variables bind without a file.
var settings = map[string]any{
	"log.level":               "",
	"log.development":         false,
	"build.keylists":          false,
	"build.encoding-version":  "",
	"build.disable-typecheck": false,
	"transport.log-level":     "",
}

// New returns a viper instance reading DDSCORE_* variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, def := range settings {
		v.SetDefault(key, def)
	}
	return v
}

// Load reads the optional config file into v and decodes the result.
func Load(v *viper.Viper, configFile string) (Config, error) {
	var cfg Config
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("failed to read config file [%s]: %w", configFile, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Log.Level = lo.CoalesceOrEmpty(strings.ToLower(cfg.Log.Level), DefaultLogLevel)
	cfg.Transport.LogLevel = lo.CoalesceOrEmpty(strings.ToLower(cfg.Transport.LogLevel), DefaultTransportLevel)
	cfg.Build.EncodingVersion = strings.ToLower(cfg.Build.EncodingVersion)
}

// Validate checks every enumerated setting.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := c.Build.Version(); err != nil {
		return err
	}
	if _, err := shm.ParseLogLevel(c.Transport.LogLevel); err != nil {
		return fmt.Errorf("transport.log-level: %w", err)
	}
	return nil
}

// Version returns the configured encoding version, or 0 for the default.
func (b BuildConfig) Version() (layout.EncodingVersion, error) {
	switch b.EncodingVersion {
	case "":
		return 0, nil
	case "xcdr1", "1":
		return layout.XCDR1, nil
	case "xcdr2", "2":
		return layout.XCDR2, nil
	}
	return 0, fmt.Errorf("build.encoding-version: unknown version %q", b.EncodingVersion)
}

// Options converts the build settings into descriptor options.
func (b BuildConfig) Options() []descriptor.Option {
	var opts []descriptor.Option
	if b.Keylists {
		opts = append(opts, descriptor.WithKeyMode(keys.ModeKeylist))
	}
	if v, err := b.Version(); err == nil && v != 0 {
		opts = append(opts, descriptor.WithEncodingVersion(v))
	}
	if b.DisableTypecheck {
		opts = append(opts, descriptor.WithDisableTypecheck())
	}
	return opts
}

// Shm returns the shared-memory transport configuration.
func (t TransportConfig) Shm() shm.Config {
	level, err := shm.ParseLogLevel(t.LogLevel)
	if err != nil {
		level = shm.LogWarn
	}
	return shm.Config{LogLevel: level}
}

// NewLogger builds the process logger.
func NewLogger(conf LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lo.CoalesceOrEmpty(conf.Level, DefaultLogLevel))
	if err != nil {
		return nil, fmt.Errorf("logger configuration validation failed: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if conf.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}

	return cfg.Build(zap.AddCaller())
}
