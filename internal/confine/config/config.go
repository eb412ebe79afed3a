// Package config loads the checker's runtime configuration.
//
// Settings come from defaults, an optional config file and CONFINE_*
// environment variables, in increasing order of precedence:
//
//	CONFINE_POLICY=panic      # report | panic
//	CONFINE_LOG_FORMAT=json   # console | json | none
//	CONFINE_LOG_LEVEL=warn
//	CONFINE_DEDUP=true
//	CONFINE_STACKS=true
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kolkov/confinement/internal/confine/detector"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "CONFINE"

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
	LogFormatNone    = "none"
)

// Config is the runtime configuration.
type Config struct {
	Policy    string `mapstructure:"policy"`
	LogFormat string `mapstructure:"log_format"`
	LogLevel  string `mapstructure:"log_level"`
	Dedup     bool   `mapstructure:"dedup"`
	Stacks    bool   `mapstructure:"stacks"`
}

// Default returns the built-in configuration: report-only, console logging
// at warn level, deduplicated logs with stacks.
func Default() Config {
	return Config{
		Policy:    detector.PolicyReport.String(),
		LogFormat: LogFormatConsole,
		LogLevel:  "warn",
		Dedup:     true,
		Stacks:    true,
	}
}

// Load reads the configuration. An empty path skips the config file.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("policy", def.Policy)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("dedup", def.Dedup)
	v.SetDefault("stacks", def.Stacks)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "config: read %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if _, err := detector.ParsePolicy(c.Policy); err != nil {
		return errors.Wrap(err, "config: policy")
	}

	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON, LogFormatNone:
	default:
		return errors.WithHint(
			errors.Newf("config: unknown log format %q", c.LogFormat),
			"use console, json or none",
		)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "config: log level")
	}
	return nil
}

// NewLogger builds the logger described by c. Violations are logged at
// warn level, so LogLevel above warn silences them.
func NewLogger(c Config) (*zap.Logger, error) {
	if c.LogFormat == LogFormatNone {
		return zap.NewNop(), nil
	}

	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "config: log level")
	}

	var zc zap.Config
	if c.LogFormat == LogFormatJSON {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "config: build logger")
	}
	return logger.Named("confine"), nil
}

// DetectorOptions converts c into detector options using logger.
func (c Config) DetectorOptions(logger *zap.Logger) (detector.Options, error) {
	policy, err := detector.ParsePolicy(c.Policy)
	if err != nil {
		return detector.Options{}, err
	}
	return detector.Options{
		Logger:        logger,
		Policy:        policy,
		Dedup:         c.Dedup,
		CaptureStacks: c.Stacks,
	}, nil
}
