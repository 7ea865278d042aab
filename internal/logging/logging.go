// Package logging builds the zap logger used by the daemon and CLI.
package logging

import (
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level             string   `koanf:"level"`
	Encoding          string   `koanf:"encoding"`
	OutputPaths       []string `koanf:"outputPaths"`
	DisableCaller     bool     `koanf:"disableCaller"`
	DisableStacktrace bool     `koanf:"disableStacktrace"`
}

func DefaultConfig() Config {
	return Config{
		Level:             "info",
		Encoding:          "console",
		OutputPaths:       []string{"stderr"},
		DisableCaller:     true,
		DisableStacktrace: true,
	}
}

// New builds a logger from cfg. Empty fields fall back to the defaults.
func New(cfg Config) (*zap.Logger, error) {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.Level) == "" {
		cfg.Level = def.Level
	}
	if strings.TrimSpace(cfg.Encoding) == "" {
		cfg.Encoding = def.Encoding
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = def.OutputPaths
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return nil, errors.Wrapf(err, "logger level %q", cfg.Level)
	}
	if cfg.Encoding != "console" && cfg.Encoding != "json" {
		return nil, errors.Newf("logger encoding %q must be console or json", cfg.Encoding)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Encoding == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(lvl),
		Encoding:          cfg.Encoding,
		EncoderConfig:     encCfg,
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}

// Named returns l.Named(name), or a no-op logger when l is nil.
func Named(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(name)
}
