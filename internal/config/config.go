// Package config loads daemon settings from defaults, an optional YAML or
// JSON file, ZKP_ environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"

	"zkcommit/internal/logging"
	"zkcommit/internal/pprofutil"
	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zkp"
)

const (
	EnvPrefix = "ZKP_"
	FlagFile  = "config"
)

var ErrUnknownFormat = errors.New("unknown config file format")

type HTTP struct {
	Addr              string        `koanf:"addr"`
	MaxBodyBytes      int64         `koanf:"maxBodyBytes"`
	AllowOrigin       string        `koanf:"allowOrigin"`
	ReadHeaderTimeout time.Duration `koanf:"readHeaderTimeout"`
	RequestTimeout    time.Duration `koanf:"requestTimeout"`
}

type QUIC struct {
	Enabled         bool   `koanf:"enabled"`
	Addr            string `koanf:"addr"`
	MaxConnsPerIP   int    `koanf:"maxConnsPerIP"`
	MaxStreamsPerIP int    `koanf:"maxStreamsPerIP"`
	MaxMessageBytes int64  `koanf:"maxMessageBytes"`
}

type Metrics struct {
	SnapshotPath   string `koanf:"snapshotPath"`
	RecentCapacity int    `koanf:"recentCapacity"`
}

type Prover struct {
	DefaultBitWidth int  `koanf:"defaultBitWidth"`
	SelfVerify      bool `koanf:"selfVerify"`
	MaxProofBytes   int  `koanf:"maxProofBytes"`
	MaxFieldHex     int  `koanf:"maxFieldHex"`
}

// Caps returns the engine size caps configured here.
func (p Prover) Caps() zkp.Caps {
	return zkp.Caps{MaxProofBytes: p.MaxProofBytes, MaxFieldHex: p.MaxFieldHex}
}

type Config struct {
	HTTP    HTTP             `koanf:"http"`
	QUIC    QUIC             `koanf:"quic"`
	Logger  logging.Config   `koanf:"logger"`
	Metrics Metrics          `koanf:"metrics"`
	Prover  Prover           `koanf:"prover"`
	Pprof   pprofutil.Config `koanf:"pprof"`
}

func defaults() map[string]interface{} {
	caps := zkp.DefaultCaps()
	lg := logging.DefaultConfig()
	pp := pprofutil.DefaultConfig()
	return map[string]interface{}{
		"http.addr":              "127.0.0.1:5010",
		"http.maxbodybytes":      int64(1 << 20),
		"http.alloworigin":       "*",
		"http.readheadertimeout": 5 * time.Second,
		"http.requesttimeout":    60 * time.Second,

		"quic.enabled":         false,
		"quic.addr":            "127.0.0.1:5011",
		"quic.maxconnsperip":   16,
		"quic.maxstreamsperip": 64,
		"quic.maxmessagebytes": int64(1 << 20),

		"logger.level":             lg.Level,
		"logger.encoding":          lg.Encoding,
		"logger.outputpaths":       lg.OutputPaths,
		"logger.disablecaller":     lg.DisableCaller,
		"logger.disablestacktrace": lg.DisableStacktrace,

		"metrics.snapshotpath":   "",
		"metrics.recentcapacity": 64,

		"prover.defaultbitwidth": 64,
		"prover.selfverify":      true,
		"prover.maxproofbytes":   caps.MaxProofBytes,
		"prover.maxfieldhex":     caps.MaxFieldHex,

		"pprof.enabled":     pp.Enabled,
		"pprof.addr":        pp.Addr,
		"pprof.allowpublic": pp.AllowPublic,
	}
}

// RegisterFlags adds the overridable settings to fs. Flag names are the
// lower-cased keys with dashes, e.g. --http.max-body-bytes.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagFile, "", "path to a YAML or JSON config file")
	fs.String("http.addr", "127.0.0.1:5010", "HTTP listen address")
	fs.Int64("http.max-body-bytes", 1<<20, "maximum request body size")
	fs.String("http.allow-origin", "*", "Access-Control-Allow-Origin value")
	fs.Bool("quic.enabled", false, "serve the QUIC RPC transport")
	fs.String("quic.addr", "127.0.0.1:5011", "QUIC listen address")
	fs.String("logger.level", "info", "log level")
	fs.String("logger.encoding", "console", "log encoding (console or json)")
	fs.String("metrics.snapshot-path", "", "write a metrics snapshot here on shutdown")
	fs.Int("prover.default-bit-width", 64, "bit width for range proofs when the request omits it")
	fs.Bool("prover.self-verify", true, "verify every proof before returning it")
	fs.Bool("pprof.enabled", false, "serve /debug/pprof/")
	fs.String("pprof.addr", "127.0.0.1:6060", "pprof listen address")
}

func flagKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", ""))
}

// envKey maps ZKP_HTTP__MAX_BODY_BYTES to http.maxbodybytes.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.Split(s, "__")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "_", "")
	}
	return strings.Join(parts, ".")
}

// Load builds the configuration. fs may be nil; when it carries --config
// that file is merged before the environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if fs != nil {
		if path, _ := fs.GetString(FlagFile); strings.TrimSpace(path) != "" {
			if err := loadFile(k, path); err != nil {
				return nil, err
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := envKey(s)
		if !k.Exists(key) {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	if fs != nil {
		err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if f.Name == FlagFile {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "config file %s", path)
	}
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = lowerParser{json.Parser()}
	case ".yaml", ".yml":
		parser = lowerParser{yaml.Parser()}
	default:
		return errors.Wrapf(ErrUnknownFormat, "%s", path)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return errors.Wrapf(err, "load config file %s", path)
	}
	return nil
}

// lowerParser lower-cases every key so file, env and flag values land on the
// same paths.
type lowerParser struct {
	koanf.Parser
}

func (p lowerParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	m, err := p.Parser.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	return lowerKeys(m), nil
}

func lowerKeys(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]interface{}); ok {
			v = lowerKeys(sub)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

func invalidf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), generators.ErrInvalidParameters)
}

// Validate rejects settings the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return invalidf("http.addr is required")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return invalidf("http.maxBodyBytes must be positive")
	}
	if c.QUIC.Enabled {
		if strings.TrimSpace(c.QUIC.Addr) == "" {
			return invalidf("quic.addr is required when quic is enabled")
		}
		if c.QUIC.MaxConnsPerIP <= 0 || c.QUIC.MaxStreamsPerIP <= 0 || c.QUIC.MaxMessageBytes <= 0 {
			return invalidf("quic limits must be positive")
		}
	}
	if !generators.ValidBits(c.Prover.DefaultBitWidth) {
		return invalidf("prover.defaultBitWidth %d is not one of 8, 16, 32, 64", c.Prover.DefaultBitWidth)
	}
	if c.Prover.MaxProofBytes <= 0 || c.Prover.MaxFieldHex <= 0 {
		return invalidf("prover caps must be positive")
	}
	if c.Metrics.RecentCapacity <= 0 {
		return invalidf("metrics.recentCapacity must be positive")
	}
	if err := c.Pprof.Validate(); err != nil {
		return errors.Mark(err, generators.ErrInvalidParameters)
	}
	return nil
}
