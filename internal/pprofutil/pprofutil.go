// Package pprofutil runs the optional profiling endpoint next to the daemon.
package pprofutil

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const defaultAddr = "127.0.0.1:6060"

var ErrPublicBind = errors.New("pprof address must be loopback unless allowPublic is set")

type Config struct {
	Enabled     bool   `koanf:"enabled"`
	Addr        string `koanf:"addr"`
	AllowPublic bool   `koanf:"allowPublic"`
}

func DefaultConfig() Config {
	return Config{Addr: defaultAddr}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.AllowPublic && !isLoopbackBind(c.addr()) {
		return errors.Wrapf(ErrPublicBind, "%s", c.addr())
	}
	return nil
}

func (c Config) addr() string {
	if strings.TrimSpace(c.Addr) == "" {
		return defaultAddr
	}
	return strings.TrimSpace(c.Addr)
}

// Start serves /debug/pprof/ until ctx is done and returns the bound address.
// It returns "" and no error when profiling is disabled.
func Start(ctx context.Context, cfg Config, log *zap.Logger) (string, error) {
	if !cfg.Enabled {
		return "", nil
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp", cfg.addr())
	if err != nil {
		return "", errors.Wrap(err, "pprof listen")
	}
	actual := ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("pprof server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("pprof enabled", zap.String("url", "http://"+actual+"/debug/pprof/"))
	return actual, nil
}

func isLoopbackBind(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
