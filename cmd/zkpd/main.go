// Command zkpd serves the proof service over HTTP and, when enabled, QUIC.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zkcommit/internal/config"
	"zkcommit/internal/logging"
	"zkcommit/internal/metrics"
	"zkcommit/internal/network"
	"zkcommit/internal/pprofutil"
	"zkcommit/internal/service"
	"zkcommit/internal/zkp"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("zkpd", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	printCert := fs.Bool("print-dev-cert", false, "print the QUIC dev certificate (PEM) and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *printCert {
		pemBytes, err := network.DevCertPEM()
		if err != nil {
			fmt.Fprintf(stderr, "dev cert: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(pemBytes)
		return 0
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	log, err := logging.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = serve(ctx, cfg, log, func(a listening) {
		fmt.Fprintf(stdout, "READY http=%s quic=%s\n", a.HTTP, a.QUIC)
	})
	if err != nil {
		log.Error("zkpd stopped", zap.Error(err))
		return 1
	}
	return 0
}

// listening holds the bound addresses. QUIC and Pprof are empty when off.
type listening struct {
	HTTP  string
	QUIC  string
	Pprof string
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger, ready func(listening)) error {
	m := metrics.NewWithCapacity(cfg.Metrics.RecentCapacity)
	engine := zkp.New(
		zkp.WithLogger(logging.Named(log, "zkp")),
		zkp.WithMetrics(m),
		zkp.WithSelfVerify(cfg.Prover.SelfVerify),
		zkp.WithCaps(cfg.Prover.Caps()),
	)
	svc := service.New(engine,
		service.WithLogger(logging.Named(log, "service")),
		service.WithMetrics(m),
		service.WithDefaultBits(cfg.Prover.DefaultBitWidth),
	)

	g, gctx := errgroup.WithContext(ctx)
	var addrs listening

	pprofAddr, err := pprofutil.Start(gctx, cfg.Pprof, logging.Named(log, "pprof"))
	if err != nil {
		return err
	}
	addrs.Pprof = pprofAddr

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return errors.Wrapf(err, "http listen %s", cfg.HTTP.Addr)
	}
	addrs.HTTP = ln.Addr().String()
	srv := &http.Server{
		Handler: svc.Handler(service.HTTPOptions{
			MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
			AllowOrigin:    cfg.HTTP.AllowOrigin,
			RequestTimeout: cfg.HTTP.RequestTimeout,
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", addrs.HTTP))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if cfg.QUIC.Enabled {
		qs := &network.Server{
			Addr:            cfg.QUIC.Addr,
			Handler:         svc,
			Logger:          logging.Named(log, "quic"),
			MaxConnsPerIP:   cfg.QUIC.MaxConnsPerIP,
			MaxStreamsPerIP: cfg.QUIC.MaxStreamsPerIP,
			MaxMessageBytes: cfg.QUIC.MaxMessageBytes,
			Describe: func(err error) (int, string) {
				return service.Status(err), service.PublicError(err)
			},
		}
		quicReady := make(chan string, 1)
		g.Go(func() error { return qs.ListenAndServe(gctx, quicReady) })
		select {
		case addrs.QUIC = <-quicReady:
		case <-gctx.Done():
		}
	}

	if ready != nil && gctx.Err() == nil {
		ready(addrs)
	}
	err = g.Wait()

	if path := cfg.Metrics.SnapshotPath; path != "" {
		if werr := m.WriteSnapshot(path); werr != nil {
			log.Warn("metrics snapshot", zap.String("path", path), zap.Error(werr))
		} else {
			log.Info("metrics snapshot written", zap.String("path", path))
		}
	}
	return err
}
