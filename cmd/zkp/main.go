// Command zkp proves and verifies commitment statements, either in-process
// or against a zkpd daemon over QUIC (--remote).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zkcommit/internal/detrand"
	"zkcommit/internal/logging"
	"zkcommit/internal/network"
	"zkcommit/internal/service"
	"zkcommit/internal/zkp"
)

var errNotVerified = errors.New("not verified")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, errNotVerified) {
			return 1
		}
		color.New(color.FgRed).Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

type options struct {
	remote   string
	insecure bool
	caFile   string
	timeout  time.Duration
	seed     string
	unsafe   bool
	logLevel string
}

// caller is satisfied by *network.Client and by the in-process service.
type caller interface {
	Call(ctx context.Context, op string, body any) (json.RawMessage, error)
	Close()
}

type localCaller struct {
	svc *service.Service
}

func (l localCaller) Call(ctx context.Context, op string, body any) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	res, err := l.svc.Call(ctx, op, raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (localCaller) Close() {}

type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "zkp",
		Short:         "Commitment proofs over ristretto255",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.remote, "remote", "", "zkpd QUIC address; empty proves in-process")
	pf.BoolVar(&a.opts.insecure, "insecure", false, "skip QUIC server certificate verification")
	pf.StringVar(&a.opts.caFile, "ca", "", "PEM file with the QUIC server certificate")
	pf.DurationVar(&a.opts.timeout, "timeout", 30*time.Second, "remote call timeout")
	pf.StringVar(&a.opts.seed, "seed", "", "derive prover randomness from this seed (in-process only; needs --insecure-deterministic)")
	pf.BoolVar(&a.opts.unsafe, "insecure-deterministic", false, "allow --seed; reusing a seed for two secrets leaks them")
	pf.StringVar(&a.opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(a.proveCmd(), a.verifyCmd(), a.commitCmd(), a.tagCmd(), a.blindingCmd())
	return root
}

func (a *app) connect() (caller, error) {
	log, err := logging.New(logging.Config{Level: a.opts.logLevel})
	if err != nil {
		return nil, err
	}
	if a.opts.seed != "" && !a.opts.unsafe {
		return nil, errors.New("--seed repeats proof nonces; pass --insecure-deterministic to allow it")
	}
	if a.opts.remote != "" {
		if a.opts.seed != "" {
			return nil, errors.New("--seed only applies to in-process proving")
		}
		copts := []network.ClientOption{
			network.WithTimeout(a.opts.timeout),
			network.WithClientLogger(log),
		}
		if a.opts.insecure {
			copts = append(copts, network.WithInsecure())
		}
		if a.opts.caFile != "" {
			copts = append(copts, network.WithCAFile(a.opts.caFile))
		}
		return network.NewClient(a.opts.remote, copts...)
	}
	eopts := []zkp.Option{zkp.WithLogger(log)}
	if a.opts.seed != "" {
		eopts = append(eopts, zkp.WithRand(detrand.New(a.opts.seed)))
	}
	return localCaller{svc: service.New(zkp.New(eopts...), service.WithLogger(log))}, nil
}

// do runs op and prints the result. With verdict set, a false "verified"
// field turns into errNotVerified.
func (a *app) do(cmd *cobra.Command, op string, body any, verdict bool) error {
	c, err := a.connect()
	if err != nil {
		return err
	}
	defer c.Close()
	raw, err := c.Call(cmd.Context(), op, body)
	if err != nil {
		var remote *network.RemoteError
		if errors.As(err, &remote) {
			return errors.Newf("%s (status %d)", remote.Message, remote.Status)
		}
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return errors.Wrap(err, "format result")
	}
	buf.WriteByte('\n')
	if _, err := a.stdout.Write(buf.Bytes()); err != nil {
		return err
	}
	if !verdict {
		return nil
	}
	var v service.VerifyResponse
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.Wrap(err, "decode result")
	}
	if !v.Verified {
		color.New(color.FgRed, color.Bold).Fprintln(a.stderr, "NOT VERIFIED")
		return errNotVerified
	}
	color.New(color.FgGreen, color.Bold).Fprintln(a.stderr, "VERIFIED")
	return nil
}

func usageKinds() string {
	return fmt.Sprintf("%s|%s|%s|%s|equality",
		zkp.KindKnowledge, zkp.KindRange, zkp.KindWideRange, zkp.KindWideKnowledge)
}
