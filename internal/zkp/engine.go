// Package zkp is the proof engine: it encodes secrets into the fixed
// statement shapes, drives the constraint and range provers, and verifies
// proofs received from callers. Verification reports only a boolean; the
// reason for a rejection goes to the logger and metrics.
package zkp

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"zkcommit/internal/metrics"
	"zkcommit/internal/zk/pedersen"
)

const TagSize = 32

// Result is the public output of a prove call.
type Result struct {
	Kind        Kind
	Commitments [][]byte
	Proof       []byte
	Verified    bool
}

type Engine struct {
	rng        io.Reader
	log        *zap.Logger
	metrics    *metrics.Metrics
	selfVerify bool
	caps       Caps
}

type Option func(*Engine)

// WithRand sets the randomness source for blindings and proof rounds.
func WithRand(r io.Reader) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSelfVerify controls whether every proof is verified before it is
// returned. On by default.
func WithSelfVerify(on bool) Option {
	return func(e *Engine) {
		e.selfVerify = on
	}
}

func WithCaps(c Caps) Option {
	return func(e *Engine) {
		e.caps = c.withDefaults()
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		rng:        rand.Reader,
		log:        zap.NewNop(),
		selfVerify: true,
		caps:       DefaultCaps(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Caps() Caps {
	return e.caps
}

func checkTag(tag []byte) error {
	if len(tag) != 0 && len(tag) != TagSize {
		return inputErrorf("binding tag must be %d bytes, got %d", TagSize, len(tag))
	}
	return nil
}

func (e *Engine) checkProofLen(proof []byte) error {
	if len(proof) > e.caps.MaxProofBytes {
		return errors.Wrapf(ErrMalformedProof, "proof is %d bytes, cap %d", len(proof), e.caps.MaxProofBytes)
	}
	return nil
}

func (e *Engine) randomBlindings(n int) ([]pedersen.Scalar, error) {
	r, err := pedersen.RandomScalars(e.rng, n)
	if err != nil {
		return nil, proverFault(err, "draw blinding")
	}
	return r, nil
}

// finish self-verifies res when enabled and records the outcome.
func (e *Engine) finish(res *Result, start time.Time, verify func() error) (*Result, error) {
	if e.selfVerify {
		if err := verify(); err != nil {
			e.metrics.IncProverFault(res.Kind.String())
			e.log.Error("proof failed self-verification", zap.Stringer("kind", res.Kind), zap.Error(err))
			return nil, proverFault(err, "self-verification of fresh "+res.Kind.String()+" proof")
		}
		res.Verified = true
	}
	e.metrics.IncProved(res.Kind.String())
	e.metrics.Recent().Add(metrics.ProofHeader{
		Kind:        res.Kind.String(),
		Op:          "prove",
		Commitments: len(res.Commitments),
		ProofBytes:  len(res.Proof),
		Verified:    res.Verified,
		Micros:      time.Since(start).Microseconds(),
		At:          time.Now().UTC(),
	})
	e.log.Debug("proof generated",
		zap.Stringer("kind", res.Kind),
		zap.Int("proof_bytes", len(res.Proof)),
		zap.Bool("verified", res.Verified),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (e *Engine) proveFailed(kind Kind, err error) error {
	if IsInternal(err) {
		e.metrics.IncProverFault(kind.String())
		e.log.Error("prover fault", zap.Stringer("kind", kind), zap.Error(err))
	} else {
		e.metrics.IncProveFailed(kind.String())
		e.log.Debug("prove rejected", zap.Stringer("kind", kind), zap.Error(err))
	}
	return err
}

// verified converts the outcome of a verification into the public boolean.
// Panics from hostile input are reported as failures.
func (e *Engine) verified(kind Kind, commitments, proofLen int, start time.Time, check func() error) (ok bool) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("verifier panic: %v", r)
			ok = false
			e.log.Error("verifier panic", zap.Stringer("kind", kind), zap.Any("panic", r))
		}
		e.metrics.IncVerified(kind.String(), ok)
		e.metrics.Recent().Add(metrics.ProofHeader{
			Kind:        kind.String(),
			Op:          "verify",
			Commitments: commitments,
			ProofBytes:  proofLen,
			Verified:    ok,
			Micros:      time.Since(start).Microseconds(),
			At:          time.Now().UTC(),
		})
		if !ok {
			e.log.Debug("proof rejected",
				zap.Stringer("kind", kind),
				zap.String("category", string(Classify(err))),
				zap.Error(err))
		}
	}()
	err = check()
	return err == nil
}

func (e *Engine) rejectShape(kind Kind, n int) bool {
	return e.verified(kind, n, 0, time.Now(), func() error {
		return inputErrorf("%s expects one commitment, got %d", kind, n)
	})
}

// CommitValue computes the deterministic commitment to value under blinding.
func (e *Engine) CommitValue(value uint64, blinding [32]byte) ([]byte, error) {
	C, err := pedersen.Commit(pedersen.ScalarFromUint64(value), pedersen.ScalarFromBytes(blinding[:]))
	if err != nil {
		return nil, proverFault(err, "commit value")
	}
	return pedersen.EncodeElement(C)
}

func decodeCommitments(raw [][]byte) ([]pedersen.Element, error) {
	out := make([]pedersen.Element, len(raw))
	for i, b := range raw {
		C, err := pedersen.DecodeElement(b)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "commitment %d", i), ErrCommitmentDecode)
		}
		out[i] = C
	}
	return out, nil
}

func encodeCommitments(C []pedersen.Element) ([][]byte, error) {
	out := make([][]byte, len(C))
	for i, c := range C {
		b, err := pedersen.EncodeElement(c)
		if err != nil {
			return nil, proverFault(err, "encode commitment")
		}
		out[i] = b
	}
	return out, nil
}
