// Package service maps named operations onto the proof engine. The HTTP
// handler and the QUIC transport share its dispatch table, so both speak the
// same JSON request and response bodies.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"zkcommit/internal/binding"
	"zkcommit/internal/metrics"
	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zkp"
)

// Operation names.
const (
	OpProveKnowledge        = "prove_knowledge"
	OpVerifyKnowledge       = "verify_knowledge"
	OpCommitTxHash          = "commit_tx_hash"
	OpProveEquality         = "prove_equality"
	OpVerifyEquality        = "verify_equality"
	OpProveWideRange        = "prove_wide_range"
	OpVerifyWideRange       = "verify_wide_range"
	OpProveWideKnowledge    = "prove_wide_knowledge"
	OpVerifyWideKnowledge   = "verify_wide_knowledge"
	OpProveRange            = "prove_range"
	OpProveRangeBlinded     = "prove_range_blinded"
	OpVerifyRange           = "verify_range"
	OpBindingTag            = "binding_tag"
	OpTxBindingTag          = "tx_binding_tag"
	OpDeterministicBlinding = "deterministic_blinding"
)

var (
	ErrBadRequest  = errors.New("bad request")
	ErrUnknownOp   = errors.New("unknown operation")
	internalPublic = "internal prover error"
)

type TxHashRequest struct {
	TxHash        string `json:"tx_hash"`
	BindingTagHex string `json:"binding_tag_hex,omitempty"`
}

type EqualityRequest struct {
	TxHash        string `json:"tx_hash"`
	TargetHex     string `json:"target_hex"`
	BindingTagHex string `json:"binding_tag_hex,omitempty"`
}

type ValueRequest struct {
	Value         *uint64 `json:"value"`
	BlindingHex   string  `json:"blinding_hex,omitempty"`
	BindingTagHex string  `json:"binding_tag_hex,omitempty"`
	BitWidth      int     `json:"bit_width,omitempty"`
}

// VerifyRequest covers every verify operation. Single-value kinds read
// Commitment, the four-limb kinds read Commitments.
type VerifyRequest struct {
	Commitment    string   `json:"commitment,omitempty"`
	Commitments   []string `json:"commitments,omitempty"`
	Proof         string   `json:"proof"`
	TargetHex     string   `json:"target_hex,omitempty"`
	BindingTagHex string   `json:"binding_tag_hex,omitempty"`
	BitWidth      int      `json:"bit_width,omitempty"`
}

type BlindingRequest struct {
	ProductAddress string `json:"product_address"`
	SellerAddress  string `json:"seller_address"`
}

type ProofResponse struct {
	Commitments []string `json:"commitments"`
	Proof       string   `json:"proof"`
	Verified    bool     `json:"verified"`
}

type CommitmentResponse struct {
	Commitment string `json:"commitment"`
	Proof      string `json:"proof"`
	Verified   bool   `json:"verified"`
}

type VerifyResponse struct {
	Verified bool `json:"verified"`
}

type TagResponse struct {
	BindingTagHex string `json:"binding_tag_hex"`
}

type BlindingResponse struct {
	BlindingHex string `json:"blinding_hex"`
}

type handlerFunc func(s *Service, body []byte) (any, error)

var ops = map[string]handlerFunc{
	OpProveKnowledge:        (*Service).proveKnowledge,
	OpVerifyKnowledge:       (*Service).verifyKnowledge,
	OpCommitTxHash:          (*Service).commitTxHash,
	OpProveEquality:         (*Service).proveEquality,
	OpVerifyEquality:        (*Service).verifyEquality,
	OpProveWideRange:        (*Service).proveWideRange,
	OpVerifyWideRange:       (*Service).verifyWideRange,
	OpProveWideKnowledge:    (*Service).proveWideKnowledge,
	OpVerifyWideKnowledge:   (*Service).verifyWideKnowledge,
	OpProveRange:            (*Service).proveRange,
	OpProveRangeBlinded:     (*Service).proveRangeBlinded,
	OpVerifyRange:           (*Service).verifyRange,
	OpBindingTag:            (*Service).bindingTag,
	OpTxBindingTag:          (*Service).txBindingTag,
	OpDeterministicBlinding: (*Service).deterministicBlinding,
}

// Ops lists the operation names Call accepts, sorted.
func Ops() []string {
	out := make([]string, 0, len(ops))
	for op := range ops {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

type Service struct {
	engine      *zkp.Engine
	log         *zap.Logger
	metrics     *metrics.Metrics
	defaultBits int
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaultBits sets the range width used when a request omits bit_width.
func WithDefaultBits(bits int) Option {
	return func(s *Service) {
		if generators.ValidBits(bits) {
			s.defaultBits = bits
		}
	}
}

func New(engine *zkp.Engine, opts ...Option) *Service {
	s := &Service{
		engine:      engine,
		log:         zap.NewNop(),
		defaultBits: 64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Call runs op on a JSON body. Errors are either bad requests (see Status)
// or internal faults; verification failures are results, not errors.
func (s *Service) Call(ctx context.Context, op string, body []byte) (any, error) {
	start := time.Now()
	s.metrics.IncRequest()
	res, err := s.call(ctx, op, body)
	switch Status(err) {
	case http.StatusOK:
		s.log.Debug("call", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	case http.StatusBadRequest, http.StatusNotFound:
		s.metrics.IncBadRequest()
		s.log.Debug("bad request", zap.String("op", op), zap.Error(err))
	default:
		s.metrics.IncInternal()
		s.log.Error("call failed", zap.String("op", op), zap.Error(err))
	}
	return res, err
}

func (s *Service) call(ctx context.Context, op string, body []byte) (any, error) {
	h, ok := ops[op]
	if !ok {
		return nil, errors.Mark(errors.Newf("operation %q", op), ErrUnknownOp)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h(s, body)
}

// Status maps a Call error to its HTTP status.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownOp):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, binding.ErrInvalidContext),
		zkp.Classify(err) == zkp.CategoryInput:
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// PublicError is the message a client sees for err. Internal details stay in
// the log.
func PublicError(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return internalPublic
	}
	return err.Error()
}

func badRequestf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrBadRequest)
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode request"), ErrBadRequest)
	}
	return nil
}

func (s *Service) bits(requested int) (int, error) {
	if requested == 0 {
		return s.defaultBits, nil
	}
	if !generators.ValidBits(requested) {
		return 0, badRequestf("bit_width must be 8, 16, 32 or 64, got %d", requested)
	}
	return requested, nil
}

func (s *Service) hex(field, v string) ([]byte, error) {
	return zkp.DecodeHex(field, v, s.engine.Caps().MaxFieldHex)
}
