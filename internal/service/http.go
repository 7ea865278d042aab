package service

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// Route binds an HTTP path to an operation.
type Route struct {
	Path string
	Op   string
}

// Routes is the public HTTP surface. Every route is POST.
var Routes = []Route{
	{"/zkp/generate", OpProveKnowledge},
	{"/zkp/verify", OpVerifyKnowledge},
	{"/zkp/commit-tx-hash", OpCommitTxHash},
	{"/zkp/prove-equal", OpProveEquality},
	{"/zkp/verify-equal", OpVerifyEquality},
	{"/zkp/prove_plus", OpProveWideRange},
	{"/zkp/verify_plus", OpVerifyWideRange},
	{"/zkp/generate_bp4", OpProveWideKnowledge},
	{"/zkp/verify_bp4", OpVerifyWideKnowledge},
	{"/zkp/commit-value", OpProveRange},
	{"/zkp/verify-value", OpVerifyRange},
	{"/zkp/generate-value-commitment", OpProveRange},
	{"/zkp/generate-value-commitment-with-blinding", OpProveRangeBlinded},
	{"/zkp/generate-value-commitment-with-binding", OpProveRangeBlinded},
	{"/zkp/verify-value-commitment", OpVerifyRange},
	{"/zkp/binding-tag", OpBindingTag},
	{"/zkp/tx-binding-tag", OpTxBindingTag},
	{"/zkp/deterministic-blinding", OpDeterministicBlinding},
}

type HTTPOptions struct {
	MaxBodyBytes   int64
	AllowOrigin    string
	RequestTimeout time.Duration
}

type errorBody struct {
	Error string `json:"error"`
}

// Handler returns the HTTP front end for s.
func (s *Service) Handler(opts HTTPOptions) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	mux := http.NewServeMux()
	for _, r := range Routes {
		mux.Handle("POST "+r.Path, s.opHandler(r.Op, opts.MaxBodyBytes))
	}
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.metrics.Snapshot())
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	var h http.Handler = mux
	if opts.RequestTimeout > 0 {
		h = http.TimeoutHandler(h, opts.RequestTimeout, `{"error":"request timed out"}`)
	}
	return cors(opts.AllowOrigin, h)
}

func (s *Service) opHandler(op string, maxBody int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.metrics.IncRejected()
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
				return
			}
			s.metrics.IncRejected()
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "read request body"})
			return
		}
		res, err := s.Call(r.Context(), op, body)
		if err != nil {
			writeJSON(w, Status(err), errorBody{Error: PublicError(err)})
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func cors(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
