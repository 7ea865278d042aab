package metrics

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ProofHeader is the public outline of one prove or verify call. It never
// carries secrets, commitments or proof bytes.
type ProofHeader struct {
	Kind        string    `json:"kind"`
	Op          string    `json:"op"`
	Commitments int       `json:"commitments"`
	ProofBytes  int       `json:"proof_bytes"`
	Verified    bool      `json:"verified"`
	Micros      int64     `json:"duration_us"`
	At          time.Time `json:"at"`
}

type Snapshot struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Kinds       map[string]KindMetrics `json:"kinds"`
	Requests    RequestMetrics         `json:"requests"`
	Recent      []ProofHeader          `json:"recent"`
}

type KindMetrics struct {
	Proved       uint64 `json:"proved"`
	ProveFailed  uint64 `json:"prove_failed"`
	ProverFaults uint64 `json:"prover_faults"`
	VerifiedOK   uint64 `json:"verified_ok"`
	VerifiedFail uint64 `json:"verified_fail"`
}

type RequestMetrics struct {
	Total      uint64 `json:"total"`
	BadRequest uint64 `json:"bad_request"`
	Internal   uint64 `json:"internal"`
	Rejected   uint64 `json:"rejected"`
}

type kindCounters struct {
	proved       atomic.Uint64
	proveFailed  atomic.Uint64
	proverFaults atomic.Uint64
	verifiedOK   atomic.Uint64
	verifiedFail atomic.Uint64
}

type Metrics struct {
	kinds      sync.Map // string -> *kindCounters
	requests   atomic.Uint64
	badRequest atomic.Uint64
	internal   atomic.Uint64
	rejected   atomic.Uint64
	recent     *ProofRecent
}

func New() *Metrics {
	return NewWithCapacity(64)
}

func NewWithCapacity(recent int) *Metrics {
	return &Metrics{recent: NewProofRecent(recent)}
}

func (m *Metrics) Recent() *ProofRecent {
	if m == nil {
		return nil
	}
	return m.recent
}

func (m *Metrics) kind(k string) *kindCounters {
	if c, ok := m.kinds.Load(k); ok {
		return c.(*kindCounters)
	}
	c, _ := m.kinds.LoadOrStore(k, &kindCounters{})
	return c.(*kindCounters)
}

func (m *Metrics) IncProved(kind string) {
	if m == nil {
		return
	}
	m.kind(kind).proved.Add(1)
}

func (m *Metrics) IncProveFailed(kind string) {
	if m == nil {
		return
	}
	m.kind(kind).proveFailed.Add(1)
}

func (m *Metrics) IncProverFault(kind string) {
	if m == nil {
		return
	}
	m.kind(kind).proverFaults.Add(1)
}

func (m *Metrics) IncVerified(kind string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.kind(kind).verifiedOK.Add(1)
		return
	}
	m.kind(kind).verifiedFail.Add(1)
}

func (m *Metrics) IncRequest() {
	if m == nil {
		return
	}
	m.requests.Add(1)
}

func (m *Metrics) IncBadRequest() {
	if m == nil {
		return
	}
	m.badRequest.Add(1)
}

func (m *Metrics) IncInternal() {
	if m == nil {
		return
	}
	m.internal.Add(1)
}

// IncRejected counts connections or streams refused by transport limits.
func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.rejected.Add(1)
}

func (m *Metrics) Snapshot() Snapshot {
	kinds := map[string]KindMetrics{}
	if m == nil {
		return Snapshot{GeneratedAt: time.Now().UTC(), Kinds: kinds, Recent: []ProofHeader{}}
	}
	m.kinds.Range(func(k, v any) bool {
		c := v.(*kindCounters)
		kinds[k.(string)] = KindMetrics{
			Proved:       c.proved.Load(),
			ProveFailed:  c.proveFailed.Load(),
			ProverFaults: c.proverFaults.Load(),
			VerifiedOK:   c.verifiedOK.Load(),
			VerifiedFail: c.verifiedFail.Load(),
		}
		return true
	})
	recent := []ProofHeader{}
	if m.recent != nil {
		recent = m.recent.List()
	}
	return Snapshot{
		GeneratedAt: time.Now().UTC(),
		Kinds:       kinds,
		Requests: RequestMetrics{
			Total:      m.requests.Load(),
			BadRequest: m.badRequest.Load(),
			Internal:   m.internal.Load(),
			Rejected:   m.rejected.Load(),
		},
		Recent: recent,
	}
}

// KindNames lists the kinds seen so far, sorted.
func (s Snapshot) KindNames() []string {
	out := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Metrics) WriteSnapshot(path string) error {
	if path == "" {
		return nil
	}
	snap := m.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

type ProofRecent struct {
	mu   sync.Mutex
	cap  int
	list []ProofHeader
}

func NewProofRecent(capacity int) *ProofRecent {
	if capacity <= 0 {
		capacity = 64
	}
	return &ProofRecent{cap: capacity}
}

func (r *ProofRecent) Add(h ProofHeader) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.list) >= r.cap {
		copy(r.list, r.list[1:])
		r.list[len(r.list)-1] = h
		return
	}
	r.list = append(r.list, h)
}

func (r *ProofRecent) List() []ProofHeader {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ProofHeader, len(r.list))
	copy(out, r.list)
	return out
}
