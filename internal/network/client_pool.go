package network

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	quic "github.com/quic-go/quic-go"
	"go.uber.org/zap"
)

const (
	clientMaxRetries  = 3
	clientBackoffBase = 100 * time.Millisecond
	clientBackoffMax  = 1 * time.Second
	clientConnIdle    = 30 * time.Second
	clientTimeout     = 30 * time.Second
)

type dialFunc func(ctx context.Context, addr string) (*quic.Conn, error)

// addrState is everything the pool knows about one server address: the
// cached connection (may be nil) and the run of consecutive failures.
type addrState struct {
	conn     *quic.Conn
	lastUsed time.Time
	failures int
}

func (s *addrState) live(now time.Time, idle time.Duration) bool {
	return s.conn != nil && s.conn.Context().Err() == nil && now.Sub(s.lastUsed) <= idle
}

// connPool caches one connection per address. Connections idle for longer
// than idle are closed on next use instead of reused.
type connPool struct {
	mu    sync.Mutex
	addrs map[string]*addrState
	idle  time.Duration
	dial  dialFunc
	log   *zap.Logger
}

func newConnPool(dial dialFunc, idle time.Duration, log *zap.Logger) *connPool {
	if idle <= 0 {
		idle = clientConnIdle
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &connPool{addrs: make(map[string]*addrState), idle: idle, dial: dial, log: log}
}

func (p *connPool) state(addr string) *addrState {
	s := p.addrs[addr]
	if s == nil {
		s = &addrState{}
		p.addrs[addr] = s
	}
	return s
}

// conn returns the cached connection for addr or dials a new one.
func (p *connPool) conn(ctx context.Context, addr string) (*quic.Conn, error) {
	if addr == "" {
		return nil, errors.New("missing addr")
	}
	p.mu.Lock()
	s := p.state(addr)
	now := time.Now()
	if s.live(now, p.idle) {
		s.lastUsed = now
		c := s.conn
		p.mu.Unlock()
		return c, nil
	}
	stale := s.conn
	s.conn = nil
	p.mu.Unlock()
	if stale != nil {
		_ = stale.CloseWithError(0, "stale")
	}

	p.log.Debug("quic dial", zap.String("addr", addr))
	c, err := p.dial(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}

	p.mu.Lock()
	s = p.state(addr)
	if s.live(time.Now(), p.idle) {
		// another caller dialled first
		winner := s.conn
		p.mu.Unlock()
		_ = c.CloseWithError(0, "duplicate")
		return winner, nil
	}
	s.conn, s.lastUsed = c, time.Now()
	p.mu.Unlock()
	return c, nil
}

// release marks c as used successfully.
func (p *connPool) release(addr string, c *quic.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.addrs[addr]; s != nil && s.conn == c {
		s.lastUsed = time.Now()
		s.failures = 0
	}
}

// discard closes c and forgets it if it is still the cached connection.
func (p *connPool) discard(addr string, c *quic.Conn, reason string) {
	p.mu.Lock()
	if s := p.addrs[addr]; s != nil && s.conn == c {
		s.conn = nil
	}
	p.mu.Unlock()
	_ = c.CloseWithError(0, reason)
}

// failed records a failure against addr and returns the current run length.
func (p *connPool) failed(addr string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state(addr)
	s.failures++
	return s.failures
}

func (p *connPool) close() {
	p.mu.Lock()
	addrs := p.addrs
	p.addrs = make(map[string]*addrState)
	p.mu.Unlock()
	for _, s := range addrs {
		if s.conn != nil {
			_ = s.conn.CloseWithError(0, "client closed")
		}
	}
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
