package network

import "sync"

// slots caps concurrent holders per key. A limit <= 0 disables the cap.
type slots struct {
	mu    sync.Mutex
	limit int
	held  map[string]int
}

func newSlots(limit int) *slots {
	return &slots{limit: limit, held: make(map[string]int)}
}

func (s *slots) acquire(key string) bool {
	if s.limit <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[key] >= s.limit {
		return false
	}
	s.held[key]++
	return true
}

func (s *slots) release(key string) {
	if s.limit <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.held[key]; n > 1 {
		s.held[key] = n - 1
	} else {
		delete(s.held, key)
	}
}

func (s *slots) inUse(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[key]
}

// ipLimiter bounds open connections and in-flight calls per remote IP.
type ipLimiter struct {
	conns   *slots
	streams *slots
}

func newIPLimiter(maxConns, maxStreams int) *ipLimiter {
	return &ipLimiter{conns: newSlots(maxConns), streams: newSlots(maxStreams)}
}

func (l *ipLimiter) acquireConn(ip string) bool   { return l.conns.acquire(ip) }
func (l *ipLimiter) releaseConn(ip string)        { l.conns.release(ip) }
func (l *ipLimiter) acquireStream(ip string) bool { return l.streams.acquire(ip) }
func (l *ipLimiter) releaseStream(ip string)      { l.streams.release(ip) }
