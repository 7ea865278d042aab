// Package network carries proof-service calls over QUIC: one stream per
// call, a JSON request envelope in, a JSON response envelope out.
package network

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	quic "github.com/quic-go/quic-go"
	"go.uber.org/zap"
)

const (
	maxIdleTimeout       = 60 * time.Second
	keepAlivePeriod      = 15 * time.Second
	handshakeIdleTimeout = 10 * time.Second
	streamRWTimeout      = 60 * time.Second

	defaultMaxMessageBytes = 1 << 20
)

// Handler executes one named operation. It is satisfied by the proof service.
type Handler interface {
	Call(ctx context.Context, op string, body []byte) (any, error)
}

type Server struct {
	Addr            string
	Handler         Handler
	Logger          *zap.Logger
	MaxConnsPerIP   int
	MaxStreamsPerIP int
	MaxMessageBytes int64

	// Describe maps a handler error to the status and message returned to
	// the client. Defaults to 500 and err.Error().
	Describe func(error) (int, string)

	limiter *ipLimiter
}

func (s *Server) describe(err error) (int, string) {
	if s.Describe != nil {
		return s.Describe(err)
	}
	return http.StatusInternalServerError, err.Error()
}

func (s *Server) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) maxMessage() int64 {
	if s.MaxMessageBytes <= 0 {
		return defaultMaxMessageBytes
	}
	return s.MaxMessageBytes
}

// ListenAndServe serves until ctx is done. ready, when non-nil, receives the
// bound address once the listener is up.
func (s *Server) ListenAndServe(ctx context.Context, ready chan<- string) error {
	if s.Handler == nil {
		return errors.New("quic server: nil handler")
	}
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return errors.Wrap(err, "quic tls config")
	}
	ln, err := quic.ListenAddr(s.Addr, tlsConf, &quic.Config{
		MaxIdleTimeout:       maxIdleTimeout,
		KeepAlivePeriod:      keepAlivePeriod,
		HandshakeIdleTimeout: handshakeIdleTimeout,
	})
	if err != nil {
		return errors.Wrapf(err, "quic listen %s", s.Addr)
	}
	defer ln.Close()
	s.limiter = newIPLimiter(s.MaxConnsPerIP, s.MaxStreamsPerIP)
	log := s.log()
	log.Info("quic listening", zap.String("addr", ln.Addr().String()))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "quic accept")
		}
		ip := remoteIP(conn.RemoteAddr())
		if !s.limiter.acquireConn(ip) {
			log.Warn("quic connection limit", zap.String("ip", ip))
			_ = conn.CloseWithError(1, "too many connections")
			continue
		}
		go s.serveConn(ctx, conn, ip)
	}
}

func (s *Server) serveConn(ctx context.Context, conn *quic.Conn, ip string) {
	defer s.limiter.releaseConn(ip)
	log := s.log().With(zap.String("remote", conn.RemoteAddr().String()))
	log.Debug("quic connection accepted")
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			log.Debug("quic connection closed", zap.Error(err))
			return
		}
		if !s.limiter.acquireStream(ip) {
			log.Warn("quic stream limit", zap.String("ip", ip))
			stream.CancelRead(0)
			s.reply(stream, Response{Status: http.StatusTooManyRequests, Error: "too many streams"})
			continue
		}
		go func(st *quic.Stream) {
			defer s.limiter.releaseStream(ip)
			s.serveStream(ctx, st, log)
		}(stream)
	}
}

func (s *Server) serveStream(ctx context.Context, stream *quic.Stream, log *zap.Logger) {
	_ = stream.SetDeadline(time.Now().Add(streamRWTimeout))
	limit := s.maxMessage()
	data, err := io.ReadAll(io.LimitReader(stream, limit+1))
	if err != nil {
		log.Debug("quic read failed", zap.Error(err))
		stream.CancelRead(0)
		_ = stream.Close()
		return
	}
	if int64(len(data)) > limit {
		stream.CancelRead(0)
		s.reply(stream, Response{Status: http.StatusRequestEntityTooLarge, Error: "request too large"})
		return
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil || req.Type == "" {
		s.reply(stream, Response{Status: http.StatusBadRequest, Error: "malformed request envelope"})
		return
	}
	start := time.Now()
	res, err := s.Handler.Call(ctx, req.Type, req.Body)
	if err != nil {
		status, msg := s.describe(err)
		s.reply(stream, Response{Status: status, Error: msg})
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		log.Error("quic encode result", zap.String("op", req.Type), zap.Error(err))
		s.reply(stream, Response{Status: http.StatusInternalServerError, Error: "encode result"})
		return
	}
	s.reply(stream, Response{OK: true, Status: http.StatusOK, Result: raw})
	log.Debug("quic call", zap.String("op", req.Type), zap.Duration("elapsed", time.Since(start)))
}

// reply writes resp and closes the write side of stream.
func (s *Server) reply(stream *quic.Stream, resp Response) {
	raw, err := json.Marshal(resp)
	if err == nil {
		_, err = stream.Write(raw)
	}
	if err != nil {
		s.log().Debug("quic write failed", zap.Error(err))
	}
	_ = stream.Close()
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
