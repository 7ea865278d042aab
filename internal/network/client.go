package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	quic "github.com/quic-go/quic-go"
	"go.uber.org/zap"
)

// RemoteError is a call the server answered with ok=false.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Status, e.Message)
}

type Client struct {
	addr     string
	timeout  time.Duration
	maxReply int64
	pool     *connPool
	log      *zap.Logger
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	insecure bool
	caPath   string
	timeout  time.Duration
	maxReply int64
	log      *zap.Logger
}

// WithInsecure skips server certificate verification.
func WithInsecure() ClientOption {
	return func(o *clientOptions) { o.insecure = true }
}

// WithCAFile trusts the PEM certificates in path instead of the dev cert.
func WithCAFile(path string) ClientOption {
	return func(o *clientOptions) { o.caPath = path }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

func WithMaxReply(n int64) ClientOption {
	return func(o *clientOptions) { o.maxReply = n }
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(o *clientOptions) { o.log = l }
}

func NewClient(addr string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{timeout: clientTimeout, maxReply: defaultMaxMessageBytes}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	tlsConf, err := clientTLSConfig(o.insecure, o.caPath)
	if err != nil {
		return nil, err
	}
	quicConf := &quic.Config{
		MaxIdleTimeout:       maxIdleTimeout,
		KeepAlivePeriod:      keepAlivePeriod,
		HandshakeIdleTimeout: handshakeIdleTimeout,
	}
	dial := func(ctx context.Context, addr string) (*quic.Conn, error) {
		return quic.DialAddr(ctx, addr, tlsConf, quicConf)
	}
	return &Client{
		addr:     addr,
		timeout:  o.timeout,
		maxReply: o.maxReply,
		pool:     newConnPool(dial, clientConnIdle, o.log),
		log:      o.log,
	}, nil
}

func (c *Client) Close() {
	c.pool.close()
}

// Call sends op with body (marshalled to JSON) and returns the raw result.
// Dial and stream-open failures are retried with backoff; a server answer is
// never retried.
func (c *Client) Call(ctx context.Context, op string, body any) (json.RawMessage, error) {
	rawBody, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode body")
	}
	payload, err := json.Marshal(Request{Type: op, Body: rawBody})
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	ctx, cancel := withDefaultTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= clientMaxRetries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		conn, err := c.pool.conn(ctx, c.addr)
		if err != nil {
			lastErr = err
			if !backoffRetry(ctx, c.pool.failed(c.addr)) {
				break
			}
			continue
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			lastErr = errors.Wrap(err, "open stream")
			c.pool.discard(c.addr, conn, "open stream failed")
			if !backoffRetry(ctx, c.pool.failed(c.addr)) {
				break
			}
			continue
		}
		resp, err := c.exchange(ctx, stream, payload)
		if err != nil {
			c.pool.discard(c.addr, conn, "exchange failed")
			return nil, err
		}
		c.pool.release(c.addr, conn)
		if !resp.OK {
			return nil, &RemoteError{Status: resp.Status, Message: resp.Error}
		}
		return resp.Result, nil
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, errors.Wrapf(lastErr, "quic call %s", op)
}

func (c *Client) exchange(ctx context.Context, stream *quic.Stream, payload []byte) (*Response, error) {
	deadline := time.Now().Add(streamRWTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = stream.SetDeadline(deadline)
	if _, err := stream.Write(payload); err != nil {
		stream.CancelRead(0)
		return nil, errors.Wrap(err, "write request")
	}
	if err := stream.Close(); err != nil {
		return nil, errors.Wrap(err, "close write")
	}
	raw, err := io.ReadAll(io.LimitReader(stream, c.maxReply+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if int64(len(raw)) > c.maxReply {
		stream.CancelRead(0)
		return nil, errors.Newf("response exceeds %d bytes", c.maxReply)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &resp, nil
}

func backoffRetry(ctx context.Context, failures int) bool {
	if failures <= 0 {
		return false
	}
	d := clientBackoffBase
	if failures > 1 {
		d = d * time.Duration(1<<uint(failures-1))
	}
	if d > clientBackoffMax {
		d = clientBackoffMax
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
