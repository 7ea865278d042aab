package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	quic "github.com/quic-go/quic-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDenied = errors.New("denied")

type echoHandler struct {
	entered chan struct{}
	release chan struct{}
}

func (h *echoHandler) Call(ctx context.Context, op string, body []byte) (any, error) {
	switch op {
	case "echo":
		return map[string]json.RawMessage{"body": body}, nil
	case "deny":
		return nil, errDenied
	case "block":
		h.entered <- struct{}{}
		select {
		case <-h.release:
		case <-ctx.Done():
		}
		return map[string]bool{"done": true}, nil
	}
	return nil, errors.Newf("unknown op %q", op)
}

func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	if srv.Addr == "" {
		srv.Addr = "127.0.0.1:0"
	}
	srv.Logger = zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, ready) }()
	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatalf("server did not start")
	}
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return addr
}

func newTestClient(t *testing.T, addr string, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(addr, append(opts, WithTimeout(10*time.Second))...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRoundTrip(t *testing.T) {
	addr := startServer(t, &Server{Handler: &echoHandler{}})
	c := newTestClient(t, addr)

	for i := 0; i < 3; i++ {
		raw, err := c.Call(context.Background(), "echo", map[string]int{"n": i})
		require.NoError(t, err)
		var got struct {
			Body struct{ N int } `json:"body"`
		}
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, i, got.Body.N)
	}
}

func TestHandlerErrorDescribed(t *testing.T) {
	addr := startServer(t, &Server{
		Handler: &echoHandler{},
		Describe: func(err error) (int, string) {
			if errors.Is(err, errDenied) {
				return http.StatusBadRequest, "request denied"
			}
			return http.StatusInternalServerError, "internal error"
		},
	})
	c := newTestClient(t, addr)

	_, err := c.Call(context.Background(), "deny", nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusBadRequest, remote.Status)
	require.Equal(t, "request denied", remote.Message)

	_, err = c.Call(context.Background(), "missing", nil)
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusInternalServerError, remote.Status)
}

func TestDefaultDescribe(t *testing.T) {
	addr := startServer(t, &Server{Handler: &echoHandler{}})
	c := newTestClient(t, addr)

	_, err := c.Call(context.Background(), "deny", nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusInternalServerError, remote.Status)
	require.Contains(t, remote.Message, "denied")
}

func TestOversizedRequest(t *testing.T) {
	addr := startServer(t, &Server{Handler: &echoHandler{}, MaxMessageBytes: 64})
	c := newTestClient(t, addr)

	_, err := c.Call(context.Background(), "echo", strings.Repeat("x", 200))
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusRequestEntityTooLarge, remote.Status)

	_, err = c.Call(context.Background(), "echo", "small")
	require.NoError(t, err)
}

func rawExchange(t *testing.T, addr string, payload []byte) Response {
	t.Helper()
	tlsConf, err := clientTLSConfig(false, "")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	require.NoError(t, err)
	defer conn.CloseWithError(0, "")
	stream, err := conn.OpenStreamSync(ctx)
	require.NoError(t, err)
	_, err = stream.Write(payload)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	raw, err := io.ReadAll(stream)
	require.NoError(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestMalformedEnvelope(t *testing.T) {
	addr := startServer(t, &Server{Handler: &echoHandler{}})

	for _, payload := range []string{"not json", `{"body":{}}`, `[]`} {
		resp := rawExchange(t, addr, []byte(payload))
		require.False(t, resp.OK, payload)
		require.Equal(t, http.StatusBadRequest, resp.Status, payload)
	}

	resp := rawExchange(t, addr, []byte(`{"type":"echo","body":{"a":1}}`))
	require.True(t, resp.OK)
	require.Equal(t, http.StatusOK, resp.Status)
	require.JSONEq(t, `{"body":{"a":1}}`, string(resp.Result))
}

func TestStreamLimit(t *testing.T) {
	h := &echoHandler{entered: make(chan struct{}, 1), release: make(chan struct{})}
	addr := startServer(t, &Server{Handler: h, MaxStreamsPerIP: 1})
	c := newTestClient(t, addr)

	first := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "block", nil)
		first <- err
	}()
	select {
	case <-h.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("blocking call never reached the handler")
	}

	_, err := c.Call(context.Background(), "echo", nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusTooManyRequests, remote.Status)

	close(h.release)
	require.NoError(t, <-first)

	_, err = c.Call(context.Background(), "echo", nil)
	require.NoError(t, err)
}

func TestDialFailureRetriesThenFails(t *testing.T) {
	c, err := NewClient("127.0.0.1:1", WithTimeout(500*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	_, err = c.Call(context.Background(), "echo", nil)
	require.Error(t, err)
	var remote *RemoteError
	require.False(t, errors.As(err, &remote))
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestBackoffRetry(t *testing.T) {
	require.False(t, backoffRetry(context.Background(), 0))
	require.True(t, backoffRetry(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, backoffRetry(ctx, 3))
}
