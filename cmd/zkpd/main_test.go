package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zkcommit/internal/config"
	"zkcommit/internal/metrics"
	"zkcommit/internal/network"
	"zkcommit/internal/service"
)

func TestRunHelpAndDevCert(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 0, run([]string{"--help"}, &out, &errOut))

	out.Reset()
	require.Equal(t, 0, run([]string{"--print-dev-cert"}, &out, &errOut))
	require.True(t, strings.HasPrefix(out.String(), "-----BEGIN CERTIFICATE-----"), out.String())

	require.Equal(t, 2, run([]string{"--no-such-flag"}, &out, &errOut))
}

func TestRunRejectsBadConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 1, run([]string{"--prover.default-bit-width", "12"}, &out, &errOut))
	require.Contains(t, errOut.String(), "config")

	require.Equal(t, 1, run([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, &out, &errOut))
}

func TestServeHTTPAndQUIC(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.QUIC.Enabled = true
	cfg.QUIC.Addr = "127.0.0.1:0"
	cfg.Metrics.SnapshotPath = filepath.Join(t.TempDir(), "metrics.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	readyCh := make(chan listening, 1)
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, zap.NewNop(), func(a listening) { readyCh <- a })
	}()

	var addrs listening
	select {
	case addrs = <-readyCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not become ready")
	}
	require.NotEmpty(t, addrs.HTTP)
	require.NotEmpty(t, addrs.QUIC)
	require.Empty(t, addrs.Pprof)

	resp, err := http.Get("http://" + addrs.HTTP + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post("http://"+addrs.HTTP+"/zkp/commit-value", "application/json",
		strings.NewReader(`{"value":42,"bit_width":8}`))
	require.NoError(t, err)
	var viaHTTP service.CommitmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&viaHTTP))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	client, err := network.NewClient(addrs.QUIC)
	require.NoError(t, err)
	defer client.Close()
	raw, err := client.Call(context.Background(), service.OpVerifyRange, service.VerifyRequest{
		Commitment: viaHTTP.Commitment,
		Proof:      viaHTTP.Proof,
		BitWidth:   8,
	})
	require.NoError(t, err)
	var verdict service.VerifyResponse
	require.NoError(t, json.Unmarshal(raw, &verdict))
	require.True(t, verdict.Verified)

	_, err = client.Call(context.Background(), service.OpProveRange, map[string]any{"bit_width": 8})
	var remote *network.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusBadRequest, remote.Status)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not stop")
	}

	data, err := os.ReadFile(cfg.Metrics.SnapshotPath)
	require.NoError(t, err)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.EqualValues(t, 3, snap.Requests.Total)
	require.EqualValues(t, 1, snap.Requests.BadRequest)
}
