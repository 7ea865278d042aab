package network

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDevCertStable(t *testing.T) {
	a, err := DevCertPEM()
	require.NoError(t, err)
	b, err := DevCertPEM()
	require.NoError(t, err)
	require.Equal(t, a, b)

	block, _ := pem.Decode(a)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	require.NoError(t, cert.VerifyHostname("127.0.0.1"))
	require.NoError(t, cert.VerifyHostname("localhost"))
}

func TestClientTLSConfig(t *testing.T) {
	conf, err := clientTLSConfig(true, "")
	require.NoError(t, err)
	require.True(t, conf.InsecureSkipVerify)
	require.Equal(t, []string{ALPN}, conf.NextProtos)

	_, err = clientTLSConfig(false, filepath.Join(t.TempDir(), "missing.pem"))
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("nothing here"), 0o600))
	_, err = clientTLSConfig(false, empty)
	require.Error(t, err)
}

func TestClientWithCAFile(t *testing.T) {
	addr := startServer(t, &Server{Handler: &echoHandler{}})

	pemBytes, err := DevCertPEM()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))

	c := newTestClient(t, addr, WithCAFile(path))
	_, err = c.Call(context.Background(), "echo", nil)
	require.NoError(t, err)

	insecure := newTestClient(t, addr, WithInsecure())
	_, err = insecure.Call(context.Background(), "echo", nil)
	require.NoError(t, err)
}
