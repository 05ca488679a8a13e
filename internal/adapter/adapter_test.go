package adapter

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSigned writes a self-signed certificate and its key as PEM
// files and returns their paths.
func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "darkstore-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile,
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestLoadClientTLS(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSigned(t, dir)

	t.Run("CAOnly", func(t *testing.T) {
		cfg, err := LoadClientTLS(certFile, "", "")
		require.NoError(t, err)
		assert.NotNil(t, cfg.RootCAs)
		assert.Empty(t, cfg.Certificates)
	})

	t.Run("WithClientCert", func(t *testing.T) {
		cfg, err := LoadClientTLS(certFile, certFile, keyFile)
		require.NoError(t, err)
		assert.Len(t, cfg.Certificates, 1)
	})

	t.Run("MissingCA", func(t *testing.T) {
		_, err := LoadClientTLS(filepath.Join(dir, "absent.pem"), "", "")
		assert.Error(t, err)
	})

	t.Run("GarbageCA", func(t *testing.T) {
		garbage := filepath.Join(dir, "garbage.pem")
		require.NoError(t, os.WriteFile(garbage, []byte("not pem"), 0o600))
		_, err := LoadClientTLS(garbage, "", "")
		assert.ErrorContains(t, err, "failed to parse CA certificate")
	})

	t.Run("KeyMismatch", func(t *testing.T) {
		_, err := LoadClientTLS(certFile, certFile, certFile)
		assert.Error(t, err)
	})
}
