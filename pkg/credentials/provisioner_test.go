package credentials

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildhive/buildhive/pkg/types"
)

func TestProvision_WritesAllFiles(t *testing.T) {
	root := t.TempDir()
	p := NewProvisioner(root)

	bundle, err := p.Provision("buildhive-test", "worker-1",
		[]byte("ca-pem"), []byte("cert-pem"), []byte("key-pem"))
	require.NoError(t, err)

	expectedDir := filepath.Join(root, "buildhive-test", "worker-1")
	assert.Equal(t, expectedDir, bundle.Dir)

	for name, want := range map[string]string{
		"ca.pem":   "ca-pem",
		"cert.pem": "cert-pem",
		"key.pem":  "key-pem",
	} {
		data, err := os.ReadFile(filepath.Join(expectedDir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestProvision_EmptyFileIsFatal(t *testing.T) {
	root := t.TempDir()
	p := NewProvisioner(root)

	_, err := p.Provision("buildhive-test", "worker-1",
		[]byte("ca-pem"), []byte("cert-pem"), nil)
	require.Error(t, err)

	var provErr *types.ProvisioningError
	require.True(t, errors.As(err, &provErr))
	assert.Contains(t, provErr.Path, "key.pem")
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	p := NewProvisioner(root)

	bundle, err := p.Provision("buildhive-test", "worker-1",
		[]byte("a"), []byte("b"), []byte("c"))
	require.NoError(t, err)

	require.NoError(t, Remove(bundle.Dir))

	_, err = os.Stat(bundle.Dir)
	assert.True(t, os.IsNotExist(err))
}

func TestClientTLSConfig(t *testing.T) {
	ca, cert, key := generateTestCredentials(t)

	bundle := &types.CredentialBundle{
		CACert:     ca,
		ClientCert: cert,
		ClientKey:  key,
	}

	tlsConfig, err := ClientTLSConfig(bundle)
	require.NoError(t, err)
	assert.Len(t, tlsConfig.Certificates, 1)
	assert.NotNil(t, tlsConfig.RootCAs)
}

func TestClientTLSConfig_BadMaterial(t *testing.T) {
	_, err := ClientTLSConfig(&types.CredentialBundle{
		CACert:     []byte("not a cert"),
		ClientCert: []byte("garbage"),
		ClientKey:  []byte("garbage"),
	})
	assert.Error(t, err)
}

// generateTestCredentials creates a self-signed CA plus a client keypair
// signed by it, all PEM-encoded.
func generateTestCredentials(t *testing.T) (caPEM, certPEM, keyPEM []byte) {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test-client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)
	clientDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caCert, &clientKey.PublicKey, caKey)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(clientKey)
	require.NoError(t, err)

	caPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: clientDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return caPEM, certPEM, keyPEM
}
