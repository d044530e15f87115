package credentials

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/buildhive/buildhive/pkg/log"
	"github.com/buildhive/buildhive/pkg/metrics"
	"github.com/buildhive/buildhive/pkg/types"
)

const (
	caFile   = "ca.pem"
	certFile = "cert.pem"
	keyFile  = "key.pem"
)

// Provisioner materializes per-worker TLS credential bundles under the
// local configuration root, one directory per worker per cluster.
type Provisioner struct {
	certRoot string
	logger   zerolog.Logger
}

// NewProvisioner creates a provisioner rooted at certRoot.
func NewProvisioner(certRoot string) *Provisioner {
	return &Provisioner{
		certRoot: certRoot,
		logger:   log.WithComponent("credentials"),
	}
}

// Provision writes the three PEM blobs for one worker and verifies them.
// A zero-size file after write signals corrupt upstream data and is fatal;
// it is never retried. The returned bundle's Dir must be recorded for
// cleanup before any downstream step runs, so a later failure still
// releases these files.
func (p *Provisioner) Provision(clusterName, workerID string, ca, cert, key []byte) (*types.CredentialBundle, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProvisionDuration)

	dir := p.BundleDir(clusterName, workerID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	files := map[string][]byte{
		caFile:   ca,
		certFile: cert,
		keyFile:  key,
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	// Verify every file landed with content
	for name := range files {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		if info.Size() == 0 {
			return nil, &types.ProvisioningError{Path: path}
		}
	}

	p.logger.Debug().
		Str("worker_id", workerID).
		Str("dir", dir).
		Msg("credential bundle provisioned")

	return &types.CredentialBundle{
		CACert:     ca,
		ClientCert: cert,
		ClientKey:  key,
		Dir:        dir,
	}, nil
}

// BundleDir returns the credential directory for one worker.
func (p *Provisioner) BundleDir(clusterName, workerID string) string {
	return filepath.Join(p.certRoot, clusterName, workerID)
}

// Remove deletes a provisioned credential directory recursively.
func Remove(dir string) error {
	return os.RemoveAll(dir)
}

// ClientTLSConfig builds a TLS configuration that authenticates with the
// bundle's client keypair and trusts its CA.
func ClientTLSConfig(bundle *types.CredentialBundle) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(bundle.ClientCert, bundle.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load client keypair: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(bundle.CACert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
