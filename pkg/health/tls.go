package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/buildhive/buildhive/pkg/credentials"
	"github.com/buildhive/buildhive/pkg/types"
)

const (
	// DefaultPort is the standard TLS port for the build-worker protocol
	DefaultPort = "2376"

	// Per-probe bounds, independent of the global deadline
	dialTimeout  = 5 * time.Second
	probeTimeout = 10 * time.Second
)

// TLSChecker probes a worker's TLS endpoint with the provisioned client
// credentials. A probe succeeds on any non-failing round trip; the
// response content is not inspected.
type TLSChecker struct {
	// Addr is the ip:port of the worker endpoint
	Addr string

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewTLSChecker creates a checker for the endpoint described by host,
// authenticated with the given credential bundle. host has the form
// scheme://ip[:port]; the port defaults to the build-worker TLS port.
func NewTLSChecker(host string, bundle *types.CredentialBundle) (*TLSChecker, error) {
	addr, err := ParseEndpoint(host)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := credentials.ClientTLSConfig(bundle)
	if err != nil {
		return nil, err
	}

	return &TLSChecker{
		Addr: addr,
		Client: &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
				DialContext: (&net.Dialer{
					Timeout: dialTimeout,
				}).DialContext,
			},
		},
	}, nil
}

// Check performs one version probe against the endpoint.
func (c *TLSChecker) Check(ctx context.Context) Result {
	start := time.Now()

	url := fmt.Sprintf("https://%s/version", c.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("probe failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	// A completed round trip is enough; the status code is not validated
	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("HTTP %d", resp.StatusCode),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (c *TLSChecker) Type() CheckType {
	return CheckTypeTLS
}

// ParseEndpoint extracts ip:port from a scheme://ip[:port] worker host,
// applying the default port when absent.
func ParseEndpoint(host string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("failed to parse worker host %q: %w", host, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("worker host %q has no address", host)
	}

	port := u.Port()
	if port == "" {
		return net.JoinHostPort(u.Host, DefaultPort), nil
	}
	return u.Host, nil
}
