package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// TLSConfig customizes certificate verification for outbound calls.
type TLSConfig struct {
	// InsecureSkipVerify disables verification. Development only.
	InsecureSkipVerify bool
	// CACertificate is a PEM file added to the root pool.
	CACertificate string
}

// NewTransport builds a transport for cfg. A nil cfg yields a clone of the
// default transport.
func NewTransport(cfg *TLSConfig) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg == nil {
		return transport, nil
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec
	if cfg.CACertificate != "" {
		pem, err := os.ReadFile(cfg.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", cfg.CACertificate, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", cfg.CACertificate)
		}
		tlsCfg.RootCAs = pool
	}
	transport.TLSClientConfig = tlsCfg
	return transport, nil
}

// WithTransport sets the round tripper while keeping the configured timeout.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.client = &http.Client{Timeout: c.client.Timeout, Transport: rt}
	}
}
