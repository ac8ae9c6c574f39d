package httpsclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// ClientFactory builds HTTPS clients whose only trust anchors are the
// certificates of a given trust store.
type ClientFactory struct {
	Timeout time.Duration
	// VerifyHostname controls the peer name check. The chain is verified
	// against the trust store either way.
	VerifyHostname bool
}

var _ ports.HTTPClientFactory = (*ClientFactory)(nil)

func NewClientFactory(timeout time.Duration, verifyHostname bool) *ClientFactory {
	return &ClientFactory{Timeout: timeout, VerifyHostname: verifyHostname}
}

// NewClient returns a client with a dedicated transport. Callers should
// release it with CloseIdleConnections once done.
func (f *ClientFactory) NewClient(store *domain.TrustStore) (ports.HTTPDoer, error) {
	if store.Len() == 0 {
		return nil, apperrors.ErrEmptyTrustStore
	}

	tlsConfig, err := f.tlsConfig(store)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   f.Timeout,
	}, nil
}

func (f *ClientFactory) tlsConfig(store *domain.TrustStore) (*tls.Config, error) {
	roots := store.CertPool()

	if f.VerifyHostname {
		return &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    roots,
		}, nil
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    roots,
		// Skips only the built-in verification, which includes the hostname
		// check. VerifyConnection re-runs chain verification below.
		InsecureSkipVerify: true, //nolint:gosec
		VerifyConnection: func(cs tls.ConnectionState) error {
			return verifyChain(cs, roots)
		},
	}, nil
}

func verifyChain(cs tls.ConnectionState, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("tls: server presented no certificates")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range cs.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}

	_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return fmt.Errorf("tls: failed to verify certificate chain: %w", err)
	}
	return nil
}
