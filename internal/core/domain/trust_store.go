package domain

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
)

// TrustStore is an immutable set of certificates treated as trust anchors
// for outbound TLS connections.
type TrustStore struct {
	certs []*x509.Certificate
}

// NewTrustStore builds a trust store from already parsed certificates.
func NewTrustStore(certs ...*x509.Certificate) (*TrustStore, error) {
	if len(certs) == 0 {
		return nil, apperrors.ErrEmptyTrustStore
	}
	owned := make([]*x509.Certificate, 0, len(certs))
	for _, cert := range certs {
		if cert != nil {
			owned = append(owned, cert)
		}
	}
	if len(owned) == 0 {
		return nil, apperrors.ErrEmptyTrustStore
	}
	return &TrustStore{certs: owned}, nil
}

// ParseTrustStorePEM builds a trust store from a PEM bundle. Blocks other
// than CERTIFICATE are skipped.
func ParseTrustStorePEM(bundle []byte) (*TrustStore, error) {
	var certs []*x509.Certificate
	rest := bundle
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse certificate: %v", apperrors.ErrInvalidTrustMaterial, err)
		}
		certs = append(certs, cert)
	}
	return NewTrustStore(certs...)
}

// Len returns the number of trusted certificates.
func (s *TrustStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.certs)
}

// Certificates returns a copy of the trusted certificates.
func (s *TrustStore) Certificates() []*x509.Certificate {
	if s == nil {
		return nil
	}
	out := make([]*x509.Certificate, len(s.certs))
	copy(out, s.certs)
	return out
}

// CertPool returns a fresh pool holding exactly the store's certificates.
// System roots are never merged in.
func (s *TrustStore) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	if s == nil {
		return pool
	}
	for _, cert := range s.certs {
		pool.AddCert(cert)
	}
	return pool
}
