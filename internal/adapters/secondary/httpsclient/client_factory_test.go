package httpsclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTLSServer starts a server presenting cert and answering "now".
func newTLSServer(t *testing.T, cert testutil.SelfSignedCert) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("now"))
	}))
	srv.TLS = cert.ServerTLSConfig()
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func storeOf(t *testing.T, certs ...testutil.SelfSignedCert) *domain.TrustStore {
	t.Helper()
	var pem []byte
	for _, c := range certs {
		pem = append(pem, c.CertPEM...)
	}
	store, err := domain.ParseTrustStorePEM(pem)
	require.NoError(t, err)
	return store
}

func get(t *testing.T, f *ClientFactory, store *domain.TrustStore, target string) (string, error) {
	t.Helper()
	client, err := f.NewClient(store)
	require.NoError(t, err)
	defer client.(*http.Client).CloseIdleConnections()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), nil
}

// withHost swaps the host of a server URL while keeping its port.
func withHost(t *testing.T, raw, host string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	u.Host = host + ":" + u.Port()
	return u.String()
}

func TestClientFactory_NewClient(t *testing.T) {
	serverCert := testutil.NewSelfSignedCert(t, "upstream", "127.0.0.1")
	srv := newTLSServer(t, serverCert)

	t.Run("trusted server succeeds", func(t *testing.T) {
		body, err := get(t, NewClientFactory(5*time.Second, true), storeOf(t, serverCert), srv.URL)

		require.NoError(t, err)
		assert.Equal(t, "now", body)
	})

	t.Run("server outside the trust store is rejected", func(t *testing.T) {
		other := testutil.NewSelfSignedCert(t, "other", "127.0.0.1")

		_, err := get(t, NewClientFactory(5*time.Second, true), storeOf(t, other), srv.URL)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "certificate")
	})

	t.Run("system roots are not consulted", func(t *testing.T) {
		// httptest's own certificate is not in the store either.
		std := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer std.Close()

		_, err := get(t, NewClientFactory(5*time.Second, true), storeOf(t, serverCert), std.URL)

		assert.Error(t, err)
	})

	t.Run("empty trust store is refused", func(t *testing.T) {
		client, err := NewClientFactory(time.Second, true).NewClient(nil)

		assert.Nil(t, client)
		assert.ErrorIs(t, err, apperrors.ErrEmptyTrustStore)
	})

	t.Run("client carries the configured timeout", func(t *testing.T) {
		client, err := NewClientFactory(3*time.Second, true).NewClient(storeOf(t, serverCert))

		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, client.(*http.Client).Timeout)
	})
}

func TestClientFactory_HostnameVerification(t *testing.T) {
	// Certificate valid for 127.0.0.1 only; "localhost" resolves to the
	// same listener but does not match.
	serverCert := testutil.NewSelfSignedCert(t, "upstream", "127.0.0.1")
	srv := newTLSServer(t, serverCert)
	mismatched := withHost(t, srv.URL, "localhost")

	t.Run("mismatch is rejected when verification is on", func(t *testing.T) {
		_, err := get(t, NewClientFactory(5*time.Second, true), storeOf(t, serverCert), mismatched)

		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "localhost") || strings.Contains(err.Error(), "certificate"))
	})

	t.Run("mismatch is accepted when verification is off", func(t *testing.T) {
		body, err := get(t, NewClientFactory(5*time.Second, false), storeOf(t, serverCert), mismatched)

		require.NoError(t, err)
		assert.Equal(t, "now", body)
	})

	t.Run("untrusted chain is still rejected when verification is off", func(t *testing.T) {
		other := testutil.NewSelfSignedCert(t, "other", "127.0.0.1")

		_, err := get(t, NewClientFactory(5*time.Second, false), storeOf(t, other), mismatched)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to verify certificate chain")
	})
}
