package http

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lorrc/trusted-invoker/internal/adapters/secondary/httpsclient"
	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/mocks"
	"github.com/lorrc/trusted-invoker/internal/core/services"
	"github.com/lorrc/trusted-invoker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	resolver  *mocks.MockIdentityResolver
	directory *mocks.MockUserDirectory
	invoker   *mocks.MockAPIInvoker
	handler   stdhttp.Handler
}

// newTestServer wires the router with mocked collaborators. invoker may be
// replaced by passing a non-nil ports.APIInvoker implementation.
func newTestServer(t *testing.T, identity domain.Identity, identityErr error) *testServer {
	t.Helper()
	logger := discardLogger()

	resolver := mocks.NewMockIdentityResolver()
	resolver.On("ResolveIdentity", mock.Anything).Return(identity, identityErr)

	directory := mocks.NewMockUserDirectory()
	invoker := mocks.NewMockAPIInvoker()
	errorHandler := NewErrorHandler(logger)

	handler := NewRouter(RouterConfig{
		Logger:           logger,
		IdentityResolver: resolver,
		ErrorHandler:     errorHandler,
		UserInfo:         NewUserInfoHandler(services.NewUserInfoService(directory, logger), errorHandler, logger),
		Invoker:          NewInvokerHandler(invoker, errorHandler, logger),
		Health:           NewHealthHandler("test"),
	})

	return &testServer{resolver: resolver, directory: directory, invoker: invoker, handler: handler}
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))
	return rec
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestUserInfo_Anonymous(t *testing.T) {
	srv := newTestServer(t, domain.AnonymousIdentity(), nil)

	rec := srv.get("/bin/userinfo")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeObject(t, rec)
	assert.Equal(t, false, body["isAuthenticated"])
	assert.Equal(t, domain.AnonymousUserID, body["userId"])
	assert.NotContains(t, body, "email")
	assert.NotContains(t, body, "country")
	assert.NotContains(t, body, "error")
	srv.directory.AssertNotCalled(t, "LookupAttributes", mock.Anything, mock.Anything)
}

func TestUserInfo_AbsentIdentity(t *testing.T) {
	srv := newTestServer(t, domain.Identity{}, nil)

	rec := srv.get("/bin/userinfo.json")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isAuthenticated":false}`, rec.Body.String())
}

func TestUserInfo_OnlyEmail(t *testing.T) {
	srv := newTestServer(t, domain.NewIdentity("alice"), nil)
	srv.directory.On("LookupAttributes", mock.Anything, "alice").
		Return(map[string][]string{domain.AttributeEmail: {"alice@example.com", "other@example.com"}}, nil)

	rec := srv.get("/bin/userinfo.json")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"alice","isAuthenticated":true,"email":"alice@example.com","country":""}`, rec.Body.String())
}

func TestUserInfo_DirectoryFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantError string
	}{
		{"user not found", apperrors.ErrUserNotFound, "Could not retrieve user details"},
		{"directory down", errors.New("connection refused"), "Error retrieving user details: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, domain.NewIdentity("bob"), nil)
			srv.directory.On("LookupAttributes", mock.Anything, "bob").Return(nil, tt.err)

			rec := srv.get("/bin/userinfo")

			require.Equal(t, stdhttp.StatusOK, rec.Code)
			body := decodeObject(t, rec)
			assert.Equal(t, true, body["isAuthenticated"])
			assert.Equal(t, "bob", body["userId"])
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestUserInfo_IdentityFailure(t *testing.T) {
	srv := newTestServer(t, domain.Identity{}, errors.New("token signature is invalid"))

	rec := srv.get("/bin/userinfo")

	require.Equal(t, stdhttp.StatusInternalServerError, rec.Code)
	body := decodeObject(t, rec)
	assert.Equal(t, "Server error: token signature is invalid", body["error"])
	assert.Equal(t, "SERVER_ERROR", body["code"])
}

func TestInvoker_RendersResult(t *testing.T) {
	srv := newTestServer(t, domain.NewIdentity("alice"), nil)
	srv.invoker.On("Endpoint").Return("https://127.0.0.1:3000/now")
	srv.invoker.On("Invoke", mock.Anything, domain.NewIdentity("alice")).
		Return(domain.NewAPIResponseDetails(200, "2024-01-01T00:00:00Z"))

	rec := srv.get("/bin/tutorial/api/invoker/self-signed-cert")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	page := rec.Body.String()
	assert.Contains(t, page, "https://127.0.0.1:3000/now")
	assert.Contains(t, page, ">200<")
	assert.Contains(t, page, "2024-01-01T00:00:00Z")
	srv.invoker.AssertExpectations(t)
}

func TestInvoker_FailureIsStill200(t *testing.T) {
	srv := newTestServer(t, domain.NewIdentity("alice"), nil)
	srv.invoker.On("Endpoint").Return("https://127.0.0.1:3000/now")
	srv.invoker.On("Invoke", mock.Anything, mock.Anything).Return(domain.NotInvokedResponse())

	rec := srv.get("/bin/tutorial/api/invoker/self-signed-cert")

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ">404<")
	assert.Contains(t, rec.Body.String(), domain.NotInvokedMessage)
}

func TestInvoker_EscapesUpstreamBody(t *testing.T) {
	srv := newTestServer(t, domain.NewIdentity("alice"), nil)
	srv.invoker.On("Endpoint").Return("https://127.0.0.1:3000/now")
	srv.invoker.On("Invoke", mock.Anything, mock.Anything).
		Return(domain.NewAPIResponseDetails(200, `<script>alert("x")</script>`))

	rec := srv.get("/bin/tutorial/api/invoker/self-signed-cert")

	page := rec.Body.String()
	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, "&lt;script&gt;")
}

func TestInvoker_UnresolvedIdentityInvokesAsAnonymous(t *testing.T) {
	srv := newTestServer(t, domain.Identity{}, errors.New("resolver down"))
	srv.invoker.On("Endpoint").Return("https://127.0.0.1:3000/now")
	srv.invoker.On("Invoke", mock.Anything, domain.AnonymousIdentity()).Return(domain.NotInvokedResponse())

	rec := srv.get("/bin/tutorial/api/invoker/self-signed-cert")

	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	srv.invoker.AssertExpectations(t)
}

func TestRouter_UnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, domain.AnonymousIdentity(), nil)

	rec := srv.get("/bin/nothing-here")
	require.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeObject(t, rec)["code"])

	post := httptest.NewRecorder()
	srv.handler.ServeHTTP(post, httptest.NewRequest(stdhttp.MethodPost, "/bin/userinfo", strings.NewReader("{}")))
	require.Equal(t, stdhttp.StatusMethodNotAllowed, post.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeObject(t, post)["code"])
}

func TestRouter_SetsRequestID(t *testing.T) {
	srv := newTestServer(t, domain.AnonymousIdentity(), nil)

	rec := srv.get("/health/live")

	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// TestInvoker_EndToEnd runs the real invoker service and client factory
// against a TLS server whose certificate is the only trust anchor.
func TestInvoker_EndToEnd(t *testing.T) {
	serverCert := testutil.NewSelfSignedCert(t, "upstream", "127.0.0.1")
	upstream := httptest.NewUnstartedServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		_, _ = w.Write([]byte("2024-01-01T00:00:00Z"))
	}))
	upstream.TLS = serverCert.ServerTLSConfig()
	upstream.StartTLS()
	defer upstream.Close()

	store, err := domain.ParseTrustStorePEM(serverCert.CertPEM)
	require.NoError(t, err)

	build := func(t *testing.T, endpoint string) stdhttp.Handler {
		logger := discardLogger()
		stores := mocks.NewMockTrustStoreProvider()
		stores.On("TrustStore", mock.Anything, mock.Anything).Return(store, nil)

		invoker, err := services.NewAPIInvokerService(stores, httpsclient.NewClientFactory(5*time.Second, true),
			services.APIInvokerConfig{Endpoint: endpoint, Timeout: 5 * time.Second}, logger)
		require.NoError(t, err)

		resolver := mocks.NewMockIdentityResolver()
		resolver.On("ResolveIdentity", mock.Anything).Return(domain.NewIdentity("alice"), nil)
		errorHandler := NewErrorHandler(logger)

		return NewRouter(RouterConfig{
			Logger:           logger,
			IdentityResolver: resolver,
			ErrorHandler:     errorHandler,
			UserInfo:         NewUserInfoHandler(services.NewUserInfoService(mocks.NewMockUserDirectory(), logger), errorHandler, logger),
			Invoker:          NewInvokerHandler(invoker, errorHandler, logger),
			Health:           NewHealthHandler("test"),
		})
	}

	t.Run("success", func(t *testing.T) {
		endpoint := upstream.URL + "/now"
		rec := httptest.NewRecorder()

		build(t, endpoint).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/bin/tutorial/api/invoker/self-signed-cert", nil))

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), endpoint)
		assert.Contains(t, rec.Body.String(), ">200<")
		assert.Contains(t, rec.Body.String(), "2024-01-01T00:00:00Z")
	})

	t.Run("connection refused", func(t *testing.T) {
		closed := httptest.NewTLSServer(stdhttp.NotFoundHandler())
		endpoint := closed.URL + "/now"
		closed.Close()

		// the exact error text the client produces for this endpoint
		client, err := httpsclient.NewClientFactory(5*time.Second, true).NewClient(store)
		require.NoError(t, err)
		req, err := stdhttp.NewRequestWithContext(context.Background(), stdhttp.MethodGet, endpoint, nil)
		require.NoError(t, err)
		_, callErr := client.Do(req)
		require.Error(t, callErr)

		rec := httptest.NewRecorder()
		build(t, endpoint).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/bin/tutorial/api/invoker/self-signed-cert", nil))

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), ">500<")
		assert.Contains(t, rec.Body.String(), html.EscapeString(callErr.Error()))
	})
}
