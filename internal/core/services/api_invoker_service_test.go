package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/mocks"
	"github.com/lorrc/trusted-invoker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "https://127.0.0.1:3000/now"

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func newTestTrustStore(t *testing.T) *domain.TrustStore {
	t.Helper()
	cert := testutil.NewSelfSignedCert(t, "upstream", "127.0.0.1")
	store, err := domain.NewTrustStore(cert.Leaf)
	require.NoError(t, err)
	return store
}

func newInvoker(t *testing.T, stores *mocks.MockTrustStoreProvider, clients *mocks.MockHTTPClientFactory, timeout time.Duration) *APIInvokerService {
	t.Helper()
	svc, err := NewAPIInvokerService(stores, clients, APIInvokerConfig{
		Endpoint: testEndpoint,
		Timeout:  timeout,
	}, discardLogger())
	require.NoError(t, err)
	return svc
}

func TestNewAPIInvokerService_ValidatesEndpoint(t *testing.T) {
	stores := mocks.NewMockTrustStoreProvider()
	clients := mocks.NewMockHTTPClientFactory()

	_, err := NewAPIInvokerService(stores, clients, APIInvokerConfig{}, discardLogger())
	assert.ErrorIs(t, err, apperrors.ErrEndpointRequired)

	_, err = NewAPIInvokerService(stores, clients, APIInvokerConfig{Endpoint: "http://127.0.0.1:3000/now"}, discardLogger())
	assert.Error(t, err)

	_, err = NewAPIInvokerService(stores, clients, APIInvokerConfig{Endpoint: "/now"}, discardLogger())
	assert.Error(t, err)

	svc, err := NewAPIInvokerService(stores, clients, APIInvokerConfig{Endpoint: testEndpoint}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, testEndpoint, svc.Endpoint())
	assert.Equal(t, DefaultMaxBodyBytes, svc.cfg.MaxBodyBytes)
}

func TestAPIInvokerService_NoTrustStore(t *testing.T) {
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, mock.Anything).Return(nil, apperrors.ErrTrustStoreUnavailable)
	clients := mocks.NewMockHTTPClientFactory()
	svc := newInvoker(t, stores, clients, time.Second)

	details := svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))

	assert.Equal(t, http.StatusNotFound, details.StatusCode)
	assert.Equal(t, domain.NotInvokedMessage, details.Body)
	clients.AssertNumberOfCalls(t, "NewClient", 0)
}

func TestAPIInvokerService_TrustStoreError(t *testing.T) {
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, mock.Anything).Return(nil, errors.New("vault sealed"))
	clients := mocks.NewMockHTTPClientFactory()
	svc := newInvoker(t, stores, clients, time.Second)

	details := svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))

	assert.Equal(t, http.StatusInternalServerError, details.StatusCode)
	assert.Equal(t, "failed to load trust store: vault sealed", details.Body)
	clients.AssertNumberOfCalls(t, "NewClient", 0)
}

func TestAPIInvokerService_ClientConstructionError(t *testing.T) {
	store := newTestTrustStore(t)
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, mock.Anything).Return(store, nil)
	clients := mocks.NewMockHTTPClientFactory()
	clients.On("NewClient", store).Return(nil, apperrors.ErrEmptyTrustStore)
	svc := newInvoker(t, stores, clients, time.Second)

	details := svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))

	assert.Equal(t, http.StatusInternalServerError, details.StatusCode)
	assert.Contains(t, details.Body, apperrors.ErrEmptyTrustStore.Error())
}

func TestAPIInvokerService_CallFails(t *testing.T) {
	store := newTestTrustStore(t)
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, mock.Anything).Return(store, nil)

	doer := mocks.NewMockHTTPDoer()
	doer.On("Do", mock.Anything).Return(nil, errors.New("dial tcp 127.0.0.1:3000: connect: connection refused"))
	clients := mocks.NewMockHTTPClientFactory()
	clients.On("NewClient", store).Return(doer, nil)
	svc := newInvoker(t, stores, clients, time.Second)

	details := svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))

	assert.Equal(t, http.StatusInternalServerError, details.StatusCode)
	assert.Equal(t, "dial tcp 127.0.0.1:3000: connect: connection refused", details.Body)
	doer.AssertNumberOfCalls(t, "Do", 1)
}

func TestAPIInvokerService_Success(t *testing.T) {
	store := newTestTrustStore(t)
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, domain.NewIdentity("jdoe")).Return(store, nil)

	body := &trackingBody{Reader: strings.NewReader("2024-01-01T00:00:00Z")}
	doer := mocks.NewMockHTTPDoer()
	doer.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		_, hasDeadline := req.Context().Deadline()
		return req.Method == http.MethodGet && req.URL.String() == testEndpoint && hasDeadline
	})).Return(&http.Response{StatusCode: http.StatusOK, Body: body}, nil)

	clients := mocks.NewMockHTTPClientFactory()
	clients.On("NewClient", store).Return(doer, nil)
	svc := newInvoker(t, stores, clients, 5*time.Second)

	details := svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))

	assert.Equal(t, http.StatusOK, details.StatusCode)
	assert.Equal(t, "2024-01-01T00:00:00Z", details.Body)
	assert.True(t, body.closed, "response body must be closed")
	doer.AssertExpectations(t)
}

func TestAPIInvokerService_UpstreamErrorStatusIsPassedThrough(t *testing.T) {
	store := newTestTrustStore(t)
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, mock.Anything).Return(store, nil)

	doer := mocks.NewMockHTTPDoer()
	doer.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Body:       io.NopCloser(strings.NewReader("maintenance")),
	}, nil)
	clients := mocks.NewMockHTTPClientFactory()
	clients.On("NewClient", store).Return(doer, nil)
	svc := newInvoker(t, stores, clients, time.Second)

	details := svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))

	assert.Equal(t, http.StatusServiceUnavailable, details.StatusCode)
	assert.Equal(t, "maintenance", details.Body)
}

func TestAPIInvokerService_BodyIsCapped(t *testing.T) {
	store := newTestTrustStore(t)
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, mock.Anything).Return(store, nil)

	doer := mocks.NewMockHTTPDoer()
	doer.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 64))),
	}, nil)
	clients := mocks.NewMockHTTPClientFactory()
	clients.On("NewClient", store).Return(doer, nil)

	svc, err := NewAPIInvokerService(stores, clients, APIInvokerConfig{
		Endpoint:     testEndpoint,
		MaxBodyBytes: 16,
	}, discardLogger())
	require.NoError(t, err)

	details := svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))

	assert.Len(t, details.Body, 16)
}

func TestAPIInvokerService_PanicIsConverted(t *testing.T) {
	stores := mocks.NewMockTrustStoreProvider()
	stores.On("TrustStore", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("provider exploded")
	}).Return(nil, nil)
	clients := mocks.NewMockHTTPClientFactory()
	svc := newInvoker(t, stores, clients, time.Second)

	var details domain.APIResponseDetails
	require.NotPanics(t, func() {
		details = svc.Invoke(context.Background(), domain.NewIdentity("jdoe"))
	})

	assert.Equal(t, http.StatusInternalServerError, details.StatusCode)
	assert.Contains(t, details.Body, "provider exploded")
}
