package mocks

import (
	"context"
	"net/http"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockUserDirectory is a mock implementation of ports.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

var _ ports.UserDirectory = (*MockUserDirectory)(nil)

func NewMockUserDirectory() *MockUserDirectory {
	return &MockUserDirectory{}
}

func (m *MockUserDirectory) LookupAttributes(ctx context.Context, userID string) (map[string][]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]string), args.Error(1)
}

// MockTrustStoreProvider is a mock implementation of ports.TrustStoreProvider
type MockTrustStoreProvider struct {
	mock.Mock
}

var _ ports.TrustStoreProvider = (*MockTrustStoreProvider)(nil)

func NewMockTrustStoreProvider() *MockTrustStoreProvider {
	return &MockTrustStoreProvider{}
}

func (m *MockTrustStoreProvider) TrustStore(ctx context.Context, identity domain.Identity) (*domain.TrustStore, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrustStore), args.Error(1)
}

// MockIdentityResolver is a mock implementation of ports.IdentityResolver
type MockIdentityResolver struct {
	mock.Mock
}

var _ ports.IdentityResolver = (*MockIdentityResolver)(nil)

func NewMockIdentityResolver() *MockIdentityResolver {
	return &MockIdentityResolver{}
}

func (m *MockIdentityResolver) ResolveIdentity(r *http.Request) (domain.Identity, error) {
	args := m.Called(r)
	return args.Get(0).(domain.Identity), args.Error(1)
}

// MockHTTPClientFactory is a mock implementation of ports.HTTPClientFactory
type MockHTTPClientFactory struct {
	mock.Mock
}

var _ ports.HTTPClientFactory = (*MockHTTPClientFactory)(nil)

func NewMockHTTPClientFactory() *MockHTTPClientFactory {
	return &MockHTTPClientFactory{}
}

func (m *MockHTTPClientFactory) NewClient(store *domain.TrustStore) (ports.HTTPDoer, error) {
	args := m.Called(store)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.HTTPDoer), args.Error(1)
}

// MockHTTPDoer is a mock implementation of ports.HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

var _ ports.HTTPDoer = (*MockHTTPDoer)(nil)

func NewMockHTTPDoer() *MockHTTPDoer {
	return &MockHTTPDoer{}
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

// MockUserInfoService is a mock implementation of ports.UserInfoService
type MockUserInfoService struct {
	mock.Mock
}

var _ ports.UserInfoService = (*MockUserInfoService)(nil)

func NewMockUserInfoService() *MockUserInfoService {
	return &MockUserInfoService{}
}

func (m *MockUserInfoService) GetUserInfo(ctx context.Context, identity domain.Identity) *domain.UserProfile {
	args := m.Called(ctx, identity)
	return args.Get(0).(*domain.UserProfile)
}

// MockAPIInvoker is a mock implementation of ports.APIInvoker
type MockAPIInvoker struct {
	mock.Mock
}

var _ ports.APIInvoker = (*MockAPIInvoker)(nil)

func NewMockAPIInvoker() *MockAPIInvoker {
	return &MockAPIInvoker{}
}

func (m *MockAPIInvoker) Invoke(ctx context.Context, identity domain.Identity) domain.APIResponseDetails {
	args := m.Called(ctx, identity)
	return args.Get(0).(domain.APIResponseDetails)
}

func (m *MockAPIInvoker) Endpoint() string {
	args := m.Called()
	return args.String(0)
}
