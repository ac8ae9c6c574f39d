package ports

import (
	"context"
	"net/http"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
)

// IdentityResolver maps an inbound request to the caller's identity.
type IdentityResolver interface {
	ResolveIdentity(r *http.Request) (domain.Identity, error)
}

// UserInfoService defines the port for the current-user summary.
type UserInfoService interface {
	GetUserInfo(ctx context.Context, identity domain.Identity) *domain.UserProfile
}

// APIInvoker defines the port for the trust-store backed outbound call.
// It never returns an error; failures are reported in the result.
type APIInvoker interface {
	Invoke(ctx context.Context, identity domain.Identity) domain.APIResponseDetails
	Endpoint() string
}

// HTTPDoer is the subset of *http.Client used for outbound calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClientFactory builds a one-shot client that trusts exactly the given store.
type HTTPClientFactory interface {
	NewClient(store *domain.TrustStore) (HTTPDoer, error)
}
