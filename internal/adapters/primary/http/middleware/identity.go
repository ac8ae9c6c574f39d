package middleware

import (
	"context"
	"net/http"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
	"github.com/lorrc/trusted-invoker/internal/infrastructure/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// identityKey is the key used to store the resolved identity in the request context.
const identityKey contextKey = "identity"

type resolvedIdentity struct {
	identity domain.Identity
	err      error
}

// ResolveIdentity resolves the caller once per request and stores the result.
// Resolution failures are not rejected here; each handler decides how to
// surface them.
func ResolveIdentity(resolver ports.IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.ResolveIdentity(r)

			ctx := context.WithValue(r.Context(), identityKey, resolvedIdentity{identity: identity, err: err})
			if err == nil && identity.IsPresent() {
				ctx = logging.WithUserID(ctx, identity.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the identity resolved for this request.
func GetIdentity(ctx context.Context) (domain.Identity, error) {
	resolved, ok := ctx.Value(identityKey).(resolvedIdentity)
	if !ok {
		return domain.Identity{}, apperrors.ErrIdentityUnresolved
	}
	return resolved.identity, resolved.err
}
