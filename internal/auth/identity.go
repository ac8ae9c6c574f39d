package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// JWTIdentityResolver resolves the caller from a Bearer token. Requests
// without credentials resolve to the anonymous identity.
type JWTIdentityResolver struct {
	tokens *TokenManager
}

var _ ports.IdentityResolver = (*JWTIdentityResolver)(nil)

// NewJWTIdentityResolver creates a resolver backed by the given token manager.
func NewJWTIdentityResolver(tokens *TokenManager) *JWTIdentityResolver {
	return &JWTIdentityResolver{tokens: tokens}
}

// ResolveIdentity implements ports.IdentityResolver.
func (r *JWTIdentityResolver) ResolveIdentity(req *http.Request) (domain.Identity, error) {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return domain.AnonymousIdentity(), nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return domain.Identity{}, fmt.Errorf("%w: authorization header format must be Bearer {token}", apperrors.ErrIdentityUnresolved)
	}

	claims, err := r.tokens.ValidateToken(parts[1])
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", apperrors.ErrIdentityUnresolved, err)
	}

	return domain.NewIdentity(claims.UserID), nil
}
