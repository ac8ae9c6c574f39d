package ports

import (
	"context"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
)

// UserDirectory defines the port to the platform's user directory.
// Attributes are multi-valued; a missing user yields ErrUserNotFound.
type UserDirectory interface {
	LookupAttributes(ctx context.Context, userID string) (map[string][]string, error)
}

// TrustStoreProvider defines the port to the platform's trust store
// provisioning. Implementations return ErrTrustStoreUnavailable when no
// store exists or the caller may not read it.
type TrustStoreProvider interface {
	TrustStore(ctx context.Context, identity domain.Identity) (*domain.TrustStore, error)
}
