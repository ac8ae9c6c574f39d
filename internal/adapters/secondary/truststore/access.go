package truststore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// AccessControlled withholds the trust store from anonymous callers unless
// explicitly allowed.
type AccessControlled struct {
	next           ports.TrustStoreProvider
	allowAnonymous bool
	logger         *slog.Logger
}

var _ ports.TrustStoreProvider = (*AccessControlled)(nil)

func NewAccessControlled(next ports.TrustStoreProvider, allowAnonymous bool, logger *slog.Logger) *AccessControlled {
	return &AccessControlled{
		next:           next,
		allowAnonymous: allowAnonymous,
		logger:         logger.With("component", "truststore_access"),
	}
}

func (a *AccessControlled) TrustStore(ctx context.Context, identity domain.Identity) (*domain.TrustStore, error) {
	if identity.IsAnonymous() && !a.allowAnonymous {
		a.logger.DebugContext(ctx, "trust store withheld from anonymous caller")
		return nil, fmt.Errorf("%w: anonymous callers have no trust store", apperrors.ErrTrustStoreUnavailable)
	}
	return a.next.TrustStore(ctx, identity)
}
