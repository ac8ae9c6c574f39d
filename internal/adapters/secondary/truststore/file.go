package truststore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// FileProvider serves the platform trust store from a PEM bundle on disk.
// The file is read on every call so rotated bundles are picked up without
// a restart.
type FileProvider struct {
	path   string
	logger *slog.Logger
}

var _ ports.TrustStoreProvider = (*FileProvider)(nil)

func NewFileProvider(path string, logger *slog.Logger) *FileProvider {
	return &FileProvider{
		path:   path,
		logger: logger.With("component", "truststore_file"),
	}
}

// TrustStore returns the bundle's certificates. A missing or empty bundle is
// reported as ErrTrustStoreUnavailable.
func (p *FileProvider) TrustStore(ctx context.Context, _ domain.Identity) (*domain.TrustStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.DebugContext(ctx, "trust store bundle not found", "path", p.path)
			return nil, fmt.Errorf("%w: no bundle at %s", apperrors.ErrTrustStoreUnavailable, p.path)
		}
		return nil, fmt.Errorf("failed to read trust store bundle: %w", err)
	}

	store, err := domain.ParseTrustStorePEM(bundle)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptyTrustStore) {
			return nil, fmt.Errorf("%w: bundle at %s holds no certificates", apperrors.ErrTrustStoreUnavailable, p.path)
		}
		return nil, err
	}

	p.logger.DebugContext(ctx, "trust store loaded", "path", p.path, "certificates", store.Len())
	return store, nil
}
