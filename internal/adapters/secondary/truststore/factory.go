package truststore

import (
	"fmt"
	"log/slog"

	"github.com/lorrc/trusted-invoker/internal/config"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// NewProvider builds the configured backend wrapped with anonymous access control.
func NewProvider(cfg config.TrustStoreConfig, logger *slog.Logger) (ports.TrustStoreProvider, error) {
	var backend ports.TrustStoreProvider

	switch cfg.Backend {
	case config.TrustStoreBackendFile:
		backend = NewFileProvider(cfg.FilePath, logger)
		logger.Info("trust store backend configured", "backend", cfg.Backend, "path", cfg.FilePath)
	case config.TrustStoreBackendVault:
		vp, err := NewVaultProvider(VaultOptions{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
			Mount:   cfg.Vault.Mount,
			Path:    cfg.Vault.Path,
			Field:   cfg.Vault.Field,
			Timeout: cfg.Vault.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		backend = vp
		logger.Info("trust store backend configured", "backend", cfg.Backend, "location", vp.LocationURI())
	default:
		return nil, fmt.Errorf("unknown trust store backend %q", cfg.Backend)
	}

	return NewAccessControlled(backend, cfg.AllowAnonymous, logger), nil
}
