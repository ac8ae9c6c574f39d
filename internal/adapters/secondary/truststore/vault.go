package truststore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// VaultProvider reads the platform trust store from a Vault KV v2 secret.
// The secret field holds a PEM bundle of one or more certificates.
type VaultProvider struct {
	client    *api.Client
	mountPath string
	dataPath  string
	field     string
	logger    *slog.Logger
}

var _ ports.TrustStoreProvider = (*VaultProvider)(nil)

// VaultOptions locates the trust store secret.
type VaultOptions struct {
	Address string
	Token   string
	Mount   string // e.g. "secret"
	Path    string // path within the mount, e.g. "truststore/global"
	Field   string // secret field holding the PEM bundle
	Timeout time.Duration
}

// NewVaultProvider creates a Vault backed trust store provider using token auth.
func NewVaultProvider(opts VaultOptions, logger *slog.Logger) (*VaultProvider, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Field == "" {
		opts.Field = "certificates"
	}

	config := api.DefaultConfig()
	config.Address = opts.Address
	config.HttpClient = &http.Client{Timeout: opts.Timeout}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	client.SetToken(opts.Token)

	return &VaultProvider{
		client:    client,
		mountPath: strings.Trim(opts.Mount, "/"),
		dataPath:  strings.Trim(opts.Path, "/"),
		field:     opts.Field,
		logger:    logger.With("component", "truststore_vault"),
	}, nil
}

// TrustStore fetches and parses the bundle. A missing secret or field is
// reported as ErrTrustStoreUnavailable; transport failures are returned as is.
func (p *VaultProvider) TrustStore(ctx context.Context, _ domain.Identity) (*domain.TrustStore, error) {
	start := time.Now()

	// Vault KV v2 path structure
	path := fmt.Sprintf("%s/data/%s", p.mountPath, p.dataPath)

	secret, err := p.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to read trust store from Vault", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read trust store from Vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		p.logger.DebugContext(ctx, "trust store secret not found in Vault", "path", path)
		return nil, fmt.Errorf("%w: no secret at %s", apperrors.ErrTrustStoreUnavailable, path)
	}

	// Extract data from the response (KV v2 format)
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: secret at %s has no data", apperrors.ErrTrustStoreUnavailable, path)
	}

	bundle, ok := data[p.field].(string)
	if !ok || strings.TrimSpace(bundle) == "" {
		return nil, fmt.Errorf("%w: field %q missing at %s", apperrors.ErrTrustStoreUnavailable, p.field, path)
	}

	store, err := domain.ParseTrustStorePEM([]byte(bundle))
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptyTrustStore) {
			return nil, fmt.Errorf("%w: field %q at %s holds no certificates", apperrors.ErrTrustStoreUnavailable, p.field, path)
		}
		return nil, err
	}

	p.logger.DebugContext(ctx, "trust store loaded",
		"path", path,
		"certificates", store.Len(),
		"duration", time.Since(start),
	)
	return store, nil
}

// LocationURI identifies the secret for logs and diagnostics.
func (p *VaultProvider) LocationURI() string {
	return fmt.Sprintf("vault://%s/%s/%s#%s", p.client.Address(), p.mountPath, p.dataPath, p.field)
}
