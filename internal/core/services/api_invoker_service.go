package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// DefaultMaxBodyBytes caps how much of the upstream body is kept.
const DefaultMaxBodyBytes int64 = 1 << 20

// APIInvokerConfig holds the outbound call settings.
type APIInvokerConfig struct {
	Endpoint     string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// APIInvokerService performs a single GET against the configured endpoint
// using a client that trusts only the caller's platform trust store.
type APIInvokerService struct {
	trustStores ports.TrustStoreProvider
	clients     ports.HTTPClientFactory
	cfg         APIInvokerConfig
	logger      *slog.Logger
}

var _ ports.APIInvoker = (*APIInvokerService)(nil)

// NewAPIInvokerService creates a new APIInvokerService. The endpoint must be
// an absolute https URL.
func NewAPIInvokerService(
	trustStores ports.TrustStoreProvider,
	clients ports.HTTPClientFactory,
	cfg APIInvokerConfig,
	logger *slog.Logger,
) (*APIInvokerService, error) {
	if cfg.Endpoint == "" {
		return nil, apperrors.ErrEndpointRequired
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid invoker endpoint: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid invoker endpoint %q: must be an absolute https URL", cfg.Endpoint)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &APIInvokerService{
		trustStores: trustStores,
		clients:     clients,
		cfg:         cfg,
		logger:      logger.With("service", "api_invoker"),
	}, nil
}

// Endpoint returns the URL the service calls.
func (s *APIInvokerService) Endpoint() string {
	return s.cfg.Endpoint
}

// Invoke performs the call and always returns a result: the upstream
// response, NotInvokedResponse when no trust store is available, or
// FailedInvocationResponse for any error.
func (s *APIInvokerService) Invoke(ctx context.Context, identity domain.Identity) (details domain.APIResponseDetails) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic during API invocation: %v", rec)
			s.logger.ErrorContext(ctx, "error while invoking API",
				"endpoint", s.cfg.Endpoint,
				"error", err,
				"stack_trace", string(debug.Stack()),
			)
			details = domain.FailedInvocationResponse(err)
		}
	}()

	details, err := s.invoke(ctx, identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "error while invoking API",
			"endpoint", s.cfg.Endpoint,
			"user_id", identity.UserID,
			"error", err,
		)
		details = domain.FailedInvocationResponse(err)
	}

	s.logger.InfoContext(ctx, "API invocation response details",
		"endpoint", s.cfg.Endpoint,
		"status_code", details.StatusCode,
		"body_bytes", len(details.Body),
	)

	return details
}

func (s *APIInvokerService) invoke(ctx context.Context, identity domain.Identity) (domain.APIResponseDetails, error) {
	store, err := s.trustStores.TrustStore(ctx, identity)
	if err != nil {
		if errors.Is(err, apperrors.ErrTrustStoreUnavailable) {
			s.logger.WarnContext(ctx, "could not find trust store, API invocation cancelled",
				"user_id", identity.UserID,
				"reason", err.Error(),
			)
			return domain.NotInvokedResponse(), nil
		}
		return domain.APIResponseDetails{}, fmt.Errorf("failed to load trust store: %w", err)
	}

	client, err := s.clients.NewClient(store)
	if err != nil {
		return domain.APIResponseDetails{}, fmt.Errorf("failed to build HTTPS client: %w", err)
	}
	if closer, ok := client.(interface{ CloseIdleConnections() }); ok {
		defer closer.CloseIdleConnections()
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint, nil)
	if err != nil {
		return domain.APIResponseDetails{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.APIResponseDetails{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return domain.APIResponseDetails{}, fmt.Errorf("failed to read response body: %w", err)
	}

	return domain.NewAPIResponseDetails(resp.StatusCode, strings.ToValidUTF8(string(body), "\uFFFD")), nil
}
