package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/trusted-invoker/internal/adapters/primary/http/middleware"
	"github.com/lorrc/trusted-invoker/internal/core/domain"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

//go:embed templates/invoker.html
var templateFS embed.FS

var invokerPage = template.Must(template.ParseFS(templateFS, "templates/invoker.html"))

// invokerPageData is the view model of the invoker page.
type invokerPageData struct {
	Endpoint   string
	StatusCode int
	Body       string
}

// InvokerHandler runs one trusted HTTPS invocation per request and renders
// the outcome as HTML.
type InvokerHandler struct {
	invoker      ports.APIInvoker
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewInvokerHandler creates a new InvokerHandler.
func NewInvokerHandler(invoker ports.APIInvoker, errorHandler *ErrorHandler, logger *slog.Logger) *InvokerHandler {
	return &InvokerHandler{
		invoker:      invoker,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "invoker"),
	}
}

// RegisterRoutes registers the invoker routes.
func (h *InvokerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tutorial/api/invoker/self-signed-cert", h.HandleInvoke)
}

// HandleInvoke handles GET /bin/tutorial/api/invoker/self-signed-cert.
// The page is always served with 200; the upstream outcome is in the body.
func (h *InvokerHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	identity, err := mw.GetIdentity(r.Context())
	if err != nil {
		// An unresolved caller is treated as anonymous so the page still
		// renders; the trust store decides whether the call happens.
		h.logger.WarnContext(r.Context(), "identity unresolved, invoking as anonymous", "error", err)
		identity = domain.AnonymousIdentity()
	}

	details := h.invoker.Invoke(r.Context(), identity)

	page, err := renderInvokerPage(h.invoker.Endpoint(), details)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteHTML(w, http.StatusOK, page)
}

func renderInvokerPage(endpoint string, details domain.APIResponseDetails) ([]byte, error) {
	var buf bytes.Buffer
	err := invokerPage.Execute(&buf, invokerPageData{
		Endpoint:   endpoint,
		StatusCode: details.StatusCode,
		Body:       details.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render invoker page: %w", err)
	}
	return buf.Bytes(), nil
}
