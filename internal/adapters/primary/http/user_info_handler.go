package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/trusted-invoker/internal/adapters/primary/http/middleware"
	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

// UserInfoResponse is the JSON summary of the current caller. Email and
// country are omitted only when the directory was not consulted.
type UserInfoResponse struct {
	UserID          string  `json:"userId,omitempty"`
	IsAuthenticated bool    `json:"isAuthenticated"`
	Email           *string `json:"email,omitempty"`
	Country         *string `json:"country,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func toUserInfoResponse(profile *domain.UserProfile) UserInfoResponse {
	resp := UserInfoResponse{
		UserID:          profile.UserID,
		IsAuthenticated: profile.IsAuthenticated,
		Error:           profile.Error,
	}
	if profile.Attributes != nil {
		email, country := profile.Attributes.Email, profile.Attributes.Country
		resp.Email = &email
		resp.Country = &country
	}
	return resp
}

// UserInfoHandler serves the caller's profile summary.
type UserInfoHandler struct {
	userInfo     ports.UserInfoService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewUserInfoHandler creates a new UserInfoHandler.
func NewUserInfoHandler(
	userInfo ports.UserInfoService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *UserInfoHandler {
	return &UserInfoHandler{
		userInfo:     userInfo,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "userinfo"),
	}
}

// RegisterRoutes registers the userinfo routes.
func (h *UserInfoHandler) RegisterRoutes(r chi.Router) {
	r.Get("/userinfo", h.HandleUserInfo)
	r.Get("/userinfo.json", h.HandleUserInfo)
}

// HandleUserInfo handles GET /bin/userinfo and /bin/userinfo.json.
func (h *UserInfoHandler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	identity, err := mw.GetIdentity(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewServerError(err))
		return
	}

	profile := h.userInfo.GetUserInfo(r.Context(), identity)

	h.logger.InfoContext(r.Context(), "user info served",
		"authenticated", profile.IsAuthenticated,
		"lookup_error", profile.Error != "",
	)

	WriteJSON(w, http.StatusOK, toUserInfoResponse(profile))
}
