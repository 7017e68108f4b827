package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/utils"
)

// AccountService is the part of services.UserService used for sign-up and sign-in
type AccountService interface {
	Register(ctx context.Context, req models.SignupRequest) (*models.User, error)
	Login(ctx context.Context, req models.SigninRequest) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

// AuthHandler handles credential endpoints. All its routes are exempt from the JWT filter.
type AuthHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleSignup handles POST /signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, user); err != nil {
		h.logger.Error("failed to write signup response", zap.Error(err))
	}
}

// HandleSignin handles POST /signin
func (h *AuthHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var req models.SigninRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	tokens, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, tokens); err != nil {
		h.logger.Error("failed to write signin response", zap.Error(err))
	}
}

// HandleRefresh handles POST /refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	tokens, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, tokens); err != nil {
		h.logger.Error("failed to write refresh response", zap.Error(err))
	}
}
