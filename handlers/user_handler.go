package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/cloud-tracker/middleware"
	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/utils"
)

// ProfileService is the part of services.UserService used by UserHandler
type ProfileService interface {
	GetCurrentUser(ctx context.Context, identifier string) (*models.User, error)
	EditProfile(ctx context.Context, identifier string, req models.UserProfileRequest) (*models.ProfileUpdate, error)
	EditPassword(ctx context.Context, identifier string, req models.PasswordUpdateRequest) (*models.User, error)
	SaveProfileImage(ctx context.Context, email, image string) error
}

// ProfileImageRequest is the body of PUT /user/profile-picture
type ProfileImageRequest struct {
	Image string `json:"image" validate:"required,max=2048"`
}

// UserHandler serves the authenticated user's own account
type UserHandler struct {
	profiles ProfileService
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles ProfileService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// HandleMe handles GET /user/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	h.writeUserField(w, r, func(u *models.User) interface{} { return u })
}

// HandleName handles GET /user/name
func (h *UserHandler) HandleName(w http.ResponseWriter, r *http.Request) {
	h.writeUserField(w, r, func(u *models.User) interface{} { return map[string]string{"name": u.Name} })
}

// HandleEmail handles GET /user/email
func (h *UserHandler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	h.writeUserField(w, r, func(u *models.User) interface{} { return map[string]string{"email": u.Email} })
}

// HandleProfilePicture handles GET /user/profile-picture
func (h *UserHandler) HandleProfilePicture(w http.ResponseWriter, r *http.Request) {
	h.writeUserField(w, r, func(u *models.User) interface{} { return map[string]string{"image": u.Image} })
}

// HandleEditProfile handles PUT /user/profile
func (h *UserHandler) HandleEditProfile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req models.UserProfileRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	update, err := h.profiles.EditProfile(r.Context(), principal.Identifier, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, update); err != nil {
		h.logger.Error("failed to write profile response", zap.Error(err))
	}
}

// HandleEditPassword handles PUT /user/password
func (h *UserHandler) HandleEditPassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req models.PasswordUpdateRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	user, err := h.profiles.EditPassword(r.Context(), principal.Identifier, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, user); err != nil {
		h.logger.Error("failed to write password response", zap.Error(err))
	}
}

// HandleSaveProfilePicture handles PUT /user/profile-picture
func (h *UserHandler) HandleSaveProfilePicture(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req ProfileImageRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	if err := h.profiles.SaveProfileImage(r.Context(), principal.Identifier, req.Image); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func (h *UserHandler) writeUserField(w http.ResponseWriter, r *http.Request, field func(*models.User) interface{}) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	user, err := h.profiles.GetCurrentUser(r.Context(), principal.Identifier)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, field(user)); err != nil {
		h.logger.Error("failed to write user response", zap.Error(err))
	}
}
