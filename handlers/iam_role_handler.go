package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/middleware"
	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/utils"
)

// RoleService is the part of services.IAMRoleService used by IAMRoleHandler
type RoleService interface {
	AddRole(ctx context.Context, userID uuid.UUID, roleARN string) (*models.IAMRole, error)
	ListRoles(ctx context.Context, userID uuid.UUID) ([]*models.IAMRole, error)
	GetRoleByARN(ctx context.Context, userID uuid.UUID, roleARN string) (*models.IAMRole, error)
	CostQuery(role *models.IAMRole) models.CostQuery
	BlendedCost(ctx context.Context, role *models.IAMRole) ([]models.ServiceCost, error)
	EC2Usage(ctx context.Context, role *models.IAMRole) ([]models.EC2Cost, error)
}

// IAMRoleHandler serves the /role endpoints. Every lookup is scoped to the authenticated user.
type IAMRoleHandler struct {
	roles  RoleService
	logger *zap.Logger
}

// NewIAMRoleHandler creates a new IAMRoleHandler
func NewIAMRoleHandler(roles RoleService, logger *zap.Logger) *IAMRoleHandler {
	return &IAMRoleHandler{
		roles:  roles,
		logger: logger,
	}
}

// HandleAddRole handles POST /role
func (h *IAMRoleHandler) HandleAddRole(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	var req models.AddRoleRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	role, err := h.roles.AddRole(r.Context(), principal.UserID, req.ARN)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, role); err != nil {
		h.logger.Error("failed to write role response", zap.Error(err))
	}
}

// HandleListRoles handles GET /role/all
func (h *IAMRoleHandler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	roles, err := h.roles.ListRoles(r.Context(), principal.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, roles); err != nil {
		h.logger.Error("failed to write roles response", zap.Error(err))
	}
}

// HandleGetRole handles GET /role?arn=
func (h *IAMRoleHandler) HandleGetRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFromQuery(w, r)
	if !ok {
		return
	}
	if err := utils.WriteOK(w, role); err != nil {
		h.logger.Error("failed to write role response", zap.Error(err))
	}
}

// HandleCostQuery handles GET /role/data?arn=
func (h *IAMRoleHandler) HandleCostQuery(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFromQuery(w, r)
	if !ok {
		return
	}
	if err := utils.WriteOK(w, h.roles.CostQuery(role)); err != nil {
		h.logger.Error("failed to write cost query response", zap.Error(err))
	}
}

// HandleBlendedCost handles GET /role/cost?arn=
func (h *IAMRoleHandler) HandleBlendedCost(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFromQuery(w, r)
	if !ok {
		return
	}

	costs, err := h.roles.BlendedCost(r.Context(), role)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, costs); err != nil {
		h.logger.Error("failed to write cost response", zap.Error(err))
	}
}

// HandleEC2Usage handles GET /role/ec2?arn=
func (h *IAMRoleHandler) HandleEC2Usage(w http.ResponseWriter, r *http.Request) {
	role, ok := h.roleFromQuery(w, r)
	if !ok {
		return
	}

	usage, err := h.roles.EC2Usage(r.Context(), role)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, usage); err != nil {
		h.logger.Error("failed to write ec2 response", zap.Error(err))
	}
}

// roleFromQuery resolves ?arn= to one of the caller's roles, writing the error response when it cannot
func (h *IAMRoleHandler) roleFromQuery(w http.ResponseWriter, r *http.Request) (*models.IAMRole, bool) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return nil, false
	}

	arn := r.URL.Query().Get("arn")
	if arn == "" {
		_ = utils.WriteBadRequest(w, "Query parameter 'arn' is required", nil)
		return nil, false
	}

	role, err := h.roles.GetRoleByARN(r.Context(), principal.UserID, arn)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return nil, false
	}
	return role, true
}
