package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/example/cloud-tracker/middleware"
	"github.com/example/cloud-tracker/models"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	args := m.Called(ctx, req)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, req models.SigninRequest) (*models.TokenPair, error) {
	args := m.Called(ctx, req)
	if p := args.Get(0); p != nil {
		return p.(*models.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if p := args.Get(0); p != nil {
		return p.(*models.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) GetCurrentUser(ctx context.Context, identifier string) (*models.User, error) {
	args := m.Called(ctx, identifier)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) EditProfile(ctx context.Context, identifier string, req models.UserProfileRequest) (*models.ProfileUpdate, error) {
	args := m.Called(ctx, identifier, req)
	if u := args.Get(0); u != nil {
		return u.(*models.ProfileUpdate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) EditPassword(ctx context.Context, identifier string, req models.PasswordUpdateRequest) (*models.User, error) {
	args := m.Called(ctx, identifier, req)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserService) SaveProfileImage(ctx context.Context, email, image string) error {
	args := m.Called(ctx, email, image)
	return args.Error(0)
}

type MockRoleService struct {
	mock.Mock
}

func (m *MockRoleService) AddRole(ctx context.Context, userID uuid.UUID, roleARN string) (*models.IAMRole, error) {
	args := m.Called(ctx, userID, roleARN)
	if r := args.Get(0); r != nil {
		return r.(*models.IAMRole), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoleService) ListRoles(ctx context.Context, userID uuid.UUID) ([]*models.IAMRole, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]*models.IAMRole), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoleService) GetRoleByARN(ctx context.Context, userID uuid.UUID, roleARN string) (*models.IAMRole, error) {
	args := m.Called(ctx, userID, roleARN)
	if r := args.Get(0); r != nil {
		return r.(*models.IAMRole), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoleService) CostQuery(role *models.IAMRole) models.CostQuery {
	args := m.Called(role)
	return args.Get(0).(models.CostQuery)
}

func (m *MockRoleService) BlendedCost(ctx context.Context, role *models.IAMRole) ([]models.ServiceCost, error) {
	args := m.Called(ctx, role)
	if c := args.Get(0); c != nil {
		return c.([]models.ServiceCost), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoleService) EC2Usage(ctx context.Context, role *models.IAMRole) ([]models.EC2Cost, error) {
	args := m.Called(ctx, role)
	if c := args.Get(0); c != nil {
		return c.([]models.EC2Cost), args.Error(1)
	}
	return nil, args.Error(1)
}

func testPrincipal() *models.Principal {
	return &models.Principal{
		UserID:      uuid.New(),
		Identifier:  "alice@example.com",
		Authorities: []string{"user"},
	}
}

// authenticated returns r carrying an Authentication for p, as the JWT filter would
func authenticated(r *http.Request, p *models.Principal) *http.Request {
	return r.WithContext(middleware.WithAuthentication(r.Context(), &middleware.Authentication{
		Principal:   p,
		Authorities: p.Authorities,
	}))
}
