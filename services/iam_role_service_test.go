package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/repositories"
	"github.com/example/cloud-tracker/services/costexplorer"
)

const testRoleARN = "arn:aws:iam::123456789012:role/CostReader"

// MockCostReader is a mock implementation of CostReader
type MockCostReader struct {
	mock.Mock
}

func (m *MockCostReader) BlendedCost(ctx context.Context, q models.CostQuery) ([]models.ServiceCost, error) {
	args := m.Called(ctx, q)
	if c := args.Get(0); c != nil {
		return c.([]models.ServiceCost), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCostReader) EC2Usage(ctx context.Context, q models.CostQuery) ([]models.EC2Cost, error) {
	args := m.Called(ctx, q)
	if c := args.Get(0); c != nil {
		return c.([]models.EC2Cost), args.Error(1)
	}
	return nil, args.Error(1)
}

func newIAMRoleService(roles *MockIAMRoleRepository, costs *MockCostReader) *IAMRoleService {
	return NewIAMRoleService(roles, &fakeTxManager{}, costs, IAMRoleConfig{
		Clock: func() time.Time { return time.Date(2024, 8, 31, 23, 0, 0, 0, time.UTC) },
	}, zap.NewNop())
}

func domainMessage(t *testing.T, err error) string {
	t.Helper()
	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr), "expected a DomainError, got %v", err)
	return domainErr.Message
}

func TestParseRoleARN(t *testing.T) {
	tests := []struct {
		name    string
		arn     string
		account string
		wantErr bool
	}{
		{"role", testRoleARN, "123456789012", false},
		{"role with path", "arn:aws:iam::123456789012:role/service-role/Reader", "123456789012", false},
		{"padded", "  " + testRoleARN + " ", "123456789012", false},
		{"not an arn", "CostReader", "", true},
		{"user instead of role", "arn:aws:iam::123456789012:user/alice", "", true},
		{"other service", "arn:aws:s3:::my-bucket", "", true},
		{"empty role name", "arn:aws:iam::123456789012:role/", "", true},
		{"short account", "arn:aws:iam::1234:role/CostReader", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := ParseRoleARN(tt.arn)
			if tt.wantErr {
				assert.True(t, IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.account, account)
		})
	}
}

func TestIAMRoleService_AddRole(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("stores role with account id", func(t *testing.T) {
		roles := new(MockIAMRoleRepository)
		roles.On("GetByARN", ctx, userID, testRoleARN).Return(nil, repositories.ErrNotFound)
		roles.On("Create", ctx, mock.MatchedBy(func(r *models.IAMRole) bool {
			return r.UserID == userID && r.ARN == testRoleARN && r.AccountID == "123456789012"
		})).Return(nil)

		role, err := newIAMRoleService(roles, nil).AddRole(ctx, userID, testRoleARN)

		require.NoError(t, err)
		assert.Equal(t, "123456789012", role.AccountID)
		roles.AssertExpectations(t)
	})

	t.Run("duplicate", func(t *testing.T) {
		roles := new(MockIAMRoleRepository)
		roles.On("GetByARN", ctx, userID, testRoleARN).Return(models.NewIAMRole(userID, testRoleARN, "123456789012"), nil)

		_, err := newIAMRoleService(roles, nil).AddRole(ctx, userID, testRoleARN)

		assert.Equal(t, ErrDuplicateRole, err)
		roles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("concurrent insert", func(t *testing.T) {
		roles := new(MockIAMRoleRepository)
		roles.On("GetByARN", ctx, userID, testRoleARN).Return(nil, repositories.ErrNotFound)
		roles.On("Create", ctx, mock.Anything).Return(repositories.ErrDuplicate)

		_, err := newIAMRoleService(roles, nil).AddRole(ctx, userID, testRoleARN)
		assert.Equal(t, ErrDuplicateRole, err)
	})

	t.Run("invalid arn never reaches the store", func(t *testing.T) {
		roles := new(MockIAMRoleRepository)

		_, err := newIAMRoleService(roles, nil).AddRole(ctx, userID, "arn:aws:iam::123456789012:user/alice")

		assert.Equal(t, ErrInvalidRoleARN, err)
		roles.AssertNotCalled(t, "GetByARN", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestIAMRoleService_Lookups(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	role := models.NewIAMRole(userID, testRoleARN, "123456789012")

	roles := new(MockIAMRoleRepository)
	roles.On("ListByUser", ctx, userID).Return([]*models.IAMRole{role}, nil)
	roles.On("GetByARN", ctx, userID, testRoleARN).Return(role, nil)
	roles.On("GetByARN", ctx, userID, "arn:aws:iam::123456789012:role/Missing").Return(nil, repositories.ErrNotFound)
	roles.On("GetByAccountID", ctx, userID, "123456789012").Return(role, nil)
	roles.On("GetByAccountID", ctx, userID, "999999999999").Return(nil, errors.New("connection reset"))
	service := newIAMRoleService(roles, nil)

	list, err := service.ListRoles(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []*models.IAMRole{role}, list)

	got, err := service.GetRoleByARN(ctx, userID, testRoleARN)
	require.NoError(t, err)
	assert.Equal(t, role, got)

	_, err = service.GetRoleByARN(ctx, userID, "arn:aws:iam::123456789012:role/Missing")
	assert.Equal(t, ErrRoleNotFound, err)

	got, err = service.GetRoleByAccountID(ctx, userID, "123456789012")
	require.NoError(t, err)
	assert.Equal(t, role, got)

	_, err = service.GetRoleByAccountID(ctx, userID, "999999999999")
	assert.True(t, IsInternalError(err))
}

func TestIAMRoleService_CostQuery(t *testing.T) {
	service := newIAMRoleService(new(MockIAMRoleRepository), nil)
	role := models.NewIAMRole(uuid.New(), testRoleARN, "123456789012")

	q := service.CostQuery(role)

	assert.Equal(t, models.CostQuery{
		RoleARN:   testRoleARN,
		StartDate: "2024-03-02",
		EndDate:   "2024-08-31",
		Region:    "us-east-1",
	}, q)
}

func TestIAMRoleService_BlendedCost(t *testing.T) {
	ctx := context.Background()
	costs := new(MockCostReader)
	service := newIAMRoleService(new(MockIAMRoleRepository), costs)
	role := models.NewIAMRole(uuid.New(), testRoleARN, "123456789012")
	want := []models.ServiceCost{{Date: "2024-08-01", Service: "Amazon S3", Amount: 1.5}}

	costs.On("BlendedCost", ctx, service.CostQuery(role)).Return(want, nil)

	got, err := service.BlendedCost(ctx, role)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIAMRoleService_CostErrors(t *testing.T) {
	ctx := context.Background()
	role := models.NewIAMRole(uuid.New(), testRoleARN, "123456789012")

	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"assume role", fmt.Errorf("%w: denied", costexplorer.ErrAssumeRole), ErrAssumeRoleFailed.Message},
		{"timeout", fmt.Errorf("%w: %w", costexplorer.ErrRequest, context.DeadlineExceeded), ErrCostExplorerTimeout.Message},
		{"request", fmt.Errorf("%w: throttled", costexplorer.ErrRequest), ErrCostExplorerFailed.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			costs := new(MockCostReader)
			costs.On("EC2Usage", ctx, mock.Anything).Return(nil, tt.err)

			_, err := newIAMRoleService(new(MockIAMRoleRepository), costs).EC2Usage(ctx, role)

			assert.True(t, IsExternalError(err))
			assert.Equal(t, tt.message, domainMessage(t, err))
		})
	}
}
