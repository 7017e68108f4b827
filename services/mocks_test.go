package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/example/cloud-tracker/internal/password"
	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/repositories"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateImage(ctx context.Context, email, image string) error {
	args := m.Called(ctx, email, image)
	return args.Error(0)
}

func (m *MockUserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	return m
}

// MockIAMRoleRepository is a mock implementation of repositories.IAMRoleRepository
type MockIAMRoleRepository struct {
	mock.Mock
}

func (m *MockIAMRoleRepository) Create(ctx context.Context, role *models.IAMRole) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *MockIAMRoleRepository) GetByARN(ctx context.Context, userID uuid.UUID, arn string) (*models.IAMRole, error) {
	args := m.Called(ctx, userID, arn)
	if r := args.Get(0); r != nil {
		return r.(*models.IAMRole), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIAMRoleRepository) GetByAccountID(ctx context.Context, userID uuid.UUID, accountID string) (*models.IAMRole, error) {
	args := m.Called(ctx, userID, accountID)
	if r := args.Get(0); r != nil {
		return r.(*models.IAMRole), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIAMRoleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.IAMRole, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.([]*models.IAMRole), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIAMRoleRepository) WithTx(tx repositories.Transaction) repositories.IAMRoleRepository {
	return m
}

// fakeTxManager runs the callback inline and records the outcome
type fakeTxManager struct {
	calls      int
	rolledBack int
}

func (f *fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return nil, errors.New("not supported")
}

func (f *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	f.calls++
	if err := fn(ctx, nil); err != nil {
		f.rolledBack++
		return err
	}
	return nil
}

// countingHasher wraps a real hasher and counts calls
type countingHasher struct {
	*password.Hasher
	hashes   int
	compares int
	lastHash string
}

func (c *countingHasher) Hash(plain string) (string, error) {
	c.hashes++
	return c.Hasher.Hash(plain)
}

func (c *countingHasher) Compare(hash, plain string) error {
	c.compares++
	c.lastHash = hash
	return c.Hasher.Compare(hash, plain)
}
