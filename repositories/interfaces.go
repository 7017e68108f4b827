package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/example/cloud-tracker/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert or update violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email, the login identifier
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ExistsByEmail reports whether any user owns the email
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Update updates profile fields and the password hash
	Update(ctx context.Context, user *models.User) error

	// UpdateImage replaces the profile image of the user with the given email
	UpdateImage(ctx context.Context, email, image string) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) UserRepository
}

// IAMRoleRepository handles IAM role data operations
type IAMRoleRepository interface {
	// Create creates a new role
	Create(ctx context.Context, role *models.IAMRole) error

	// GetByARN retrieves the role a user registered with the ARN
	GetByARN(ctx context.Context, userID uuid.UUID, arn string) (*models.IAMRole, error)

	// GetByAccountID retrieves the first role a user registered for the account
	GetByAccountID(ctx context.Context, userID uuid.UUID, accountID string) (*models.IAMRole, error)

	// ListByUser retrieves all roles of a user, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.IAMRole, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) IAMRoleRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users    UserRepository
	IAMRoles IAMRoleRepository
}
