package postgres

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/repositories"
)

const iamRoleColumns = `id, user_id, arn, account_id, created_at`

// IAMRoleRepository implements the repositories.IAMRoleRepository interface
type IAMRoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIAMRoleRepository creates a new IAM role repository
func NewIAMRoleRepository(db *DB, logger *zap.Logger) repositories.IAMRoleRepository {
	return &IAMRoleRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new role
func (r *IAMRoleRepository) Create(ctx context.Context, role *models.IAMRole) error {
	query := `
		INSERT INTO iam_roles (` + iamRoleColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		role.ID,
		role.UserID,
		role.ARN,
		role.AccountID,
		role.CreatedAt,
	)
	if err != nil {
		return translateError("failed to create IAM role", err)
	}

	r.logger.Debug("IAM role created",
		zap.String("id", role.ID.String()),
		zap.String("account_id", role.AccountID))
	return nil
}

// GetByARN retrieves the role a user registered with the ARN
func (r *IAMRoleRepository) GetByARN(ctx context.Context, userID uuid.UUID, arn string) (*models.IAMRole, error) {
	query := `SELECT ` + iamRoleColumns + ` FROM iam_roles WHERE user_id = $1 AND arn = $2`

	role, err := r.scanOne(ctx, query, userID, arn)
	if err != nil {
		return nil, translateError("failed to get IAM role by ARN", err)
	}
	return role, nil
}

// GetByAccountID retrieves the first role a user registered for the account
func (r *IAMRoleRepository) GetByAccountID(ctx context.Context, userID uuid.UUID, accountID string) (*models.IAMRole, error) {
	query := `
		SELECT ` + iamRoleColumns + `
		FROM iam_roles
		WHERE user_id = $1 AND account_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`

	role, err := r.scanOne(ctx, query, userID, accountID)
	if err != nil {
		return nil, translateError("failed to get IAM role by account", err)
	}
	return role, nil
}

// ListByUser retrieves all roles of a user, newest first
func (r *IAMRoleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.IAMRole, error) {
	query := `
		SELECT ` + iamRoleColumns + `
		FROM iam_roles
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translateError("failed to query IAM roles", err)
	}
	defer rows.Close()

	roles := make([]*models.IAMRole, 0)
	for rows.Next() {
		role := &models.IAMRole{}
		if err := rows.Scan(&role.ID, &role.UserID, &role.ARN, &role.AccountID, &role.CreatedAt); err != nil {
			return nil, translateError("failed to scan IAM role", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, translateError("error iterating IAM role rows", err)
	}

	return roles, nil
}

func (r *IAMRoleRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*models.IAMRole, error) {
	executor := GetExecutor(ctx, r.db)
	role := &models.IAMRole{}

	err := executor.QueryRowContext(ctx, query, args...).Scan(
		&role.ID,
		&role.UserID,
		&role.ARN,
		&role.AccountID,
		&role.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *IAMRoleRepository) WithTx(tx repositories.Transaction) repositories.IAMRoleRepository {
	return &IAMRoleRepository{
		db:     r.db,
		logger: r.logger,
	}
}
