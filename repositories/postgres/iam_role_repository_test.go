package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/repositories"
)

const testRoleARN = "arn:aws:iam::123456789012:role/CostReader"

func roleColumns() []string {
	return []string{"id", "user_id", "arn", "account_id", "created_at"}
}

func TestIAMRoleRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIAMRoleRepository(db, zap.NewNop())
	role := models.NewIAMRole(uuid.New(), testRoleARN, "123456789012")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO iam_roles")).
		WithArgs(role.ID, role.UserID, role.ARN, role.AccountID, role.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO iam_roles")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "iam_roles_user_id_arn_key"})

	require.NoError(t, repo.Create(context.Background(), role))
	assert.ErrorIs(t, repo.Create(context.Background(), role), repositories.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIAMRoleRepository_GetByARN(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIAMRoleRepository(db, zap.NewNop())
	userID := uuid.New()
	roleID := uuid.New()
	created := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("FROM iam_roles WHERE user_id = $1 AND arn = $2")).
		WithArgs(userID, testRoleARN).
		WillReturnRows(sqlmock.NewRows(roleColumns()).
			AddRow(roleID.String(), userID.String(), testRoleARN, "123456789012", created))

	role, err := repo.GetByARN(context.Background(), userID, testRoleARN)
	require.NoError(t, err)
	assert.Equal(t, roleID, role.ID)
	assert.Equal(t, userID, role.UserID)
	assert.Equal(t, "123456789012", role.AccountID)
	assert.Equal(t, created, role.CreatedAt)
}

func TestIAMRoleRepository_GetByAccountID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIAMRoleRepository(db, zap.NewNop())
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND account_id = $2")).
		WithArgs(userID, "999999999999").
		WillReturnError(sql.ErrNoRows)

	role, err := repo.GetByAccountID(context.Background(), userID, "999999999999")
	assert.Nil(t, role)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestIAMRoleRepository_ListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIAMRoleRepository(db, zap.NewNop())
	userID := uuid.New()
	now := time.Now().UTC()

	t.Run("returns rows in order", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(roleColumns()).
				AddRow(uuid.New().String(), userID.String(), "arn:aws:iam::111111111111:role/B", "111111111111", now).
				AddRow(uuid.New().String(), userID.String(), testRoleARN, "123456789012", now.Add(-time.Hour)))

		roles, err := repo.ListByUser(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, roles, 2)
		assert.Equal(t, "111111111111", roles[0].AccountID)
		assert.Equal(t, testRoleARN, roles[1].ARN)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows(roleColumns()))

		roles, err := repo.ListByUser(context.Background(), userID)
		require.NoError(t, err)
		assert.NotNil(t, roles)
		assert.Empty(t, roles)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
