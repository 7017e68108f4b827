package models

import (
	"time"

	"github.com/google/uuid"
)

// IAMRole is an AWS IAM role ARN a user has attached to their account.
// The role is assumed through STS to read Cost Explorer data.
type IAMRole struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ARN       string    `json:"arn" db:"arn"`
	AccountID string    `json:"account_id" db:"account_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the IAMRole model
func (IAMRole) TableName() string {
	return "iam_roles"
}

// NewIAMRole creates a new IAMRole owned by userID
func NewIAMRole(userID uuid.UUID, arn, accountID string) *IAMRole {
	return &IAMRole{
		ID:        uuid.New(),
		UserID:    userID,
		ARN:       arn,
		AccountID: accountID,
		CreatedAt: time.Now(),
	}
}
