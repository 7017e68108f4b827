package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/repositories"
	"github.com/example/cloud-tracker/services/costexplorer"
)

const costDateLayout = "2006-01-02"

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// CostReader reads cost data while acting as a customer role
type CostReader interface {
	BlendedCost(ctx context.Context, q models.CostQuery) ([]models.ServiceCost, error)
	EC2Usage(ctx context.Context, q models.CostQuery) ([]models.EC2Cost, error)
}

// IAMRoleConfig holds query defaults for IAMRoleService
type IAMRoleConfig struct {
	Region         string
	LookbackMonths int
	Clock          func() time.Time
}

// IAMRoleService manages the IAM roles users attach and the cost data read through them
type IAMRoleService struct {
	roles  repositories.IAMRoleRepository
	txMgr  repositories.TransactionManager
	costs  CostReader
	cfg    IAMRoleConfig
	logger *zap.Logger
}

// NewIAMRoleService creates a new IAMRoleService instance
func NewIAMRoleService(
	roles repositories.IAMRoleRepository,
	txMgr repositories.TransactionManager,
	costs CostReader,
	cfg IAMRoleConfig,
	logger *zap.Logger,
) *IAMRoleService {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.LookbackMonths <= 0 {
		cfg.LookbackMonths = 6
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &IAMRoleService{
		roles:  roles,
		txMgr:  txMgr,
		costs:  costs,
		cfg:    cfg,
		logger: logger,
	}
}

// ParseRoleARN checks that s names an IAM role and returns its account ID
func ParseRoleARN(s string) (string, error) {
	parsed, err := arn.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", Wrap(ErrInvalidRoleARN, err)
	}
	if parsed.Service != "iam" || !strings.HasPrefix(parsed.Resource, "role/") || len(parsed.Resource) == len("role/") {
		return "", ErrInvalidRoleARN
	}
	if !accountIDPattern.MatchString(parsed.AccountID) {
		return "", ErrInvalidRoleARN
	}
	return parsed.AccountID, nil
}

// AddRole attaches a role ARN to the user
func (s *IAMRoleService) AddRole(ctx context.Context, userID uuid.UUID, roleARN string) (*models.IAMRole, error) {
	roleARN = strings.TrimSpace(roleARN)
	accountID, err := ParseRoleARN(roleARN)
	if err != nil {
		return nil, err
	}

	role := models.NewIAMRole(userID, roleARN, accountID)

	err = s.txMgr.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		_, err := s.roles.GetByARN(ctx, userID, roleARN)
		switch {
		case err == nil:
			return ErrDuplicateRole
		case !errors.Is(err, repositories.ErrNotFound):
			return Wrap(ErrDatabaseError, err)
		}

		if err := s.roles.Create(ctx, role); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrDuplicateRole
			}
			return Wrap(ErrDatabaseError, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("iam role added",
		zap.String("user_id", userID.String()),
		zap.String("account_id", accountID))
	return role, nil
}

// ListRoles returns the roles of the user, newest first
func (s *IAMRoleService) ListRoles(ctx context.Context, userID uuid.UUID) ([]*models.IAMRole, error) {
	roles, err := s.roles.ListByUser(ctx, userID)
	if err != nil {
		return nil, Wrap(ErrDatabaseError, err)
	}
	return roles, nil
}

// GetRoleByARN returns the user's role with the given ARN
func (s *IAMRoleService) GetRoleByARN(ctx context.Context, userID uuid.UUID, roleARN string) (*models.IAMRole, error) {
	role, err := s.roles.GetByARN(ctx, userID, strings.TrimSpace(roleARN))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, Wrap(ErrDatabaseError, err)
	}
	return role, nil
}

// GetRoleByAccountID returns the first role the user registered for the account
func (s *IAMRoleService) GetRoleByAccountID(ctx context.Context, userID uuid.UUID, accountID string) (*models.IAMRole, error) {
	role, err := s.roles.GetByAccountID(ctx, userID, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, Wrap(ErrDatabaseError, err)
	}
	return role, nil
}

// CostQuery returns the query window for a role: the configured number of
// months up to today, in the default region.
func (s *IAMRoleService) CostQuery(role *models.IAMRole) models.CostQuery {
	end := s.cfg.Clock().UTC()
	start := end.AddDate(0, -s.cfg.LookbackMonths, 0)
	return models.CostQuery{
		RoleARN:   role.ARN,
		StartDate: start.Format(costDateLayout),
		EndDate:   end.Format(costDateLayout),
		Region:    s.cfg.Region,
	}
}

// BlendedCost returns daily blended cost per service for the role
func (s *IAMRoleService) BlendedCost(ctx context.Context, role *models.IAMRole) ([]models.ServiceCost, error) {
	costs, err := s.costs.BlendedCost(ctx, s.CostQuery(role))
	if err != nil {
		return nil, s.costError(role, err)
	}
	return costs, nil
}

// EC2Usage returns monthly EC2 cost and usage for the role
func (s *IAMRoleService) EC2Usage(ctx context.Context, role *models.IAMRole) ([]models.EC2Cost, error) {
	usage, err := s.costs.EC2Usage(ctx, s.CostQuery(role))
	if err != nil {
		return nil, s.costError(role, err)
	}
	return usage, nil
}

func (s *IAMRoleService) costError(role *models.IAMRole, err error) error {
	s.logger.Warn("cost explorer query failed",
		zap.String("account_id", role.AccountID),
		zap.Error(err))

	switch {
	case errors.Is(err, costexplorer.ErrAssumeRole):
		return Wrap(ErrAssumeRoleFailed, err)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrCostExplorerTimeout, err)
	default:
		return Wrap(ErrCostExplorerFailed, err)
	}
}
