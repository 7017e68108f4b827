package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/cloud-tracker/internal/password"
	"github.com/example/cloud-tracker/models"
	"github.com/example/cloud-tracker/repositories"
	"github.com/example/cloud-tracker/token"
)

// PasswordHasher hashes and checks user passwords
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// TokenIssuer signs token pairs and validates refresh tokens
type TokenIssuer interface {
	IssueAccessToken(p *models.Principal) (string, error)
	IssueRefreshToken(p *models.Principal) (string, error)
	ParseRefreshToken(tokenString string) (string, error)
}

// PrincipalInvalidator drops cached principals after account changes
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, identifier string) error
}

// UserService handles accounts, credentials and principal lookup
type UserService struct {
	users       repositories.UserRepository
	txMgr       repositories.TransactionManager
	hasher      PasswordHasher
	tokens      TokenIssuer
	invalidator PrincipalInvalidator
	logger      *zap.Logger

	// hash compared against on unknown emails so both sign-in failures cost a bcrypt check
	dummyOnce sync.Once
	dummyHash string
}

// NewUserService creates a new UserService instance
func NewUserService(
	users repositories.UserRepository,
	txMgr repositories.TransactionManager,
	hasher PasswordHasher,
	tokens TokenIssuer,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:  users,
		txMgr:  txMgr,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// SetPrincipalInvalidator registers the cache to clear when a principal changes
func (s *UserService) SetPrincipalInvalidator(inv PrincipalInvalidator) {
	s.invalidator = inv
}

// Register creates an account with the default authority
func (s *UserService) Register(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(email, hash, strings.TrimSpace(req.Name))

	err = s.txMgr.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		exists, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return Wrap(ErrDatabaseError, err)
		}
		if exists {
			return ErrUserAlreadyExists
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrUserAlreadyExists
			}
			return Wrap(ErrDatabaseError, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login checks credentials and issues a token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, req models.SigninRequest) (*models.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.compareDummy(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, Wrap(ErrDatabaseError, err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			s.logger.Info("sign-in rejected", zap.String("user_id", user.ID.String()))
			return nil, ErrInvalidCredentials
		}
		return nil, WrapInternal("failed to verify password", err)
	}

	return s.issuePair(user.Principal())
}

// compareDummy runs a password check that always fails, at the configured hasher cost
func (s *UserService) compareDummy(plain string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("cloud-tracker-unknown-account")
		if err != nil {
			s.logger.Warn("failed to prepare dummy password hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_ = s.hasher.Compare(s.dummyHash, plain)
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	subject, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, Wrap(ErrInvalidToken, err)
	}

	user, err := s.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, Wrap(ErrDatabaseError, err)
	}

	return s.issuePair(user.Principal())
}

// LoadByIdentifier resolves a token subject to a principal
func (s *UserService) LoadByIdentifier(ctx context.Context, identifier string) (*models.Principal, error) {
	user, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, Wrap(ErrPrincipalNotFound, err)
		}
		return nil, Wrap(ErrDatabaseError, err)
	}
	return user.Principal(), nil
}

// GetCurrentUser returns the account behind an authenticated identifier
func (s *UserService) GetCurrentUser(ctx context.Context, identifier string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Wrap(ErrDatabaseError, err)
	}
	return user, nil
}

// EditProfile updates email, name and image of the current user.
// Moving to an email owned by another account is a conflict; keeping the same email is allowed.
func (s *UserService) EditProfile(ctx context.Context, identifier string, req models.UserProfileRequest) (*models.ProfileUpdate, error) {
	newEmail := normalizeEmail(req.Email)
	if newEmail == "" {
		return nil, ErrInvalidEmail
	}

	var user *models.User
	err := s.txMgr.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		var err error
		user, err = s.GetCurrentUser(ctx, identifier)
		if err != nil {
			return err
		}

		if newEmail != user.Email {
			exists, err := s.users.ExistsByEmail(ctx, newEmail)
			if err != nil {
				return Wrap(ErrDatabaseError, err)
			}
			if exists {
				return ErrEmailAlreadyExists
			}
		}

		user.Email = newEmail
		user.Name = strings.TrimSpace(req.Name)
		user.Image = req.Image
		user.UpdatedAt = time.Now()

		if err := s.users.Update(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return ErrEmailAlreadyExists
			}
			return Wrap(ErrDatabaseError, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, identifier)

	update := &models.ProfileUpdate{User: user}
	if user.Email != identifier {
		tokens, err := s.issuePair(user.Principal())
		if err != nil {
			return nil, err
		}
		update.Tokens = tokens
	}
	return update, nil
}

// EditPassword replaces the password after checking the current one
func (s *UserService) EditPassword(ctx context.Context, identifier string, req models.PasswordUpdateRequest) (*models.User, error) {
	if req.NewPassword != req.ConfirmNewPassword {
		return nil, ErrPasswordMismatch
	}

	user, err := s.GetCurrentUser(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, ErrIncorrectPassword
		}
		return nil, WrapInternal("failed to verify password", err)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, WrapInternal("failed to hash password", err)
	}

	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, Wrap(ErrDatabaseError, err)
	}

	s.invalidate(ctx, identifier)
	s.logger.Info("password changed", zap.String("user_id", user.ID.String()))
	return user, nil
}

// SaveProfileImage stores the image reference of the user with the given email
func (s *UserService) SaveProfileImage(ctx context.Context, email, image string) error {
	if err := s.users.UpdateImage(ctx, email, image); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return Wrap(ErrDatabaseError, err)
	}
	return nil
}

func (s *UserService) issuePair(p *models.Principal) (*models.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(p)
	if err != nil {
		return nil, WrapInternal("failed to issue access token", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(p)
	if err != nil {
		return nil, WrapInternal("failed to issue refresh token", err)
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}, nil
}

func (s *UserService) invalidate(ctx context.Context, identifier string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, identifier); err != nil {
		s.logger.Warn("failed to invalidate cached principal", zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
