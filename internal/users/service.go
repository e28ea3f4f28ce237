package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
	"github.com/targup/targup/backend/auth-service/pkg/logger"
	"github.com/targup/targup/backend/auth-service/pkg/metrics"
)

// PasswordPolicy controls local password validation and hashing.
type PasswordPolicy struct {
	MinLength int
	HashCost  int
}

// DefaultPasswordPolicy matches the defaults in config.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength: credentials.DefaultMinPasswordLength,
	HashCost:  credentials.DefaultHashCost,
}

// UserResponse is the public view of a User. It never carries the password.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToResponse converts a User to its public view.
func ToResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email.String(),
		Name:      u.Name,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// Service encapsulates local email/password account logic.
type Service struct {
	repo   Repository
	policy PasswordPolicy
}

func NewService(r Repository, policy PasswordPolicy) *Service {
	if policy.MinLength <= 0 {
		policy.MinLength = DefaultPasswordPolicy.MinLength
	}
	if policy.HashCost <= 0 {
		policy.HashCost = DefaultPasswordPolicy.HashCost
	}
	return &Service{repo: r, policy: policy}
}

// Repository exposes the underlying store for callers that share it.
func (s *Service) Repository() Repository { return s.repo }

// Register creates a local user. The email must be unused.
func (s *Service) Register(ctx context.Context, email, password, name string) (*UserResponse, error) {
	resp, err := s.register(ctx, email, password, name)
	outcome := "created"
	if err != nil {
		outcome = "rejected"
		if apperrors.HTTPStatus(err) >= 500 {
			outcome = "error"
		}
	}
	metrics.Registrations.WithLabelValues(outcome).Inc()
	return resp, err
}

func (s *Service) register(ctx context.Context, email, password, name string) (*UserResponse, error) {
	e, err := credentials.NewEmail(email)
	if err != nil {
		return nil, err
	}
	p, err := credentials.NewPassword(password, s.policy.MinLength)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.Exists(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("register %s: %w", e, apperrors.ErrUserAlreadyExists)
	}
	hashed, err := p.Hash(s.policy.HashCost)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	u, err := models.NewUser(e, hashed, name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, u); err != nil {
		// lost a race with a concurrent registration of the same email
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("register %s: %w", e, apperrors.ErrUserAlreadyExists)
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	logger.Infof("registered local user id=%s", u.ID)
	return ToResponse(u), nil
}

// Authenticate checks local credentials. Unknown email, inactive account and
// wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	e, err := credentials.NewEmail(email)
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	u, err := s.repo.FindByEmail(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if u == nil || !u.IsActive {
		return nil, apperrors.ErrInvalidCredentials
	}
	ok, err := u.Password.Compare(password)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrInvalidCredentials
	}
	return u, nil
}

// ChangePassword verifies current and stores next. OAuth-only users hold a
// placeholder that never matches, so they cannot use this path.
func (s *Service) ChangePassword(ctx context.Context, id credentials.UserID, current, next string) error {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if u == nil {
		return apperrors.ErrUserNotFound
	}
	ok, err := u.Password.Compare(current)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !ok {
		return apperrors.ErrInvalidCredentials
	}
	p, err := credentials.NewPassword(next, s.policy.MinLength)
	if err != nil {
		return err
	}
	hashed, err := p.Hash(s.policy.HashCost)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := u.ChangePassword(hashed); err != nil {
		return err
	}
	return s.repo.Update(ctx, u)
}

// Get returns the user with the given id or ErrUserNotFound.
func (s *Service) Get(ctx context.Context, id credentials.UserID) (*models.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return u, nil
}
