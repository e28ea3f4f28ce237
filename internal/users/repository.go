package users

import (
	"context"
	"fmt"
	"time"

	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

// Repository defines persistence operations for users.
//
// Finders return (nil, nil) when no user matches. Save fails with
// apperrors.ErrDuplicate when the id or email is already stored; Update and
// Delete fail with apperrors.ErrUserNotFound for an unknown id.
type Repository interface {
	FindByID(ctx context.Context, id credentials.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email credentials.Email) (*models.User, error)
	FindByEmailString(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id credentials.UserID) error
	Exists(ctx context.Context, email credentials.Email) (bool, error)
}

// restoreUser rebuilds a User from stored primitives, revalidating the
// value objects so a corrupt row surfaces as an error instead of a half-built
// entity.
func restoreUser(id, email, password, name string, active bool, created, updated time.Time) (*models.User, error) {
	uid, err := credentials.ParseUserID(id)
	if err != nil {
		return nil, fmt.Errorf("restore user: %w", err)
	}
	e, err := credentials.NewEmail(email)
	if err != nil {
		return nil, fmt.Errorf("restore user %s: %w", id, err)
	}
	return &models.User{
		ID:       uid,
		Email:    e,
		Password: credentials.HashedPassword(password),
		Name:     name,
		IsActive: active,
		Entity:   models.Entity{CreatedAt: created, UpdatedAt: updated},
	}, nil
}

// findByEmailString parses raw before delegating so every implementation
// treats a malformed address the same way.
func findByEmailString(ctx context.Context, r Repository, raw string) (*models.User, error) {
	e, err := credentials.NewEmail(raw)
	if err != nil {
		return nil, err
	}
	return r.FindByEmail(ctx, e)
}
