package models

import (
	"fmt"
	"time"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
)

// Entity carries the timestamps shared by every persistent object.
type Entity struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

func (e *Entity) touch() { e.UpdatedAt = time.Now().UTC() }

// User represents an application user, created either by local registration
// or by the first OAuth sign-in.
type User struct {
	ID       credentials.UserID   `json:"id"`
	Email    credentials.Email    `json:"email"`
	Password credentials.Password `json:"-"`
	Name     string               `json:"name,omitempty"`
	IsActive bool                 `json:"isActive"`
	Entity
}

// NewUser creates an active user with a fresh id. The password must already
// be hashed so that no plaintext ever reaches a repository.
func NewUser(email credentials.Email, password credentials.Password, name string) (*User, error) {
	if !password.IsHashed() {
		return nil, fmt.Errorf("new user: %w", apperrors.ErrInvalidState)
	}
	return &User{
		ID:       credentials.NewUserID(),
		Email:    email,
		Password: password,
		Name:     name,
		IsActive: true,
		Entity:   newEntity(),
	}, nil
}

func (u *User) Activate() {
	u.IsActive = true
	u.touch()
}

func (u *User) Deactivate() {
	u.IsActive = false
	u.touch()
}

func (u *User) ChangeEmail(e credentials.Email) {
	u.Email = e
	u.touch()
}

// ChangePassword replaces the stored digest; p must be hashed.
func (u *User) ChangePassword(p credentials.Password) error {
	if !p.IsHashed() {
		return fmt.Errorf("change password: %w", apperrors.ErrInvalidState)
	}
	u.Password = p
	u.touch()
	return nil
}
