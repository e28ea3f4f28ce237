package users

import (
	"context"
	"sync"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

// MemoryRepository is an in-process Repository used for development and
// tests. It enforces the same uniqueness rules as the real stores.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[credentials.UserID]models.User
	byEmail map[credentials.Email]credentials.UserID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[credentials.UserID]models.User),
		byEmail: make(map[credentials.Email]credentials.UserID),
	}
}

func (m *MemoryRepository) FindByID(_ context.Context, id credentials.UserID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryRepository) FindByEmail(_ context.Context, email credentials.Email) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := m.byID[id]
	return &u, nil
}

func (m *MemoryRepository) FindByEmailString(ctx context.Context, email string) (*models.User, error) {
	return findByEmailString(ctx, m, email)
}

func (m *MemoryRepository) Save(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; ok {
		return apperrors.ErrDuplicate
	}
	if _, ok := m.byEmail[u.Email]; ok {
		return apperrors.ErrDuplicate
	}
	m.byID[u.ID] = *u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[u.ID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if owner, taken := m.byEmail[u.Email]; taken && owner != u.ID {
		return apperrors.ErrDuplicate
	}
	delete(m.byEmail, prev.Email)
	m.byID[u.ID] = *u
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id credentials.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	delete(m.byEmail, u.Email)
	delete(m.byID, id)
	return nil
}

func (m *MemoryRepository) Exists(_ context.Context, email credentials.Email) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

var _ Repository = (*MemoryRepository)(nil)
