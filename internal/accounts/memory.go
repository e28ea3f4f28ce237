package accounts

import (
	"context"
	"sort"
	"sync"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

type providerKey struct{ provider, id string }

// MemoryRepository is an in-process Repository keyed by (provider, providerId).
type MemoryRepository struct {
	mu    sync.RWMutex
	links map[providerKey]models.OAuthAccount
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{links: make(map[providerKey]models.OAuthAccount)}
}

func (m *MemoryRepository) FindByProvider(_ context.Context, provider, providerID string) (*models.OAuthAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.links[providerKey{provider, providerID}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryRepository) FindByUserID(_ context.Context, userID credentials.UserID) ([]*models.OAuthAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.OAuthAccount{}
	for _, a := range m.links {
		if a.UserID == userID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, a *models.OAuthAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := providerKey{a.Provider, a.ProviderID}
	if _, ok := m.links[k]; ok {
		return apperrors.ErrDuplicate
	}
	m.links[k] = *a
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
