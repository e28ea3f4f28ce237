package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

// MemoryRepository keeps sessions in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[credentials.SessionID]models.Session
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[credentials.SessionID]models.Session), now: time.Now}
}

func (m *MemoryRepository) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.ID] = *s
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id credentials.SessionID) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok || s.IsExpired(m.now()) {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepository) Deactivate(_ context.Context, id credentials.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	s.Deactivate()
	m.store[id] = s
	return nil
}

func (m *MemoryRepository) ListByUser(_ context.Context, userID credentials.UserID) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := []*models.Session{}
	for id, s := range m.store {
		if s.IsExpired(now) {
			delete(m.store, id)
			continue
		}
		if s.UserID == userID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
