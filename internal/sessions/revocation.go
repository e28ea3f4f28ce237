package sessions

import (
	"context"
	"sync"
	"time"
)

// RevocationSet records raw tokens that must no longer verify. Entries may
// carry a TTL after which they are forgotten; a token past its own expiry no
// longer needs to be remembered.
type RevocationSet interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Has(ctx context.Context, token string) (bool, error)
	Clear(ctx context.Context) error
}

// MemoryRevocationSet is a process-local RevocationSet. Revocations are lost
// on restart and not shared between replicas; use RedisRevocationSet for that.
type MemoryRevocationSet struct {
	mu      sync.RWMutex
	entries map[string]time.Time // zero time = no expiry
	now     func() time.Time
}

func NewMemoryRevocationSet() *MemoryRevocationSet {
	return &MemoryRevocationSet{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocationSet) Add(_ context.Context, token string, ttl time.Duration) error {
	var until time.Time
	if ttl > 0 {
		until = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[token] = until
	m.mu.Unlock()
	return nil
}

func (m *MemoryRevocationSet) Has(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	until, ok := m.entries[token]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !until.IsZero() && !m.now().Before(until) {
		m.mu.Lock()
		if cur, still := m.entries[token]; still && cur.Equal(until) {
			delete(m.entries, token)
		}
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (m *MemoryRevocationSet) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]time.Time)
	m.mu.Unlock()
	return nil
}

// Len reports the number of remembered entries, expired ones included.
func (m *MemoryRevocationSet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ RevocationSet = (*MemoryRevocationSet)(nil)
