package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
)

// ErrConflict is returned by Register for a duplicate name or pseudo-email domain.
var ErrConflict = errors.New("provider conflict")

// Registry maps provider names to adapters. Two providers may not share a
// pseudo-email domain, otherwise their synthetic addresses could collide and
// link unrelated identities to one user.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Provider
	domains map[string]string
}

func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{byName: map[string]Provider{}, domains: map[string]string{}}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("provider %q already registered: %w", name, ErrConflict)
	}
	if d := p.Traits().EmailDomain; d != "" {
		if owner, ok := r.domains[d]; ok {
			return fmt.Errorf("email domain %q already used by %q: %w", d, owner, ErrConflict)
		}
		r.domains[d] = name
	}
	r.byName[name] = p
	return nil
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, apperrors.ErrUnknownProvider)
	}
	return p, nil
}

// Names returns registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
