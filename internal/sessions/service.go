package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
	"github.com/targup/targup/backend/auth-service/internal/tokens"
	"github.com/targup/targup/backend/auth-service/pkg/logger"
	"github.com/targup/targup/backend/auth-service/pkg/metrics"
)

// Meta is request metadata recorded with a session.
type Meta struct {
	UserAgent string
	IPAddress string
}

// Service ties the revocation set to the optional session registry. A nil
// repository disables the registry; token verification never depends on it.
type Service struct {
	repo    Repository
	revoked RevocationSet
	now     func() time.Time
}

func NewService(r Repository, revoked RevocationSet) *Service {
	if revoked == nil {
		revoked = NewMemoryRevocationSet()
	}
	return &Service{repo: r, revoked: revoked, now: time.Now}
}

// Revocations exposes the set so the token issuer can consult it.
func (s *Service) Revocations() RevocationSet { return s.revoked }

// HasRegistry reports whether sessions are being recorded.
func (s *Service) HasRegistry() bool { return s.repo != nil }

// Record stores a session for a freshly issued token.
func (s *Service) Record(ctx context.Context, claims *tokens.Claims, token string, meta Meta) error {
	if s.repo == nil {
		return nil
	}
	sid, err := claims.SessionID()
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	uid, err := claims.UserID()
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	tok, err := credentials.NewToken(token)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	sess := models.NewSession(sid, uid, tok, claims.Provider, claims.ExpiresAt.Time)
	sess.UserAgent = meta.UserAgent
	sess.IPAddress = meta.IPAddress
	return s.repo.Create(ctx, sess)
}

// Revoke adds token to the revocation set for the rest of its lifetime and
// deactivates its session record. Revoking an already expired token is a no-op.
func (s *Service) Revoke(ctx context.Context, token string, claims *tokens.Claims) error {
	ttl := claims.Remaining(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Add(ctx, token, ttl); err != nil {
		return err
	}
	metrics.Revocations.Inc()
	if s.repo == nil {
		return nil
	}
	sid, err := claims.SessionID()
	if err != nil {
		return nil
	}
	if err := s.repo.Deactivate(ctx, sid); err != nil && !errors.Is(err, ErrNotFound) {
		// the token is already revoked; a stale registry entry is harmless
		logger.Warnf("deactivate session %s: %v", sid, err)
	}
	return nil
}

// ListActive returns the user's sessions that are active and unexpired.
func (s *Service) ListActive(ctx context.Context, userID credentials.UserID) ([]*models.Session, error) {
	if s.repo == nil {
		return []*models.Session{}, nil
	}
	all, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*models.Session, 0, len(all))
	for _, sess := range all {
		if sess.IsActive && !sess.IsExpired(now) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// RevokeAll revokes every active session of the user and returns how many
// were revoked. Requires the registry.
func (s *Service) RevokeAll(ctx context.Context, userID credentials.UserID) (int, error) {
	active, err := s.ListActive(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, sess := range active {
		if err := s.revoked.Add(ctx, sess.Token.String(), sess.ExpiresAt.Sub(now)); err != nil {
			return n, err
		}
		metrics.Revocations.Inc()
		if err := s.repo.Deactivate(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
			logger.Warnf("deactivate session %s: %v", sess.ID, err)
		}
		n++
	}
	return n, nil
}
