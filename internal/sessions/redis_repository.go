package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

// RedisRepository implements Repository using Redis as the backing store.
// Sessions are stored as JSON under "<prefix><sessionID>" with TTL = expiresAt - now,
// and indexed per user in the set "<prefix>user:<userID>".
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(id string) string     { return r.prefix + id }
func (r *RedisRepository) userKey(id string) string { return r.prefix + "user:" + id }

func ttlUntil(t time.Time) time.Duration {
	exp := time.Until(t)
	if exp <= 0 {
		// ensure a minimal TTL so Redis won't store expired sessions
		exp = time.Second
	}
	return exp
}

func (r *RedisRepository) Create(ctx context.Context, s *models.Session) error {
	d := toDocument(s)
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	exp := ttlUntil(s.ExpiresAt)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(d.ID), b, exp)
	pipe.SAdd(ctx, r.userKey(d.UserID), d.ID)
	// tokens share one lifetime, so the newest session outlives the others
	pipe.Expire(ctx, r.userKey(d.UserID), exp)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *RedisRepository) load(ctx context.Context, id string) (*sessionDocument, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var d sessionDocument
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *RedisRepository) Get(ctx context.Context, id credentials.SessionID) (*models.Session, error) {
	d, err := r.load(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	// If session expired from perspective of stored value, treat as missing
	if time.Now().UTC().After(d.ExpiresAt) {
		_ = r.client.Del(ctx, r.key(d.ID)).Err()
		return nil, nil
	}
	return d.toModel()
}

// Deactivate marks the session inactive, keeping its remaining TTL.
func (r *RedisRepository) Deactivate(ctx context.Context, id credentials.SessionID) error {
	d, err := r.load(ctx, id.String())
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if d == nil {
		return ErrNotFound
	}
	d.IsActive = false
	d.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(d.ID), b, ttlUntil(d.ExpiresAt)).Err(); err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

func (r *RedisRepository) ListByUser(ctx context.Context, userID credentials.UserID) ([]*models.Session, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := []*models.Session{}
	var stale []interface{}
	for _, id := range ids {
		d, err := r.load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		if d == nil {
			stale = append(stale, id)
			continue
		}
		s, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, r.userKey(userID.String()), stale...).Err()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ Repository = (*RedisRepository)(nil)
