package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRevokedPrefix = "revoked:"

// RedisRevocationSet stores revoked tokens as "<prefix><token>" keys whose TTL
// is the token's remaining lifetime, so the set never outgrows the live
// token population and is shared across replicas.
type RedisRevocationSet struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocationSet creates a Redis-backed set. Prefix may be empty.
func NewRedisRevocationSet(client redis.UniversalClient, prefix string) *RedisRevocationSet {
	if prefix == "" {
		prefix = defaultRevokedPrefix
	}
	return &RedisRevocationSet{client: client, prefix: prefix}
}

func (r *RedisRevocationSet) key(token string) string { return r.prefix + token }

// Add stores token with ttl. A non-positive ttl keeps the key without expiry.
func (r *RedisRevocationSet) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevocationSet) Has(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// Clear removes every key under the prefix using SCAN so it never blocks
// Redis on a large keyspace.
func (r *RedisRevocationSet) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("clear revoked tokens: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan revoked tokens: %w", err)
	}
	if len(batch) > 0 {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("clear revoked tokens: %w", err)
		}
	}
	return nil
}

var _ RevocationSet = (*RedisRevocationSet)(nil)
