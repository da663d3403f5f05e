package deduplication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenConfig configures the Redis-backed fingerprint set
type SeenConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Prefix   string // key prefix, one key per fingerprint
	TTL      time.Duration
}

// RedisSeenSet remembers content fingerprints across runs. Each fingerprint is
// its own key holding the id of the first article seen with it; the TTL slides
// forward on every hit so active stories stay remembered.
type RedisSeenSet struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSeenSet creates the set and verifies connectivity
func NewRedisSeenSet(ctx context.Context, cfg SeenConfig) (*RedisSeenSet, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisSeenSetWithClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisSeenSetWithClient wraps an existing client.
func NewRedisSeenSetWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisSeenSet {
	if prefix == "" {
		prefix = "articles:seen:"
	}
	if ttl <= 0 {
		ttl = Horizon
	}
	return &RedisSeenSet{client: client, prefix: prefix, ttl: ttl}
}

// Lookup returns the article id recorded for fingerprint, if any.
func (r *RedisSeenSet) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	key := r.prefix + fingerprint
	id, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return id, true, err
	}
	return id, true, nil
}

// Add records fingerprint for id unless it is already present, and resets
// the key's TTL either way.
func (r *RedisSeenSet) Add(ctx context.Context, fingerprint, id string) error {
	key := r.prefix + fingerprint
	created, err := r.client.SetNX(ctx, key, id, r.ttl).Result()
	if err != nil {
		return err
	}
	if !created {
		return r.client.Expire(ctx, key, r.ttl).Err()
	}
	return nil
}

// Close closes the underlying Redis client
func (r *RedisSeenSet) Close() error {
	return r.client.Close()
}
