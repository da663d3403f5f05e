package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"incidentwatch/logging"
	"incidentwatch/types"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix           = "incidentwatch:"
	DefaultArticleRetention = 72 * time.Hour
	DefaultGroupsTTL        = 24 * time.Hour
)

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// ArticleRetention bounds how long article documents are kept. Incidents
	// are kept until removed by an operator.
	ArticleRetention time.Duration
}

// RedisStore keeps JSON documents under prefix+kind+":"+id and a sorted set
// per kind scored by event time in milliseconds.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
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
	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.ArticleRetention), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if retention <= 0 {
		retention = DefaultArticleRetention
	}
	return &RedisStore{client: client, prefix: prefix, retention: retention, now: time.Now}
}

// Client exposes the underlying client so other components can share it.
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) docKey(kind, id string) string { return s.prefix + kind + ":" + id }
func (s *RedisStore) indexKey(kind string) string   { return s.prefix + kind + "s:by_time" }

type pendingWrite struct {
	id  string
	set *redis.StatusCmd
	add *redis.IntCmd
}

// SaveArticles stores article documents with the retention TTL and prunes
// index entries older than the retention.
func (s *RedisStore) SaveArticles(ctx context.Context, articles []*types.Article) types.BatchWriteResult {
	docs := make([]document, 0, len(articles))
	for _, a := range articles {
		if a == nil {
			continue
		}
		docs = append(docs, document{id: a.ID, at: articleTime(a), value: a})
	}
	cutoff := s.now().Add(-s.retention)
	return s.saveBatch(ctx, "article", docs, s.retention, &cutoff)
}

// SaveIncidents stores incident documents without expiry.
func (s *RedisStore) SaveIncidents(ctx context.Context, incidents []*types.Incident) types.BatchWriteResult {
	docs := make([]document, 0, len(incidents))
	for _, inc := range incidents {
		if inc == nil {
			continue
		}
		at := inc.Timestamp
		if at.IsZero() {
			at = inc.ExtractedAt
		}
		docs = append(docs, document{id: inc.ID, at: at, value: inc})
	}
	return s.saveBatch(ctx, "incident", docs, 0, nil)
}

type document struct {
	id    string
	at    time.Time
	value any
}

func (s *RedisStore) saveBatch(ctx context.Context, kind string, docs []document, ttl time.Duration, pruneBefore *time.Time) types.BatchWriteResult {
	var result types.BatchWriteResult
	if len(docs) == 0 {
		return result
	}

	pipe := s.client.Pipeline()
	writes := make([]pendingWrite, 0, len(docs))
	for _, d := range docs {
		if d.id == "" {
			result.Failed = append(result.Failed, types.FailedWrite{ID: d.id, Error: "missing id"})
			continue
		}
		data, err := json.Marshal(d.value)
		if err != nil {
			result.Failed = append(result.Failed, types.FailedWrite{ID: d.id, Error: fmt.Sprintf("failed to encode %s: %v", kind, err)})
			continue
		}
		at := d.at
		if at.IsZero() {
			at = s.now()
		}
		writes = append(writes, pendingWrite{
			id:  d.id,
			set: pipe.Set(ctx, s.docKey(kind, d.id), data, ttl),
			add: pipe.ZAdd(ctx, s.indexKey(kind), redis.Z{Score: float64(at.UnixMilli()), Member: d.id}),
		})
	}
	var prune *redis.IntCmd
	if pruneBefore != nil && len(writes) > 0 {
		prune = pipe.ZRemRangeByScore(ctx, s.indexKey(kind), "-inf", "("+strconv.FormatInt(pruneBefore.UnixMilli(), 10))
	}

	if len(writes) > 0 {
		// per-command errors are inspected below
		_, _ = pipe.Exec(ctx)
	}
	for _, w := range writes {
		err := w.set.Err()
		if err == nil {
			err = w.add.Err()
		}
		if err != nil {
			result.Failed = append(result.Failed, types.FailedWrite{ID: w.id, Error: err.Error()})
			continue
		}
		result.Saved = append(result.Saved, w.id)
	}
	if prune != nil && prune.Err() != nil {
		logging.Warn("failed to prune article index", "err", prune.Err())
	}

	if len(result.Failed) > 0 {
		logging.Warn("batch write partially failed", "kind", kind, "saved", len(result.Saved), "failed", len(result.Failed))
	}
	return result
}

// RecentArticles returns articles with event time at or after since, oldest
// first.
func (s *RedisStore) RecentArticles(ctx context.Context, since time.Time) ([]*types.Article, error) {
	var out []*types.Article
	err := s.recent(ctx, "article", since, func(data []byte) error {
		var a types.Article
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		out = append(out, &a)
		return nil
	})
	return out, err
}

// RecentIncidents returns incidents with event time at or after since, oldest
// first.
func (s *RedisStore) RecentIncidents(ctx context.Context, since time.Time) ([]*types.Incident, error) {
	var out []*types.Incident
	err := s.recent(ctx, "incident", since, func(data []byte) error {
		var inc types.Incident
		if err := json.Unmarshal(data, &inc); err != nil {
			return err
		}
		out = append(out, &inc)
		return nil
	})
	return out, err
}

func (s *RedisStore) recent(ctx context.Context, kind string, since time.Time, decode func([]byte) error) error {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(kind), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to query %s index: %w", kind, err)
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(kind, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to load %s documents: %w", kind, err)
	}

	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		if err := decode([]byte(str)); err != nil {
			logging.Warn("skipping undecodable document", "kind", kind, "id", ids[i], "err", err)
		}
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(kind), stale...).Err(); err != nil {
			logging.Warn("failed to drop expired index entries", "kind", kind, "err", err)
		}
	}
	return nil
}

// GetIncident loads one incident.
func (s *RedisStore) GetIncident(ctx context.Context, id string) (*types.Incident, error) {
	data, err := s.client.Get(ctx, s.docKey("incident", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var inc types.Incident
	if err := json.Unmarshal(data, &inc); err != nil {
		return nil, fmt.Errorf("failed to decode incident %s: %w", id, err)
	}
	return &inc, nil
}

// SaveGroups replaces the latest coordination groups. They expire after a
// day since each analysis run recomputes them.
func (s *RedisStore) SaveGroups(ctx context.Context, groups []types.CoordinationGroup) error {
	if groups == nil {
		groups = []types.CoordinationGroup{}
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("failed to encode coordination groups: %w", err)
	}
	return s.client.Set(ctx, s.prefix+"coordination:latest", data, DefaultGroupsTTL).Err()
}

// LatestGroups returns the groups from the most recent analysis run.
func (s *RedisStore) LatestGroups(ctx context.Context) ([]types.CoordinationGroup, error) {
	data, err := s.client.Get(ctx, s.prefix+"coordination:latest").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var groups []types.CoordinationGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode coordination groups: %w", err)
	}
	return groups, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func articleTime(a *types.Article) time.Time {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt
	}
	return a.FetchedAt
}
