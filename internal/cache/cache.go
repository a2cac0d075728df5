package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
)

// RecommendationTTL bounds memoized trigger results. The chat sample lives
// for the conversation window instead.
const RecommendationTTL = time.Hour

// Store is a byte-valued key/value store with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ChatSampleKey holds the catalog sample used across turns of one conversation.
func ChatSampleKey(memberID string) string {
	return fmt.Sprintf("chat_movies:%s", memberID)
}

// RecommendationKey holds a memoized trigger result.
func RecommendationKey(memberID, trigger string) string {
	return fmt.Sprintf("rec:%s:%s", memberID, trigger)
}

// Cache layers JSON encoding and failure tolerance over a Store. A failing
// backend degrades to a miss; it never fails the request.
type Cache struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{store: store, log: log}, nil
}

// Memoize returns the cached value for key, or runs fn and caches its result
// for ttl. Errors from fn are returned and never cached.
func Memoize[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	raw, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.log.Warn("cache get failed", "key", key, "err", err)
	case ok:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.log.Warn("cache entry undecodable, recomputing", "key", key)
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "err", err)
		return v, nil
	}
	if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
		c.log.Warn("cache set failed", "key", key, "err", err)
	}
	return v, nil
}

// InvalidateMember drops the member's conversation sample and the listed
// trigger results.
func (c *Cache) InvalidateMember(ctx context.Context, memberID string, triggers ...string) {
	keys := []string{ChatSampleKey(memberID)}
	for _, t := range triggers {
		keys = append(keys, RecommendationKey(memberID, t))
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.log.Warn("cache invalidate failed", "member_id", memberID, "err", err)
	}
}
