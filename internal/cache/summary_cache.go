package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryCache keeps the latest classified account summary per
// (owner, proposal) in Redis, so frontends and other desk replicas can read
// it without hitting the snapshot store. Entries are short-lived; the store
// is always the source of truth.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

func summaryKey(owner, proposalID string) string {
	return fmt.Sprintf("desk:summary:%s:%s", owner, proposalID)
}

// Put stores a summary as JSON.
func (c *SummaryCache) Put(ctx context.Context, owner, proposalID string, summary interface{}) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := c.rdb.Set(ctx, summaryKey(owner, proposalID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Get loads a summary into dst. Returns (false, nil) on a miss.
func (c *SummaryCache) Get(ctx context.Context, owner, proposalID string, dst interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, summaryKey(owner, proposalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshal summary: %w", err)
	}
	return true, nil
}

// Invalidate drops the cached summary, forcing the next read to recompute.
func (c *SummaryCache) Invalidate(ctx context.Context, owner, proposalID string) error {
	return c.rdb.Del(ctx, summaryKey(owner, proposalID)).Err()
}
