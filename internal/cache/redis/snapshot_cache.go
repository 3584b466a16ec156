package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

const defaultSnapshotTTL = 10 * time.Minute

// SnapshotCache implements domain.SnapshotCache. Snapshots are stored as
// JSON under snapshot:{pairName}, so other instances can serve the last
// published view of a pair.
type SnapshotCache struct {
	c   *Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. A non-positive ttl uses 10m.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{c: c, ttl: ttl}
}

func (sc *SnapshotCache) key(pairName string) string {
	return sc.c.Key("snapshot:" + pairName)
}

// Set stores snap, replacing any older snapshot for the pair.
func (sc *SnapshotCache) Set(ctx context.Context, snap *domain.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.Pair.Name(), err)
	}
	if err := sc.c.rdb.Set(ctx, sc.key(snap.Pair.Name()), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Pair.Name(), err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss.
func (sc *SnapshotCache) Get(ctx context.Context, pairName string) (*domain.MarketSnapshot, error) {
	data, err := sc.c.rdb.Get(ctx, sc.key(pairName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get snapshot %s: %w", pairName, err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("redis: unmarshal snapshot %s: %w", pairName, err)
	}
	return &snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
