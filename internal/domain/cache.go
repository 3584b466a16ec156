package domain

import (
	"context"
	"time"
)

// AssetCache shares asset metadata (decimals, symbol) across instances.
type AssetCache interface {
	GetAsset(ctx context.Context, id AssetID) (Asset, error)
	SetAsset(ctx context.Context, asset Asset) error
}

// SnapshotCache stores the latest published snapshot per pair.
type SnapshotCache interface {
	Set(ctx context.Context, snap *MarketSnapshot) error
	Get(ctx context.Context, pairName string) (*MarketSnapshot, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub messaging.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
