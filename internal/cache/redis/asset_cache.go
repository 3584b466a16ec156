package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

// AssetCache implements domain.AssetCache with one hash per asset.
//
// Key schema:
//
//	asset:{id} - hash with fields "decimals" and "symbol"
type AssetCache struct {
	c   *Client
	ttl time.Duration
}

// NewAssetCache creates an AssetCache. A zero ttl keeps entries forever;
// token decimals and symbols do not change once deployed.
func NewAssetCache(c *Client, ttl time.Duration) *AssetCache {
	return &AssetCache{c: c, ttl: ttl}
}

func (ac *AssetCache) key(id domain.AssetID) string {
	return ac.c.Key("asset:" + string(id))
}

// SetAsset stores the asset's decimals and symbol.
func (ac *AssetCache) SetAsset(ctx context.Context, asset domain.Asset) error {
	key := ac.key(asset.ID)
	pipe := ac.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, "decimals", asset.Decimals, "symbol", asset.Symbol)
	if ac.ttl > 0 {
		pipe.Expire(ctx, key, ac.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set asset %s: %w", asset.ID, err)
	}
	return nil
}

// GetAsset returns domain.ErrNotFound when the asset is not cached or the
// entry is incomplete.
func (ac *AssetCache) GetAsset(ctx context.Context, id domain.AssetID) (domain.Asset, error) {
	vals, err := ac.c.rdb.HMGet(ctx, ac.key(id), "decimals", "symbol").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Asset{}, domain.ErrNotFound
		}
		return domain.Asset{}, fmt.Errorf("redis: get asset %s: %w", id, err)
	}

	decStr, ok1 := vals[0].(string)
	sym, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return domain.Asset{}, domain.ErrNotFound
	}
	dec, err := strconv.Atoi(decStr)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("redis: asset %s decimals %q: %w", id, decStr, domain.ErrDataIntegrity)
	}
	return domain.Asset{ID: id, Decimals: dec, Symbol: sym}, nil
}

// Compile-time interface check.
var _ domain.AssetCache = (*AssetCache)(nil)
