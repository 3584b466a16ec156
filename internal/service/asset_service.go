package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/numeric"
)

// AssetService resolves per-asset decimals and symbols. Each value is fetched
// from the data source at most once per process; the shared cache, when set,
// lets other instances skip the source entirely.
type AssetService struct {
	source domain.MarketDataSource
	cache  domain.AssetCache
	logger *slog.Logger

	mu       sync.RWMutex
	decimals map[domain.AssetID]int
	symbols  map[domain.AssetID]string
}

// NewAssetService creates an AssetService. cache may be nil.
func NewAssetService(source domain.MarketDataSource, cache domain.AssetCache, logger *slog.Logger) *AssetService {
	return &AssetService{
		source:   source,
		cache:    cache,
		logger:   logger,
		decimals: make(map[domain.AssetID]int),
		symbols:  make(map[domain.AssetID]string),
	}
}

// Decimals returns the asset's decimal-place count. Values outside
// [0, numeric.MaxDecimals] are a data integrity error and are not cached.
func (s *AssetService) Decimals(ctx context.Context, id domain.AssetID) (int, error) {
	s.mu.RLock()
	d, ok := s.decimals[id]
	s.mu.RUnlock()
	if ok {
		return d, nil
	}

	if s.fromCache(ctx, id) {
		s.mu.RLock()
		d, ok = s.decimals[id]
		s.mu.RUnlock()
		if ok {
			return d, nil
		}
	}

	d, err := s.source.GetDecimals(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("asset_service: decimals of %s: %w", id, err)
	}
	if err := numeric.ValidateDecimals(d); err != nil {
		return 0, fmt.Errorf("asset_service: decimals of %s: %w", id, err)
	}

	s.mu.Lock()
	s.decimals[id] = d
	s.mu.Unlock()
	s.toCache(ctx, id)
	return d, nil
}

// Symbol returns the asset's display symbol.
func (s *AssetService) Symbol(ctx context.Context, id domain.AssetID) (string, error) {
	s.mu.RLock()
	sym, ok := s.symbols[id]
	s.mu.RUnlock()
	if ok {
		return sym, nil
	}

	if s.fromCache(ctx, id) {
		s.mu.RLock()
		sym, ok = s.symbols[id]
		s.mu.RUnlock()
		if ok {
			return sym, nil
		}
	}

	sym, err := s.source.GetSymbol(ctx, id)
	if err != nil {
		return "", fmt.Errorf("asset_service: symbol of %s: %w", id, err)
	}

	s.mu.Lock()
	s.symbols[id] = sym
	s.mu.Unlock()
	s.toCache(ctx, id)
	return sym, nil
}

// fromCache loads a complete asset from the shared cache into memory.
func (s *AssetService) fromCache(ctx context.Context, id domain.AssetID) bool {
	if s.cache == nil {
		return false
	}
	a, err := s.cache.GetAsset(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "asset_service: cache get failed",
				slog.String("asset", string(id)),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	if numeric.ValidateDecimals(a.Decimals) != nil {
		return false
	}

	s.mu.Lock()
	s.decimals[id] = a.Decimals
	s.symbols[id] = a.Symbol
	s.mu.Unlock()
	return true
}

// toCache writes the asset to the shared cache once both fields are known.
func (s *AssetService) toCache(ctx context.Context, id domain.AssetID) {
	if s.cache == nil {
		return
	}
	s.mu.RLock()
	d, okD := s.decimals[id]
	sym, okS := s.symbols[id]
	s.mu.RUnlock()
	if !okD || !okS {
		return
	}
	if err := s.cache.SetAsset(ctx, domain.Asset{ID: id, Decimals: d, Symbol: sym}); err != nil {
		s.logger.WarnContext(ctx, "asset_service: cache set failed",
			slog.String("asset", string(id)),
			slog.String("error", err.Error()),
		)
	}
}
