package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

const (
	assetA domain.AssetID = "cxaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	assetB domain.AssetID = "cxbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

var pairAB = domain.Pair{Base: assetA, Quote: assetB}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func raw(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

// buy is a pending swap whose maker offers rawB of B for one A.
func buy(t *testing.T, id, rawB string) domain.Swap {
	return domain.Swap{
		ID:    id,
		Maker: domain.Leg{Provider: "hx1", Contract: assetB, Amount: raw(t, rawB)},
		Taker: domain.Leg{Provider: "hx2", Contract: assetA, Amount: raw(t, "1000000000000000000")},
	}
}

// sell is a pending swap whose maker offers one A for rawB of B.
func sell(t *testing.T, id, rawB string) domain.Swap {
	return domain.Swap{
		ID:    id,
		Maker: domain.Leg{Provider: "hx3", Contract: assetA, Amount: raw(t, "1000000000000000000")},
		Taker: domain.Leg{Provider: "hx4", Contract: assetB, Amount: raw(t, rawB)},
	}
}

func filled(t *testing.T, n int) []domain.Swap {
	out := make([]domain.Swap, n)
	for i := range out {
		out[i] = buy(t, fmt.Sprintf("0x%x", i+1), "2000000")
		out[i].FilledAt = time.Unix(1_650_000_000-int64(i), 0).UTC()
	}
	return out
}

// fakeSource serves fixed lists keyed by pair name. A gate for a pair name
// blocks GetBuyers for that pair until it is closed.
type fakeSource struct {
	mu            sync.Mutex
	buyers        map[string][]domain.Swap
	sellers       map[string][]domain.Swap
	history       map[string][]domain.Swap
	decimals      map[domain.AssetID]int
	symbols       map[domain.AssetID]string
	gates         map[string]chan struct{}
	failBuyers    error
	decimalCalls  int
	historyLimits []int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		buyers:   map[string][]domain.Swap{},
		sellers:  map[string][]domain.Swap{},
		history:  map[string][]domain.Swap{},
		decimals: map[domain.AssetID]int{assetA: 18, assetB: 6},
		symbols:  map[domain.AssetID]string{assetA: "AAA", assetB: "BBB"},
		gates:    map[string]chan struct{}{},
	}
}

func (f *fakeSource) GetBuyers(ctx context.Context, pairName string) ([]domain.Swap, error) {
	f.mu.Lock()
	gate := f.gates[pairName]
	fail := f.failBuyers
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buyers[pairName], nil
}

func (f *fakeSource) GetSellers(_ context.Context, pairName string) ([]domain.Swap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sellers[pairName], nil
}

func (f *fakeSource) GetFilledSwaps(_ context.Context, pairName string, offset, limit int) ([]domain.Swap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyLimits = append(f.historyLimits, limit)
	h := f.history[pairName]
	if offset >= len(h) {
		return nil, nil
	}
	h = h[offset:]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (f *fakeSource) GetDecimals(_ context.Context, asset domain.AssetID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decimalCalls++
	d, ok := f.decimals[asset]
	if !ok {
		return 0, fmt.Errorf("decimals %s: %w", asset, domain.ErrNotFound)
	}
	return d, nil
}

func (f *fakeSource) GetSymbol(_ context.Context, asset domain.AssetID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.symbols[asset]
	if !ok {
		return "", fmt.Errorf("symbol %s: %w", asset, domain.ErrNotFound)
	}
	return s, nil
}

type fakeAssetCache struct {
	mu     sync.Mutex
	assets map[domain.AssetID]domain.Asset
}

func (c *fakeAssetCache) GetAsset(_ context.Context, id domain.AssetID) (domain.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assets[id]
	if !ok {
		return domain.Asset{}, domain.ErrNotFound
	}
	return a, nil
}

func (c *fakeAssetCache) SetAsset(_ context.Context, a domain.Asset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assets == nil {
		c.assets = map[domain.AssetID]domain.Asset{}
	}
	c.assets[a.ID] = a
	return nil
}

type fakeBus struct {
	mu       sync.Mutex
	channels []string
}

func (b *fakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

type fakeSwapStore struct {
	mu       sync.Mutex
	inserted map[string]int
}

func (s *fakeSwapStore) InsertBatch(_ context.Context, pairName string, swaps []domain.Swap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inserted == nil {
		s.inserted = map[string]int{}
	}
	s.inserted[pairName] += len(swaps)
	return nil
}

func (s *fakeSwapStore) ListByPair(context.Context, string, domain.ListOpts) ([]domain.FilledSwap, error) {
	return nil, nil
}

func (s *fakeSwapStore) ListUnarchivedBefore(context.Context, time.Time) ([]domain.FilledSwap, error) {
	return nil, nil
}

func (s *fakeSwapStore) MarkArchived(context.Context, []domain.SwapKey) error { return nil }

func (s *fakeSwapStore) DeleteArchived(context.Context, []domain.SwapKey) (int64, error) {
	return 0, nil
}

type fakeSnapshotCache struct {
	mu    sync.Mutex
	snaps map[string]*domain.MarketSnapshot
}

func (c *fakeSnapshotCache) Set(_ context.Context, snap *domain.MarketSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snaps == nil {
		c.snaps = map[string]*domain.MarketSnapshot{}
	}
	cp := *snap
	c.snaps[snap.Pair.Name()] = &cp
	return nil
}

func (c *fakeSnapshotCache) Get(_ context.Context, pairName string) (*domain.MarketSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[pairName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}
