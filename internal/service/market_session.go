package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/market"
	"github.com/alanyoungcy/swapmarket/internal/metrics"
	"github.com/alanyoungcy/swapmarket/internal/numeric"
)

const (
	DefaultHistoryFetch = 600
	DefaultHistoryKeep  = market.MaxHistory
)

// SessionConfig tunes a MarketSession.
type SessionConfig struct {
	HistoryFetch int
	HistoryKeep  int
}

// MarketSession owns the current pair and the currently published snapshot.
//
// Every refresh takes a new generation number. A refresh only publishes if
// its generation is still the latest when its fetches complete; otherwise it
// returns ErrSuperseded and its results are dropped. A failed refresh leaves
// the previous snapshot in place.
type MarketSession struct {
	source    domain.MarketDataSource
	assets    *AssetService
	swaps     domain.FilledSwapStore
	snapshots domain.SnapshotCache
	bus       domain.SignalBus
	cfg       SessionConfig
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	pair       domain.Pair
	generation atomic.Uint64

	publishMu sync.Mutex
	current   atomic.Pointer[domain.MarketSnapshot]
}

// NewMarketSession creates a session for pair. swaps, snapshots and bus are
// optional and may be nil.
func NewMarketSession(
	source domain.MarketDataSource,
	assets *AssetService,
	swaps domain.FilledSwapStore,
	snapshots domain.SnapshotCache,
	bus domain.SignalBus,
	pair domain.Pair,
	cfg SessionConfig,
	logger *slog.Logger,
) (*MarketSession, error) {
	if err := pair.Validate(); err != nil {
		return nil, fmt.Errorf("market_session: %w", err)
	}
	if cfg.HistoryFetch <= 0 {
		cfg.HistoryFetch = DefaultHistoryFetch
	}
	if cfg.HistoryKeep <= 0 || cfg.HistoryKeep > market.MaxHistory {
		cfg.HistoryKeep = DefaultHistoryKeep
	}
	return &MarketSession{
		source:    source,
		assets:    assets,
		swaps:     swaps,
		snapshots: snapshots,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		pair:      pair,
	}, nil
}

// Pair returns the pair the session currently tracks.
func (s *MarketSession) Pair() domain.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair
}

// Current returns the published snapshot, or nil before the first
// successful refresh. The returned value must not be modified.
func (s *MarketSession) Current() *domain.MarketSnapshot {
	return s.current.Load()
}

// Refresh re-fetches the current pair.
func (s *MarketSession) Refresh(ctx context.Context) (*domain.MarketSnapshot, error) {
	s.mu.Lock()
	gen := s.generation.Add(1)
	pair := s.pair
	s.mu.Unlock()
	return s.run(ctx, gen, pair)
}

// SetPair switches to pair and refreshes. Any refresh still in flight for the
// previous pair will not publish.
func (s *MarketSession) SetPair(ctx context.Context, pair domain.Pair) (*domain.MarketSnapshot, error) {
	if err := pair.Validate(); err != nil {
		return nil, fmt.Errorf("market_session: set pair: %w", err)
	}
	s.mu.Lock()
	s.pair = pair
	gen := s.generation.Add(1)
	s.mu.Unlock()
	return s.run(ctx, gen, pair)
}

// SwapSides flips base and quote and refreshes.
func (s *MarketSession) SwapSides(ctx context.Context) (*domain.MarketSnapshot, error) {
	s.mu.Lock()
	s.pair = s.pair.Flip()
	pair := s.pair
	gen := s.generation.Add(1)
	s.mu.Unlock()
	return s.run(ctx, gen, pair)
}

// History returns persisted filled swaps for the current pair.
func (s *MarketSession) History(ctx context.Context, opts domain.ListOpts) ([]domain.FilledSwap, error) {
	if s.swaps == nil {
		return nil, fmt.Errorf("market_session: history store not configured: %w", domain.ErrNotFound)
	}
	out, err := s.swaps.ListByPair(ctx, s.Pair().Name(), opts)
	if err != nil {
		return nil, fmt.Errorf("market_session: history: %w", err)
	}
	return out, nil
}

// Restore publishes the cached snapshot of the current pair, if any, so a
// restarted process can serve the last known market before its first
// refresh completes. It does nothing once a refresh has started and reports
// whether a snapshot was restored.
func (s *MarketSession) Restore(ctx context.Context) (bool, error) {
	if s.snapshots == nil {
		return false, nil
	}
	pair := s.Pair()
	snap, err := s.snapshots.Get(ctx, pair.Name())
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("market_session: restore: %w", err)
	}
	if snap.Pair != pair {
		return false, fmt.Errorf("market_session: restore: cached pair %s: %w", snap.Pair.Name(), domain.ErrDataIntegrity)
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.generation.Load() != 0 || s.current.Load() != nil {
		return false, nil
	}
	// Generations are per process; the cached number means nothing here.
	snap.Generation = 0
	s.current.Store(snap)
	s.logger.InfoContext(ctx, "market_session: restored cached snapshot",
		slog.String("pair", pair.Name()),
		slog.Time("refreshed_at", snap.RefreshedAt),
	)
	return true, nil
}

// fetched holds the seven inputs of one refresh.
type fetched struct {
	listA, listB  []domain.Swap
	history       []domain.Swap
	baseDecimals  int
	quoteDecimals int
	baseSymbol    string
	quoteSymbol   string
}

func (s *MarketSession) run(ctx context.Context, gen uint64, pair domain.Pair) (*domain.MarketSnapshot, error) {
	start := s.now()
	logger := s.logger.With(
		slog.String("refresh_id", uuid.NewString()),
		slog.Uint64("generation", gen),
		slog.String("pair", pair.Name()),
	)

	snap, err := s.build(ctx, gen, pair, logger)
	if err == nil {
		err = s.publish(snap)
	}
	metrics.RefreshLatency.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.RefreshTotal.WithLabelValues("published").Inc()
	case errors.Is(err, domain.ErrSuperseded):
		metrics.RefreshTotal.WithLabelValues("superseded").Inc()
		logger.DebugContext(ctx, "market_session: refresh superseded")
		return nil, err
	default:
		metrics.RefreshTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	logger.InfoContext(ctx, "market_session: snapshot published",
		slog.String("orientation", string(snap.Orientation)),
		slog.Int("buyers", snap.Buyers.Len()),
		slog.Int("sellers", snap.Sellers.Len()),
		slog.Int("history", len(snap.History)),
	)
	s.afterPublish(ctx, snap, logger)
	return snap, nil
}

func (s *MarketSession) build(ctx context.Context, gen uint64, pair domain.Pair, logger *slog.Logger) (*domain.MarketSnapshot, error) {
	in, err := s.fetch(ctx, pair)
	if gen != s.generation.Load() {
		return nil, fmt.Errorf("market_session: generation %d: %w", gen, domain.ErrSuperseded)
	}
	if err != nil {
		return nil, err
	}

	rec, err := market.Reconcile(in.listA, in.listB, pair)
	if err != nil {
		return nil, fmt.Errorf("market_session: %w", err)
	}
	history := market.TruncateHistory(in.history, s.cfg.HistoryKeep)
	if err := market.CheckPair(history, pair); err != nil {
		return nil, fmt.Errorf("market_session: history: %w", err)
	}

	dec := domain.Decimals{Base: in.baseDecimals, Quote: in.quoteDecimals}
	buyers, _ := rec.Buyers.Swaps()
	sellers, _ := rec.Sellers.Swaps()
	for side, swaps := range map[string][]domain.Swap{"buyers": buyers, "sellers": sellers, "history": history} {
		if err := market.CheckPrices(swaps, pair, dec); err != nil {
			return nil, fmt.Errorf("market_session: %s: %w", side, err)
		}
	}

	snap := &domain.MarketSnapshot{
		Pair:        pair,
		Buyers:      rec.Buyers,
		Sellers:     rec.Sellers,
		History:     history,
		Decimals:    dec,
		Symbols:     domain.Symbols{pair.Base: in.baseSymbol, pair.Quote: in.quoteSymbol},
		Orientation: rec.Orientation,
		Generation:  gen,
		RefreshedAt: s.now().UTC(),
	}
	s.checkOrdering(ctx, snap, logger)
	return snap, nil
}

// fetch issues all data source calls concurrently and waits for every one.
// The first failure fails the whole refresh.
func (s *MarketSession) fetch(ctx context.Context, pair domain.Pair) (*fetched, error) {
	var in fetched
	name := pair.Name()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		in.listA, err = s.source.GetBuyers(gctx, name)
		return fetchErr("buyers", err)
	})
	g.Go(func() (err error) {
		in.listB, err = s.source.GetSellers(gctx, name)
		return fetchErr("sellers", err)
	})
	g.Go(func() (err error) {
		in.history, err = s.source.GetFilledSwaps(gctx, name, 0, s.cfg.HistoryFetch)
		return fetchErr("history", err)
	})
	g.Go(func() (err error) {
		in.baseDecimals, err = s.assets.Decimals(gctx, pair.Base)
		return fetchErr("base_decimals", err)
	})
	g.Go(func() (err error) {
		in.quoteDecimals, err = s.assets.Decimals(gctx, pair.Quote)
		return fetchErr("quote_decimals", err)
	})
	g.Go(func() (err error) {
		in.baseSymbol, err = s.assets.Symbol(gctx, pair.Base)
		return fetchErr("base_symbol", err)
	})
	g.Go(func() (err error) {
		in.quoteSymbol, err = s.assets.Symbol(gctx, pair.Quote)
		return fetchErr("quote_symbol", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &in, nil
}

func fetchErr(call string, err error) error {
	if err == nil {
		return nil
	}
	metrics.FetchErrors.WithLabelValues(call).Inc()
	// Out-of-range decimals are not a transport failure.
	if errors.Is(err, domain.ErrDataIntegrity) {
		return fmt.Errorf("market_session: fetch %s: %w", call, err)
	}
	return fmt.Errorf("market_session: fetch %s: %w: %w", call, domain.ErrFetchFailure, err)
}

func (s *MarketSession) publish(snap *domain.MarketSnapshot) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if snap.Generation != s.generation.Load() {
		return fmt.Errorf("market_session: generation %d: %w", snap.Generation, domain.ErrSuperseded)
	}
	s.current.Store(snap)
	return nil
}

// checkOrdering reports book sides that are not in descending price order
// (buyers best-first, sellers best-last). Books are never re-sorted.
func (s *MarketSession) checkOrdering(ctx context.Context, snap *domain.MarketSnapshot, logger *slog.Logger) {
	for side, book := range map[string]domain.Book{"buyers": snap.Buyers, "sellers": snap.Sellers} {
		swaps, ok := book.Swaps()
		if !ok {
			continue
		}
		ordered, at, err := market.CheckOrdering(swaps, snap.Pair, snap.Decimals)
		if err != nil {
			logger.WarnContext(ctx, "market_session: ordering check failed",
				slog.String("side", side),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ordered {
			metrics.UnorderedBooks.WithLabelValues(side).Inc()
			logger.WarnContext(ctx, "market_session: book not price ordered",
				slog.String("side", side),
				slog.Int("index", at),
			)
		}
	}
}

// afterPublish runs the side effects of a published snapshot. None of them
// can fail the refresh.
func (s *MarketSession) afterPublish(ctx context.Context, snap *domain.MarketSnapshot, logger *slog.Logger) {
	metrics.Generation.Set(float64(snap.Generation))
	metrics.BookDepth.WithLabelValues("buyers").Set(float64(snap.Buyers.Len()))
	metrics.BookDepth.WithLabelValues("sellers").Set(float64(snap.Sellers.Len()))

	// A null spread in the event means the orientation is still unknown.
	var spread any
	v, ok, err := market.BookSpread(snap)
	switch {
	case errors.Is(err, domain.ErrUnresolvedBook):
		metrics.SpreadPercent.Set(0)
	case err != nil:
		logger.WarnContext(ctx, "market_session: spread not computed", slog.String("error", err.Error()))
	case ok:
		spread = numeric.Display(v)
		metrics.SpreadPercent.Set(v.InexactFloat64())
	default:
		spread = "0"
		metrics.SpreadPercent.Set(0)
	}

	if s.snapshots != nil {
		if err := s.snapshots.Set(ctx, snap); err != nil {
			logger.WarnContext(ctx, "market_session: snapshot cache set failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":        "snapshot",
			"pair":         snap.Pair.Name(),
			"generation":   snap.Generation,
			"orientation":  snap.Orientation,
			"buyers":       snap.Buyers.Len(),
			"sellers":      snap.Sellers.Len(),
			"spread":       spread,
			"refreshed_at": snap.RefreshedAt.Format(time.RFC3339Nano),
		})
		if err := s.bus.Publish(ctx, "market:"+snap.Pair.Name(), evt); err != nil {
			logger.WarnContext(ctx, "market_session: publish snapshot event failed",
				slog.String("error", err.Error()),
			)
		}
	}

	if s.swaps != nil {
		filled := make([]domain.Swap, 0, len(snap.History))
		for _, sw := range snap.History {
			if sw.Filled() {
				filled = append(filled, sw)
			}
		}
		if len(filled) > 0 {
			if err := s.swaps.InsertBatch(ctx, snap.Pair.Name(), filled); err != nil {
				logger.WarnContext(ctx, "market_session: persist history failed",
					slog.Int("count", len(filled)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
