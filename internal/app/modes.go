package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/pipeline"
	"github.com/alanyoungcy/swapmarket/internal/server"
	"github.com/alanyoungcy/swapmarket/internal/server/handler"
	"github.com/alanyoungcy/swapmarket/internal/server/ws"
	"github.com/alanyoungcy/swapmarket/internal/service"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// ServerMode tracks the configured market, refreshes it periodically and
// serves it over HTTP and WebSocket.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	session, err := a.newSession(ctx, deps)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startPipelines(ctx, g, deps, session, nil)
	a.startHTTPServer(ctx, g, deps, session)
	return g.Wait()
}

// MonitorMode keeps the market session refreshed and publishing to the
// signal bus without serving HTTP.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	session, err := a.newSession(ctx, deps)
	if err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startPipelines(ctx, g, deps, session, nil)
	return g.Wait()
}

// ArchiveMode only runs the cold-storage archiver on its cron schedule.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	archiver, err := a.newArchiver(deps)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startPipelines(ctx, g, deps, nil, archiver)
	return g.Wait()
}

// FullMode starts every subsystem: session refresh, archival and the HTTP
// server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	session, err := a.newSession(ctx, deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	archiver, err := a.newArchiver(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startPipelines(ctx, g, deps, session, archiver)
	a.startHTTPServer(ctx, g, deps, session)
	return g.Wait()
}

// newSession builds the market session for the configured pair and restores
// the last cached snapshot, if any.
func (a *App) newSession(ctx context.Context, deps *Dependencies) (*service.MarketSession, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("market data source not configured")
	}

	// Keep absent stores as untyped nils so the session's nil checks hold.
	var swaps domain.FilledSwapStore
	if deps.SwapStore != nil {
		swaps = deps.SwapStore
	}

	assets := service.NewAssetService(deps.Source, deps.AssetCache, a.logger.With(slog.String("component", "assets")))
	session, err := service.NewMarketSession(
		deps.Source,
		assets,
		swaps,
		deps.SnapshotCache,
		deps.SignalBus,
		a.cfg.Market.Pair(),
		service.SessionConfig{
			HistoryFetch: a.cfg.Market.HistoryFetch,
			HistoryKeep:  a.cfg.Market.HistoryKeep,
		},
		a.logger.With(slog.String("component", "market_session")),
	)
	if err != nil {
		return nil, err
	}

	if _, err := session.Restore(ctx); err != nil {
		a.logger.WarnContext(ctx, "cached snapshot not restored", slog.String("error", err.Error()))
	}
	return session, nil
}

func (a *App) newArchiver(deps *Dependencies) (*pipeline.Archiver, error) {
	if deps.Archiver == nil || deps.SwapStore == nil {
		return nil, fmt.Errorf("archiver needs postgres and s3")
	}
	archiver := pipeline.NewArchiver(deps.Archiver, deps.SwapStore, deps.LockManager, pipeline.ArchiverConfig{
		RetentionDays:      a.cfg.Pipeline.RetentionDays,
		DeleteAfterArchive: a.cfg.Pipeline.DeleteAfterArchive,
		LockTTL:            a.cfg.Pipeline.LockTTL.Duration,
	}, a.logger.With(slog.String("component", "archiver")))
	if deps.Notifier.Enabled() {
		archiver.WithAlerts(deps.Notifier)
	}
	return archiver, nil
}

// startPipelines runs the poller and archiver under the orchestrator. Either
// may be nil.
func (a *App) startPipelines(ctx context.Context, g *errgroup.Group, deps *Dependencies, session *service.MarketSession, archiver *pipeline.Archiver) {
	var poller *pipeline.Poller
	if session != nil {
		poller = pipeline.NewPoller(session, a.logger.With(slog.String("component", "poller")))
		if deps.Notifier.Enabled() {
			poller.WithAlerts(deps.Notifier, a.cfg.Notify.StaleAfter)
		}
	}
	orch := pipeline.NewOrchestrator(
		poller,
		archiver,
		a.cfg.Pipeline.PollInterval.Duration,
		a.cfg.Pipeline.ArchiveCron,
		a.logger.With(slog.String("component", "pipeline")),
	)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, session *service.MarketSession) {
	logger := a.logger.With(slog.String("component", "server"))

	hub := ws.NewHub(deps.SignalBus, logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	srv := server.NewServer(server.Config{
		Addr:        a.cfg.Server.Addr,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
		Limiter:     deps.RateLimiter,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, logger),
		Market: handler.NewMarketHandler(session, logger),
		Units:  handler.NewUnitsHandler(logger),
	}, hub, logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
