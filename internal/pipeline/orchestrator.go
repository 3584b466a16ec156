package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the background pipelines: periodic market refresh and
// cold-storage archival. Either may be nil.
type Orchestrator struct {
	poller       *Poller
	archiver     *Archiver
	pollInterval time.Duration
	archiveCron  string
	logger       *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	poller *Poller,
	archiver *Archiver,
	pollInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		poller:       poller,
		archiver:     archiver,
		pollInterval: pollInterval,
		archiveCron:  archiveCron,
		logger:       logger,
	}
}

// Run starts the configured pipelines under an errgroup. Cancellation of ctx
// is a clean shutdown; any other error stops every pipeline and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("poll_interval", o.pollInterval),
		slog.String("archive_cron", o.archiveCron),
		slog.Bool("poller", o.poller != nil),
		slog.Bool("archiver", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.poller != nil {
		g.Go(func() error {
			err := o.poller.RunLoop(ctx, o.pollInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("market poller: %w", err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
