package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/metrics"
	"github.com/alanyoungcy/swapmarket/internal/notify"
)

const archiveLockKey = "archive:filled_swaps"

// SwapPruner deletes filled swaps that have been archived.
type SwapPruner interface {
	DeleteArchived(ctx context.Context, keys []domain.SwapKey) (int64, error)
}

// ArchiverConfig controls retention.
type ArchiverConfig struct {
	RetentionDays      int
	DeleteAfterArchive bool
	LockTTL            time.Duration
}

// Archiver moves filled swaps older than the retention window to cold
// storage. A distributed lock keeps concurrent instances from uploading the
// same rows.
type Archiver struct {
	blob   domain.Archiver
	pruner SwapPruner
	locks  domain.LockManager
	cfg    ArchiverConfig
	logger *slog.Logger
	now    func() time.Time

	alerter Alerter
}

// NewArchiver creates a new Archiver. locks may be nil for single-instance
// deployments; pruner may be nil when DeleteAfterArchive is off.
func NewArchiver(blob domain.Archiver, pruner SwapPruner, locks domain.LockManager, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &Archiver{
		blob:   blob,
		pruner: pruner,
		locks:  locks,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// WithAlerts makes the archiver report failed and completed runs.
func (a *Archiver) WithAlerts(al Alerter) *Archiver {
	a.alerter = al
	return a
}

// Run executes a single archive run. It returns nil without doing anything
// when another instance holds the lock.
func (a *Archiver) Run(ctx context.Context) error {
	archived, deleted, err := a.run(ctx)
	if errors.Is(err, errLockSkipped) {
		return nil
	}
	if a.alerter == nil {
		return err
	}

	event, title, msg := notify.EventArchiveCompleted, "Archive completed",
		fmt.Sprintf("archived %d filled swaps, deleted %d", archived, deleted)
	if err != nil {
		event, title, msg = notify.EventArchiveFailed, "Archive failed", err.Error()
	}
	if nerr := a.alerter.Notify(ctx, event, title, msg); nerr != nil {
		a.logger.Warn("alert delivery failed",
			slog.String("event", event),
			slog.String("error", nerr.Error()),
		)
	}
	return err
}

var errLockSkipped = errors.New("archive lock held elsewhere")

func (a *Archiver) run(ctx context.Context) (archived, deleted int64, err error) {
	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, archiveLockKey, a.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.Info("archive run skipped, lock held elsewhere")
			return 0, 0, errLockSkipped
		}
		if err != nil {
			return 0, 0, fmt.Errorf("acquiring archive lock: %w", err)
		}
		defer unlock()
	}

	cutoff := a.now().UTC().Add(-time.Duration(a.cfg.RetentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.cfg.RetentionDays),
	)

	keys, err := a.blob.ArchiveFilledSwaps(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("archiving filled swaps before %v: %w", cutoff, err)
	}
	archived = int64(len(keys))
	metrics.ArchivedSwaps.Add(float64(archived))

	// Only the uploaded keys: rows that arrived after the listing stay.
	if a.cfg.DeleteAfterArchive && a.pruner != nil && archived > 0 {
		deleted, err = a.pruner.DeleteArchived(ctx, keys)
		if err != nil {
			return archived, 0, fmt.Errorf("deleting %d archived filled swaps: %w", archived, err)
		}
	}

	a.logger.Info("archive run complete",
		slog.Int64("archived", archived),
		slog.Int64("deleted", deleted),
	)
	return archived, deleted, nil
}

// RunCron runs the archiver on a 5-field cron schedule until ctx is
// cancelled. Example: "0 3 * * *" runs daily at 03:00 UTC.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := sched.next(a.now().UTC())
		if err != nil {
			return fmt.Errorf("cron %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
