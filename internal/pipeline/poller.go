package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/swapmarket/internal/domain"
	"github.com/alanyoungcy/swapmarket/internal/notify"
)

// Refresher re-fetches the current market.
type Refresher interface {
	Refresh(ctx context.Context) (*domain.MarketSnapshot, error)
}

// Alerter raises an operator alert.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Poller refreshes the market session on a fixed interval.
type Poller struct {
	session Refresher
	logger  *slog.Logger

	alerter        Alerter
	staleThreshold int
	failures       int
	stale          bool
}

// NewPoller creates a new Poller.
func NewPoller(session Refresher, logger *slog.Logger) *Poller {
	return &Poller{session: session, logger: logger}
}

// WithAlerts makes the poller raise market_stale once threshold refreshes
// in a row have failed, and market_recovered on the next success.
func (p *Poller) WithAlerts(a Alerter, threshold int) *Poller {
	if threshold < 1 {
		threshold = 1
	}
	p.alerter = a
	p.staleThreshold = threshold
	return p
}

// Run performs one refresh. A superseded refresh is not a failure: a newer
// one, usually a pair change, is already on its way.
func (p *Poller) Run(ctx context.Context) error {
	_, err := p.session.Refresh(ctx)
	if errors.Is(err, domain.ErrSuperseded) {
		p.logger.Debug("market refresh superseded")
		return nil
	}
	p.track(ctx, err)
	return err
}

// RunLoop refreshes immediately and then every interval until ctx is
// cancelled. Failures are logged and the loop carries on with the previous
// snapshot still published.
func (p *Poller) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := p.Run(ctx); err != nil {
		p.logger.Error("market refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("market poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.Run(ctx); err != nil {
				p.logger.Error("market refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Poller) track(ctx context.Context, err error) {
	if p.alerter == nil {
		return
	}
	if err == nil {
		p.failures = 0
		if p.stale {
			p.stale = false
			p.alert(ctx, notify.EventMarketRecovered, "Market recovered", "market refresh succeeded again")
		}
		return
	}
	p.failures++
	if !p.stale && p.failures >= p.staleThreshold {
		p.stale = true
		p.alert(ctx, notify.EventMarketStale, "Market stale",
			fmt.Sprintf("%d refreshes in a row failed, last error: %v", p.failures, err))
	}
}

func (p *Poller) alert(ctx context.Context, event, title, message string) {
	if err := p.alerter.Notify(ctx, event, title, message); err != nil {
		p.logger.Warn("alert delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
