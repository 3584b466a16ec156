// Package notify delivers operator alerts about the market session and the
// archive job to chat channels. Alerts are filtered by event and the same
// event is not repeated inside a cooldown window.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event names accepted in the notify.events config list.
const (
	EventMarketStale      = "market_stale"
	EventMarketRecovered  = "market_recovered"
	EventArchiveFailed    = "archive_failed"
	EventArchiveCompleted = "archive_completed"
)

// KnownEvents lists every event the process can raise.
var KnownEvents = []string{
	EventMarketStale,
	EventMarketRecovered,
	EventArchiveFailed,
	EventArchiveCompleted,
}

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every sender.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// NewNotifier creates a Notifier. An empty events list allows every event.
// A zero cooldown disables suppression.
func NewNotifier(senders []Sender, events []string, cooldown time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		cooldown: cooldown,
		logger:   logger.With(slog.String("component", "notifier")),
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify delivers an alert for event. Filtered and suppressed events return
// nil without sending.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	if !n.claim(event) {
		n.logger.DebugContext(ctx, "event suppressed by cooldown", slog.String("event", event))
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

func (n *Notifier) claim(event string) bool {
	if n.cooldown <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if prev, ok := n.last[event]; ok && now.Sub(prev) < n.cooldown {
		return false
	}
	n.last[event] = now
	return true
}
