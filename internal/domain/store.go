package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SwapKey identifies a persisted filled swap.
type SwapKey struct {
	Pair string
	ID   string
}

// FilledSwapStore persists filled swaps observed in market history.
//
// Once a swap has been marked archived it is never inserted again, even
// after its row was deleted, so history re-read from the data source cannot
// resurrect pruned rows.
type FilledSwapStore interface {
	InsertBatch(ctx context.Context, pairName string, swaps []Swap) error
	ListByPair(ctx context.Context, pairName string, opts ListOpts) ([]FilledSwap, error)
	// ListUnarchivedBefore returns swaps filled before the cutoff that no
	// archive run has uploaded yet, oldest first.
	ListUnarchivedBefore(ctx context.Context, before time.Time) ([]FilledSwap, error)
	MarkArchived(ctx context.Context, keys []SwapKey) error
	// DeleteArchived deletes the given swaps if they are marked archived.
	DeleteArchived(ctx context.Context, keys []SwapKey) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
