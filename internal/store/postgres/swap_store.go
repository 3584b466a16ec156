package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/swapmarket/internal/domain"
)

// FilledSwapStore implements domain.FilledSwapStore. Raw amounts are stored
// as NUMERIC(78,0) and travel as base-10 text in both directions so no
// precision is lost.
type FilledSwapStore struct {
	pool *pgxpool.Pool
}

// NewFilledSwapStore creates a FilledSwapStore backed by the given pool.
func NewFilledSwapStore(pool *pgxpool.Pool) *FilledSwapStore {
	return &FilledSwapStore{pool: pool}
}

const filledSwapSelectCols = `pair, id,
	maker_provider, maker_contract, maker_amount::text,
	taker_provider, taker_contract, taker_amount::text,
	filled_at, recorded_at`

func scanFilledSwapRows(rows pgx.Rows) ([]domain.FilledSwap, error) {
	var out []domain.FilledSwap
	for rows.Next() {
		var (
			row                          domain.FilledSwap
			makerContract, takerContract string
			makerAmt, takerAmt           string
		)
		if err := rows.Scan(
			&row.PairName, &row.ID,
			&row.Maker.Provider, &makerContract, &makerAmt,
			&row.Taker.Provider, &takerContract, &takerAmt,
			&row.FilledAt, &row.RecordedAt,
		); err != nil {
			return nil, err
		}
		row.Maker.Contract = domain.AssetID(makerContract)
		row.Taker.Contract = domain.AssetID(takerContract)

		var err error
		if row.Maker.Amount, err = parseAmount(makerAmt); err != nil {
			return nil, fmt.Errorf("swap %s maker: %w", row.ID, err)
		}
		if row.Taker.Amount, err = parseAmount(takerAmt); err != nil {
			return nil, fmt.Errorf("swap %s taker: %w", row.ID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q: %w", s, domain.ErrDataIntegrity)
	}
	return v, nil
}

func amountText(v *big.Int) (string, error) {
	if v == nil || v.Sign() < 0 {
		return "", fmt.Errorf("amount %v: %w", v, domain.ErrDataIntegrity)
	}
	return v.String(), nil
}

// InsertBatch records filled swaps for pairName using a pgx Batch. Swaps
// already recorded for the pair, or archived at any point, are skipped.
// Pending swaps are rejected.
func (s *FilledSwapStore) InsertBatch(ctx context.Context, pairName string, swaps []domain.Swap) error {
	if len(swaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO filled_swaps (
			pair, id,
			maker_provider, maker_contract, maker_amount,
			taker_provider, taker_contract, taker_amount,
			filled_at
		)
		SELECT $1::text, $2::text,
			$3::text, $4::text, $5::numeric,
			$6::text, $7::text, $8::numeric,
			$9::timestamptz
		WHERE NOT EXISTS (
			SELECT 1 FROM archived_swaps a WHERE a.pair = $1::text AND a.id = $2::text
		)
		ON CONFLICT (pair, id) DO NOTHING`

	for _, sw := range swaps {
		if !sw.Filled() {
			return fmt.Errorf("postgres: insert swap %s: not filled: %w", sw.ID, domain.ErrDataIntegrity)
		}
		makerAmt, err := amountText(sw.Maker.Amount)
		if err != nil {
			return fmt.Errorf("postgres: insert swap %s maker: %w", sw.ID, err)
		}
		takerAmt, err := amountText(sw.Taker.Amount)
		if err != nil {
			return fmt.Errorf("postgres: insert swap %s taker: %w", sw.ID, err)
		}
		batch.Queue(query,
			pairName, sw.ID,
			sw.Maker.Provider, string(sw.Maker.Contract), makerAmt,
			sw.Taker.Provider, string(sw.Taker.Contract), takerAmt,
			sw.FilledAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range swaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert filled swap batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByPair returns a pair's filled swaps, most recent first.
func (s *FilledSwapStore) ListByPair(ctx context.Context, pairName string, opts domain.ListOpts) ([]domain.FilledSwap, error) {
	query, args := listQuery(
		`SELECT `+filledSwapSelectCols+` FROM filled_swaps WHERE pair = $1`,
		[]any{pairName}, 2, "filled_at", opts,
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list filled swaps by pair: %w", err)
	}
	defer rows.Close()

	out, err := scanFilledSwapRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan filled swaps by pair: %w", err)
	}
	return out, nil
}

// ListUnarchivedBefore returns filled swaps older than before that are not
// yet archived, oldest first.
func (s *FilledSwapStore) ListUnarchivedBefore(ctx context.Context, before time.Time) ([]domain.FilledSwap, error) {
	query := `SELECT ` + filledSwapSelectCols + ` FROM filled_swaps
		WHERE filled_at < $1 AND archived_at IS NULL
		ORDER BY filled_at ASC, pair, id`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unarchived filled swaps: %w", err)
	}
	defer rows.Close()

	out, err := scanFilledSwapRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unarchived filled swaps: %w", err)
	}
	return out, nil
}

// MarkArchived flags keys as archived and records them in archived_swaps in
// one transaction.
func (s *FilledSwapStore) MarkArchived(ctx context.Context, keys []domain.SwapKey) error {
	if len(keys) == 0 {
		return nil
	}
	pairs, ids := splitKeys(keys)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: mark archived begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE filled_swaps f SET archived_at = NOW()
		FROM unnest($1::text[], $2::text[]) AS k(pair, id)
		WHERE f.pair = k.pair AND f.id = k.id AND f.archived_at IS NULL`,
		pairs, ids,
	); err != nil {
		return fmt.Errorf("postgres: mark filled swaps archived: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO archived_swaps (pair, id)
		SELECT pair, id FROM unnest($1::text[], $2::text[]) AS k(pair, id)
		ON CONFLICT (pair, id) DO NOTHING`,
		pairs, ids,
	); err != nil {
		return fmt.Errorf("postgres: record archived swap keys: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: mark archived commit: %w", err)
	}
	return nil
}

// DeleteArchived deletes the rows for keys that are marked archived and
// returns the count. Rows not in keys are never touched.
func (s *FilledSwapStore) DeleteArchived(ctx context.Context, keys []domain.SwapKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	pairs, ids := splitKeys(keys)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM filled_swaps f
		USING unnest($1::text[], $2::text[]) AS k(pair, id)
		WHERE f.pair = k.pair AND f.id = k.id AND f.archived_at IS NOT NULL`,
		pairs, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete archived filled swaps: %w", err)
	}
	return tag.RowsAffected(), nil
}

func splitKeys(keys []domain.SwapKey) (pairs, ids []string) {
	pairs = make([]string, len(keys))
	ids = make([]string, len(keys))
	for i, k := range keys {
		pairs[i], ids[i] = k.Pair, k.ID
	}
	return pairs, ids
}

// Compile-time interface check.
var _ domain.FilledSwapStore = (*FilledSwapStore)(nil)
