package domain

import "context"

// MarketDataSource is the read-only exchange API the engine consumes. Every
// call is idempotent; the engine never retries a failed call itself.
type MarketDataSource interface {
	// GetBuyers returns pending swaps of the buyers query for pairName.
	GetBuyers(ctx context.Context, pairName string) ([]Swap, error)
	// GetSellers returns pending swaps of the sellers query for pairName.
	GetSellers(ctx context.Context, pairName string) ([]Swap, error)
	// GetFilledSwaps returns filled swaps, most recent first.
	GetFilledSwaps(ctx context.Context, pairName string, offset, limit int) ([]Swap, error)
	GetDecimals(ctx context.Context, asset AssetID) (int, error)
	GetSymbol(ctx context.Context, asset AssetID) (string, error)
}
