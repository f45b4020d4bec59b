package domain

import "context"

// TradeRepository is the abstraction for any kind of database intended to
// persist Trades.
type TradeRepository interface {
	// AddTrade persists a newly created trade.
	AddTrade(ctx context.Context, trade *Trade) error
	// GetTrade returns the trade with the given id, or ErrTradeNotFound.
	GetTrade(ctx context.Context, tradeId string) (*Trade, error)
	// GetAllTrades returns all the trades stored in the repository.
	GetAllTrades(ctx context.Context) ([]Trade, error)
	// GetTradesByStatus returns all the trades in the given status.
	GetTradesByStatus(ctx context.Context, status TradeStatus) ([]Trade, error)
	// UpdateTrade commits multiple changes to the same trade in a
	// transactional way. The update function receives the current version of
	// the trade and returns the modified one; writers on the same trade are
	// serialized and a stale write yields ErrStateConflict.
	UpdateTrade(
		ctx context.Context,
		tradeId string,
		updateFn func(t *Trade) (*Trade, error),
	) error
}
