package domain

import "context"

// EscrowRepository is the abstraction for any kind of database intended to
// persist the custody records backing the trades.
type EscrowRepository interface {
	// AddEscrow persists a new escrow record.
	AddEscrow(ctx context.Context, escrow *Escrow) error
	// GetEscrowByTrade returns the escrow record of a trade, or
	// ErrEscrowNotFound.
	GetEscrowByTrade(ctx context.Context, tradeId string) (*Escrow, error)
	// UpdateEscrow commits changes to the escrow record of a trade in a
	// transactional way.
	UpdateEscrow(
		ctx context.Context,
		tradeId string,
		updateFn func(e *Escrow) (*Escrow, error),
	) error
}
