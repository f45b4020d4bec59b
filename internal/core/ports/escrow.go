package ports

import (
	"context"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/shopspring/decimal"
)

// EscrowAdapter abstracts the custody operations of a trade against any
// backing ledger: an in-memory double for tests, an on-chain custody or a
// custodial bank in production. All calls may be long-running network
// operations with unbounded latency: the engine never assumes synchronous
// completion and, on restart, reconciles the trade status via GetStatus
// instead of trusting stale in-memory state.
type EscrowAdapter interface {
	// Lock puts the given amount under custody for a trade and returns the
	// escrow reference. It is idempotent per tradeId: a repeat call returns
	// the existing reference instead of double-locking.
	Lock(
		ctx context.Context, tradeId string,
		amount decimal.Decimal, assetCode string,
	) (string, error)
	// Release hands the locked funds over to the buyer side. It fails with
	// domain.ErrEscrowNotLocked unless the current status is locked.
	Release(ctx context.Context, tradeId string) (string, error)
	// Refund gives the locked funds back to the seller side.
	Refund(ctx context.Context, tradeId, reason string) (string, error)
	// Dispute freezes the locked funds while an adjudication is pending.
	Dispute(ctx context.Context, tradeId, reason string) (string, error)
	// GetStatus returns the current custody status for a trade.
	GetStatus(ctx context.Context, tradeId string) (domain.EscrowStatus, error)
}
