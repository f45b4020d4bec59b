package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Escrow is the custody record backing a trade. It exists 1:1 with a trade
// once the lock is acknowledged by the adapter, and its identity is also
// recorded in the trade's metadata as EscrowReference.
type Escrow struct {
	Id        string
	TradeId   string
	FromId    string
	ToId      string
	AssetCode string
	Amount    decimal.Decimal
	Status    EscrowStatus
	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// IsLocked returns whether the escrow still holds the funds.
func (e *Escrow) IsLocked() bool { return e.Status == EscrowStatusLocked }
