package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Offer is the read-only snapshot of a trade-creation source. It is owned by
// the external offer registry: the engine consumes it at trade creation and
// never writes it back.
type Offer struct {
	Id                     string
	OwnerId                string
	AssetCode              string
	Currency               string
	UnitPrice              decimal.Decimal
	MinAmount              decimal.Decimal
	MaxAmount              decimal.Decimal
	AcceptedPaymentMethods []string
	EscrowMandatory        bool
	// PaymentWindow is how long the buyer has to mark the payment once the
	// escrow is locked.
	PaymentWindow time.Duration
	// EscrowDuration is how long the seller has to release the escrow once
	// the payment is marked.
	EscrowDuration time.Duration
	CreatedAt      time.Time
}

// NewOffer returns a validated offer snapshot for the given seller.
func NewOffer(
	ownerId, assetCode, currency string,
	unitPrice, minAmount, maxAmount decimal.Decimal,
	acceptedPaymentMethods []string,
	paymentWindow, escrowDuration time.Duration,
	now time.Time,
) (*Offer, error) {
	if ownerId == "" || assetCode == "" || currency == "" {
		return nil, ErrInvalidOffer
	}
	if !unitPrice.IsPositive() {
		return nil, ErrInvalidOffer
	}
	if minAmount.IsNegative() || !maxAmount.IsPositive() ||
		minAmount.GreaterThan(maxAmount) {
		return nil, ErrInvalidOffer
	}

	return &Offer{
		Id:                     uuid.New().String(),
		OwnerId:                ownerId,
		AssetCode:              assetCode,
		Currency:               currency,
		UnitPrice:              unitPrice,
		MinAmount:              minAmount,
		MaxAmount:              maxAmount,
		AcceptedPaymentMethods: acceptedPaymentMethods,
		EscrowMandatory:        true,
		PaymentWindow:          paymentWindow,
		EscrowDuration:         escrowDuration,
		CreatedAt:              now,
	}, nil
}

// AmountInRange returns whether the given amount falls in the [min, max]
// range of the offer.
func (o *Offer) AmountInRange(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(o.MinAmount) &&
		amount.LessThanOrEqual(o.MaxAmount)
}

// AcceptsPaymentMethod returns whether the given payment method is accepted
// by the offer. An offer with no explicit methods accepts any.
func (o *Offer) AcceptsPaymentMethod(method string) bool {
	if len(o.AcceptedPaymentMethods) == 0 {
		return true
	}
	for _, m := range o.AcceptedPaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}
