package trade

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

// TradeInfo is the portable view of a trade returned to the interface layer.
type TradeInfo struct {
	Id                    string          `json:"id"`
	OfferId               string          `json:"offer_id"`
	BuyerId               string          `json:"buyer_id"`
	SellerId              string          `json:"seller_id"`
	AssetCode             string          `json:"asset_code"`
	Currency              string          `json:"currency"`
	Amount                decimal.Decimal `json:"amount"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	Total                 decimal.Decimal `json:"total"`
	PaymentMethod         string          `json:"payment_method"`
	Status                string          `json:"status"`
	EscrowStatus          string          `json:"escrow_status"`
	EscrowReference       string          `json:"escrow_reference,omitempty"`
	PaymentProof          string          `json:"payment_proof,omitempty"`
	CancelReason          string          `json:"cancel_reason,omitempty"`
	DisputeId             string          `json:"dispute_id,omitempty"`
	PaymentDeadline       *time.Time      `json:"payment_deadline,omitempty"`
	EscrowReleaseDeadline *time.Time      `json:"escrow_release_deadline,omitempty"`
	TimelineBroken        bool            `json:"timeline_broken,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func tradeInfo(t *domain.Trade) *TradeInfo {
	info := &TradeInfo{
		Id:              t.Id,
		OfferId:         t.OfferId,
		BuyerId:         t.BuyerId,
		SellerId:        t.SellerId,
		AssetCode:       t.AssetCode,
		Currency:        t.Currency,
		Amount:          t.Amount,
		UnitPrice:       t.UnitPrice,
		Total:           t.Total,
		PaymentMethod:   t.PaymentMethod,
		Status:          t.Status.String(),
		EscrowStatus:    t.EscrowStatus.String(),
		EscrowReference: t.EscrowReference,
		PaymentProof:    t.PaymentProof,
		CancelReason:    t.CancelReason,
		DisputeId:       t.DisputeId,
		TimelineBroken:  t.TimelineBroken,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if !t.PaymentDeadline.IsZero() {
		deadline := t.PaymentDeadline
		info.PaymentDeadline = &deadline
	}
	if !t.EscrowReleaseDeadline.IsZero() {
		deadline := t.EscrowReleaseDeadline
		info.EscrowReleaseDeadline = &deadline
	}
	return info
}
