package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

var (
	buyer   = domain.Actor{Id: "buyer-1", Role: domain.RoleBuyer}
	seller  = domain.Actor{Id: "seller-1", Role: domain.RoleSeller}
	arbiter = domain.Actor{Id: "arbiter-1", Role: domain.RoleArbiter}

	now = time.Now()
)

func newTestOffer() *domain.Offer {
	offer, _ := domain.NewOffer(
		seller.Id, "GOLD", "USD",
		decimal.RequireFromString("5.12"),
		decimal.RequireFromString("10"),
		decimal.RequireFromString("1000"),
		[]string{"bank_transfer"},
		30*time.Minute, 24*time.Hour, now,
	)
	return offer
}

func newTradeCreated(t *testing.T) *domain.Trade {
	trade, err := domain.NewTradeFromOffer(
		newTestOffer(), decimal.RequireFromString("100"),
		buyer.Id, "bank_transfer", now,
	)
	require.NoError(t, err)
	return trade
}

func newTradeEscrowLocked(t *testing.T) *domain.Trade {
	trade := newTradeCreated(t)
	_, err := trade.LockEscrow(seller, "escrow_abc", now.Add(30*time.Minute), now)
	require.NoError(t, err)
	return trade
}

func newTradePaymentMarked(t *testing.T) *domain.Trade {
	trade := newTradeEscrowLocked(t)
	_, err := trade.MarkPayment(buyer, "receipt-1", now.Add(24*time.Hour), now)
	require.NoError(t, err)
	return trade
}

func newTradeDisputed(t *testing.T) *domain.Trade {
	trade := newTradePaymentMarked(t)
	_, err := trade.OpenDispute(buyer, "dispute-1", "no asset received", now)
	require.NoError(t, err)
	return trade
}

func TestNewTradeFromOffer(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		trade := newTradeCreated(t)
		require.Equal(t, domain.TradeStatusCodeCreated, trade.Status)
		require.Equal(t, domain.EscrowStatusNone, trade.EscrowStatus)
		require.Equal(t, seller.Id, trade.SellerId)
		require.True(t, trade.Total.Equal(decimal.RequireFromString("512.00")))
	})

	t.Run("non_positive_amount", func(t *testing.T) {
		_, err := domain.NewTradeFromOffer(
			newTestOffer(), decimal.Zero, buyer.Id, "bank_transfer", now,
		)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("amount_out_of_range", func(t *testing.T) {
		_, err := domain.NewTradeFromOffer(
			newTestOffer(), decimal.RequireFromString("5000"),
			buyer.Id, "bank_transfer", now,
		)
		require.ErrorIs(t, err, domain.ErrAmountOutOfRange)
	})

	t.Run("escrow_waiving_offer_is_refused", func(t *testing.T) {
		offer := newTestOffer()
		offer.EscrowMandatory = false
		_, err := domain.NewTradeFromOffer(
			offer, decimal.RequireFromString("100"),
			buyer.Id, "bank_transfer", now,
		)
		require.ErrorIs(t, err, domain.ErrInvalidOffer)
	})

	t.Run("unsupported_payment_method", func(t *testing.T) {
		_, err := domain.NewTradeFromOffer(
			newTestOffer(), decimal.RequireFromString("100"),
			buyer.Id, "cash", now,
		)
		require.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	})
}

func TestTotalStaysInvariant(t *testing.T) {
	trade := newTradeCreated(t)
	total := trade.Total

	_, err := trade.LockEscrow(seller, "escrow_abc", now.Add(time.Hour), now)
	require.NoError(t, err)
	_, err = trade.MarkPayment(buyer, "", now.Add(time.Hour), now)
	require.NoError(t, err)
	_, err = trade.Release(seller, now)
	require.NoError(t, err)

	require.True(t, trade.Total.Equal(total))
	require.Equal(t, domain.TradeStatusCodeReleased, trade.Status)
	require.Equal(t, domain.EscrowStatusReleased, trade.EscrowStatus)
}

func TestTransitionAuthorization(t *testing.T) {
	tests := []struct {
		name  string
		apply func(t *testing.T) error
	}{
		{
			name: "buyer_cannot_lock_escrow",
			apply: func(t *testing.T) error {
				trade := newTradeCreated(t)
				_, err := trade.LockEscrow(buyer, "ref", now.Add(time.Hour), now)
				return err
			},
		},
		{
			name: "seller_cannot_mark_payment",
			apply: func(t *testing.T) error {
				trade := newTradeEscrowLocked(t)
				_, err := trade.MarkPayment(seller, "", now.Add(time.Hour), now)
				return err
			},
		},
		{
			name: "buyer_cannot_release",
			apply: func(t *testing.T) error {
				trade := newTradePaymentMarked(t)
				_, err := trade.Release(buyer, now)
				return err
			},
		},
		{
			name: "stranger_cannot_cancel",
			apply: func(t *testing.T) error {
				trade := newTradeCreated(t)
				stranger := domain.Actor{Id: "intruder", Role: domain.RoleBuyer}
				_, err := trade.Cancel(stranger, "mine now", now)
				return err
			},
		},
		{
			name: "buyer_cannot_resolve_dispute",
			apply: func(t *testing.T) error {
				trade := newTradeDisputed(t)
				_, err := trade.ResolveDispute(buyer, domain.DisputeOutcomeRefund, now)
				return err
			},
		},
		{
			name: "seller_cannot_resolve_dispute",
			apply: func(t *testing.T) error {
				trade := newTradeDisputed(t)
				_, err := trade.ResolveDispute(seller, domain.DisputeOutcomeRelease, now)
				return err
			},
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.apply(t)
			require.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestTransitionPreconditions(t *testing.T) {
	tests := []struct {
		name        string
		apply       func(t *testing.T) error
		expectedErr error
	}{
		{
			name: "lock_requires_created",
			apply: func(t *testing.T) error {
				trade := newTradeEscrowLocked(t)
				_, err := trade.LockEscrow(seller, "ref", now.Add(time.Hour), now)
				return err
			},
			expectedErr: domain.ErrStateConflict,
		},
		{
			name: "mark_payment_requires_escrow_locked",
			apply: func(t *testing.T) error {
				trade := newTradeCreated(t)
				_, err := trade.MarkPayment(buyer, "", now.Add(time.Hour), now)
				return err
			},
			expectedErr: domain.ErrStateConflict,
		},
		{
			name: "release_requires_payment_marked",
			apply: func(t *testing.T) error {
				trade := newTradeEscrowLocked(t)
				_, err := trade.Release(seller, now)
				return err
			},
			expectedErr: domain.ErrStateConflict,
		},
		{
			name: "cancel_refuses_locked_escrow",
			apply: func(t *testing.T) error {
				trade := newTradeEscrowLocked(t)
				_, err := trade.Cancel(buyer, "changed my mind", now)
				return err
			},
			expectedErr: domain.ErrEscrowStillLocked,
		},
		{
			name: "cancel_requires_non_terminal",
			apply: func(t *testing.T) error {
				trade := newTradePaymentMarked(t)
				_, err := trade.Release(seller, now)
				require.NoError(t, err)
				_, err = trade.Cancel(seller, "too late", now)
				return err
			},
			expectedErr: domain.ErrStateConflict,
		},
		{
			name: "dispute_requires_escrow",
			apply: func(t *testing.T) error {
				trade := newTradeCreated(t)
				_, err := trade.OpenDispute(buyer, "dispute-1", "whatever", now)
				return err
			},
			expectedErr: domain.ErrStateConflict,
		},
		{
			name: "second_dispute_is_refused",
			apply: func(t *testing.T) error {
				trade := newTradePaymentMarked(t)
				trade.DisputeId = "dispute-1"
				_, err := trade.OpenDispute(seller, "dispute-2", "me too", now)
				return err
			},
			expectedErr: domain.ErrDisputeAlreadyOpen,
		},
		{
			name: "disputed_trade_refuses_new_dispute",
			apply: func(t *testing.T) error {
				trade := newTradeDisputed(t)
				_, err := trade.OpenDispute(seller, "dispute-2", "me too", now)
				return err
			},
			expectedErr: domain.ErrStateConflict,
		},
		{
			name: "resolve_requires_dispute",
			apply: func(t *testing.T) error {
				trade := newTradePaymentMarked(t)
				_, err := trade.ResolveDispute(arbiter, domain.DisputeOutcomeRelease, now)
				return err
			},
			expectedErr: domain.ErrStateConflict,
		},
		{
			name: "resolve_refuses_unknown_outcome",
			apply: func(t *testing.T) error {
				trade := newTradeDisputed(t)
				_, err := trade.ResolveDispute(arbiter, "split", now)
				return err
			},
			expectedErr: domain.ErrInvalidDisputeOutcome,
		},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.apply(t)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestCancelAfterRefund(t *testing.T) {
	trade := newTradeEscrowLocked(t)

	require.NoError(t, trade.ConfirmRefund(now))
	event, err := trade.Cancel(buyer, "payment_timeout", now)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, domain.EventTradeCancelled, event.Type)
	require.Equal(t, domain.TradeStatusCodeCancelled, trade.Status)
	require.Equal(t, domain.EscrowStatusRefunded, trade.EscrowStatus)
}

func TestSystemActorCancel(t *testing.T) {
	trade := newTradeEscrowLocked(t)
	require.NoError(t, trade.ConfirmRefund(now))

	event, err := trade.Cancel(domain.SystemActor, domain.ReasonPaymentTimeout, now)
	require.NoError(t, err)
	require.Equal(t, domain.RoleSystem, event.ActorRole)
	require.Equal(t, domain.ReasonPaymentTimeout, trade.CancelReason)
}

func TestDisputeResolution(t *testing.T) {
	t.Run("release", func(t *testing.T) {
		trade := newTradeDisputed(t)
		event, err := trade.ResolveDispute(arbiter, domain.DisputeOutcomeRelease, now)
		require.NoError(t, err)
		require.Equal(t, "release", event.Payload["outcome"])
		require.Equal(t, domain.TradeStatusCodeReleased, trade.Status)
		require.Equal(t, domain.EscrowStatusReleased, trade.EscrowStatus)
	})

	t.Run("refund", func(t *testing.T) {
		trade := newTradeDisputed(t)
		_, err := trade.ResolveDispute(arbiter, domain.DisputeOutcomeRefund, now)
		require.NoError(t, err)
		require.Equal(t, domain.TradeStatusCodeRefunded, trade.Status)
		require.Equal(t, domain.EscrowStatusRefunded, trade.EscrowStatus)
	})
}

func TestBrokenTimelineHaltsMutations(t *testing.T) {
	trade := newTradeEscrowLocked(t)
	trade.TimelineBroken = true

	_, err := trade.MarkPayment(buyer, "", now.Add(time.Hour), now)
	require.ErrorIs(t, err, domain.ErrTimelineIntegrity)
}

func TestCheckConsistency(t *testing.T) {
	trade := newTradePaymentMarked(t)
	require.NoError(t, trade.CheckConsistency())

	trade.EscrowStatus = domain.EscrowStatusNone
	require.Error(t, trade.CheckConsistency())
}

func TestActiveDeadline(t *testing.T) {
	trade := newTradeCreated(t)
	_, ok := trade.ActiveDeadline()
	require.False(t, ok)

	trade = newTradeEscrowLocked(t)
	deadline, ok := trade.ActiveDeadline()
	require.True(t, ok)
	require.Equal(t, trade.PaymentDeadline, deadline)

	trade = newTradePaymentMarked(t)
	deadline, ok = trade.ActiveDeadline()
	require.True(t, ok)
	require.Equal(t, trade.EscrowReleaseDeadline, deadline)
}
