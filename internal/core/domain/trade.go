package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeStatus represents the different statuses that a trade can assume.
type TradeStatus int

func (s TradeStatus) String() string {
	switch s {
	case TradeStatusCodeCreated:
		return "CREATED"
	case TradeStatusCodeEscrowLocked:
		return "ESCROW_LOCKED"
	case TradeStatusCodePaymentMarked:
		return "PAYMENT_MARKED"
	case TradeStatusCodeDispute:
		return "DISPUTE"
	case TradeStatusCodeReleased:
		return "RELEASED"
	case TradeStatusCodeCancelled:
		return "CANCELLED"
	case TradeStatusCodeRefunded:
		return "REFUNDED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal returns whether no further transition is allowed from the status.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusCodeReleased ||
		s == TradeStatusCodeCancelled ||
		s == TradeStatusCodeRefunded
}

// EscrowStatus represents the custody status of the asset backing a trade.
type EscrowStatus int

func (s EscrowStatus) String() string {
	switch s {
	case EscrowStatusNone:
		return "none"
	case EscrowStatusLocked:
		return "locked"
	case EscrowStatusReleased:
		return "released"
	case EscrowStatusRefunded:
		return "refunded"
	case EscrowStatusDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// Trade is the entity representing an asset-for-currency exchange between a
// buyer and a seller. Its economic terms are snapshotted from the originating
// offer at creation time and never recomputed afterwards.
type Trade struct {
	Id            string
	OfferId       string
	BuyerId       string
	SellerId      string
	AssetCode     string
	Currency      string
	Amount        decimal.Decimal
	UnitPrice     decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod string

	Status       TradeStatus
	EscrowStatus EscrowStatus

	// PaymentWindow and EscrowDuration are snapshotted from the offer and
	// used to compute the deadlines when the relevant state is entered.
	PaymentWindow  time.Duration
	EscrowDuration time.Duration

	PaymentDeadline       time.Time
	EscrowReleaseDeadline time.Time

	EscrowReference string
	PaymentProof    string
	CancelReason    string
	DisputeId       string

	// TimelineBroken flags a trade whose timeline failed to load. All
	// mutations are refused until the timeline is manually repaired.
	TimelineBroken bool

	Version   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTradeFromOffer builds a trade from an immutable offer snapshot. The total
// is fixed here and stays invariant for the whole trade lifetime, even if the
// originating offer is edited later on.
func NewTradeFromOffer(
	offer *Offer, amount decimal.Decimal, buyerId, paymentMethod string,
	now time.Time,
) (*Trade, error) {
	// the engine only mediates escrow-backed trades; offers waiving the
	// escrow belong to a direct-settlement flow it does not implement.
	if !offer.EscrowMandatory {
		return nil, ErrInvalidOffer
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if !offer.AmountInRange(amount) {
		return nil, ErrAmountOutOfRange
	}
	if !offer.AcceptsPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	return &Trade{
		Id:             uuid.New().String(),
		OfferId:        offer.Id,
		BuyerId:        buyerId,
		SellerId:       offer.OwnerId,
		AssetCode:      offer.AssetCode,
		Currency:       offer.Currency,
		Amount:         amount,
		UnitPrice:      offer.UnitPrice,
		Total:          amount.Mul(offer.UnitPrice),
		PaymentMethod:  paymentMethod,
		PaymentWindow:  offer.PaymentWindow,
		EscrowDuration: offer.EscrowDuration,
		Status:         TradeStatusCodeCreated,
		EscrowStatus:   EscrowStatusNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanLockEscrow validates the precondition of the lock escrow transition
// without mutating the trade.
func (t *Trade) CanLockEscrow(actor Actor) error {
	if t.TimelineBroken {
		return ErrTimelineIntegrity
	}
	if actor.Role != RoleSeller || actor.Id != t.SellerId {
		return ErrUnauthorized
	}
	if t.Status != TradeStatusCodeCreated {
		return ErrStateConflict
	}
	return nil
}

// LockEscrow brings the trade from CREATED to ESCROW_LOCKED once the escrow
// adapter acknowledged the lock. The payment deadline starts running from now.
func (t *Trade) LockEscrow(
	actor Actor, escrowRef string, paymentDeadline, now time.Time,
) (*TimelineEvent, error) {
	if err := t.CanLockEscrow(actor); err != nil {
		return nil, err
	}

	t.Status = TradeStatusCodeEscrowLocked
	t.EscrowStatus = EscrowStatusLocked
	t.EscrowReference = escrowRef
	t.PaymentDeadline = paymentDeadline
	t.UpdatedAt = now

	return t.newEvent(EventEscrowLocked, actor, now, map[string]string{
		"escrow_reference": escrowRef,
	}), nil
}

// CanMarkPayment validates the precondition of the mark payment transition.
func (t *Trade) CanMarkPayment(actor Actor) error {
	if t.TimelineBroken {
		return ErrTimelineIntegrity
	}
	if actor.Role != RoleBuyer || actor.Id != t.BuyerId {
		return ErrUnauthorized
	}
	if t.Status != TradeStatusCodeEscrowLocked {
		return ErrStateConflict
	}
	if t.EscrowStatus != EscrowStatusLocked {
		return ErrStateConflict
	}
	return nil
}

// MarkPayment brings the trade from ESCROW_LOCKED to PAYMENT_MARKED. The
// escrow release deadline starts running from now.
func (t *Trade) MarkPayment(
	actor Actor, proof string, releaseDeadline, now time.Time,
) (*TimelineEvent, error) {
	if err := t.CanMarkPayment(actor); err != nil {
		return nil, err
	}

	t.Status = TradeStatusCodePaymentMarked
	t.PaymentProof = proof
	t.EscrowReleaseDeadline = releaseDeadline
	t.UpdatedAt = now

	payload := map[string]string{}
	if proof != "" {
		payload["payment_proof"] = proof
	}
	return t.newEvent(EventPaymentMarked, actor, now, payload), nil
}

// CanRelease validates the precondition of the release transition.
func (t *Trade) CanRelease(actor Actor) error {
	if t.TimelineBroken {
		return ErrTimelineIntegrity
	}
	if actor.Role != RoleSeller || actor.Id != t.SellerId {
		return ErrUnauthorized
	}
	if t.Status != TradeStatusCodePaymentMarked {
		return ErrStateConflict
	}
	return nil
}

// Release brings the trade to the terminal RELEASED status once the escrow
// adapter acknowledged the release of the locked funds.
func (t *Trade) Release(actor Actor, now time.Time) (*TimelineEvent, error) {
	if err := t.CanRelease(actor); err != nil {
		return nil, err
	}

	t.Status = TradeStatusCodeReleased
	t.EscrowStatus = EscrowStatusReleased
	t.UpdatedAt = now

	return t.newEvent(EventTradeReleased, actor, now, nil), nil
}

// CanCancel validates the precondition of the cancel transition. Both
// counterparties can cancel, and so does the system on payment timeout.
func (t *Trade) CanCancel(actor Actor) error {
	if t.TimelineBroken {
		return ErrTimelineIntegrity
	}
	switch actor.Role {
	case RoleBuyer:
		if actor.Id != t.BuyerId {
			return ErrUnauthorized
		}
	case RoleSeller:
		if actor.Id != t.SellerId {
			return ErrUnauthorized
		}
	case RoleSystem:
	default:
		return ErrUnauthorized
	}
	if t.Status != TradeStatusCodeCreated && t.Status != TradeStatusCodeEscrowLocked {
		return ErrStateConflict
	}
	return nil
}

// ConfirmRefund records the refund of a locked escrow. It must be called
// before committing a CANCELLED status on a trade whose escrow is locked.
func (t *Trade) ConfirmRefund(now time.Time) error {
	if t.EscrowStatus != EscrowStatusLocked && t.EscrowStatus != EscrowStatusDisputed {
		return ErrEscrowNotLocked
	}
	t.EscrowStatus = EscrowStatusRefunded
	t.UpdatedAt = now
	return nil
}

// Cancel brings the trade to the terminal CANCELLED status. A locked escrow
// must have been refunded first: committing CANCELLED with locked funds is a
// forbidden combination.
func (t *Trade) Cancel(actor Actor, reason string, now time.Time) (*TimelineEvent, error) {
	if err := t.CanCancel(actor); err != nil {
		return nil, err
	}
	if t.EscrowStatus == EscrowStatusLocked {
		return nil, ErrEscrowStillLocked
	}

	t.Status = TradeStatusCodeCancelled
	t.CancelReason = reason
	t.UpdatedAt = now

	return t.newEvent(EventTradeCancelled, actor, now, map[string]string{
		"reason":        reason,
		"escrow_status": t.EscrowStatus.String(),
	}), nil
}

// CanOpenDispute validates the precondition of the dispute transition. Both
// counterparties can open a dispute, and so does the system on release
// timeout.
func (t *Trade) CanOpenDispute(actor Actor) error {
	if t.TimelineBroken {
		return ErrTimelineIntegrity
	}
	switch actor.Role {
	case RoleBuyer:
		if actor.Id != t.BuyerId {
			return ErrUnauthorized
		}
	case RoleSeller:
		if actor.Id != t.SellerId {
			return ErrUnauthorized
		}
	case RoleSystem:
	default:
		return ErrUnauthorized
	}
	if t.Status != TradeStatusCodeEscrowLocked && t.Status != TradeStatusCodePaymentMarked {
		return ErrStateConflict
	}
	if t.DisputeId != "" {
		return ErrDisputeAlreadyOpen
	}
	return nil
}

// OpenDispute brings the trade to the DISPUTE status and links the dispute
// record adjudicating it.
func (t *Trade) OpenDispute(
	actor Actor, disputeId, reason string, now time.Time,
) (*TimelineEvent, error) {
	if err := t.CanOpenDispute(actor); err != nil {
		return nil, err
	}

	t.Status = TradeStatusCodeDispute
	t.EscrowStatus = EscrowStatusDisputed
	t.DisputeId = disputeId
	t.UpdatedAt = now

	return t.newEvent(EventDisputeOpened, actor, now, map[string]string{
		"dispute_id": disputeId,
		"reason":     reason,
	}), nil
}

// CanResolveDispute validates the precondition of the resolve transition,
// which is reserved to the arbiter role.
func (t *Trade) CanResolveDispute(actor Actor) error {
	if t.TimelineBroken {
		return ErrTimelineIntegrity
	}
	if actor.Role != RoleArbiter {
		return ErrUnauthorized
	}
	if t.Status != TradeStatusCodeDispute {
		return ErrStateConflict
	}
	return nil
}

// ResolveDispute brings a disputed trade to one of the two terminal statuses
// decided by the arbiter: RELEASED with outcome release, REFUNDED with
// outcome refund.
func (t *Trade) ResolveDispute(
	actor Actor, outcome string, now time.Time,
) (*TimelineEvent, error) {
	if err := t.CanResolveDispute(actor); err != nil {
		return nil, err
	}

	switch outcome {
	case DisputeOutcomeRelease:
		t.Status = TradeStatusCodeReleased
		t.EscrowStatus = EscrowStatusReleased
	case DisputeOutcomeRefund:
		t.Status = TradeStatusCodeRefunded
		t.EscrowStatus = EscrowStatusRefunded
	default:
		return nil, ErrInvalidDisputeOutcome
	}
	t.UpdatedAt = now

	return t.newEvent(EventDisputeResolved, actor, now, map[string]string{
		"dispute_id": t.DisputeId,
		"outcome":    outcome,
	}), nil
}

// CheckConsistency returns an error if the (status, escrowStatus) pair is a
// forbidden combination.
func (t *Trade) CheckConsistency() error {
	switch t.Status {
	case TradeStatusCodeCreated:
		if t.EscrowStatus != EscrowStatusNone {
			return ErrStateConflict
		}
	case TradeStatusCodeEscrowLocked, TradeStatusCodePaymentMarked:
		if t.EscrowStatus != EscrowStatusLocked {
			return ErrStateConflict
		}
	case TradeStatusCodeDispute:
		if t.EscrowStatus != EscrowStatusDisputed {
			return ErrStateConflict
		}
	case TradeStatusCodeReleased:
		if t.EscrowStatus != EscrowStatusReleased {
			return ErrStateConflict
		}
	case TradeStatusCodeCancelled:
		if t.EscrowStatus != EscrowStatusNone && t.EscrowStatus != EscrowStatusRefunded {
			return ErrStateConflict
		}
	case TradeStatusCodeRefunded:
		if t.EscrowStatus != EscrowStatusRefunded {
			return ErrStateConflict
		}
	}
	return nil
}

// IsCreated returns whether the trade is in CREATED status.
func (t *Trade) IsCreated() bool { return t.Status == TradeStatusCodeCreated }

// IsEscrowLocked returns whether the trade is in ESCROW_LOCKED status.
func (t *Trade) IsEscrowLocked() bool { return t.Status == TradeStatusCodeEscrowLocked }

// IsPaymentMarked returns whether the trade is in PAYMENT_MARKED status.
func (t *Trade) IsPaymentMarked() bool { return t.Status == TradeStatusCodePaymentMarked }

// IsDisputed returns whether the trade is in DISPUTE status.
func (t *Trade) IsDisputed() bool { return t.Status == TradeStatusCodeDispute }

// IsTerminal returns whether the trade reached one of its terminal statuses.
func (t *Trade) IsTerminal() bool { return t.Status.IsTerminal() }

// ActiveDeadline returns the deadline relevant to the current status, if any.
func (t *Trade) ActiveDeadline() (time.Time, bool) {
	switch t.Status {
	case TradeStatusCodeEscrowLocked:
		return t.PaymentDeadline, !t.PaymentDeadline.IsZero()
	case TradeStatusCodePaymentMarked:
		return t.EscrowReleaseDeadline, !t.EscrowReleaseDeadline.IsZero()
	default:
		return time.Time{}, false
	}
}

func (t *Trade) newEvent(
	eventType string, actor Actor, now time.Time, payload map[string]string,
) *TimelineEvent {
	return &TimelineEvent{
		Id:        uuid.New().String(),
		TradeId:   t.Id,
		Type:      eventType,
		ActorRole: actor.Role,
		ActorId:   actor.Id,
		Timestamp: now,
		Payload:   payload,
	}
}
