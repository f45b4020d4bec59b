package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTradeNotFound ...
	ErrTradeNotFound = errors.New("trade not found")
	// ErrOfferNotFound ...
	ErrOfferNotFound = errors.New("offer not found")
	// ErrDisputeNotFound ...
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrEscrowNotFound ...
	ErrEscrowNotFound = errors.New("escrow not found")

	// ErrUnauthorized is returned when the actor role does not match the one
	// required by the requested transition. The trade is left untouched.
	ErrUnauthorized = errors.New("actor is not allowed to perform this transition")
	// ErrStateConflict is returned when the current trade status does not
	// allow the requested transition. Safe to retry after refetching.
	ErrStateConflict = errors.New("trade status does not allow this transition")
	// ErrAmountOutOfRange is returned when the requested amount falls outside
	// the [min, max] range of the referenced offer.
	ErrAmountOutOfRange = errors.New("amount is out of the offer min/max range")
	// ErrLimitExceeded is returned when a user breached one of its daily caps.
	ErrLimitExceeded = errors.New("daily limit exceeded")
	// ErrEscrowNotLocked is returned when attempting to release or refund an
	// escrow that is not in locked status.
	ErrEscrowNotLocked = errors.New("escrow is not locked")
	// ErrEscrowStillLocked is returned when committing a terminal status that
	// would leave locked funds behind.
	ErrEscrowStillLocked = errors.New("escrow must be released or refunded first")
	// ErrTimelineIntegrity marks a trade whose timeline failed to load. The
	// trade refuses any further mutation until manually repaired.
	ErrTimelineIntegrity = errors.New("trade timeline is corrupted, mutations are halted")
	// ErrDisputeAlreadyOpen ...
	ErrDisputeAlreadyOpen = errors.New("trade has already an active dispute")
	// ErrDisputeNotActive ...
	ErrDisputeNotActive = errors.New("dispute is not in a resolvable status")
	// ErrInvalidDisputeOutcome ...
	ErrInvalidDisputeOutcome = errors.New("dispute outcome must be either release or refund")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrInvalidPaymentMethod ...
	ErrInvalidPaymentMethod = errors.New("payment method is not accepted by the offer")
	// ErrMissingReason ...
	ErrMissingReason = errors.New("a non-empty reason is required")
	// ErrInvalidOffer ...
	ErrInvalidOffer = errors.New("offer fields are missing or inconsistent")
)

// EscrowAdapterError wraps a failure returned by the escrow adapter.
// Transient failures are meant to be retried with backoff by the caller,
// permanent ones block the transition and are surfaced to the actor.
type EscrowAdapterError struct {
	Op        string
	TradeId   string
	Transient bool
	Err       error
}

func (e *EscrowAdapterError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("escrow adapter: %s failed for trade %s (%s): %v", e.Op, e.TradeId, kind, e.Err)
}

func (e *EscrowAdapterError) Unwrap() error { return e.Err }

// IsTransient returns whether the given error is a transient escrow adapter
// failure worth retrying.
func IsTransient(err error) bool {
	var adapterErr *EscrowAdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Transient
	}
	return false
}
