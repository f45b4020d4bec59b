package domain

import (
	"time"

	"github.com/google/uuid"
)

// DisputeStatus represents the lifecycle of a dispute record.
type DisputeStatus int

const (
	DisputeStatusOpen DisputeStatus = iota
	DisputeStatusUnderReview
	DisputeStatusResolved
	DisputeStatusClosed
)

func (s DisputeStatus) String() string {
	switch s {
	case DisputeStatusOpen:
		return "OPEN"
	case DisputeStatusUnderReview:
		return "UNDER_REVIEW"
	case DisputeStatusResolved:
		return "RESOLVED"
	case DisputeStatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Dispute is the adjudication record attached to a disputed trade. At most
// one active dispute exists per trade; its resolution drives the trade to a
// terminal status.
type Dispute struct {
	Id          string
	TradeId     string
	OpenedBy    string
	OpenedRole  ActorRole
	Reason      string
	Status      DisputeStatus
	Attachments []string
	Outcome     string
	Resolution  string
	ResolvedBy  string
	CreatedAt   time.Time
	ResolvedAt  time.Time
	UpdatedAt   time.Time
}

// NewDispute returns an open dispute for the given trade.
func NewDispute(tradeId string, openedBy Actor, reason string, now time.Time) *Dispute {
	return &Dispute{
		Id:         uuid.New().String(),
		TradeId:    tradeId,
		OpenedBy:   openedBy.Id,
		OpenedRole: openedBy.Role,
		Reason:     reason,
		Status:     DisputeStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsActive returns whether the dispute is still waiting for a resolution.
func (d *Dispute) IsActive() bool {
	return d.Status == DisputeStatusOpen || d.Status == DisputeStatusUnderReview
}

// StartReview moves an open dispute under review by the arbiter.
func (d *Dispute) StartReview(arbiter Actor, now time.Time) error {
	if arbiter.Role != RoleArbiter {
		return ErrUnauthorized
	}
	if d.Status != DisputeStatusOpen {
		return ErrDisputeNotActive
	}
	d.Status = DisputeStatusUnderReview
	d.UpdatedAt = now
	return nil
}

// Resolve records the arbiter decision on the dispute. The outcome must be
// either release or refund.
func (d *Dispute) Resolve(arbiter Actor, outcome, note string, now time.Time) error {
	if arbiter.Role != RoleArbiter {
		return ErrUnauthorized
	}
	if !d.IsActive() {
		return ErrDisputeNotActive
	}
	if outcome != DisputeOutcomeRelease && outcome != DisputeOutcomeRefund {
		return ErrInvalidDisputeOutcome
	}
	d.Status = DisputeStatusResolved
	d.Outcome = outcome
	d.Resolution = note
	d.ResolvedBy = arbiter.Id
	d.ResolvedAt = now
	d.UpdatedAt = now
	return nil
}

// AddAttachment appends a proof attachment to the dispute.
func (d *Dispute) AddAttachment(attachment string, now time.Time) error {
	if !d.IsActive() {
		return ErrDisputeNotActive
	}
	d.Attachments = append(d.Attachments, attachment)
	d.UpdatedAt = now
	return nil
}
