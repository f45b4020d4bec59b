package domain

import "context"

// DisputeRepository is the abstraction for any kind of database intended to
// persist Disputes.
type DisputeRepository interface {
	// AddDispute persists a newly opened dispute.
	AddDispute(ctx context.Context, dispute *Dispute) error
	// GetDispute returns the dispute with the given id, or
	// ErrDisputeNotFound.
	GetDispute(ctx context.Context, disputeId string) (*Dispute, error)
	// GetActiveDisputeByTrade returns the active dispute of a trade if any,
	// nil otherwise.
	GetActiveDisputeByTrade(ctx context.Context, tradeId string) (*Dispute, error)
	// GetAllDisputes returns all the disputes stored in the repository.
	GetAllDisputes(ctx context.Context) ([]Dispute, error)
	// UpdateDispute commits changes to the same dispute in a transactional
	// way.
	UpdateDispute(
		ctx context.Context,
		disputeId string,
		updateFn func(d *Dispute) (*Dispute, error),
	) error
}
