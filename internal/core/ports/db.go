package ports

import (
	"context"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

// RepoManager gives access to all the repositories of the daemon and to the
// transactional boundary shared by them.
type RepoManager interface {
	TradeRepository() domain.TradeRepository
	TimelineRepository() domain.TimelineRepository
	EscrowRepository() domain.EscrowRepository
	DisputeRepository() domain.DisputeRepository
	OfferRepository() domain.OfferRepository
	LimitsRepository() domain.LimitsRepository

	// RunTransaction runs the handler within a single store transaction: all
	// the repository calls made through the handler's context are committed
	// or discarded as one unit. This is what makes a state change and its
	// timeline event atomic.
	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)

	// Close should be used to gracefully close the connection with the store.
	Close()
}
