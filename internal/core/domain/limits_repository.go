package domain

import "context"

// LimitsRepository is the abstraction for the per-user daily counters.
type LimitsRepository interface {
	// GetOrCreateLimits returns the counters of the given user for the given
	// day, creating zeroed ones if missing.
	GetOrCreateLimits(ctx context.Context, userId, day string) (*UserLimits, error)
	// UpdateLimits commits changes to the counters of a user in a
	// transactional way.
	UpdateLimits(
		ctx context.Context,
		userId, day string,
		updateFn func(l *UserLimits) (*UserLimits, error),
	) error
	// ResetDay drops all the counters of the given day. Called by the
	// external day-rollover process.
	ResetDay(ctx context.Context, day string) error
}
