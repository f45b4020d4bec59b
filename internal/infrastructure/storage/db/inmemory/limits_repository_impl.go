package inmemory

import (
	"context"
	"strings"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/shopspring/decimal"
)

type limitsRepositoryImpl struct {
	store *store
}

// NewLimitsRepositoryImpl returns a new inmemory LimitsRepository
// implementation.
func NewLimitsRepositoryImpl(store *store) domain.LimitsRepository {
	return &limitsRepositoryImpl{store}
}

func limitsKey(userId, day string) string {
	return userId + "|" + day
}

func (r *limitsRepositoryImpl) GetOrCreateLimits(
	ctx context.Context, userId, day string,
) (*domain.UserLimits, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	return r.getOrCreateLimits(userId, day), nil
}

func (r *limitsRepositoryImpl) UpdateLimits(
	ctx context.Context,
	userId, day string,
	updateFn func(l *domain.UserLimits) (*domain.UserLimits, error),
) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	limits := r.getOrCreateLimits(userId, day)
	updatedLimits, err := updateFn(limits)
	if err != nil {
		return err
	}
	r.store.limits[limitsKey(userId, day)] = *updatedLimits
	return nil
}

func (r *limitsRepositoryImpl) ResetDay(ctx context.Context, day string) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	for key := range r.store.limits {
		if strings.HasSuffix(key, "|"+day) {
			delete(r.store.limits, key)
		}
	}
	return nil
}

func (r *limitsRepositoryImpl) getOrCreateLimits(userId, day string) *domain.UserLimits {
	key := limitsKey(userId, day)
	if limits, ok := r.store.limits[key]; ok {
		return &limits
	}
	limits := domain.UserLimits{
		UserId: userId,
		Day:    day,
		Volume: decimal.Zero,
	}
	r.store.limits[key] = limits
	return &limits
}
