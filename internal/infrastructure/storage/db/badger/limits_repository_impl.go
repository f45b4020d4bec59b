package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type limitsRepositoryImpl struct {
	db *DbManager
}

// NewLimitsRepositoryImpl returns a badger LimitsRepository implementation.
// Counters are keyed by userId|day.
func NewLimitsRepositoryImpl(db *DbManager) domain.LimitsRepository {
	return &limitsRepositoryImpl{db}
}

func limitsKey(userId, day string) string {
	return userId + "|" + day
}

func (r *limitsRepositoryImpl) GetOrCreateLimits(
	ctx context.Context, userId, day string,
) (*domain.UserLimits, error) {
	limits, err := r.getLimits(ctx, userId, day)
	if err != nil {
		return nil, err
	}
	if limits != nil {
		return limits, nil
	}

	newLimits := &domain.UserLimits{UserId: userId, Day: day, Volume: decimal.Zero}
	if err := r.upsertLimits(ctx, newLimits); err != nil {
		return nil, err
	}
	return newLimits, nil
}

func (r *limitsRepositoryImpl) UpdateLimits(
	ctx context.Context,
	userId, day string,
	updateFn func(l *domain.UserLimits) (*domain.UserLimits, error),
) error {
	limits, err := r.GetOrCreateLimits(ctx, userId, day)
	if err != nil {
		return err
	}

	updatedLimits, err := updateFn(limits)
	if err != nil {
		return err
	}
	return r.upsertLimits(ctx, updatedLimits)
}

func (r *limitsRepositoryImpl) ResetDay(ctx context.Context, day string) error {
	query := badgerhold.Where("Day").Eq(day)
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return r.db.Store.TxDeleteMatching(tx, domain.UserLimits{}, query)
	}
	return r.db.Store.DeleteMatching(domain.UserLimits{}, query)
}

func (r *limitsRepositoryImpl) getLimits(
	ctx context.Context, userId, day string,
) (*domain.UserLimits, error) {
	var limits domain.UserLimits
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxGet(tx, limitsKey(userId, day), &limits)
	} else {
		err = r.db.Store.Get(limitsKey(userId, day), &limits)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &limits, nil
}

func (r *limitsRepositoryImpl) upsertLimits(
	ctx context.Context, limits *domain.UserLimits,
) error {
	key := limitsKey(limits.UserId, limits.Day)
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return r.db.Store.TxUpsert(tx, key, *limits)
	}
	return r.db.Store.Upsert(key, *limits)
}
