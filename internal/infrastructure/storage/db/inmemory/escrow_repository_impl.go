package inmemory

import (
	"context"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type escrowRepositoryImpl struct {
	store *store
}

// NewEscrowRepositoryImpl returns a new inmemory EscrowRepository
// implementation.
func NewEscrowRepositoryImpl(store *store) domain.EscrowRepository {
	return &escrowRepositoryImpl{store}
}

func (r *escrowRepositoryImpl) AddEscrow(ctx context.Context, escrow *domain.Escrow) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	if _, ok := r.store.escrows[escrow.TradeId]; ok {
		return domain.ErrStateConflict
	}
	r.store.escrows[escrow.TradeId] = *escrow
	return nil
}

func (r *escrowRepositoryImpl) GetEscrowByTrade(
	ctx context.Context, tradeId string,
) (*domain.Escrow, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	escrow, ok := r.store.escrows[tradeId]
	if !ok {
		return nil, domain.ErrEscrowNotFound
	}
	return &escrow, nil
}

func (r *escrowRepositoryImpl) UpdateEscrow(
	ctx context.Context,
	tradeId string,
	updateFn func(e *domain.Escrow) (*domain.Escrow, error),
) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	escrow, ok := r.store.escrows[tradeId]
	if !ok {
		return domain.ErrEscrowNotFound
	}

	updatedEscrow, err := updateFn(&escrow)
	if err != nil {
		return err
	}
	r.store.escrows[tradeId] = *updatedEscrow
	return nil
}
