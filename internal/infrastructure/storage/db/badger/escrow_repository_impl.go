package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type escrowRepositoryImpl struct {
	db *DbManager
}

// NewEscrowRepositoryImpl returns a badger EscrowRepository implementation.
// Escrows are keyed by trade id, one custody record per trade.
func NewEscrowRepositoryImpl(db *DbManager) domain.EscrowRepository {
	return &escrowRepositoryImpl{db}
}

func (r *escrowRepositoryImpl) AddEscrow(ctx context.Context, escrow *domain.Escrow) error {
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxInsert(tx, escrow.TradeId, *escrow)
	} else {
		err = r.db.Store.Insert(escrow.TradeId, *escrow)
	}
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return domain.ErrStateConflict
	}
	return err
}

func (r *escrowRepositoryImpl) GetEscrowByTrade(
	ctx context.Context, tradeId string,
) (*domain.Escrow, error) {
	var escrow domain.Escrow
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxGet(tx, tradeId, &escrow)
	} else {
		err = r.db.Store.Get(tradeId, &escrow)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, err
	}
	return &escrow, nil
}

func (r *escrowRepositoryImpl) UpdateEscrow(
	ctx context.Context,
	tradeId string,
	updateFn func(e *domain.Escrow) (*domain.Escrow, error),
) error {
	escrow, err := r.GetEscrowByTrade(ctx, tradeId)
	if err != nil {
		return err
	}

	updatedEscrow, err := updateFn(escrow)
	if err != nil {
		return err
	}

	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return r.db.Store.TxUpdate(tx, tradeId, *updatedEscrow)
	}
	return r.db.Store.Update(tradeId, *updatedEscrow)
}
