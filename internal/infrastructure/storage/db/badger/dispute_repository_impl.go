package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type disputeRepositoryImpl struct {
	db *DbManager
}

// NewDisputeRepositoryImpl returns a badger DisputeRepository implementation.
func NewDisputeRepositoryImpl(db *DbManager) domain.DisputeRepository {
	return &disputeRepositoryImpl{db}
}

func (r *disputeRepositoryImpl) AddDispute(ctx context.Context, dispute *domain.Dispute) error {
	active, err := r.GetActiveDisputeByTrade(ctx, dispute.TradeId)
	if err != nil {
		return err
	}
	if active != nil {
		return domain.ErrDisputeAlreadyOpen
	}

	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return r.db.Store.TxInsert(tx, dispute.Id, *dispute)
	}
	return r.db.Store.Insert(dispute.Id, *dispute)
}

func (r *disputeRepositoryImpl) GetDispute(
	ctx context.Context, disputeId string,
) (*domain.Dispute, error) {
	var dispute domain.Dispute
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxGet(tx, disputeId, &dispute)
	} else {
		err = r.db.Store.Get(disputeId, &dispute)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrDisputeNotFound
		}
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepositoryImpl) GetActiveDisputeByTrade(
	ctx context.Context, tradeId string,
) (*domain.Dispute, error) {
	query := badgerhold.Where("TradeId").Eq(tradeId)

	disputes, err := r.findDisputes(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range disputes {
		if disputes[i].IsActive() {
			return &disputes[i], nil
		}
	}
	return nil, nil
}

func (r *disputeRepositoryImpl) GetAllDisputes(ctx context.Context) ([]domain.Dispute, error) {
	return r.findDisputes(ctx, &badgerhold.Query{})
}

func (r *disputeRepositoryImpl) UpdateDispute(
	ctx context.Context,
	disputeId string,
	updateFn func(d *domain.Dispute) (*domain.Dispute, error),
) error {
	dispute, err := r.GetDispute(ctx, disputeId)
	if err != nil {
		return err
	}

	updatedDispute, err := updateFn(dispute)
	if err != nil {
		return err
	}

	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return r.db.Store.TxUpdate(tx, disputeId, *updatedDispute)
	}
	return r.db.Store.Update(disputeId, *updatedDispute)
}

func (r *disputeRepositoryImpl) findDisputes(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Dispute, error) {
	var disputes []domain.Dispute
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxFind(tx, &disputes, query)
	} else {
		err = r.db.Store.Find(&disputes, query)
	}
	return disputes, err
}
