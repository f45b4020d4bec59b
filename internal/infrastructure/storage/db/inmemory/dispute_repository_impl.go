package inmemory

import (
	"context"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type disputeRepositoryImpl struct {
	store *store
}

// NewDisputeRepositoryImpl returns a new inmemory DisputeRepository
// implementation.
func NewDisputeRepositoryImpl(store *store) domain.DisputeRepository {
	return &disputeRepositoryImpl{store}
}

func (r *disputeRepositoryImpl) AddDispute(ctx context.Context, dispute *domain.Dispute) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	for _, d := range r.store.disputes {
		if d.TradeId == dispute.TradeId && d.IsActive() {
			return domain.ErrDisputeAlreadyOpen
		}
	}
	r.store.disputes[dispute.Id] = *dispute
	return nil
}

func (r *disputeRepositoryImpl) GetDispute(
	ctx context.Context, disputeId string,
) (*domain.Dispute, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	dispute, ok := r.store.disputes[disputeId]
	if !ok {
		return nil, domain.ErrDisputeNotFound
	}
	return &dispute, nil
}

func (r *disputeRepositoryImpl) GetActiveDisputeByTrade(
	ctx context.Context, tradeId string,
) (*domain.Dispute, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	for _, d := range r.store.disputes {
		if d.TradeId == tradeId && d.IsActive() {
			dispute := d
			return &dispute, nil
		}
	}
	return nil, nil
}

func (r *disputeRepositoryImpl) GetAllDisputes(ctx context.Context) ([]domain.Dispute, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	disputes := make([]domain.Dispute, 0, len(r.store.disputes))
	for _, d := range r.store.disputes {
		disputes = append(disputes, d)
	}
	return disputes, nil
}

func (r *disputeRepositoryImpl) UpdateDispute(
	ctx context.Context,
	disputeId string,
	updateFn func(d *domain.Dispute) (*domain.Dispute, error),
) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	dispute, ok := r.store.disputes[disputeId]
	if !ok {
		return domain.ErrDisputeNotFound
	}

	updatedDispute, err := updateFn(&dispute)
	if err != nil {
		return err
	}
	r.store.disputes[disputeId] = *updatedDispute
	return nil
}
