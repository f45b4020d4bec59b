package inmemory

import (
	"context"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type tradeRepositoryImpl struct {
	store *store
}

// NewTradeRepositoryImpl returns a new inmemory TradeRepository implementation.
func NewTradeRepositoryImpl(store *store) domain.TradeRepository {
	return &tradeRepositoryImpl{store}
}

func (r *tradeRepositoryImpl) AddTrade(ctx context.Context, trade *domain.Trade) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	if _, ok := r.store.trades[trade.Id]; ok {
		return domain.ErrStateConflict
	}
	r.store.trades[trade.Id] = *trade
	return nil
}

func (r *tradeRepositoryImpl) GetTrade(ctx context.Context, tradeId string) (*domain.Trade, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	return r.getTrade(tradeId)
}

func (r *tradeRepositoryImpl) GetAllTrades(ctx context.Context) ([]domain.Trade, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	trades := make([]domain.Trade, 0, len(r.store.trades))
	for _, t := range r.store.trades {
		trades = append(trades, t)
	}
	return trades, nil
}

func (r *tradeRepositoryImpl) GetTradesByStatus(
	ctx context.Context, status domain.TradeStatus,
) ([]domain.Trade, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	trades := make([]domain.Trade, 0)
	for _, t := range r.store.trades {
		if t.Status == status {
			trades = append(trades, t)
		}
	}
	return trades, nil
}

func (r *tradeRepositoryImpl) UpdateTrade(
	ctx context.Context,
	tradeId string,
	updateFn func(t *domain.Trade) (*domain.Trade, error),
) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	currentTrade, err := r.getTrade(tradeId)
	if err != nil {
		return err
	}
	version := currentTrade.Version

	updatedTrade, err := updateFn(currentTrade)
	if err != nil {
		return err
	}
	if err := updatedTrade.CheckConsistency(); err != nil {
		return err
	}

	// the store locker serializes writers, the version check is a guard
	// against an update function holding a stale copy.
	if stored := r.store.trades[tradeId]; stored.Version != version {
		return domain.ErrStateConflict
	}
	updatedTrade.Version = version + 1
	r.store.trades[tradeId] = *updatedTrade
	return nil
}

func (r *tradeRepositoryImpl) getTrade(tradeId string) (*domain.Trade, error) {
	trade, ok := r.store.trades[tradeId]
	if !ok {
		return nil, domain.ErrTradeNotFound
	}
	return &trade, nil
}
