package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type tradeRepositoryImpl struct {
	db *DbManager
}

// NewTradeRepositoryImpl returns a badger TradeRepository implementation.
func NewTradeRepositoryImpl(db *DbManager) domain.TradeRepository {
	return &tradeRepositoryImpl{db}
}

func (r *tradeRepositoryImpl) AddTrade(ctx context.Context, trade *domain.Trade) error {
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxInsert(tx, trade.Id, *trade)
	} else {
		err = r.db.Store.Insert(trade.Id, *trade)
	}
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return domain.ErrStateConflict
	}
	return err
}

func (r *tradeRepositoryImpl) GetTrade(
	ctx context.Context, tradeId string,
) (*domain.Trade, error) {
	return r.getTrade(ctx, tradeId)
}

func (r *tradeRepositoryImpl) GetAllTrades(ctx context.Context) ([]domain.Trade, error) {
	return r.findTrades(ctx, &badgerhold.Query{})
}

func (r *tradeRepositoryImpl) GetTradesByStatus(
	ctx context.Context, status domain.TradeStatus,
) ([]domain.Trade, error) {
	query := badgerhold.Where("Status").Eq(status)
	return r.findTrades(ctx, query)
}

func (r *tradeRepositoryImpl) UpdateTrade(
	ctx context.Context,
	tradeId string,
	updateFn func(t *domain.Trade) (*domain.Trade, error),
) error {
	currentTrade, err := r.getTrade(ctx, tradeId)
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

	stored, err := r.getTrade(ctx, tradeId)
	if err != nil {
		return err
	}
	if stored.Version != version {
		return domain.ErrStateConflict
	}
	updatedTrade.Version = version + 1

	return r.updateTrade(ctx, *updatedTrade)
}

func (r *tradeRepositoryImpl) getTrade(
	ctx context.Context, tradeId string,
) (*domain.Trade, error) {
	var trade domain.Trade
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxGet(tx, tradeId, &trade)
	} else {
		err = r.db.Store.Get(tradeId, &trade)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrTradeNotFound
		}
		return nil, err
	}
	return &trade, nil
}

func (r *tradeRepositoryImpl) findTrades(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Trade, error) {
	var trades []domain.Trade
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxFind(tx, &trades, query)
	} else {
		err = r.db.Store.Find(&trades, query)
	}
	return trades, err
}

func (r *tradeRepositoryImpl) updateTrade(ctx context.Context, trade domain.Trade) error {
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return r.db.Store.TxUpdate(tx, trade.Id, trade)
	}
	return r.db.Store.Update(trade.Id, trade)
}
