package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type timelineRepositoryImpl struct {
	db *DbManager
}

// NewTimelineRepositoryImpl returns a badger TimelineRepository
// implementation. Events are write-once: no update nor delete path exists.
func NewTimelineRepositoryImpl(db *DbManager) domain.TimelineRepository {
	return &timelineRepositoryImpl{db}
}

func (r *timelineRepositoryImpl) AppendEvent(
	ctx context.Context, event *domain.TimelineEvent,
) error {
	seq, err := r.db.nextTimelineSequence()
	if err != nil {
		return err
	}
	event.Sequence = seq

	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		return r.db.Store.TxInsert(tx, event.Id, *event)
	}
	return r.db.Store.Insert(event.Id, *event)
}

func (r *timelineRepositoryImpl) ListEventsByTrade(
	ctx context.Context, tradeId string,
) ([]domain.TimelineEvent, error) {
	query := badgerhold.Where("TradeId").Eq(tradeId)

	var events []domain.TimelineEvent
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxFind(tx, &events, query)
	} else {
		err = r.db.Store.Find(&events, query)
	}
	if err != nil {
		return nil, err
	}

	domain.SortTimeline(events)
	return events, nil
}
