package inmemory

import (
	"context"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type timelineRepositoryImpl struct {
	store *store
}

// NewTimelineRepositoryImpl returns a new inmemory TimelineRepository
// implementation.
func NewTimelineRepositoryImpl(store *store) domain.TimelineRepository {
	return &timelineRepositoryImpl{store}
}

func (r *timelineRepositoryImpl) AppendEvent(
	ctx context.Context, event *domain.TimelineEvent,
) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	r.store.eventSeq++
	event.Sequence = r.store.eventSeq
	r.store.events[event.TradeId] = append(r.store.events[event.TradeId], *event)
	return nil
}

func (r *timelineRepositoryImpl) ListEventsByTrade(
	ctx context.Context, tradeId string,
) ([]domain.TimelineEvent, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	stored := r.store.events[tradeId]
	events := make([]domain.TimelineEvent, len(stored))
	copy(events, stored)
	domain.SortTimeline(events)
	return events, nil
}
