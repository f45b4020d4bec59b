package inmemory

import (
	"context"
	"sync"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

type txKey struct{}

// store holds all the in-memory tables under a single locker so that a
// transaction spanning multiple repositories stays atomic.
type store struct {
	locker   sync.Mutex
	trades   map[string]domain.Trade
	events   map[string][]domain.TimelineEvent
	eventSeq uint64
	escrows  map[string]domain.Escrow
	disputes map[string]domain.Dispute
	offers   map[string]domain.Offer
	limits   map[string]domain.UserLimits
}

func newStore() *store {
	return &store{
		trades:   map[string]domain.Trade{},
		events:   map[string][]domain.TimelineEvent{},
		escrows:  map[string]domain.Escrow{},
		disputes: map[string]domain.Dispute{},
		offers:   map[string]domain.Offer{},
		limits:   map[string]domain.UserLimits{},
	}
}

// lock acquires the store locker unless the context carries an already open
// transaction, in which case the locker is held by RunTransaction.
func (s *store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.locker.Lock()
	return s.locker.Unlock
}

func (s *store) snapshot() *store {
	cp := newStore()
	cp.eventSeq = s.eventSeq
	for k, v := range s.trades {
		cp.trades[k] = v
	}
	for k, v := range s.events {
		events := make([]domain.TimelineEvent, len(v))
		copy(events, v)
		cp.events[k] = events
	}
	for k, v := range s.escrows {
		cp.escrows[k] = v
	}
	for k, v := range s.disputes {
		cp.disputes[k] = v
	}
	for k, v := range s.offers {
		cp.offers[k] = v
	}
	for k, v := range s.limits {
		cp.limits[k] = v
	}
	return cp
}

func (s *store) restore(snap *store) {
	s.trades = snap.trades
	s.events = snap.events
	s.eventSeq = snap.eventSeq
	s.escrows = snap.escrows
	s.disputes = snap.disputes
	s.offers = snap.offers
	s.limits = snap.limits
}

// RepoManager is the in-memory ports.RepoManager implementation used by
// tests and by the dev mode of the daemon.
type RepoManager struct {
	store              *store
	tradeRepository    domain.TradeRepository
	timelineRepository domain.TimelineRepository
	escrowRepository   domain.EscrowRepository
	disputeRepository  domain.DisputeRepository
	offerRepository    domain.OfferRepository
	limitsRepository   domain.LimitsRepository
}

// NewRepoManager returns a RepoManager backed by in-memory maps.
func NewRepoManager() ports.RepoManager {
	store := newStore()

	return &RepoManager{
		store:              store,
		tradeRepository:    NewTradeRepositoryImpl(store),
		timelineRepository: NewTimelineRepositoryImpl(store),
		escrowRepository:   NewEscrowRepositoryImpl(store),
		disputeRepository:  NewDisputeRepositoryImpl(store),
		offerRepository:    NewOfferRepositoryImpl(store),
		limitsRepository:   NewLimitsRepositoryImpl(store),
	}
}

func (d *RepoManager) TradeRepository() domain.TradeRepository {
	return d.tradeRepository
}

func (d *RepoManager) TimelineRepository() domain.TimelineRepository {
	return d.timelineRepository
}

func (d *RepoManager) EscrowRepository() domain.EscrowRepository {
	return d.escrowRepository
}

func (d *RepoManager) DisputeRepository() domain.DisputeRepository {
	return d.disputeRepository
}

func (d *RepoManager) OfferRepository() domain.OfferRepository {
	return d.offerRepository
}

func (d *RepoManager) LimitsRepository() domain.LimitsRepository {
	return d.limitsRepository
}

// RunTransaction serializes the handler against any other access to the
// store and rolls every table back if the handler returns an error.
func (d *RepoManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	d.store.locker.Lock()
	defer d.store.locker.Unlock()

	var snap *store
	if !readOnly {
		snap = d.store.snapshot()
	}

	res, err := handler(context.WithValue(ctx, txKey{}, struct{}{}))
	if err != nil {
		if snap != nil {
			d.store.restore(snap)
		}
		return nil, err
	}
	return res, nil
}

func (d *RepoManager) Close() {}
