package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

// TransitionHandler is the subset of the trade engine the scheduler drives
// when a deadline elapses.
type TransitionHandler interface {
	CancelOnPaymentTimeout(ctx context.Context, tradeId string) error
	DisputeOnReleaseTimeout(ctx context.Context, tradeId string) error
}

// Service arms one timer per trade with an active deadline and fires the
// matching system transition when it elapses. Timers are volatile: after a
// restart Start rebuilds them from the persisted deadlines, firing
// immediately for those that elapsed while the daemon was down.
type Service struct {
	repoManager ports.RepoManager
	handler     TransitionHandler

	lock   sync.Mutex
	timers map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService returns the deadline scheduler service.
func NewService(repoManager ports.RepoManager) (*Service, error) {
	if repoManager == nil {
		return nil, errors.New("missing repo manager")
	}
	return &Service{
		repoManager: repoManager,
		timers:      make(map[string]*time.Timer),
	}, nil
}

// Start wires the transition handler and restores the timers of every
// non-terminal trade with an active deadline.
func (s *Service) Start(ctx context.Context, handler TransitionHandler) error {
	if handler == nil {
		return errors.New("missing transition handler")
	}
	s.handler = handler
	s.ctx, s.cancel = context.WithCancel(ctx)

	trades, err := s.repoManager.TradeRepository().GetAllTrades(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for i := range trades {
		trade := &trades[i]
		if _, ok := trade.ActiveDeadline(); !ok {
			continue
		}
		s.Rearm(trade)
		restored++
	}
	if restored > 0 {
		log.Infof("restored %d deadline timer(s)", restored)
	}
	return nil
}

// Shutdown cancels every pending timer. Expiries already in flight finish
// through the engine's serialized path.
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	for tradeId, timer := range s.timers {
		timer.Stop()
		delete(s.timers, tradeId)
	}
	activeTimers.Set(0)
}

// Rearm replaces the timer of a trade with one for its current active
// deadline. A deadline already in the past fires right away.
func (s *Service) Rearm(trade *domain.Trade) {
	deadline, ok := trade.ActiveDeadline()
	if !ok {
		s.Stop(trade.Id)
		return
	}

	tradeId := trade.Id
	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if timer, ok := s.timers[tradeId]; ok {
		timer.Stop()
	} else {
		activeTimers.Inc()
	}
	s.timers[tradeId] = time.AfterFunc(delay, func() {
		s.onExpiry(tradeId)
	})
}

// Stop drops the timer of a trade, if any.
func (s *Service) Stop(tradeId string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if timer, ok := s.timers[tradeId]; ok {
		timer.Stop()
		delete(s.timers, tradeId)
		activeTimers.Dec()
	}
}

// onExpiry re-fetches the trade and routes the expiry by its current status.
// A trade that already moved past the deadline's status is a no-op: the
// engine's serialization makes a stale firing harmless.
func (s *Service) onExpiry(tradeId string) {
	s.lock.Lock()
	if _, ok := s.timers[tradeId]; ok {
		delete(s.timers, tradeId)
		activeTimers.Dec()
	}
	s.lock.Unlock()

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	trade, err := s.repoManager.TradeRepository().GetTrade(ctx, tradeId)
	if err != nil {
		log.WithError(err).Warnf("deadline fired for unknown trade %s", tradeId)
		return
	}

	// a stale timer may fire right after a transition committed, before its
	// replacement is armed. The persisted deadline is the authority.
	if deadline, ok := trade.ActiveDeadline(); ok && time.Now().Before(deadline) {
		s.Rearm(trade)
		return
	}

	var fired string
	switch {
	case trade.IsEscrowLocked():
		fired = domain.ReasonPaymentTimeout
		err = s.handler.CancelOnPaymentTimeout(ctx, tradeId)
	case trade.IsPaymentMarked():
		fired = domain.ReasonReleaseTimeout
		err = s.handler.DisputeOnReleaseTimeout(ctx, tradeId)
	default:
		return
	}

	if err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			// lost the race against a user transition, nothing to do.
			return
		}
		log.WithError(err).Errorf(
			"failed to apply %s expiry for trade %s", fired, tradeId,
		)
		return
	}
	expiriesTotal.WithLabelValues(fired).Inc()
	log.Debugf("applied %s expiry for trade %s", fired, tradeId)
}
