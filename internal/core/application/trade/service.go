package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/peertrade-network/peertrade-daemon/internal/core/application/pubsub"
	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

const (
	// maxCommitAttempts bounds the retries of a serialization conflict. A
	// conflict caused by a genuinely stale precondition is deterministic and
	// surfaces after the first re-read, so the cap is only ever reached by
	// pathological store contention.
	maxCommitAttempts = 5
)

// Timers re-registers or cancels the deadline timer of a trade after every
// committed transition. Implemented by the deadline scheduler.
type Timers interface {
	Rearm(trade *domain.Trade)
	Stop(tradeId string)
}

// Service owns the trade state machine. It validates role and precondition,
// delegates custody to the escrow adapter, and commits the new status plus
// exactly one timeline event as a single atomic unit.
type Service struct {
	repoManager   ports.RepoManager
	escrowAdapter ports.EscrowAdapter
	pubsubSvc     *pubsub.Service

	limitsPolicy domain.LimitsPolicy

	// fallback windows for offers that do not define their own.
	paymentWindow  time.Duration
	escrowDuration time.Duration

	timers Timers
}

// NewService returns the trade engine service.
func NewService(
	repoManager ports.RepoManager,
	escrowAdapter ports.EscrowAdapter,
	pubsubSvc *pubsub.Service,
	limitsPolicy domain.LimitsPolicy,
	paymentWindow, escrowDuration time.Duration,
) (*Service, error) {
	if repoManager == nil {
		return nil, fmt.Errorf("missing repo manager")
	}
	if escrowAdapter == nil {
		return nil, fmt.Errorf("missing escrow adapter")
	}
	if pubsubSvc == nil {
		return nil, fmt.Errorf("missing pubsub service")
	}
	if paymentWindow <= 0 || escrowDuration <= 0 {
		return nil, fmt.Errorf("payment window and escrow duration must be positive")
	}

	return &Service{
		repoManager:    repoManager,
		escrowAdapter:  escrowAdapter,
		pubsubSvc:      pubsubSvc,
		limitsPolicy:   limitsPolicy,
		paymentWindow:  paymentWindow,
		escrowDuration: escrowDuration,
	}, nil
}

// SetTimers wires the deadline scheduler. Done after construction because
// the scheduler needs the engine as its transition handler.
func (s *Service) SetTimers(timers Timers) {
	s.timers = timers
}

// CreateTradeFromOffer creates a trade from an immutable offer snapshot. The
// buyer daily limits are checked in the same transaction: a violation leaves
// zero partial mutation behind.
func (s *Service) CreateTradeFromOffer(
	ctx context.Context,
	offerId string, amount decimal.Decimal, buyerId, paymentMethod string,
) (*TradeInfo, error) {
	now := time.Now()
	day := now.UTC().Format("2006-01-02")

	res, err := s.repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			offer, err := s.repoManager.OfferRepository().GetOffer(ctx, offerId)
			if err != nil {
				return nil, err
			}

			trade, err := domain.NewTradeFromOffer(offer, amount, buyerId, paymentMethod, now)
			if err != nil {
				return nil, err
			}
			if trade.PaymentWindow <= 0 {
				trade.PaymentWindow = s.paymentWindow
			}
			if trade.EscrowDuration <= 0 {
				trade.EscrowDuration = s.escrowDuration
			}

			limits, err := s.repoManager.LimitsRepository().GetOrCreateLimits(ctx, buyerId, day)
			if err != nil {
				return nil, err
			}
			if err := limits.CheckTrade(s.limitsPolicy, trade.Total); err != nil {
				return nil, err
			}
			if err := s.repoManager.LimitsRepository().UpdateLimits(
				ctx, buyerId, day,
				func(l *domain.UserLimits) (*domain.UserLimits, error) {
					l.RecordTrade(trade.Total)
					return l, nil
				},
			); err != nil {
				return nil, err
			}

			if err := s.repoManager.TradeRepository().AddTrade(ctx, trade); err != nil {
				return nil, err
			}
			return trade, nil
		},
	)
	if err != nil {
		return nil, err
	}

	trade := res.(*domain.Trade)
	log.Debugf("created trade %s from offer %s", trade.Id, offerId)
	return tradeInfo(trade), nil
}

// LockEscrow brings a trade from CREATED to ESCROW_LOCKED on behalf of the
// seller. The custody lock is acknowledged by the adapter before anything is
// committed; the adapter call never holds the trade serialization.
func (s *Service) LockEscrow(
	ctx context.Context, tradeId string, actor domain.Actor,
) (*TradeInfo, error) {
	trade, err := s.getTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}
	if err := trade.CanLockEscrow(actor); err != nil {
		return nil, err
	}

	escrowRef, err := s.callAdapter(ctx, func() (string, error) {
		return s.escrowAdapter.Lock(ctx, tradeId, trade.Amount, trade.AssetCode)
	})
	if err != nil {
		transitionsRejected.WithLabelValues(domain.EventEscrowLocked, "adapter_error").Inc()
		return nil, err
	}

	now := time.Now()
	updated, event, err := s.commitTransition(ctx, tradeId,
		func(t *domain.Trade) (*domain.TimelineEvent, error) {
			return t.LockEscrow(actor, escrowRef, now.Add(t.PaymentWindow), now)
		},
		func(ctx context.Context, t *domain.Trade) error {
			return s.repoManager.EscrowRepository().AddEscrow(ctx, &domain.Escrow{
				Id:        escrowRef,
				TradeId:   t.Id,
				FromId:    t.SellerId,
				ToId:      t.BuyerId,
				AssetCode: t.AssetCode,
				Amount:    t.Amount,
				Status:    domain.EscrowStatusLocked,
				CreatedAt: now,
				ExpiresAt: t.PaymentDeadline,
				UpdatedAt: now,
			})
		},
	)
	if err != nil {
		// funds are under custody but the trade moved on concurrently:
		// give them back instead of leaving them stranded.
		if errors.Is(err, domain.ErrStateConflict) {
			if _, refundErr := s.escrowAdapter.Refund(
				ctx, tradeId, "lock superseded by concurrent transition",
			); refundErr != nil {
				log.WithError(refundErr).Errorf(
					"failed to refund superseded escrow lock for trade %s", tradeId,
				)
			}
		}
		return nil, err
	}

	s.afterCommit(updated, event)
	return tradeInfo(updated), nil
}

// MarkPayment brings a trade from ESCROW_LOCKED to PAYMENT_MARKED on behalf
// of the buyer, optionally recording a payment proof.
func (s *Service) MarkPayment(
	ctx context.Context, tradeId string, actor domain.Actor, proof string,
) (*TradeInfo, error) {
	now := time.Now()
	updated, event, err := s.commitTransition(ctx, tradeId,
		func(t *domain.Trade) (*domain.TimelineEvent, error) {
			return t.MarkPayment(actor, proof, now.Add(t.EscrowDuration), now)
		},
		nil,
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(updated, event)
	return tradeInfo(updated), nil
}

// Release brings a trade from PAYMENT_MARKED to the terminal RELEASED status
// on behalf of the seller. Once the adapter acknowledged the release, the
// commit is retried until durable: it is never silently dropped.
func (s *Service) Release(
	ctx context.Context, tradeId string, actor domain.Actor,
) (*TradeInfo, error) {
	trade, err := s.getTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}
	if err := trade.CanRelease(actor); err != nil {
		return nil, err
	}

	if _, err := s.callAdapter(ctx, func() (string, error) {
		return s.escrowAdapter.Release(ctx, tradeId)
	}); err != nil {
		transitionsRejected.WithLabelValues(domain.EventTradeReleased, "adapter_error").Inc()
		return nil, err
	}

	now := time.Now()
	updated, event, err := s.commitTransition(ctx, tradeId,
		func(t *domain.Trade) (*domain.TimelineEvent, error) {
			return t.Release(actor, now)
		},
		s.markEscrowRecord(domain.EscrowStatusReleased, now),
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(updated, event)
	return tradeInfo(updated), nil
}

// Cancel brings a trade from CREATED or ESCROW_LOCKED to the terminal
// CANCELLED status. With a locked escrow the refund must complete before
// CANCELLED is committed: the two are never observed in contradiction.
func (s *Service) Cancel(
	ctx context.Context, tradeId string, actor domain.Actor, reason string,
) (*TradeInfo, error) {
	trade, err := s.getTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}
	if err := trade.CanCancel(actor); err != nil {
		return nil, err
	}

	wasLocked := trade.EscrowStatus == domain.EscrowStatusLocked
	if wasLocked {
		if _, err := s.callAdapter(ctx, func() (string, error) {
			return s.escrowAdapter.Refund(ctx, tradeId, reason)
		}); err != nil {
			transitionsRejected.WithLabelValues(domain.EventTradeCancelled, "adapter_error").Inc()
			return nil, err
		}
	}

	now := time.Now()
	var extra func(context.Context, *domain.Trade) error
	if wasLocked {
		extra = s.markEscrowRecord(domain.EscrowStatusRefunded, now)
	}
	updated, event, err := s.commitTransition(ctx, tradeId,
		func(t *domain.Trade) (*domain.TimelineEvent, error) {
			if t.EscrowStatus == domain.EscrowStatusLocked {
				if !wasLocked {
					// escrow got locked while we were not looking, the
					// refund has not happened for this custody.
					return nil, domain.ErrStateConflict
				}
				if err := t.ConfirmRefund(now); err != nil {
					return nil, err
				}
			}
			return t.Cancel(actor, reason, now)
		},
		extra,
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(updated, event)
	return tradeInfo(updated), nil
}

// OpenDispute brings a trade from ESCROW_LOCKED or PAYMENT_MARKED to DISPUTE
// and opens the dispute record adjudicating it, all in one atomic unit.
func (s *Service) OpenDispute(
	ctx context.Context, tradeId string, actor domain.Actor, reason string,
) (*domain.Dispute, error) {
	if reason == "" {
		return nil, domain.ErrMissingReason
	}

	trade, err := s.getTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}
	if err := trade.CanOpenDispute(actor); err != nil {
		return nil, err
	}

	if _, err := s.callAdapter(ctx, func() (string, error) {
		return s.escrowAdapter.Dispute(ctx, tradeId, reason)
	}); err != nil {
		transitionsRejected.WithLabelValues(domain.EventDisputeOpened, "adapter_error").Inc()
		return nil, err
	}

	now := time.Now()
	dispute := domain.NewDispute(tradeId, actor, reason, now)
	updated, event, err := s.commitTransition(ctx, tradeId,
		func(t *domain.Trade) (*domain.TimelineEvent, error) {
			return t.OpenDispute(actor, dispute.Id, reason, now)
		},
		func(ctx context.Context, t *domain.Trade) error {
			if err := s.repoManager.DisputeRepository().AddDispute(ctx, dispute); err != nil {
				return err
			}
			return s.markEscrowRecord(domain.EscrowStatusDisputed, now)(ctx, t)
		},
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(updated, event)
	return dispute, nil
}

// ResolveDispute drives a disputed trade to the terminal status decided by
// the arbiter and records the resolution on the dispute, as one atomic unit
// with its own timeline event.
func (s *Service) ResolveDispute(
	ctx context.Context, tradeId string, arbiter domain.Actor, outcome, note string,
) (*TradeInfo, error) {
	trade, err := s.getTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}
	if err := trade.CanResolveDispute(arbiter); err != nil {
		return nil, err
	}

	var escrowStatus domain.EscrowStatus
	switch outcome {
	case domain.DisputeOutcomeRelease:
		escrowStatus = domain.EscrowStatusReleased
		_, err = s.callAdapter(ctx, func() (string, error) {
			return s.escrowAdapter.Release(ctx, tradeId)
		})
	case domain.DisputeOutcomeRefund:
		escrowStatus = domain.EscrowStatusRefunded
		_, err = s.callAdapter(ctx, func() (string, error) {
			return s.escrowAdapter.Refund(ctx, tradeId, note)
		})
	default:
		return nil, domain.ErrInvalidDisputeOutcome
	}
	if err != nil {
		transitionsRejected.WithLabelValues(domain.EventDisputeResolved, "adapter_error").Inc()
		return nil, err
	}

	now := time.Now()
	disputeId := trade.DisputeId
	updated, event, err := s.commitTransition(ctx, tradeId,
		func(t *domain.Trade) (*domain.TimelineEvent, error) {
			return t.ResolveDispute(arbiter, outcome, now)
		},
		func(ctx context.Context, t *domain.Trade) error {
			if err := s.repoManager.DisputeRepository().UpdateDispute(
				ctx, disputeId,
				func(d *domain.Dispute) (*domain.Dispute, error) {
					if err := d.Resolve(arbiter, outcome, note, now); err != nil {
						return nil, err
					}
					return d, nil
				},
			); err != nil {
				return err
			}
			return s.markEscrowRecord(escrowStatus, now)(ctx, t)
		},
	)
	if err != nil {
		return nil, err
	}

	s.afterCommit(updated, event)
	return tradeInfo(updated), nil
}

// CancelOnPaymentTimeout is the system-actor transition fired when the
// payment deadline of an ESCROW_LOCKED trade elapses. It goes through the
// exact same serialized path as a user-initiated cancel.
func (s *Service) CancelOnPaymentTimeout(ctx context.Context, tradeId string) error {
	_, err := s.Cancel(ctx, tradeId, domain.SystemActor, domain.ReasonPaymentTimeout)
	return err
}

// DisputeOnReleaseTimeout is the system-actor transition fired when the
// escrow release deadline of a PAYMENT_MARKED trade elapses. Funds are not
// auto-released: a dispute protects the buyer without exposing the seller to
// unverified payment claims.
func (s *Service) DisputeOnReleaseTimeout(ctx context.Context, tradeId string) error {
	_, err := s.OpenDispute(ctx, tradeId, domain.SystemActor, domain.ReasonReleaseTimeout)
	return err
}

// GetTrade returns the portable view of a trade.
func (s *Service) GetTrade(ctx context.Context, tradeId string) (*TradeInfo, error) {
	trade, err := s.getTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}
	return tradeInfo(trade), nil
}

// ListTrades returns the portable view of all the trades.
func (s *Service) ListTrades(ctx context.Context) ([]TradeInfo, error) {
	trades, err := s.repoManager.TradeRepository().GetAllTrades(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]TradeInfo, 0, len(trades))
	for i := range trades {
		list = append(list, *tradeInfo(&trades[i]))
	}
	return list, nil
}

// GetTimeline returns the chronological timeline of a trade. A timeline that
// fails to load flags the trade as broken: every further mutation is refused
// until it is manually repaired.
func (s *Service) GetTimeline(
	ctx context.Context, tradeId string,
) ([]domain.TimelineEvent, error) {
	if _, err := s.getTrade(ctx, tradeId); err != nil {
		return nil, err
	}

	events, err := s.repoManager.TimelineRepository().ListEventsByTrade(ctx, tradeId)
	if err != nil {
		s.flagTimelineBroken(ctx, tradeId, err)
		return nil, domain.ErrTimelineIntegrity
	}
	return events, nil
}

// RebuildStatus replays the timeline of a trade from empty and returns the
// (status, escrowStatus) pair it folds to. The engine's durability contract
// is that this always matches the persisted trade.
func (s *Service) RebuildStatus(
	ctx context.Context, tradeId string,
) (domain.ReplayResult, error) {
	events, err := s.GetTimeline(ctx, tradeId)
	if err != nil {
		return domain.ReplayResult{}, err
	}
	return domain.Replay(events), nil
}

// Reconcile re-reads the custody status of every non-terminal trade from the
// escrow adapter. Called at startup: after a restart the in-memory picture
// of the adapter is stale by definition.
func (s *Service) Reconcile(ctx context.Context) error {
	trades, err := s.repoManager.TradeRepository().GetAllTrades(ctx)
	if err != nil {
		return err
	}

	for i := range trades {
		trade := &trades[i]
		if trade.IsTerminal() || trade.EscrowReference == "" {
			continue
		}

		status, err := s.escrowAdapter.GetStatus(ctx, trade.Id)
		if err != nil {
			log.WithError(err).Warnf(
				"reconcile: failed to fetch escrow status for trade %s", trade.Id,
			)
			continue
		}
		if status == trade.EscrowStatus {
			continue
		}

		log.Warnf(
			"reconcile: trade %s has escrow status %s but adapter reports %s",
			trade.Id, trade.EscrowStatus, status,
		)
		s.repairFromAdapter(ctx, trade, status)
	}
	return nil
}

// repairFromAdapter drives the trade to the status implied by the custody
// acknowledged by the adapter before the restart.
func (s *Service) repairFromAdapter(
	ctx context.Context, trade *domain.Trade, status domain.EscrowStatus,
) {
	now := time.Now()
	var err error
	switch status {
	case domain.EscrowStatusReleased:
		_, _, err = s.commitTransition(ctx, trade.Id,
			func(t *domain.Trade) (*domain.TimelineEvent, error) {
				if t.IsDisputed() {
					return t.ResolveDispute(
						domain.Actor{Id: domain.SystemActor.Id, Role: domain.RoleArbiter},
						domain.DisputeOutcomeRelease, now,
					)
				}
				t.Status = domain.TradeStatusCodePaymentMarked
				t.EscrowStatus = domain.EscrowStatusLocked
				return t.Release(domain.Actor{Id: t.SellerId, Role: domain.RoleSeller}, now)
			},
			s.markEscrowRecord(domain.EscrowStatusReleased, now),
		)
	case domain.EscrowStatusRefunded:
		_, _, err = s.commitTransition(ctx, trade.Id,
			func(t *domain.Trade) (*domain.TimelineEvent, error) {
				if err := t.ConfirmRefund(now); err != nil {
					return nil, err
				}
				return t.Cancel(domain.SystemActor, "reconciled_refund", now)
			},
			s.markEscrowRecord(domain.EscrowStatusRefunded, now),
		)
	case domain.EscrowStatusDisputed:
		// custody is already frozen, re-calling the adapter would be refused.
		dispute := domain.NewDispute(trade.Id, domain.SystemActor, "reconciled_dispute", now)
		_, _, err = s.commitTransition(ctx, trade.Id,
			func(t *domain.Trade) (*domain.TimelineEvent, error) {
				return t.OpenDispute(domain.SystemActor, dispute.Id, "reconciled_dispute", now)
			},
			func(ctx context.Context, t *domain.Trade) error {
				if err := s.repoManager.DisputeRepository().AddDispute(ctx, dispute); err != nil {
					return err
				}
				return s.markEscrowRecord(domain.EscrowStatusDisputed, now)(ctx, t)
			},
		)
	default:
		return
	}
	if err != nil {
		log.WithError(err).Warnf("reconcile: failed to repair trade %s", trade.Id)
	}
}

func (s *Service) getTrade(ctx context.Context, tradeId string) (*domain.Trade, error) {
	return s.repoManager.TradeRepository().GetTrade(ctx, tradeId)
}

// commitTransition runs the apply function through the serialized per-trade
// update, appends its timeline event within the same transaction and retries
// serialization conflicts. The returned trade is the committed version.
func (s *Service) commitTransition(
	ctx context.Context,
	tradeId string,
	apply func(t *domain.Trade) (*domain.TimelineEvent, error),
	extra func(ctx context.Context, t *domain.Trade) error,
) (*domain.Trade, *domain.TimelineEvent, error) {
	var committedTrade *domain.Trade
	var committedEvent *domain.TimelineEvent

	op := func() error {
		// a precondition failure raised by apply is deterministic: it was
		// validated against a freshly read trade, retrying cannot change it.
		// only store-level serialization conflicts are worth retrying.
		var applyFailed bool
		_, err := s.repoManager.RunTransaction(
			ctx, false, func(ctx context.Context) (interface{}, error) {
				return nil, s.repoManager.TradeRepository().UpdateTrade(
					ctx, tradeId, func(t *domain.Trade) (*domain.Trade, error) {
						event, err := apply(t)
						if err != nil {
							applyFailed = true
							return nil, err
						}
						if err := s.repoManager.TimelineRepository().AppendEvent(
							ctx, event,
						); err != nil {
							return nil, err
						}
						if extra != nil {
							if err := extra(ctx, t); err != nil {
								return nil, err
							}
						}
						committedTrade = t
						committedEvent = event
						return t, nil
					},
				)
			},
		)
		if err == nil {
			return nil
		}
		if applyFailed {
			return backoff.Permanent(err)
		}
		if errors.Is(err, domain.ErrStateConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxCommitAttempts),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		outcome := "state_conflict"
		if !errors.Is(err, domain.ErrStateConflict) {
			outcome = "error"
		}
		transitionsRejected.WithLabelValues("commit", outcome).Inc()
		return nil, nil, err
	}

	transitionsTotal.WithLabelValues(committedEvent.Type, committedEvent.ActorRole.String()).Inc()
	return committedTrade, committedEvent, nil
}

// callAdapter invokes a custody operation retrying transient failures with
// exponential backoff. Permanent failures block the transition and are
// surfaced to the actor.
func (s *Service) callAdapter(
	ctx context.Context, op func() (string, error),
) (string, error) {
	var reference string
	start := time.Now()
	defer func() {
		escrowCallSeconds.Observe(time.Since(start).Seconds())
	}()

	err := backoff.Retry(func() error {
		ref, err := op()
		if err != nil {
			if domain.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		reference = ref
		return nil
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	if err != nil {
		return "", err
	}
	return reference, nil
}

func (s *Service) markEscrowRecord(
	status domain.EscrowStatus, now time.Time,
) func(ctx context.Context, t *domain.Trade) error {
	return func(ctx context.Context, t *domain.Trade) error {
		err := s.repoManager.EscrowRepository().UpdateEscrow(
			ctx, t.Id, func(e *domain.Escrow) (*domain.Escrow, error) {
				e.Status = status
				e.UpdatedAt = now
				return e, nil
			},
		)
		if errors.Is(err, domain.ErrEscrowNotFound) {
			// trades cancelled before any lock have no custody record.
			return nil
		}
		return err
	}
}

func (s *Service) afterCommit(trade *domain.Trade, event *domain.TimelineEvent) {
	if s.timers != nil {
		if _, ok := trade.ActiveDeadline(); ok {
			s.timers.Rearm(trade)
		} else {
			s.timers.Stop(trade.Id)
		}
	}
	s.pubsubSvc.PublishTradeEvent(trade, event)
	log.Debugf("trade %s moved to %s", trade.Id, trade.Status)
}

func (s *Service) flagTimelineBroken(ctx context.Context, tradeId string, cause error) {
	log.WithError(cause).Errorf("timeline of trade %s failed to load", tradeId)
	if err := s.repoManager.TradeRepository().UpdateTrade(
		ctx, tradeId, func(t *domain.Trade) (*domain.Trade, error) {
			t.TimelineBroken = true
			return t, nil
		},
	); err != nil {
		log.WithError(err).Errorf("failed to flag trade %s as broken", tradeId)
	}
}
