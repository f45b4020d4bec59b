package dispute

import (
	"context"
	"errors"
	"time"

	"github.com/peertrade-network/peertrade-daemon/internal/core/application/trade"
	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

// Service exposes the dispute adjudication workflow. The state transitions
// of the trade under dispute always pass through the trade engine: this
// service only adds the dispute-record bookkeeping around them.
type Service struct {
	repoManager ports.RepoManager
	tradeSvc    *trade.Service
}

// NewService returns the dispute service.
func NewService(
	repoManager ports.RepoManager, tradeSvc *trade.Service,
) (*Service, error) {
	if repoManager == nil {
		return nil, errors.New("missing repo manager")
	}
	if tradeSvc == nil {
		return nil, errors.New("missing trade service")
	}
	return &Service{
		repoManager: repoManager,
		tradeSvc:    tradeSvc,
	}, nil
}

// Open raises a dispute on a trade on behalf of the buyer or the seller.
func (s *Service) Open(
	ctx context.Context, tradeId string, actor domain.Actor, reason string,
) (*domain.Dispute, error) {
	return s.tradeSvc.OpenDispute(ctx, tradeId, actor, reason)
}

// Review moves an open dispute under review by the arbiter.
func (s *Service) Review(
	ctx context.Context, disputeId string, arbiter domain.Actor,
) (*domain.Dispute, error) {
	now := time.Now()
	var reviewed *domain.Dispute
	if err := s.repoManager.DisputeRepository().UpdateDispute(
		ctx, disputeId, func(d *domain.Dispute) (*domain.Dispute, error) {
			if err := d.StartReview(arbiter, now); err != nil {
				return nil, err
			}
			reviewed = d
			return d, nil
		},
	); err != nil {
		return nil, err
	}
	return reviewed, nil
}

// Resolve applies the arbiter decision: the trade moves to its terminal
// status and the dispute records outcome, note and resolver.
func (s *Service) Resolve(
	ctx context.Context, disputeId string, arbiter domain.Actor, outcome, note string,
) (*domain.Dispute, error) {
	d, err := s.repoManager.DisputeRepository().GetDispute(ctx, disputeId)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, domain.ErrDisputeNotActive
	}

	if _, err := s.tradeSvc.ResolveDispute(
		ctx, d.TradeId, arbiter, outcome, note,
	); err != nil {
		return nil, err
	}
	return s.repoManager.DisputeRepository().GetDispute(ctx, disputeId)
}

// AddAttachment appends a proof attachment to an active dispute.
func (s *Service) AddAttachment(
	ctx context.Context, disputeId, attachment string,
) (*domain.Dispute, error) {
	now := time.Now()
	var updated *domain.Dispute
	if err := s.repoManager.DisputeRepository().UpdateDispute(
		ctx, disputeId, func(d *domain.Dispute) (*domain.Dispute, error) {
			if err := d.AddAttachment(attachment, now); err != nil {
				return nil, err
			}
			updated = d
			return d, nil
		},
	); err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns a dispute by id.
func (s *Service) Get(ctx context.Context, disputeId string) (*domain.Dispute, error) {
	return s.repoManager.DisputeRepository().GetDispute(ctx, disputeId)
}

// List returns all the disputes.
func (s *Service) List(ctx context.Context) ([]domain.Dispute, error) {
	return s.repoManager.DisputeRepository().GetAllDisputes(ctx)
}
