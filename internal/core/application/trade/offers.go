package trade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

// RegisterOffer ingests a new offer snapshot for a seller, checking the
// daily offer cap in the same transaction.
func (s *Service) RegisterOffer(
	ctx context.Context,
	ownerId, assetCode, currency string,
	unitPrice, minAmount, maxAmount decimal.Decimal,
	acceptedPaymentMethods []string,
	paymentWindow, escrowDuration time.Duration,
) (*domain.Offer, error) {
	now := time.Now()
	day := now.UTC().Format("2006-01-02")

	if paymentWindow <= 0 {
		paymentWindow = s.paymentWindow
	}
	if escrowDuration <= 0 {
		escrowDuration = s.escrowDuration
	}

	offer, err := domain.NewOffer(
		ownerId, assetCode, currency,
		unitPrice, minAmount, maxAmount,
		acceptedPaymentMethods, paymentWindow, escrowDuration, now,
	)
	if err != nil {
		return nil, err
	}

	if _, err := s.repoManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			limits, err := s.repoManager.LimitsRepository().GetOrCreateLimits(
				ctx, ownerId, day,
			)
			if err != nil {
				return nil, err
			}
			if err := limits.CheckOrder(s.limitsPolicy); err != nil {
				return nil, err
			}
			if err := s.repoManager.LimitsRepository().UpdateLimits(
				ctx, ownerId, day,
				func(l *domain.UserLimits) (*domain.UserLimits, error) {
					l.RecordOrder()
					return l, nil
				},
			); err != nil {
				return nil, err
			}
			return nil, s.repoManager.OfferRepository().AddOffer(ctx, offer)
		},
	); err != nil {
		return nil, err
	}

	log.Debugf("registered offer %s for seller %s", offer.Id, ownerId)
	return offer, nil
}

// GetOffer returns an offer by id.
func (s *Service) GetOffer(ctx context.Context, offerId string) (*domain.Offer, error) {
	return s.repoManager.OfferRepository().GetOffer(ctx, offerId)
}

// ListOffers returns all the registered offers.
func (s *Service) ListOffers(ctx context.Context) ([]domain.Offer, error) {
	return s.repoManager.OfferRepository().GetAllOffers(ctx)
}
