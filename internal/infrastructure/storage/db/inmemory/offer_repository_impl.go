package inmemory

import (
	"context"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type offerRepositoryImpl struct {
	store *store
}

// NewOfferRepositoryImpl returns a new inmemory OfferRepository
// implementation.
func NewOfferRepositoryImpl(store *store) domain.OfferRepository {
	return &offerRepositoryImpl{store}
}

func (r *offerRepositoryImpl) AddOffer(ctx context.Context, offer *domain.Offer) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	r.store.offers[offer.Id] = *offer
	return nil
}

func (r *offerRepositoryImpl) GetOffer(
	ctx context.Context, offerId string,
) (*domain.Offer, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	offer, ok := r.store.offers[offerId]
	if !ok {
		return nil, domain.ErrOfferNotFound
	}
	return &offer, nil
}

func (r *offerRepositoryImpl) GetAllOffers(ctx context.Context) ([]domain.Offer, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	offers := make([]domain.Offer, 0, len(r.store.offers))
	for _, o := range r.store.offers {
		offers = append(offers, o)
	}
	return offers, nil
}
