package domain

import "context"

// OfferRepository is the read-side of the external offer registry. The
// engine only reads immutable offer snapshots from it; offers are seeded by
// the registry itself.
type OfferRepository interface {
	// AddOffer stores an offer snapshot. Used by the registry sync and by
	// dev/test fixtures.
	AddOffer(ctx context.Context, offer *Offer) error
	// GetOffer returns the offer with the given id, or ErrOfferNotFound.
	GetOffer(ctx context.Context, offerId string) (*Offer, error)
	// GetAllOffers returns all the stored offer snapshots.
	GetAllOffers(ctx context.Context) ([]Offer, error)
}
