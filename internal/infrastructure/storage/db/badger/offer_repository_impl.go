package dbbadger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type offerRepositoryImpl struct {
	db *DbManager
}

// NewOfferRepositoryImpl returns a badger OfferRepository implementation.
func NewOfferRepositoryImpl(db *DbManager) domain.OfferRepository {
	return &offerRepositoryImpl{db}
}

func (r *offerRepositoryImpl) AddOffer(ctx context.Context, offer *domain.Offer) error {
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxUpsert(tx, offer.Id, *offer)
	} else {
		err = r.db.Store.Upsert(offer.Id, *offer)
	}
	return err
}

func (r *offerRepositoryImpl) GetOffer(
	ctx context.Context, offerId string,
) (*domain.Offer, error) {
	var offer domain.Offer
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxGet(tx, offerId, &offer)
	} else {
		err = r.db.Store.Get(offerId, &offer)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrOfferNotFound
		}
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepositoryImpl) GetAllOffers(ctx context.Context) ([]domain.Offer, error) {
	var offers []domain.Offer
	var err error
	if tx, ok := ctx.Value("tx").(*badger.Txn); ok {
		err = r.db.Store.TxFind(tx, &offers, &badgerhold.Query{})
	} else {
		err = r.db.Store.Find(&offers, &badgerhold.Query{})
	}
	return offers, err
}
