package dbbadger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
)

const (
	timelineSeqKey = "timeline_sequence"
	seqBandwidth   = 100
)

// DbManager holds the badgerhold store and exposes all the repositories
// backed by it.
type DbManager struct {
	Store       *badgerhold.Store
	timelineSeq *badger.Sequence

	tradeRepository    domain.TradeRepository
	timelineRepository domain.TimelineRepository
	escrowRepository   domain.EscrowRepository
	disputeRepository  domain.DisputeRepository
	offerRepository    domain.OfferRepository
	limitsRepository   domain.LimitsRepository
}

// NewRepoManager opens (or creates if not exists) the badger store on disk
// under the given data dir and returns a ports.RepoManager backed by it.
// An empty dir opens an ephemeral in-memory badger instance, used by tests.
func NewRepoManager(dbDir string, logger badger.Logger) (ports.RepoManager, error) {
	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	timelineSeq, err := store.Badger().GetSequence([]byte(timelineSeqKey), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("opening timeline sequence: %w", err)
	}

	db := &DbManager{Store: store, timelineSeq: timelineSeq}
	db.tradeRepository = NewTradeRepositoryImpl(db)
	db.timelineRepository = NewTimelineRepositoryImpl(db)
	db.escrowRepository = NewEscrowRepositoryImpl(db)
	db.disputeRepository = NewDisputeRepositoryImpl(db)
	db.offerRepository = NewOfferRepositoryImpl(db)
	db.limitsRepository = NewLimitsRepositoryImpl(db)
	return db, nil
}

func (d *DbManager) TradeRepository() domain.TradeRepository {
	return d.tradeRepository
}

func (d *DbManager) TimelineRepository() domain.TimelineRepository {
	return d.timelineRepository
}

func (d *DbManager) EscrowRepository() domain.EscrowRepository {
	return d.escrowRepository
}

func (d *DbManager) DisputeRepository() domain.DisputeRepository {
	return d.disputeRepository
}

func (d *DbManager) OfferRepository() domain.OfferRepository {
	return d.offerRepository
}

func (d *DbManager) LimitsRepository() domain.LimitsRepository {
	return d.limitsRepository
}

// RunTransaction runs the handler within a single badger transaction. All
// the repository calls made through the handler's context share it, so a
// trade update and its timeline event are committed as one unit. A badger
// write conflict is surfaced as domain.ErrStateConflict, safe to retry.
func (d *DbManager) RunTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	tx := d.Store.Badger().NewTransaction(!readOnly)
	defer tx.Discard()

	res, err := handler(context.WithValue(ctx, "tx", tx))
	if err != nil {
		return nil, err
	}

	if !readOnly {
		if err := tx.Commit(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				return nil, domain.ErrStateConflict
			}
			return nil, err
		}
	}
	return res, nil
}

func (d *DbManager) Close() {
	if err := d.timelineSeq.Release(); err != nil {
		log.WithError(err).Warn("failed to release timeline sequence")
	}
	if err := d.Store.Close(); err != nil {
		log.WithError(err).Warn("failed to close db store")
	}
}

func (d *DbManager) nextTimelineSequence() (uint64, error) {
	// sequences burned by a discarded transaction leave gaps, ordering is
	// what matters.
	seq, err := d.timelineSeq.Next()
	if err != nil {
		return 0, err
	}
	return seq + 1, nil
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer
	if err := json.NewEncoder(&buff).Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	opts.InMemory = isInMemory

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: seqBandwidth,
		Options:          opts,
	})
}
