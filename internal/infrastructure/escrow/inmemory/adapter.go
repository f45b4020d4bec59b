package escrowinmemory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thanhpk/randstr"

	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
)

type escrowEntry struct {
	reference string
	amount    decimal.Decimal
	assetCode string
	status    domain.EscrowStatus
	createdAt time.Time
}

// Adapter is the in-memory ports.EscrowAdapter implementation, used by tests
// and by the dev mode of the daemon. It honors the full custody contract,
// idempotent lock included, without any backing ledger.
type Adapter struct {
	locker  sync.Mutex
	escrows map[string]*escrowEntry

	// opErr allows tests to inject failures per operation.
	opErr map[string]error
}

// NewEscrowAdapter returns an in-memory EscrowAdapter.
func NewEscrowAdapter() *Adapter {
	return &Adapter{
		escrows: map[string]*escrowEntry{},
		opErr:   map[string]error{},
	}
}

func (a *Adapter) Lock(
	_ context.Context, tradeId string, amount decimal.Decimal, assetCode string,
) (string, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	if err := a.opErr["lock"]; err != nil {
		return "", err
	}

	// repeating a lock for the same trade returns the existing reference
	// instead of double-locking.
	if entry, ok := a.escrows[tradeId]; ok {
		return entry.reference, nil
	}

	entry := &escrowEntry{
		reference: "escrow_" + randstr.Hex(16),
		amount:    amount,
		assetCode: assetCode,
		status:    domain.EscrowStatusLocked,
		createdAt: time.Now(),
	}
	a.escrows[tradeId] = entry
	return entry.reference, nil
}

func (a *Adapter) Release(_ context.Context, tradeId string) (string, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	if err := a.opErr["release"]; err != nil {
		return "", err
	}

	entry, ok := a.escrows[tradeId]
	if !ok || (entry.status != domain.EscrowStatusLocked &&
		entry.status != domain.EscrowStatusDisputed) {
		return "", domain.ErrEscrowNotLocked
	}
	entry.status = domain.EscrowStatusReleased
	return entry.reference, nil
}

func (a *Adapter) Refund(_ context.Context, tradeId, _ string) (string, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	if err := a.opErr["refund"]; err != nil {
		return "", err
	}

	entry, ok := a.escrows[tradeId]
	if !ok || (entry.status != domain.EscrowStatusLocked &&
		entry.status != domain.EscrowStatusDisputed) {
		return "", domain.ErrEscrowNotLocked
	}
	entry.status = domain.EscrowStatusRefunded
	return entry.reference, nil
}

func (a *Adapter) Dispute(_ context.Context, tradeId, _ string) (string, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	if err := a.opErr["dispute"]; err != nil {
		return "", err
	}

	entry, ok := a.escrows[tradeId]
	if !ok || entry.status != domain.EscrowStatusLocked {
		return "", domain.ErrEscrowNotLocked
	}
	entry.status = domain.EscrowStatusDisputed
	return entry.reference, nil
}

func (a *Adapter) GetStatus(
	_ context.Context, tradeId string,
) (domain.EscrowStatus, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	entry, ok := a.escrows[tradeId]
	if !ok {
		return domain.EscrowStatusNone, domain.ErrEscrowNotFound
	}
	return entry.status, nil
}

// SetOpError makes the given operation fail with err until reset with nil.
// Test helper.
func (a *Adapter) SetOpError(op string, err error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	if err == nil {
		delete(a.opErr, op)
		return
	}
	a.opErr[op] = err
}
