package dispute_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/peertrade-network/peertrade-daemon/internal/core/application/dispute"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/pubsub"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/trade"
	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
	escrowinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/escrow/inmemory"
	dbinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/storage/db/inmemory"
)

var (
	buyer   = domain.Actor{Id: "buyer-1", Role: domain.RoleBuyer}
	seller  = domain.Actor{Id: "seller-1", Role: domain.RoleSeller}
	arbiter = domain.Actor{Id: "arbiter-1", Role: domain.RoleArbiter}
)

type testEnv struct {
	tradeSvc    *trade.Service
	disputeSvc  *dispute.Service
	repoManager ports.RepoManager
	offer       *domain.Offer
}

func newTestEnv(t *testing.T) *testEnv {
	repoManager := dbinmemory.NewRepoManager()
	adapter := escrowinmemory.NewEscrowAdapter()
	pubsubSvc := pubsub.NewService(nil)

	tradeSvc, err := trade.NewService(
		repoManager, adapter, pubsubSvc, domain.LimitsPolicy{},
		30*time.Minute, 24*time.Hour,
	)
	require.NoError(t, err)

	disputeSvc, err := dispute.NewService(repoManager, tradeSvc)
	require.NoError(t, err)

	offer, err := domain.NewOffer(
		seller.Id, "GOLD", "USD",
		decimal.RequireFromString("5.12"),
		decimal.RequireFromString("10"),
		decimal.RequireFromString("1000"),
		nil, 30*time.Minute, 24*time.Hour, time.Now(),
	)
	require.NoError(t, err)
	require.NoError(
		t, repoManager.OfferRepository().AddOffer(context.Background(), offer),
	)

	return &testEnv{
		tradeSvc:    tradeSvc,
		disputeSvc:  disputeSvc,
		repoManager: repoManager,
		offer:       offer,
	}
}

func (e *testEnv) newDisputedTrade(t *testing.T) (*trade.TradeInfo, *domain.Dispute) {
	ctx := context.Background()
	info, err := e.tradeSvc.CreateTradeFromOffer(
		ctx, e.offer.Id, decimal.RequireFromString("100"),
		buyer.Id, "bank_transfer",
	)
	require.NoError(t, err)

	_, err = e.tradeSvc.LockEscrow(ctx, info.Id, seller)
	require.NoError(t, err)
	_, err = e.tradeSvc.MarkPayment(ctx, info.Id, buyer, "wire-1")
	require.NoError(t, err)

	d, err := e.disputeSvc.Open(ctx, info.Id, buyer, "asset never arrived")
	require.NoError(t, err)
	return info, d
}

func TestDisputeLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	info, d := env.newDisputedTrade(t)
	require.Equal(t, domain.DisputeStatusOpen, d.Status)
	require.Equal(t, buyer.Id, d.OpenedBy)

	refetched, err := env.tradeSvc.GetTrade(ctx, info.Id)
	require.NoError(t, err)
	require.Equal(t, "DISPUTE", refetched.Status)
	require.Equal(t, d.Id, refetched.DisputeId)

	d, err = env.disputeSvc.Review(ctx, d.Id, arbiter)
	require.NoError(t, err)
	require.Equal(t, domain.DisputeStatusUnderReview, d.Status)

	d, err = env.disputeSvc.AddAttachment(ctx, d.Id, "bank-receipt.pdf")
	require.NoError(t, err)
	require.Len(t, d.Attachments, 1)

	d, err = env.disputeSvc.Resolve(
		ctx, d.Id, arbiter, domain.DisputeOutcomeRelease, "payment verified",
	)
	require.NoError(t, err)
	require.Equal(t, domain.DisputeStatusResolved, d.Status)
	require.Equal(t, domain.DisputeOutcomeRelease, d.Outcome)
	require.Equal(t, arbiter.Id, d.ResolvedBy)

	refetched, err = env.tradeSvc.GetTrade(ctx, info.Id)
	require.NoError(t, err)
	require.Equal(t, "RELEASED", refetched.Status)
	require.Equal(t, "released", refetched.EscrowStatus)
}

func TestResolveRequiresArbiter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, d := env.newDisputedTrade(t)

	_, err := env.disputeSvc.Resolve(
		ctx, d.Id, seller, domain.DisputeOutcomeRelease, "",
	)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = env.disputeSvc.Review(ctx, d.Id, buyer)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResolveRefusesUnknownOutcome(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, d := env.newDisputedTrade(t)

	_, err := env.disputeSvc.Resolve(ctx, d.Id, arbiter, "split", "")
	require.ErrorIs(t, err, domain.ErrInvalidDisputeOutcome)
}

func TestResolvedDisputeIsFinal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, d := env.newDisputedTrade(t)
	_, err := env.disputeSvc.Resolve(
		ctx, d.Id, arbiter, domain.DisputeOutcomeRefund, "seller unresponsive",
	)
	require.NoError(t, err)

	_, err = env.disputeSvc.Resolve(
		ctx, d.Id, arbiter, domain.DisputeOutcomeRelease, "changed my mind",
	)
	require.ErrorIs(t, err, domain.ErrDisputeNotActive)

	_, err = env.disputeSvc.AddAttachment(ctx, d.Id, "too-late.pdf")
	require.ErrorIs(t, err, domain.ErrDisputeNotActive)
}

func TestSecondDisputeOnSameTradeIsRefused(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	info, _ := env.newDisputedTrade(t)

	_, err := env.disputeSvc.Open(ctx, info.Id, seller, "me too")
	require.ErrorIs(t, err, domain.ErrStateConflict)
}

func TestOpenRequiresReason(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	info, err := env.tradeSvc.CreateTradeFromOffer(
		ctx, env.offer.Id, decimal.RequireFromString("100"),
		buyer.Id, "bank_transfer",
	)
	require.NoError(t, err)
	_, err = env.tradeSvc.LockEscrow(ctx, info.Id, seller)
	require.NoError(t, err)

	_, err = env.disputeSvc.Open(ctx, info.Id, buyer, "")
	require.ErrorIs(t, err, domain.ErrMissingReason)
}
