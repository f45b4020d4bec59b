package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/peertrade-network/peertrade-daemon/internal/core/application/pubsub"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/scheduler"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/trade"
	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
	escrowinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/escrow/inmemory"
	dbinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/storage/db/inmemory"
)

var (
	buyer  = domain.Actor{Id: "buyer-1", Role: domain.RoleBuyer}
	seller = domain.Actor{Id: "seller-1", Role: domain.RoleSeller}
)

type testEnv struct {
	tradeSvc     *trade.Service
	schedulerSvc *scheduler.Service
	repoManager  ports.RepoManager
	offer        *domain.Offer
	cancel       context.CancelFunc
}

// newTestEnv builds the engine plus scheduler pair with very short offer
// windows so that expiries fire within the test run.
func newTestEnv(
	t *testing.T, paymentWindow, escrowDuration time.Duration,
) *testEnv {
	repoManager := dbinmemory.NewRepoManager()
	adapter := escrowinmemory.NewEscrowAdapter()
	pubsubSvc := pubsub.NewService(nil)

	tradeSvc, err := trade.NewService(
		repoManager, adapter, pubsubSvc, domain.LimitsPolicy{},
		paymentWindow, escrowDuration,
	)
	require.NoError(t, err)

	schedulerSvc, err := scheduler.NewService(repoManager)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, schedulerSvc.Start(ctx, tradeSvc))
	tradeSvc.SetTimers(schedulerSvc)

	offer, err := domain.NewOffer(
		seller.Id, "GOLD", "USD",
		decimal.RequireFromString("5.12"),
		decimal.RequireFromString("10"),
		decimal.RequireFromString("1000"),
		nil, paymentWindow, escrowDuration, time.Now(),
	)
	require.NoError(t, err)
	require.NoError(
		t, repoManager.OfferRepository().AddOffer(context.Background(), offer),
	)

	t.Cleanup(func() {
		schedulerSvc.Shutdown()
		cancel()
	})

	return &testEnv{
		tradeSvc:     tradeSvc,
		schedulerSvc: schedulerSvc,
		repoManager:  repoManager,
		offer:        offer,
		cancel:       cancel,
	}
}

func (e *testEnv) waitForStatus(
	t *testing.T, tradeId, status string, timeout time.Duration,
) *trade.TradeInfo {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		info, err := e.tradeSvc.GetTrade(context.Background(), tradeId)
		require.NoError(t, err)
		if info.Status == status {
			return info
		}
		time.Sleep(10 * time.Millisecond)
	}
	info, err := e.tradeSvc.GetTrade(context.Background(), tradeId)
	require.NoError(t, err)
	require.Equalf(t, status, info.Status, "trade %s never reached %s", tradeId, status)
	return info
}

func TestPaymentTimeoutCancelsTrade(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 50*time.Millisecond, time.Hour)

	info, err := env.tradeSvc.CreateTradeFromOffer(
		ctx, env.offer.Id, decimal.RequireFromString("100"),
		buyer.Id, "bank_transfer",
	)
	require.NoError(t, err)

	_, err = env.tradeSvc.LockEscrow(ctx, info.Id, seller)
	require.NoError(t, err)

	info = env.waitForStatus(t, info.Id, "CANCELLED", 3*time.Second)
	require.Equal(t, "refunded", info.EscrowStatus)
	require.Equal(t, domain.ReasonPaymentTimeout, info.CancelReason)

	events, err := env.tradeSvc.GetTimeline(ctx, info.Id)
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, domain.EventTradeCancelled, last.Type)
	require.Equal(t, domain.RoleSystem, last.ActorRole)
}

func TestMarkPaymentDisarmsPaymentTimeout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 80*time.Millisecond, time.Hour)

	info, err := env.tradeSvc.CreateTradeFromOffer(
		ctx, env.offer.Id, decimal.RequireFromString("100"),
		buyer.Id, "bank_transfer",
	)
	require.NoError(t, err)

	_, err = env.tradeSvc.LockEscrow(ctx, info.Id, seller)
	require.NoError(t, err)
	_, err = env.tradeSvc.MarkPayment(ctx, info.Id, buyer, "")
	require.NoError(t, err)

	// wait out the original payment window: the trade must not be cancelled.
	time.Sleep(200 * time.Millisecond)
	refetched, err := env.tradeSvc.GetTrade(ctx, info.Id)
	require.NoError(t, err)
	require.Equal(t, "PAYMENT_MARKED", refetched.Status)
}

func TestReleaseTimeoutOpensDispute(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, time.Hour, 50*time.Millisecond)

	info, err := env.tradeSvc.CreateTradeFromOffer(
		ctx, env.offer.Id, decimal.RequireFromString("100"),
		buyer.Id, "bank_transfer",
	)
	require.NoError(t, err)

	_, err = env.tradeSvc.LockEscrow(ctx, info.Id, seller)
	require.NoError(t, err)
	_, err = env.tradeSvc.MarkPayment(ctx, info.Id, buyer, "")
	require.NoError(t, err)

	info = env.waitForStatus(t, info.Id, "DISPUTE", 3*time.Second)
	require.NotEmpty(t, info.DisputeId)

	d, err := env.repoManager.DisputeRepository().GetDispute(ctx, info.DisputeId)
	require.NoError(t, err)
	require.Equal(t, domain.ReasonReleaseTimeout, d.Reason)
	require.Equal(t, domain.RoleSystem, d.OpenedRole)
}

func TestStartRestoresElapsedDeadlines(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 10*time.Millisecond, time.Hour)

	info, err := env.tradeSvc.CreateTradeFromOffer(
		ctx, env.offer.Id, decimal.RequireFromString("100"),
		buyer.Id, "bank_transfer",
	)
	require.NoError(t, err)
	_, err = env.tradeSvc.LockEscrow(ctx, info.Id, seller)
	require.NoError(t, err)

	// simulate a restart: drop the timers, let the deadline elapse and
	// restore them from the persisted trades.
	env.schedulerSvc.Shutdown()
	time.Sleep(50 * time.Millisecond)

	restored, err := scheduler.NewService(env.repoManager)
	require.NoError(t, err)
	require.NoError(t, restored.Start(ctx, env.tradeSvc))
	t.Cleanup(restored.Shutdown)

	env.waitForStatus(t, info.Id, "CANCELLED", 3*time.Second)
}
