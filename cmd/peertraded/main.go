package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/peertrade-network/peertrade-daemon/internal/config"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/dispute"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/pubsub"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/scheduler"
	"github.com/peertrade-network/peertrade-daemon/internal/core/application/trade"
	"github.com/peertrade-network/peertrade-daemon/internal/core/domain"
	"github.com/peertrade-network/peertrade-daemon/internal/core/ports"
	escrowinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/escrow/inmemory"
	escrowledger "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/escrow/ledger"
	webhookpubsub "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/pubsub/webhook"
	dbbadger "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/storage/db/badger"
	dbinmemory "github.com/peertrade-network/peertrade-daemon/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/peertrade-network/peertrade-daemon/internal/interfaces/http"
)

func main() {
	app := &cli.App{
		Name:    "peertraded",
		Usage:   "peer to peer escrow-mediated trading daemon",
		Version: "0.1.0",
		Action:  runDaemon,
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("daemon exited with error")
	}
}

func runDaemon(_ *cli.Context) error {
	if err := config.InitConfig(); err != nil {
		return err
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := newRepoManager()
	if err != nil {
		return err
	}
	defer repoManager.Close()

	escrowAdapter, err := newEscrowAdapter()
	if err != nil {
		return err
	}

	var securePubSub ports.SecurePubSub
	if !config.GetBool(config.NoWebhooksKey) {
		securePubSub = webhookpubsub.NewService()
	}
	pubsubSvc := pubsub.NewService(securePubSub)
	defer pubsubSvc.Close()

	maxDailyVolume, err := config.GetDecimal(config.MaxDailyVolumeKey)
	if err != nil {
		return err
	}
	limitsPolicy := domain.LimitsPolicy{
		MaxDailyOrders: uint32(config.GetInt(config.MaxDailyOrdersKey)),
		MaxDailyTrades: uint32(config.GetInt(config.MaxDailyTradesKey)),
		MaxDailyVolume: maxDailyVolume,
	}

	tradeSvc, err := trade.NewService(
		repoManager, escrowAdapter, pubsubSvc, limitsPolicy,
		config.GetDuration(config.PaymentWindowKey),
		config.GetDuration(config.EscrowDurationKey),
	)
	if err != nil {
		return err
	}

	disputeSvc, err := dispute.NewService(repoManager, tradeSvc)
	if err != nil {
		return err
	}

	schedulerSvc, err := scheduler.NewService(repoManager)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tradeSvc.Reconcile(ctx); err != nil {
		return err
	}
	if err := schedulerSvc.Start(ctx, tradeSvc); err != nil {
		return err
	}
	defer schedulerSvc.Shutdown()
	tradeSvc.SetTimers(schedulerSvc)

	addr := fmt.Sprintf(":%d", config.GetInt(config.HTTPPortKey))
	server, err := httpinterface.NewServer(addr, tradeSvc, disputeSvc, pubsubSvc)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	log.Info("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), 10*time.Second,
	)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func newRepoManager() (ports.RepoManager, error) {
	switch config.GetString(config.DBTypeKey) {
	case config.DBBadger:
		dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
		return dbbadger.NewRepoManager(dbDir, log.New())
	default:
		return dbinmemory.NewRepoManager(), nil
	}
}

func newEscrowAdapter() (ports.EscrowAdapter, error) {
	switch config.GetString(config.EscrowTypeKey) {
	case config.EscrowLedger:
		return escrowledger.NewEscrowAdapter(
			config.GetString(config.LedgerAddrKey),
			config.GetString(config.LedgerAPIKeyKey),
		), nil
	default:
		return escrowinmemory.NewEscrowAdapter(), nil
	}
}
