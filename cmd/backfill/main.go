package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"numera-billing-sync/internal/config"
	pg "numera-billing-sync/internal/infra/db/postgres"
	"numera-billing-sync/internal/infra/logging"
	"numera-billing-sync/internal/usecase"
)

// backfill replays every admitted-but-unprocessed event through the normal
// reconciliation path. Run it after fixing whatever made the events fail
// (for example a missing customer mapping).
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	olderThan := flag.Duration("older-than", 0, "only replay events admitted at least this long ago")
	limit := flag.Int("limit", 1000, "maximum number of events to replay")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	eventRepo := pg.NewEventRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	entitlementUC := usecase.NewEntitlementUseCase(userRepo, subRepo, tm, logger)
	subSyncUC := usecase.NewSubscriptionSyncUseCase(subRepo, userRepo, entitlementUC, logger)
	paySyncUC := usecase.NewPaymentSyncUseCase(payRepo, ledgerRepo, subRepo, userRepo, entitlementUC, logger)
	dispatcher := usecase.NewDispatcher(subSyncUC, paySyncUC)
	reconcileUC := usecase.NewReconcileUseCase(eventRepo, dispatcher, tm, logger)

	cutoff := time.Now().Add(-*olderThan)
	stale, err := eventRepo.ListUnprocessedOlderThan(ctx, nil, cutoff, *limit)
	if err != nil {
		log.Fatalf("list unprocessed: %v", err)
	}
	if len(stale) == 0 {
		fmt.Println("no unprocessed events. Nothing to do.")
		return
	}

	var ok, failed int
	for _, ev := range stale {
		evCtx := logging.WithEventID(ctx, ev.GatewayEventID)
		if err := reconcileUC.ProcessStored(evCtx, ev); err != nil {
			failed++
			fmt.Printf("  failed: %s (%s): %v\n", ev.GatewayEventID, ev.EventType, err)
			continue
		}
		ok++
		fmt.Printf("  replayed: %s (%s)\n", ev.GatewayEventID, ev.EventType)
	}
	fmt.Printf("backfill complete: %d replayed, %d still failing of %d.\n", ok, failed, len(stale))
}
