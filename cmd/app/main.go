package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"numera-billing-sync/internal/config"
	"numera-billing-sync/internal/domain/ports/adapter"
	pg "numera-billing-sync/internal/infra/db/postgres"
	gw "numera-billing-sync/internal/infra/gateway"
	"numera-billing-sync/internal/infra/logging"
	"numera-billing-sync/internal/infra/metrics"
	red "numera-billing-sync/internal/infra/redis"
	"numera-billing-sync/internal/infra/sched"
	"numera-billing-sync/internal/infra/web"
	"numera-billing-sync/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	eventRepo := pg.NewEventRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewUserRepo(pool), redisClient, cfg.Redis.TTL)

	// ---- Gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev {
		gateway = gw.NewNoopGateway()
	} else {
		gateway, err = gw.NewHostedGateway(cfg.Gateway)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway adapter init failed")
		}
	}
	logger.Info().Str("gateway", gateway.Name()).Msg("payment gateway configured")

	// ---- Use cases ----
	entitlementUC := usecase.NewEntitlementUseCase(userRepo, subRepo, tm, logger)
	subSyncUC := usecase.NewSubscriptionSyncUseCase(subRepo, userRepo, entitlementUC, logger)
	paySyncUC := usecase.NewPaymentSyncUseCase(payRepo, ledgerRepo, subRepo, userRepo, entitlementUC, logger)
	dispatcher := usecase.NewDispatcher(subSyncUC, paySyncUC)
	reconcileUC := usecase.NewReconcileUseCase(eventRepo, dispatcher, tm, logger)
	historyUC := usecase.NewBillingHistoryUseCase(ledgerRepo)
	checkoutUC := usecase.NewCheckoutUseCase(userRepo, subRepo, gateway, subSyncUC, tm, logger)

	// ---- HTTP server ----
	srv := web.NewServer(cfg.Server, cfg.Gateway, reconcileUC, entitlementUC, historyUC, checkoutUC, rateLimiter, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background workers ----
	retryWorker := sched.NewRetryWorker(reconcileUC, eventRepo, cfg.Worker.RetryInterval, cfg.Worker.RetryAfter, logger)
	go func() { _ = retryWorker.Run(ctx) }()

	expiryWorker := sched.NewExpiryWorker(cfg.Worker.ExpiryInterval, entitlementUC, logger)
	go func() { _ = expiryWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
