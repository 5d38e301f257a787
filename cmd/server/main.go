package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/portalclube/payment-reconciler/internal/adapters/asaas"
	"github.com/portalclube/payment-reconciler/internal/adapters/database"
	"github.com/portalclube/payment-reconciler/internal/adapters/postgres"
	"github.com/portalclube/payment-reconciler/internal/config"
	cronHandler "github.com/portalclube/payment-reconciler/internal/handlers/cron"
	webhookHandler "github.com/portalclube/payment-reconciler/internal/handlers/webhook"
	"github.com/portalclube/payment-reconciler/internal/logging"
	"github.com/portalclube/payment-reconciler/internal/metrics"
	"github.com/portalclube/payment-reconciler/internal/services/completion"
	"github.com/portalclube/payment-reconciler/internal/services/fallback"
	"github.com/portalclube/payment-reconciler/internal/services/recovery"
	"github.com/portalclube/payment-reconciler/internal/services/split"
	webhookService "github.com/portalclube/payment-reconciler/internal/services/webhook"
	"github.com/portalclube/payment-reconciler/internal/services/webhookerr"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting payment reconciler",
		zap.String("version", "0.1.0"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resolve secrets before anything dials out with them.
	secretManager := initSecretManager(ctx, logger)
	defer secretManager.Close()
	resolveSecrets(ctx, secretManager, cfg, logger)

	dbAdapter, err := database.NewPostgresAdapter(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbAdapter.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	m := metrics.Registry("payment_reconciler")

	// Repositories
	pendingRepo := postgres.NewPendingRepository(dbAdapter)
	splitRepo := postgres.NewSplitRepository(dbAdapter)
	webhookErrRepo := postgres.NewWebhookErrorRepository(dbAdapter)
	cobrancaRepo := postgres.NewCobrancaRepository(dbAdapter)
	affiliateRepo := postgres.NewAffiliateRepository(dbAdapter)
	auditRepo := postgres.NewAuditRepository(dbAdapter)
	notificationRepo := postgres.NewNotificationRepository(dbAdapter)
	provisionRepo := postgres.NewProvisionRepository(dbAdapter)

	// Gateway client
	asaasClient := asaas.NewClient(cfg.Asaas, nil, logger)

	// Services
	calculator := split.NewCalculator(affiliateRepo, logger)
	distributor := split.NewDistributor(splitRepo, asaasClient, notificationRepo, auditRepo, cfg.Asaas.PartnerWalletID, logger, m)
	completionProc := completion.NewProcessor(asaasClient, provisionRepo, calculator, distributor, logger)
	store := fallback.NewStore(pendingRepo, completionProc, logger, m)
	webhookProc := webhookService.NewProcessor(pendingRepo, cobrancaRepo, store, logger)
	ledger := webhookerr.NewLedger(webhookErrRepo, webhookProc, logger, m)

	clock := recovery.NewRealClock()
	orch := recovery.NewOrchestrator(cfg.Recovery, asaasClient, dbAdapter, pendingRepo, cobrancaRepo, webhookErrRepo, ledger, clock, logger, m)
	asaasClient.SetObserver(orch.ObserveGatewayRequest)

	scheduler := recovery.NewScheduler(orch, cfg.Recovery, clock, logger)
	go scheduler.Run(ctx)

	// Handlers
	fallbackHdlr := cronHandler.NewFallbackHandler(store, cfg.Fallback, logger, cfg.Cron.Secret)
	recoveryHdlr := cronHandler.NewRecoveryHandler(orch, ledger, logger, cfg.Cron.Secret)
	webhookHdlr := webhookHandler.NewHandler(webhookProc, ledger, cfg.Asaas.WebhookToken, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/asaas", webhookHdlr.Receive)
	mux.HandleFunc("/cron/retry-pending", fallbackHdlr.RetryPending)
	mux.HandleFunc("/cron/manual-complete", fallbackHdlr.ManualComplete)
	mux.HandleFunc("/cron/mark-failed", fallbackHdlr.MarkFailed)
	mux.HandleFunc("/cron/stats", fallbackHdlr.Stats)
	mux.HandleFunc("/cron/health", recoveryHdlr.Health)
	mux.HandleFunc("/cron/recovery/check", recoveryHdlr.CheckNow)
	mux.HandleFunc("/cron/recovery/execute", recoveryHdlr.ExecuteAction)
	mux.HandleFunc("/cron/reprocess-webhooks", recoveryHdlr.ReprocessWebhooks)
	mux.HandleFunc("/cron/webhook-errors/retry", recoveryHdlr.RetryWebhookError)
	mux.HandleFunc("/cron/webhook-errors/resolve", recoveryHdlr.ResolveWebhookError)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}
