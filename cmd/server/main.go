package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	apppayment "github.com/consultpay/backend/internal/application/payment"
	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/consultpay/backend/internal/infrastructure/alerting"
	"github.com/consultpay/backend/internal/infrastructure/cache"
	"github.com/consultpay/backend/internal/infrastructure/config"
	"github.com/consultpay/backend/internal/infrastructure/gateway"
	"github.com/consultpay/backend/internal/infrastructure/identity"
	"github.com/consultpay/backend/internal/infrastructure/logger"
	"github.com/consultpay/backend/internal/infrastructure/notify"
	"github.com/consultpay/backend/internal/infrastructure/persistence"
	"github.com/consultpay/backend/internal/infrastructure/resilience"
	"github.com/consultpay/backend/internal/infrastructure/scheduler"
	"github.com/consultpay/backend/internal/infrastructure/telephony"
	"github.com/consultpay/backend/internal/interfaces/http/handler"
	"github.com/consultpay/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting consultation payments service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	log.Info("Database connected")

	// Redis backs the rate limiter, alert dedup, and notifications.
	// Outside production an unreachable Redis degrades to process-local
	// fallbacks instead of refusing to start.
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		if cfg.App.Env == "production" {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Warn("Redis unavailable, using process-local rate limiting, alerting, and notifications",
			zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
	}

	// Repositories
	paymentRepo := persistence.NewGormPaymentRecordRepository(db.DB)
	transferRepo := persistence.NewGormPendingTransferRepository(db.DB)
	sessionRepo := persistence.NewGormSessionRepository(db.DB)
	payoutConfigRepo := persistence.NewGormPayoutConfigRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)
	priceCatalog := persistence.NewGormPriceCatalog(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Gateway adapters, each behind its own circuit breaker
	breakerConfig := func(name string) resilience.Config {
		return resilience.Config{
			Name:             name,
			FailureThreshold: cfg.Gateway.BreakerFailureThreshold,
			ResetTimeout:     cfg.Gateway.BreakerResetTimeout,
			PerCallTimeout:   cfg.Gateway.BreakerPerCallTimeout,
		}
	}

	var gateways []payment.Gateway
	if cfg.Gateway.StripeAPIKey != "" {
		cardGateway, err := gateway.NewStripeCardGateway(&gateway.StripeConfig{
			SecretKey:         cfg.Gateway.StripeAPIKey,
			PlatformAccountID: cfg.Gateway.StripePlatformAccountID,
			IsTestMode:        strings.HasPrefix(cfg.Gateway.StripeAPIKey, "sk_test"),
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize card gateway", zap.Error(err))
		}
		cardBreaker := resilience.NewCircuitBreaker(breakerConfig("gateway.card"), log)
		gateways = append(gateways, resilience.WrapGateway(cardGateway, cardBreaker))
	}
	if cfg.Gateway.WalletAPISecret != "" {
		walletGateway, err := gateway.NewWalletGateway(&gateway.WalletConfig{
			Endpoint:   cfg.Gateway.WalletEndpoint,
			MerchantID: cfg.Gateway.WalletMerchantID,
			APISecret:  cfg.Gateway.WalletAPISecret,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize wallet gateway", zap.Error(err))
		}
		walletBreaker := resilience.NewCircuitBreaker(breakerConfig("gateway.wallet"), log)
		gateways = append(gateways, resilience.WrapGateway(walletGateway, walletBreaker))
	}
	registry, err := gateway.NewRegistry(payment.GatewayFamily(cfg.Gateway.DefaultFamily), gateways...)
	if err != nil {
		log.Fatal("Failed to build gateway registry", zap.Error(err))
	}

	// External collaborators
	verification := identity.NewClient(&cfg.Identity, log)
	livenessProbe := telephony.NewLivenessProbe(&cfg.Telephony, log)
	var (
		notifier    payment.Notifier    = notify.NewLogNotifier(log)
		alerts      payment.AlertSink   = alerting.NewLogAlertSink(log)
		rateLimiter payment.RateLimiter = cache.NewInMemoryRateLimiter(
			cfg.Payments.RateLimitRequests, cfg.Payments.RateLimitWindow)
	)
	if redisClient != nil {
		notifier = notify.NewRedisNotifier(redisClient, log)
		alerts = alerting.NewDeduplicatingSink(alerting.NewLogAlertSink(log), redisClient, log)
		rateLimiter = cache.NewRedisRateLimiter(redisClient,
			cfg.Payments.RateLimitRequests, cfg.Payments.RateLimitWindow)
	}

	// Per-currency authorization bounds
	bounds := make(map[string]shared.AmountBounds, len(cfg.Payments.MinAmounts))
	for currency, minAmount := range cfg.Payments.MinAmounts {
		bounds[currency] = shared.AmountBounds{
			Min: minAmount,
			Max: cfg.Payments.MaxAmounts[currency],
		}
	}

	// Application services
	guard := apppayment.NewDuplicateGuard(txScope, paymentRepo, sessionRepo, cfg.Payments.LockValidity, log)
	pricing := apppayment.NewPricingService(priceCatalog, log)
	sync := apppayment.NewCrossEntitySync(txScope, alerts, log)
	authorizeService := apppayment.NewAuthorizeService(
		guard, pricing, verification, registry, paymentRepo, transferRepo,
		rateLimiter, auditRepo, alerts, bounds, log)
	settlementService := apppayment.NewSettlementService(
		paymentRepo, registry, sync, verification, payoutConfigRepo,
		notifier, auditRepo, alerts, log)
	transferProcessor := apppayment.NewTransferProcessor(
		transferRepo, paymentRepo, registry, verification, settlementService,
		sync, notifier, auditRepo, alerts, log)
	reconciliationService := apppayment.NewReconciliationService(
		paymentRepo, sessionRepo, settlementService, livenessProbe, alerts,
		apppayment.ReconciliationConfig{
			MinBillableDuration: cfg.Reconciliation.MinBillableDuration,
			RefundAge:           cfg.Reconciliation.RefundAge,
			OrphanAge:           cfg.Reconciliation.OrphanAge,
		}, log)

	// Background schedulers
	if cfg.Reconciliation.Enabled {
		reconScheduler := scheduler.NewReconciliationScheduler(reconciliationService, cfg.Reconciliation.Interval, log)
		if err := reconScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start reconciliation scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := reconScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping reconciliation scheduler", zap.Error(err))
			}
		}()
	}
	if cfg.Recovery.Enabled {
		recoveryScheduler := scheduler.NewRecoveryScheduler(transferProcessor, cfg.Recovery.Interval, log)
		if err := recoveryScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start transfer recovery scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := recoveryScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping transfer recovery scheduler", zap.Error(err))
			}
		}()
	}

	// HTTP layer
	if err := handler.SetupValidator(); err != nil {
		log.Fatal("Failed to configure request validator", zap.Error(err))
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}
	engine.Use(logger.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSystemHandler(db.DB, redisClient))
	r.Register(handler.NewPaymentHandler(authorizeService, settlementService, paymentRepo))
	r.Register(handler.NewPayoutHandler(transferProcessor, settlementService))
	r.Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
}
