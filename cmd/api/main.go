package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-settlement-engine/config"
	"pos-settlement-engine/internal/adapter/gateway"
	httpHandler "pos-settlement-engine/internal/adapter/http/handler"
	pgStorage "pos-settlement-engine/internal/adapter/storage/postgres"
	redisStorage "pos-settlement-engine/internal/adapter/storage/redis"
	"pos-settlement-engine/internal/core/ports"
	"pos-settlement-engine/internal/service"
	"pos-settlement-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting POS Settlement Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	orderRepo := pgStorage.NewOrderRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	loyaltyRepo := pgStorage.NewLoyaltyRepo(pool)
	staffRepo := pgStorage.NewStaffRepo(pool)
	costLookup := pgStorage.NewCostLookup(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	summaryCache := redisStorage.NewSummaryCache(rdb)
	tierQueue := redisStorage.NewTierQueue(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	authSvc := service.NewAuthService(staffRepo, hashSvc, tokenSvc)
	loyaltySvc := service.NewLoyaltyService(loyaltyRepo, transactor, tierQueue, log)
	gatewayAdapter := gateway.NewSimulated(log)
	settlementSvc := service.NewSettlementService(
		orderRepo,
		paymentRepo,
		loyaltySvc,
		gatewayAdapter,
		transactor,
		cfg.Loyalty.PointValue,
		log,
	)
	reportingSvc := service.NewReportingService(paymentRepo, orderRepo, costLookup, summaryCache, log)

	// Start background tier recompute worker
	workerCtx, stopWorker := context.WithCancel(ctx)
	tierWorker := service.NewTierWorker(tierQueue, loyaltySvc, log)
	tierWorker.Start(workerCtx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		SettlementSvc:  settlementSvc,
		LoyaltySvc:     loyaltySvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain the tier worker before closing connections
	stopWorker()
	tierWorker.Wait()

	log.Info().Msg("Server exited")
}
