package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qr-transfer-authorizer/config"
	httpHandler "qr-transfer-authorizer/internal/adapter/http/handler"
	"qr-transfer-authorizer/internal/adapter/notify"
	pgStorage "qr-transfer-authorizer/internal/adapter/storage/postgres"
	redisStorage "qr-transfer-authorizer/internal/adapter/storage/redis"
	"qr-transfer-authorizer/internal/core/ports"
	"qr-transfer-authorizer/internal/service"
	"qr-transfer-authorizer/pkg/logger"
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
		Msg("Starting QR Transfer Authorizer")

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
	transferRepo := pgStorage.NewTransferRepo(pool)
	otpRepo := pgStorage.NewOTPRepo(pool)
	userRepo := pgStorage.NewUserRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis-backed guards. Two limiter instances: one bounds OTP
	// dispatch per phone inside the service, the other bounds the HTTP
	// endpoint per caller.
	scanGuard := redisStorage.NewScanGuard(rdb)
	otpSendLimiter := redisStorage.NewRateLimiter(rdb, cfg.OTP.SendRateLimit, cfg.OTP.SendRateWin)
	httpOTPLimiter := redisStorage.NewRateLimiter(rdb, cfg.OTP.SendRateLimit, cfg.OTP.SendRateWin)

	// Initialize delivery collaborators
	httpClient := &http.Client{Timeout: cfg.Notify.Timeout}
	pushSvc := notify.NewPushService(cfg.Notify.PushURL, httpClient, log)
	smsSvc := notify.NewSMSService(cfg.Notify.SMSURL, httpClient, log)

	// Initialize core services
	codec := service.NewAESTokenCodec()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	qrSvc := service.NewQRService(codec, cfg.QR.QR1TTL, cfg.QR.QR2TTL, cfg.QR.ImageSize)
	otpSvc := service.NewOTPService(otpRepo, transactor, hashSvc, smsSvc, otpSendLimiter, cfg.OTP.TTL, cfg.OTP.MaxAttempts, log)

	// Initialize the orchestration service
	transferSvc := service.NewTransferService(
		transferRepo,
		userRepo,
		codec,
		qrSvc,
		otpSvc,
		scanGuard,
		pushSvc,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.NewRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		AuthTokenSvc:   tokenSvc,
		OTPRateLimiter: httpOTPLimiter,
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

	log.Info().Msg("Server exited")
}
