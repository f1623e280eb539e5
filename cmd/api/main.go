package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"portfolio-api/internal/client"
	"portfolio-api/internal/config"
	"portfolio-api/internal/logger"
	"portfolio-api/internal/repository"
	"portfolio-api/internal/server"
	"portfolio-api/internal/service"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	db, err := client.InitDBClient(cfg.Database, cfg.Environment.IsProduction())
	if err != nil {
		return err
	}

	rdb, err := client.InitRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	var attemptRepo repository.LoginAttemptRepository
	if rdb != nil {
		defer rdb.Close()
		// keep the record a little past the lock so the counter survives it
		attemptRepo = repository.NewRedisLoginAttemptRepository(rdb, 2*cfg.Admin.LockoutDuration)
		log.Info("login attempts stored in redis")
	} else {
		attemptRepo = repository.NewLoginAttemptRepository(db)
	}

	if cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookSecret == "" {
		log.Warn("stripe secret key or webhook secret missing")
	}
	stripeClient := client.NewStripeClient(&cfg.Stripe)
	linearClient := client.NewLinearClient(&cfg.Linear)

	storageClient, err := client.NewS3Client(ctx, &cfg.Storage)
	if err != nil {
		return err
	}

	orderRepo := repository.NewOrderRepository(db)
	postRepo := repository.NewPostRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	provider := cfg.Business.ProviderName
	orderService := service.NewOrderService(stripeClient, orderRepo, provider, log)
	notifier := service.NewNotificationService(linearClient, cfg.Linear.APIKey != "", cfg.Linear.TeamID != "", log)
	reconciler := service.NewFeeReconciler(stripeClient, log)

	authService, err := service.NewAuthService(cfg.Admin, attemptRepo, log)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Services{
		Checkout: service.NewCheckoutService(stripeClient, orderRepo, cfg.Stripe.Currency, provider, log),
		Order:    orderService,
		Webhook:  service.NewWebhookService(stripeClient, orderService, notifier, reconciler, webhookEventRepo, log),
		Auth:     authService,
		Blog:     service.NewBlogService(postRepo),
		Upload:   service.NewUploadService(storageClient),
		Admin:    service.NewAdminService(orderService, notifier),
	}, server.Options{
		BaseURL:        cfg.BaseURL,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, log)
	if err != nil {
		return err
	}

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	errCh := make(chan error, 1)
	log.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		log.Info("signal received, starting graceful shutdown", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
	return nil
}
