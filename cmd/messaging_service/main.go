package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/app"
	"github.com/ghostcrm/messaging/internal/messaging/provider"
	repoImpl "github.com/ghostcrm/messaging/internal/messaging/repository/postgres"
	"github.com/ghostcrm/messaging/internal/messaging/secrets"
	httptransport "github.com/ghostcrm/messaging/internal/messaging/transport/http"
	"github.com/ghostcrm/messaging/internal/platform/config"
	"github.com/ghostcrm/messaging/internal/platform/database"
	"github.com/ghostcrm/messaging/internal/platform/logger"
	"github.com/ghostcrm/messaging/internal/platform/messagebroker"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

const serviceName = "messaging_service"

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Messaging service starting...", "port", cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(rootCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Connected to NATS")

	// Repositories
	messageRepo := repoImpl.NewPgMessageRepository()
	phoneRepo := repoImpl.NewPgPhoneNumberRepository()
	accountRepo := repoImpl.NewPgProviderAccountRepository()
	secretRepo := repoImpl.NewPgSecretRepository()
	auditRepo := repoImpl.NewPgAuditEventRepository()
	membershipRepo := repoImpl.NewPgMembershipRepository()

	secretStore, err := secrets.NewStore(cfg.SecretsMasterKey, secretRepo, dbPool)
	if err != nil {
		appLogger.Error("Failed to initialize secret store", "error", err)
		os.Exit(1)
	}

	// Application services
	vendorTimeout := time.Duration(cfg.VendorHTTPTimeoutSeconds) * time.Second
	adapterFactory := provider.NewHTTPFactory(appLogger, vendorTimeout)
	selector := app.NewAdapterSelector(dbPool, accountRepo, phoneRepo, secretStore, adapterFactory, appLogger)
	verifier := app.NewVerificationService(dbPool, accountRepo, secretStore, adapterFactory, appLogger)
	dispatcher := app.NewDispatcher(dbPool, messageRepo, auditRepo, selector, natsClient, appLogger)
	inbound := app.NewInboundProcessor(dbPool, phoneRepo, accountRepo, messageRepo, secretStore, natsClient, appLogger)

	// HTTP transport
	validate := validator.New()
	messageHandler := httptransport.NewMessageHandler(dispatcher, messageRepo, dbPool, validate, appLogger)
	telecomHandler := httptransport.NewTelecomHandler(accountRepo, phoneRepo, auditRepo, secretStore, verifier, dbPool, validate, appLogger)
	webhookHandler := httptransport.NewWebhookHandler(inbound, cfg.PublicBaseURL, appLogger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		JWTSecret:                 cfg.JWTSecret,
		WebhookRateLimitPerMinute: cfg.WebhookRateLimitPerMinute,
		DB:                        dbPool,
		Memberships:               membershipRepo,
		Health:                    dbPool,
		Messages:                  messageHandler,
		Telecom:                   telecomHandler,
		Webhooks:                  webhookHandler,
		Logger:                    appLogger,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutdown signal received, shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Messaging service shut down gracefully.")
}
