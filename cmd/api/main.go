package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vitalcart/storefront-backend/api/routes"
	"github.com/vitalcart/storefront-backend/internal/auth"
	"github.com/vitalcart/storefront-backend/internal/billingcustomers"
	"github.com/vitalcart/storefront-backend/internal/checkout"
	"github.com/vitalcart/storefront-backend/internal/orders"
	"github.com/vitalcart/storefront-backend/internal/patients"
	"github.com/vitalcart/storefront-backend/internal/payments"
	"github.com/vitalcart/storefront-backend/internal/questionnaires"
	"github.com/vitalcart/storefront-backend/internal/sessions"
	"github.com/vitalcart/storefront-backend/internal/users"
	geniewebhook "github.com/vitalcart/storefront-backend/internal/webhooks/genie"
	"github.com/vitalcart/storefront-backend/pkg/auth/session"
	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/emed"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/instance"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/metrics"
	"github.com/vitalcart/storefront-backend/pkg/migrate"
	"github.com/vitalcart/storefront-backend/pkg/outbox"
	"github.com/vitalcart/storefront-backend/pkg/redis"
	"github.com/vitalcart/storefront-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.ApplyOnBoot(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefront(registry)

	genieClient, err := genie.NewClient(ctx, cfg.Genie, logg)
	if err != nil {
		logg.Error(ctx, "failed to create genie client", err)
		os.Exit(1)
	}
	emedClient, err := emed.NewClient(ctx, cfg.EMed, logg)
	if err != nil {
		logg.Error(ctx, "failed to create emed client", err)
		os.Exit(1)
	}
	gcsClient, err := gcs.NewClient(ctx, cfg.GCP, cfg.GCS, logg)
	if err != nil {
		logg.Error(ctx, "failed to create gcs client", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(ctx, "failed to close gcs client", err)
		}
	}()

	gormDB := dbClient.DB()
	userRepo := users.NewRepository(gormDB)
	questionnaireRepo := questionnaires.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	must(ctx, logg, "auth service", err)

	provisioner, err := auth.NewProvisioner(auth.ProvisionerParams{
		Accounts:       userRepo,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	must(ctx, logg, "account provisioner", err)

	sessionService, err := sessions.NewService(sessions.NewRepository(gormDB), cfg.Checkout.SessionTTL)
	must(ctx, logg, "checkout session service", err)

	relay, err := questionnaires.NewRelay(emedClient, questionnaireRepo, gcsClient, logg)
	must(ctx, logg, "questionnaire relay", err)

	uploadService, err := questionnaires.NewUploadService(questionnaireRepo, gcsClient, cfg.GCS.UploadPrefix, logg)
	must(ctx, logg, "questionnaire uploads", err)

	patientBridge, err := patients.NewBridge(emedClient, userRepo, relay, logg)
	must(ctx, logg, "patient bridge", err)

	customerBridge, err := billingcustomers.NewBridge(genieClient, userRepo, logg)
	must(ctx, logg, "billing customer bridge", err)

	materializer, err := orders.NewMaterializer(orders.MaterializerParams{
		Repo:        orderRepo,
		Tx:          dbClient,
		Outbox:      outboxService,
		RedirectURL: cfg.Checkout.OrderRedirectURL,
		Logger:      logg,
	})
	must(ctx, logg, "order materializer", err)

	orderService, err := orders.NewService(orderRepo)
	must(ctx, logg, "orders service", err)

	paymentRepo := payments.NewRepository(gormDB)
	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:      paymentRepo,
		Orders:    orderRepo,
		Sessions:  sessionService,
		Accounts:  userRepo,
		Customers: customerBridge,
		Gateway:   genieClient,
		Tx:        dbClient,
		Outbox:    outboxService,
		Logger:    logg,
	})
	must(ctx, logg, "payments service", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Provisioner:  provisioner,
		Sessions:     sessionService,
		Responses:    relay,
		Patients:     patientBridge,
		Customers:    customerBridge,
		Materializer: materializer,
		Accounts:     userRepo,
		Methods:      paymentService,
		Metrics:      storefrontMetrics,
		Logger:       logg,
	})
	must(ctx, logg, "checkout service", err)

	webhookService, err := geniewebhook.NewService(geniewebhook.ServiceParams{
		Orders:       orderRepo,
		Intents:      paymentRepo,
		Sessions:     sessionService,
		Materializer: materializer,
		Tokens:       paymentService,
		Patients:     patientBridge,
		Tx:           dbClient,
		Outbox:       outboxService,
		Metrics:      storefrontMetrics,
		Logger:       logg,
	})
	must(ctx, logg, "genie webhook service", err)

	replayGuard, err := geniewebhook.NewReplayGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	must(ctx, logg, "genie replay guard", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:       dbClient,
			Redis:    redisClient,
			Sessions: sessionManager,
			Gatherer: registry,
			Metrics:  storefrontMetrics,

			Auth:             authService,
			Checkout:         checkoutService,
			CheckoutSessions: sessionService,
			Orders:           orderService,
			Payments:         paymentService,
			Uploads:          uploadService,
			GenieWebhook:     webhookService,
			GenieReplay:      replayGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func must(ctx context.Context, logg *logger.Logger, component string, err error) {
	if err != nil {
		logg.Error(ctx, "failed to create "+component, err)
		os.Exit(1)
	}
}
