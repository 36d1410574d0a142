package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/personaliza/api/internal/di"
	"github.com/personaliza/api/internal/handlers"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/config"
	"github.com/personaliza/api/internal/platform/idempotency"
	"github.com/personaliza/api/internal/platform/observability"
	"github.com/personaliza/api/internal/platform/secrets"
	"github.com/personaliza/api/internal/services"
)

const (
	statusPollLimit  = 60
	statusPollWindow = time.Minute
	shutdownTimeout  = 10 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		logger.Warn("metrics disabled", zap.Error(err))
	}

	infra, err := di.OpenInfrastructure(ctx, cfg, logger.Named("infra"))
	if err != nil {
		logger.Fatal("failed to open infrastructure", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, infra, di.Dependencies{
		Gateway: infra.Gateway,
		Events:  infra.Events,
		Images:  infra.Images,
		Metrics: metrics,
		Logger:  logger,
		Build:   buildInfoFromEnv(envValues, startedAt),
	})
	if err != nil {
		_ = infra.Close(ctx)
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("infrastructure close error", zap.Error(err))
		}
	}()
	svc := container.Services

	idempotencyStore := idempotency.NewFirestoreStore(infra.Firestore)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	var janitorWG sync.WaitGroup
	janitorWG.Add(1)
	go func() {
		defer janitorWG.Done()
		idempotency.Janitor{
			Store:     idempotencyStore,
			Interval:  cfg.Idempotency.CleanupInterval,
			BatchSize: cfg.Idempotency.CleanupBatchSize,
			Logger:    logger.Named("idempotency"),
		}.Run(janitorCtx)
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, auth.FirebaseConfig{
		ProjectID:       cfg.Firebase.ProjectID,
		CredentialsFile: cfg.Firebase.CredentialsFile,
	})
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, svc.Payments,
		handlers.WithPaymentIdempotency(idempotencyMiddleware),
		handlers.WithStatusRateLimit(statusPollLimit, statusPollWindow, time.Now),
	)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(svc.Orders)
	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(svc.Catalog)

	projectID := traceProjectID(cfg)
	httpLogger := logger.Named("http")
	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(buildInfoFromEnv(envValues, startedAt)),
			handlers.WithHealthSystemService(svc.System),
		)),
		handlers.WithMeRoutes(handlers.NewMeHandlers(authenticator, svc.Addresses).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(authenticator, svc.Cart).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(authenticator, svc.Checkout).Routes),
		handlers.WithShippingRoutes(handlers.NewShippingHandlers(svc.Shipping).Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(handlers.CombineRoutes(adminOrderHandlers.Routes, adminCatalogHandlers.Routes)),
		handlers.WithAdminMiddlewares(authenticator.RequireFirebaseAuth("staff", "admin")),
	}
	if svc.Payments != nil {
		webhooks := handlers.NewPaymentWebhookHandlers(svc.Payments, handlers.StripeWebhookParser(cfg.PSP.StripeWebhookSecret))
		opts = append(opts, handlers.WithWebhookRoutes(webhooks.Routes))

		if oidc := buildOIDCMiddleware(logger.Named("auth"), cfg); oidc != nil {
			opts = append(opts,
				handlers.WithInternalMiddlewares(oidc),
				handlers.WithInternalRoutes(handlers.NewInternalPaymentHandlers(svc.Payments).Routes),
			)
		} else {
			logger.Warn("oidc not configured; internal reconcile route disabled")
		}
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := httpLogger.With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("personaliza api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	stopJanitor()
	janitorWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(env["API_ENVIRONMENT"])
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists config secret fields that must resolve. The Stripe credentials are
// only demanded when the sandbox gateway is off.
func requiredSecretNames(env map[string]string) []string {
	required := []string{"Postgres.DSN"}
	if !isTruthy(env["API_PSP_SANDBOX"]) {
		required = append(required, "PSP.StripeAPIKey", "PSP.StripeWebhookSecret")
	}
	return required
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	oidc := cfg.Security.OIDC
	if strings.TrimSpace(oidc.JWKSURL) == "" || strings.TrimSpace(oidc.Audience) == "" {
		return nil
	}
	validator := auth.NewOIDCValidator(auth.NewJWKSCache(oidc.JWKSURL), logger)
	return validator.RequireOIDC(oidc.Audience, oidc.Issuers)
}
