package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/upb/pipebridge/config"
	"github.com/upb/pipebridge/handlers"
	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/middleware"
	"github.com/upb/pipebridge/repositories"
	"github.com/upb/pipebridge/repositories/postgres"
	"github.com/upb/pipebridge/repositories/postgrest"
	"github.com/upb/pipebridge/services/events"
	"github.com/upb/pipebridge/services/identity"
	"github.com/upb/pipebridge/services/pipefy"
	"github.com/upb/pipebridge/services/profile"
	"github.com/upb/pipebridge/services/tenant"
	"github.com/upb/pipebridge/services/webhook"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  observability.MetricsRecorder

	// Optional direct database backend
	RepoFactory *postgres.RepositoryFactory
	DB          *postgres.DB

	// Repositories
	Repositories *repositories.Repositories

	// Services
	Identity *identity.Client
	Profiles *profile.Resolver
	Pipefy   *pipefy.Client
	Events   *events.Store
	Tenants  *tenant.Resolver
	Ingestor *webhook.Ingestor

	// Middleware
	AuthMiddleware    *middleware.AuthMiddleware
	RateLimiter       *middleware.RateLimiter
	SignatureVerifier *middleware.SignatureVerifier

	// Handlers
	HealthHandler       *handlers.HealthHandler
	AuthHandler         *handlers.AuthHandler
	WebhookHandler      *handlers.WebhookHandler
	OrganizationHandler *handlers.OrganizationHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics(cfg)

	if err := deps.initRepositories(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	deps.initServices(cfg)
	deps.initMiddleware(cfg)
	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Bool("direct_database", deps.DB != nil),
		zap.Int("static_pipe_mappings", len(cfg.Tenancy.PipeOrganizations)),
		zap.Bool("webhook_signature_required", cfg.Pipefy.WebhookSecret != ""))
	return deps, nil
}

// initMetrics builds a private registry so tests can create several
// dependency sets in one process.
func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NopMetrics{}
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Registry = reg
	d.Metrics = observability.NewMetrics(reg)
}

// initRepositories builds the data API repositories and, when DATABASE_URL
// is set, moves events and pipe mappings onto the direct connection.
func (d *Dependencies) initRepositories(ctx context.Context, cfg *config.Config) error {
	client := postgrest.NewClient(cfg.Supabase, &http.Client{Timeout: cfg.Supabase.Timeout}, d.Metrics, d.Logger)

	repos := &repositories.Repositories{
		Events:        postgrest.NewEventRepository(client, d.Logger),
		Profiles:      postgrest.NewProfileRepository(client, d.Logger),
		Organizations: postgrest.NewOrganizationRepository(client, d.Logger),
		PipeMappings:  postgrest.NewPipeMappingRepository(client, d.Logger),
	}

	if cfg.Database != nil {
		factory, err := postgres.NewRepositoryFactory(ctx, *cfg.Database, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}
		if err := factory.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		factory.Apply(repos)

		d.RepoFactory = factory
		d.DB = factory.GetDB()
	}

	d.Repositories = repos
	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.Identity = identity.NewClient(cfg.Supabase, &http.Client{Timeout: cfg.Supabase.Timeout}, d.Metrics, d.Logger)
	d.Profiles = profile.NewResolver(d.Repositories.Profiles, d.Logger)
	d.Pipefy = pipefy.NewClient(cfg.Pipefy, &http.Client{Timeout: cfg.Pipefy.Timeout}, d.Metrics, d.Logger)
	d.Events = events.NewStore(d.Repositories.Events, d.Logger)
	d.Tenants = tenant.NewResolver(cfg.Tenancy.PipeOrganizations, d.Repositories.PipeMappings, d.Logger)
	d.Ingestor = webhook.NewIngestor(d.Events, d.Pipefy, d.Tenants, cfg.Tenancy.DefaultOrganizationID, d.Metrics, d.Logger)
}

func (d *Dependencies) initMiddleware(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Identity, d.Profiles, d.Logger)
	d.RateLimiter = middleware.NewRateLimiter(cfg.Webhook.RateLimit, cfg.Webhook.RateBurst, d.Metrics, d.Logger)
	d.SignatureVerifier = middleware.NewSignatureVerifier(cfg.Pipefy.WebhookSecret, cfg.Webhook.MaxBodyBytes, d.Logger)

	if cfg.IsProduction() && cfg.Pipefy.WebhookSecret == "" {
		d.Logger.Warn("webhook signature verification is disabled in production")
	}
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	// A nil *postgres.DB must not become a non-nil interface.
	var db handlers.HealthChecker
	if d.DB != nil {
		db = d.DB
	}

	d.HealthHandler = handlers.NewHealthHandler(db, d.Logger)
	d.AuthHandler = handlers.NewAuthHandler(d.Identity, d.Profiles, cfg.Webhook.MaxBodyBytes, d.Logger)
	d.WebhookHandler = handlers.NewWebhookHandler(d.Ingestor, cfg.Webhook.MaxBodyBytes, d.Logger)
	d.OrganizationHandler = handlers.NewOrganizationHandler(d.Repositories.Organizations, cfg.Webhook.MaxBodyBytes, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
