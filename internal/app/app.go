package app

import (
	"context"
	"fmt"
	"log/slog"

	"teetime/internal/cache"
	"teetime/internal/clock"
	"teetime/internal/config"
	"teetime/internal/database"
	"teetime/internal/external"
	"teetime/internal/idempotency"
	"teetime/internal/messaging"
	"teetime/internal/payment"
	"teetime/internal/repository"
	"teetime/internal/search"
	"teetime/internal/service"
	"teetime/internal/telemetry"
)

// App holds every connection and service a teetime process needs. The API
// server and the consumers build it the same way.
type App struct {
	Config   *config.Config
	Clock    clock.Clock
	DB       *database.DB
	Repos    *repository.Repositories
	Bus      messaging.Bus
	Cache    *cache.CourseCache
	Index    *search.CourseIndex
	Gateway  payment.Gateway
	Webhooks *payment.Registry
	Services *service.Services

	valkey          *idempotency.ValkeyLocker
	shutdownTracing func(context.Context) error
}

// Option overrides a collaborator New would otherwise build from config.
type Option func(*App)

// WithDB uses an already open database instead of connecting.
func WithDB(db *database.DB) Option {
	return func(a *App) { a.DB = db }
}

// WithGateway replaces the configured payment provider.
func WithGateway(g payment.Gateway) Option {
	return func(a *App) { a.Gateway = g }
}

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.Clock = c }
}

// New connects to Postgres and the broker, runs migrations and wires the
// services. Redis, Valkey and Elasticsearch are optional: when unreachable the
// process continues without them.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg, Clock: clock.NewSystem()}
	for _, opt := range opts {
		opt(a)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	a.shutdownTracing = shutdown

	if a.DB == nil {
		if a.DB, err = database.Connect(cfg.Database); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}
	if err := a.DB.RunMigrations(ctx); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	a.DB.ValidateConnectionPool()
	a.Repos = repository.NewRepositories(a.DB, a.Clock)

	a.Bus, err = messaging.Connect(cfg.Messaging)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to connect to messaging: %w", err)
	}

	infra := service.Infra{
		Publisher: a.Bus,
		Clock:     a.Clock,
	}

	if cfg.Cache.Addr != "" {
		if a.Cache, err = cache.NewCourseCache(cfg.Cache); err != nil {
			slog.Warn("Course cache unavailable, reading courses from Postgres", "error", err)
		} else {
			infra.Cache = a.Cache
		}
	}

	if cfg.Elasticsearch.Enabled {
		if a.Index, err = search.NewCourseIndex(cfg.Elasticsearch); err != nil {
			slog.Warn("Course index unavailable, searching Postgres", "error", err)
		} else {
			infra.Searcher = a.Index
		}
	}

	if cfg.Idempotency.Addr != "" {
		if a.valkey, err = idempotency.NewValkeyLocker(cfg.Idempotency); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect idempotency store: %w", err)
		}
		infra.Locker = a.valkey
	} else {
		slog.Warn("VALKEY_ADDR not set, idempotency guard is local to this process")
		infra.Locker = idempotency.NewLocalLocker()
	}

	if a.Gateway == nil {
		if a.Gateway, err = NewGateway(cfg.Payment); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}
	infra.Gateway = a.Gateway
	a.Webhooks = NewWebhookRegistry(cfg.Payment)

	a.Services = service.NewServices(service.Stores{
		Courses:         a.Repos.Courses,
		Slots:           a.Repos.Slots,
		Inventory:       a.Repos.Slots,
		Discounts:       a.Repos.Discounts,
		Affiliates:      a.Repos.Affiliates,
		Bookings:        a.Repos.Bookings,
		Commissions:     a.Repos.Commissions,
		Payments:        a.Repos.Payments,
		Ledger:          a.Repos.Ledger,
		Reconciliations: a.Repos.Reconciliations,
		Tx:              a.DB,
	}, infra, service.CoordinatorConfig{
		HoldTTL:           cfg.Engine.HoldTTL,
		PaymentTimeout:    cfg.Payment.Timeout,
		CommitMaxAttempts: cfg.Engine.CommitMaxAttempts,
		CommitBackoff:     cfg.Engine.CommitBackoff,
	})

	slog.Info("Application wired",
		"payment_provider", a.Gateway.Name(),
		"messaging_driver", cfg.Messaging.Driver,
		"course_cache", a.Cache != nil,
		"course_index", a.Index != nil,
		"distributed_idempotency", a.valkey != nil)
	return a, nil
}

// NewGateway selects the payment provider adapter.
func NewGateway(cfg config.PaymentConfig) (payment.Gateway, error) {
	switch cfg.Provider {
	case external.HubProvider, "":
		hub := cfg.Hub
		if hub.Timeout == 0 {
			hub.Timeout = cfg.Timeout
		}
		return external.NewHubGateway(hub), nil
	case external.MidtransProvider:
		if cfg.Midtrans.ServerKey == "" {
			return nil, fmt.Errorf("MIDTRANS_SERVER_KEY is required for the midtrans provider")
		}
		return external.NewMidtransGateway(cfg.Midtrans), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// NewWebhookRegistry accepts webhooks from every known provider, whichever one captures.
func NewWebhookRegistry(cfg config.PaymentConfig) *payment.Registry {
	registry := payment.NewRegistry(
		external.NewHubWebhookDecoder(cfg.Hub.TeamSlug),
		payment.NewEnvelopeDecoder(GenericWebhookProvider),
	)
	if cfg.Midtrans.ServerKey != "" {
		registry.Register(external.NewMidtransWebhookDecoder(cfg.Midtrans.ServerKey))
	}
	return registry
}

// GenericWebhookProvider accepts the provider-neutral {eventType, resourceId, relatedOrderId, status} envelope.
const GenericWebhookProvider = "generic"

// Close releases connections in reverse order of creation.
func (a *App) Close(ctx context.Context) {
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			slog.Error("Error closing messaging connection", "error", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Error("Error closing course cache", "error", err)
		}
	}
	if a.valkey != nil {
		a.valkey.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			slog.Error("Error flushing traces", "error", err)
		}
	}
}
