package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/billing"
	"github.com/platinummonkey/haven/pkg/config"
	"github.com/platinummonkey/haven/pkg/content"
	"github.com/platinummonkey/haven/pkg/middleware"
	"github.com/platinummonkey/haven/pkg/observability"
	"github.com/platinummonkey/haven/pkg/rbac"
	"github.com/platinummonkey/haven/pkg/storage/postgres"
	"github.com/platinummonkey/haven/pkg/tenancy"
	"github.com/platinummonkey/haven/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "haven: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: cfg.Database.ReplicaURLList(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db := cm.Primary()
	cm.StartReplicaPruning(ctx, time.Minute)

	if err := runMigrations(ctx, db); err != nil {
		return err
	}

	tenancyStore := tenancy.NewStore(db)
	rbacStore := rbac.NewStore(db)
	userStore := users.NewStore(db)
	billingStore := billing.NewStore(db)
	contentStore := content.NewStore(db)

	if err := rbac.SeedBuiltInRoles(ctx, rbacStore); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	if err := ensureDefaultWorkspace(ctx, tenancyStore, cfg.Tenancy.DefaultWorkspaceSlug, logger); err != nil {
		return err
	}

	var redisClient *postgres.RedisClient
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(postgres.RedisConfig{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Info("Redis connected, distributed rate limiting enabled")
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	dbAuditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	auditLogger := audit.NewSafeLogger(dbAuditLogger, logger)

	resolverCache := expirable.NewLRU[string, tenancy.Resolution](cfg.Cache.ResolverSize, nil, cfg.Cache.ResolverTTL)
	resolver := tenancy.NewResolver(tenancyStore, resolverCache, cfg.Tenancy.DefaultWorkspaceSlug, logger, metrics)

	permCache := expirable.NewLRU[string, []rbac.Grant](cfg.Cache.PermissionSize, nil, cfg.Cache.PermissionTTL)
	checker := rbac.NewPermissionChecker(rbacStore, permCache, logger, metrics)

	billingService := billing.NewService(billingStore, redisClient, logger)
	gate := content.NewGate(checker, billingService, logger, metrics)
	sessions := auth.NewSessionManager(db, userStore)

	router := buildRouter(routerDeps{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		redis:          redisClient,
		resolver:       resolver,
		checker:        checker,
		sessions:       sessions,
		auditLogger:    auditLogger,
		tenancyStore:   tenancyStore,
		rbacStore:      rbacStore,
		userStore:      userStore,
		contentStore:   contentStore,
		billingService: billingService,
		gate:           gate,
	})

	var handler http.Handler = router
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "haven")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: buildHealthMux(db, redisClient, registry, cfg.Observability.MetricsEnabled),
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 10m", func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := billingService.ExpireOverdue(sweepCtx, time.Now()); err != nil {
			logger.WithError(err).Error("Subscription expiry sweep failed")
		} else if n > 0 {
			logger.WithField("expired", n).Info("Expired overdue subscriptions")
		}
		if n, err := sessions.CleanupExpired(sweepCtx); err != nil {
			logger.WithError(err).Error("Session cleanup failed")
		} else if n > 0 {
			logger.WithField("removed", n).Info("Removed expired sessions")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sweeps: %w", err)
	}
	sweeper.Start()

	sm := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := sweeper.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	if redisClient != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return cm.Close()
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return auditLogger.Close()
	})
	if otelProviders != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":        apiServer.Addr,
			"default_ws":  cfg.Tenancy.DefaultWorkspaceSlug,
			"health_addr": healthServer.Addr,
		}).Info("Starting haven server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(sm.WaitForShutdown)

	return g.Wait()
}

// runMigrations applies every package's migrations against the primary.
// Order matters only for readability; each package tracks its own version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		name string
		run  func(context.Context, *sql.DB) error
	}{
		{"users", users.RunMigrations},
		{"tenancy", tenancy.RunMigrations},
		{"rbac", rbac.RunMigrations},
		{"audit", audit.RunMigrations},
		{"billing", billing.RunMigrations},
		{"content", content.RunMigrations},
		{"auth", auth.RunMigrations},
	}
	for _, step := range steps {
		if err := step.run(ctx, db); err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", step.name, err)
		}
	}
	return nil
}

// ensureDefaultWorkspace creates the fallback workspace on first boot so
// unmapped hostnames resolve somewhere.
func ensureDefaultWorkspace(ctx context.Context, store *tenancy.Store, slug string, logger *observability.Logger) error {
	_, err := store.GetWorkspaceBySlug(ctx, slug)
	if err == nil {
		return nil
	}
	if !errors.Is(err, tenancy.ErrWorkspaceNotFound) {
		return fmt.Errorf("failed to look up default workspace: %w", err)
	}

	ws := &tenancy.Workspace{
		Slug: slug,
		Name: "Default",
	}
	if err := store.CreateWorkspace(ctx, ws); err != nil {
		return fmt.Errorf("failed to create default workspace: %w", err)
	}
	logger.WithField("slug", slug).Info("Created default workspace")
	return nil
}

type routerDeps struct {
	cfg            *config.Config
	logger         *observability.Logger
	metrics        *observability.Metrics
	redis          *postgres.RedisClient
	resolver       *tenancy.Resolver
	checker        rbac.Checker
	sessions       *auth.SessionManager
	auditLogger    audit.Logger
	tenancyStore   *tenancy.Store
	rbacStore      *rbac.Store
	userStore      *users.Store
	contentStore   *content.Store
	billingService *billing.Service
	gate           *content.Gate
}

// buildRouter assembles the middleware chain and mounts every handler
// group behind its permission guard.
func buildRouter(deps routerDeps) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestID)
	if deps.metrics != nil {
		router.Use(deps.metrics.HTTPMiddleware)
	}

	tenantMw := middleware.NewTenantMiddleware(deps.resolver, deps.logger)
	router.Use(tenantMw.Handler)

	// Auth is optional at the top level; permission middleware rejects
	// anonymous callers on the admin surface.
	authMw := middleware.NewAuthMiddleware(deps.sessions, true)
	router.Use(authMw.Handler)

	if deps.redis != nil {
		router.Use(middleware.NewDistributedRateLimitMiddleware(deps.redis, deps.logger).Handler)
	} else {
		router.Use(middleware.NewRateLimitMiddleware().Handler)
	}

	authHandlers := auth.NewHandlers(deps.sessions, deps.auditLogger, deps.cfg.Auth.SessionIssuerToken)
	authHandlers.RegisterRoutes(router)

	permMw := rbac.NewPermissionMiddleware(deps.checker)

	tenancyHandlers := tenancy.NewHandlers(deps.tenancyStore, deps.resolver, deps.auditLogger)
	wsAdmin := router.NewRoute().Subrouter()
	wsAdmin.Use(permMw.RequirePermission(rbac.PermManageWorkspaces))
	tenancyHandlers.RegisterRoutes(wsAdmin)

	userAdmin := router.NewRoute().Subrouter()
	userAdmin.Use(permMw.RequirePermission(rbac.PermManageUsers))
	users.NewHandlers(deps.userStore, deps.auditLogger).RegisterRoutes(userAdmin)
	rbac.NewHandlers(deps.rbacStore, deps.checker, deps.auditLogger).RegisterRoutes(userAdmin)

	billingHandlers := billing.NewHandlers(deps.billingService, deps.auditLogger)
	planAdmin := router.NewRoute().Subrouter()
	planAdmin.Use(permMw.RequirePermission(rbac.PermManagePlans))
	billingHandlers.RegisterPlanRoutes(planAdmin)

	subAdmin := router.NewRoute().Subrouter()
	subAdmin.Use(permMw.RequirePermission(rbac.PermManageSubscriptions))
	billingHandlers.RegisterSubscriptionRoutes(subAdmin)

	contentHandlers := content.NewHandlers(deps.contentStore, deps.gate, deps.auditLogger)
	contentAdmin := router.NewRoute().Subrouter()
	contentAdmin.Use(permMw.RequirePermission(rbac.PermManageContent))
	contentHandlers.RegisterRoutes(contentAdmin)

	public := router.NewRoute().Subrouter()
	public.Use(tenantMw.RequireActiveTenant)
	contentHandlers.RegisterPublicRoutes(public)

	return router
}

// buildHealthMux serves probes and metrics on a side port so they stay
// off the tenant-resolved surface.
func buildHealthMux(db *sql.DB, redisClient *postgres.RedisClient, registry *prometheus.Registry, metricsEnabled bool) *http.ServeMux {
	var rc *redis.Client
	if redisClient != nil {
		rc = redisClient.GetClient()
	}
	checker := observability.NewHealthChecker(db, rc)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", checker.Liveness)
	healthMux.HandleFunc("/readyz", checker.Readiness)
	if metricsEnabled {
		healthMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return healthMux
}
