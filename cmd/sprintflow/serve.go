package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/sprintflow/pkg/api"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/automation"
	"github.com/platinummonkey/sprintflow/pkg/boards"
	"github.com/platinummonkey/sprintflow/pkg/config"
	"github.com/platinummonkey/sprintflow/pkg/issues"
	"github.com/platinummonkey/sprintflow/pkg/notifications"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/platinummonkey/sprintflow/pkg/projects"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/realtime"
	"github.com/platinummonkey/sprintflow/pkg/sprints"
	"github.com/platinummonkey/sprintflow/pkg/storage"
	"github.com/platinummonkey/sprintflow/pkg/users"
	"github.com/platinummonkey/sprintflow/pkg/webhooks"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = observability.WithLogger(ctx, logger)

			return serve(ctx, cfg, logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

// serve wires every component and blocks until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, logger *observability.Logger, migrate bool) (err error) {
	shutdown := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	stopped := false
	defer func() {
		// Release whatever was built when serving never got going
		if err != nil && !stopped {
			if sErr := shutdown.Shutdown(); sErr != nil {
				logger.WithError(sErr).Warn("cleanup after failed start")
			}
		}
	}()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	shutdown.Register("telemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	db, err := storage.OpenPostgres(cfg.Storage)
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	if migrate {
		if err := migrateAll(ctx, db, true); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(cfg.Storage)
		if err != nil {
			return err
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewNopMetrics()
	var gatherer prometheus.Gatherer
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
		gatherer = registry
	}

	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		return err
	}
	auditLogger := audit.NewMultiLogger(dbAudit, audit.NewLogLogger(logger))
	shutdown.Register("audit", func(context.Context) error { return auditLogger.Close() })

	// Authorization
	rbacStore := rbac.NewStore(db)
	var permissions rbac.PermissionStore = rbacStore
	var invalidator rbac.Invalidator
	if cfg.RBAC.CacheEnabled {
		cached := rbac.NewCachedStore(rbacStore, redisClient, rbac.CacheConfig{
			LocalSize: cfg.RBAC.CacheLocalSize,
			LocalTTL:  cfg.RBAC.CacheLocalTTL,
			RedisTTL:  cfg.RBAC.CacheRedisTTL,
			KeyPrefix: rbac.DefaultCacheConfig().KeyPrefix,
		}, metrics)
		permissions = cached
		invalidator = cached
	}
	mode, err := rbac.ParseMatchMode(cfg.RBAC.MatchMode)
	if err != nil {
		return err
	}
	resolver := rbac.NewResolver(permissions)
	gate := rbac.NewGate(resolver,
		rbac.WithMatchMode(mode),
		rbac.WithAuditLogger(auditLogger),
		rbac.WithMetrics(metrics),
	)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(metrics, logger)
	shutdown.Register("realtime", func(context.Context) error {
		hub.Close()
		return nil
	})

	// Outbound webhooks
	retry := webhooks.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Webhooks.MaxAttempts
	webhookManager := webhooks.NewManager(webhooks.NewStore(db),
		webhooks.WithHTTPClient(&http.Client{Timeout: cfg.Webhooks.DeliveryTimeout}),
		webhooks.WithRetryConfig(retry),
		webhooks.WithRateLimit(cfg.Webhooks.RateLimit, cfg.Webhooks.RateLimitPeriod),
		webhooks.WithWorkers(cfg.Webhooks.Workers),
		webhooks.WithDeliveryLogLimit(cfg.Webhooks.DeliveryLogSize),
		webhooks.WithAuditLogger(auditLogger),
		webhooks.WithMetrics(metrics),
	)
	if err := webhookManager.Start(ctx, cfg.Webhooks.RetrySchedule); err != nil {
		return fmt.Errorf("failed to start webhook delivery: %w", err)
	}
	shutdown.Register("webhooks", func(ctx context.Context) error {
		return webhookManager.Stop(remaining(ctx))
	})

	dispatcher := notifications.NewDispatcher(
		notifications.WithChannel(notifications.NewEmailChannel(notifications.NewLogSender(logger))),
		notifications.WithChannel(notifications.NewTeamsChannel(cfg.Notifications.TeamsTimeout)),
		notifications.WithChannel(notifications.NewInAppChannel(hub)),
		notifications.WithEmitter(hub),
		notifications.WithAuditLogger(auditLogger),
		notifications.WithMetrics(metrics),
	)

	// The issue service triggers the engine and the engine updates issues,
	// so the engine reaches the issue service through a late-bound updater
	updater := &fieldUpdater{}
	engine := automation.NewEngine(
		automation.WithNotifier(dispatcher),
		automation.WithFieldUpdater(updater),
		automation.WithWebhookPublisher(webhookManager),
		automation.WithAuditLogger(auditLogger),
		automation.WithMetrics(metrics),
	)
	if cfg.Automation.RulesFile != "" {
		if err := engine.LoadFile(cfg.Automation.RulesFile); err != nil {
			return fmt.Errorf("failed to load automation rules: %w", err)
		}
		if cfg.Automation.Watch {
			if err := engine.Watch(ctx, cfg.Automation.RulesFile); err != nil {
				return err
			}
		}
	}

	projectService := projects.NewService(projects.NewStore(db),
		projects.WithAuditLogger(auditLogger),
		projects.WithBroadcaster(hub),
	)
	sprintService := sprints.NewService(sprints.NewStore(db),
		sprints.WithProjects(projectService),
		sprints.WithAuditLogger(auditLogger),
		sprints.WithBroadcaster(hub),
	)

	issueService := issues.NewService(issues.NewStore(db),
		issues.WithProjects(projectService),
		issues.WithSprints(sprintService),
		issues.WithAuditLogger(auditLogger),
		issues.WithBroadcaster(hub),
		issues.WithAutomation(engine),
	)
	updater.issues = issueService

	boardService := boards.NewService(boards.NewStore(db),
		boards.WithStatusUpdater(issueService),
		boards.WithProjects(projectService),
		boards.WithAuditLogger(auditLogger),
		boards.WithBroadcaster(hub),
		boards.WithPublisher(webhookManager),
		boards.WithMetrics(metrics),
		boards.WithMaxRetries(cfg.Boards.MaxRetries),
	)

	userService := users.NewService(users.NewStore(db), resolver, tokens, users.WithAuditLogger(auditLogger))

	server := api.NewServer(api.Dependencies{
		Tokens:        tokens,
		Gate:          gate,
		RBACStore:     rbacStore,
		Invalidator:   invalidator,
		AuditLogger:   auditLogger,
		Users:         userService,
		Projects:      projectService,
		Sprints:       sprintService,
		Boards:        boardService,
		Issues:        issueService,
		Automation:    engine,
		Webhooks:      webhookManager,
		AuditSearcher: dbAudit,
		Hub:           hub,
		Health:        observability.NewHealthChecker(db, redisClient),
		Redis:         redisClient,
		Metrics:       metrics,
		Gatherer:      gatherer,
		Logger:        logger,
	}, api.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AuthRateLimit:  cfg.Server.AuthRateLimit,
		Tracing:        cfg.Observability.OTelEnabled,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.Register("background tasks", func(ctx context.Context) error {
		if !async.Drain(remaining(ctx)) {
			return errors.New("background tasks still running")
		}
		return nil
	})
	shutdown.Register("http server", httpServer.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	stopped = true
	return shutdown.WaitForShutdown(ctx)
}

// remaining is the time left before ctx's deadline
func remaining(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 30 * time.Second
}

// fieldUpdater lets the automation engine reach the issue service, which is
// built after the engine
type fieldUpdater struct {
	issues *issues.Service
}

func (f *fieldUpdater) UpdateField(ctx context.Context, issueID, field string, value interface{}) error {
	if f.issues == nil {
		return errors.New("issue service not ready")
	}
	return f.issues.UpdateField(ctx, issueID, field, value)
}
