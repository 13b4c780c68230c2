// Package observability provides structured logging, Prometheus metrics, health checks and
// OpenTelemetry tracing.
//
// # Structured Logging
//
// The Logger is a thin wrapper over logrus that emits JSON:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("board_id", boardID).Info("column created")
//
// Request scoped logging picks up the request and user IDs set by middleware:
//
//	observability.FromContext(ctx).WithError(err).Warn("audit write failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.BoardMutationsTotal.WithLabelValues("move_issue", "success").Inc()
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	router.HandleFunc("/healthz", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
