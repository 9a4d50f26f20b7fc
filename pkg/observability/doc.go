// Package observability provides structured logging and Prometheus metrics
// for the trust core.
//
// # Logging
//
// Logger is a thin levelled wrapper over stdlib slog emitting JSON:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", id).Info("refresh token rotated")
//
// # Metrics
//
// Metrics holds the counters the security monitoring dashboards read:
// cache hit/miss ratios, version bumps, throttle rejections, and the
// refresh-token replay counter that feeds compromise alerting.
package observability
