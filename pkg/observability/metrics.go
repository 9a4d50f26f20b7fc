package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trust core.
type Metrics struct {
	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	VersionBumpsTotal   *prometheus.CounterVec
	BroadcastsTotal     *prometheus.CounterVec
	BroadcastsDropped   prometheus.Counter
	LocalEvictionsTotal prometheus.Counter

	// Authorization metrics
	PermissionChecksTotal *prometheus.CounterVec

	// Session metrics
	TokensIssuedTotal    prometheus.Counter
	TokenRotationsTotal  prometheus.Counter
	TokenReplaysTotal    prometheus.Counter
	TokensRevokedTotal   prometheus.Counter

	// Throttle metrics
	ThrottleRejectionsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on the given registry. A nil
// registry gets a fresh one, keeping tests isolated from each other.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhive_cache_hits_total",
				Help: "Total versioned cache hits",
			},
			[]string{"kind"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhive_cache_misses_total",
				Help: "Total versioned cache misses",
			},
			[]string{"kind"},
		),
		VersionBumpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhive_cache_version_bumps_total",
				Help: "Total version counter bumps",
			},
			[]string{"kind"},
		),
		BroadcastsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhive_cache_broadcasts_total",
				Help: "Total invalidation broadcasts published",
			},
			[]string{"channel"},
		),
		BroadcastsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskhive_cache_broadcasts_dropped_total",
				Help: "Invalidation broadcasts that failed to publish (advisory only)",
			},
		),
		LocalEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskhive_cache_local_evictions_total",
				Help: "Entries evicted from the process-local cache by broadcasts",
			},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhive_permission_checks_total",
				Help: "Permission resolutions by outcome",
			},
			[]string{"outcome"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskhive_tokens_issued_total",
				Help: "Token pairs issued",
			},
		),
		TokenRotationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskhive_token_rotations_total",
				Help: "Successful refresh token rotations",
			},
		),
		TokenReplaysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskhive_token_replays_total",
				Help: "Presentations of already-rotated refresh tokens (compromise signal)",
			},
		),
		TokensRevokedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taskhive_tokens_revoked_total",
				Help: "Refresh tokens revoked",
			},
		),
		ThrottleRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskhive_throttle_rejections_total",
				Help: "Requests rejected by the throttling guard",
			},
			[]string{"kind"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.VersionBumpsTotal,
		m.BroadcastsTotal,
		m.BroadcastsDropped,
		m.LocalEvictionsTotal,
		m.PermissionChecksTotal,
		m.TokensIssuedTotal,
		m.TokenRotationsTotal,
		m.TokenReplaysTotal,
		m.TokensRevokedTotal,
		m.ThrottleRejectionsTotal,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
