// Package telemetry provides Prometheus metrics, correlation-id aware logging
// helpers, and OpenTelemetry tracing setup for the bridge.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatEventsClassified *prometheus.CounterVec
	NotificationsSent    prometheus.Counter
	NotificationsFailed  prometheus.Counter
	RelaysToGame         prometheus.Counter
	RelaysDroppedNoSess  prometheus.Counter
	RelaysToPlatform     prometheus.Counter
	Reconnects           prometheus.Counter
	Respawns             prometheus.Counter

	// Histograms (seconds)
	IdentityLookupDuration prometheus.Observer
	NotificationDuration   prometheus.Observer

	// Gauges
	SessionConnectedGauge prometheus.Gauge // 1=connected,0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatEventsClassified = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bridge_chat_events_total", Help: "Classified game chat events by kind"}, []string{"kind"})
		NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_notifications_sent_total", Help: "Webhook notifications posted"})
		NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_notifications_failed_total", Help: "Webhook notifications that failed to post"})
		RelaysToGame = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_relays_to_game_total", Help: "Platform/console messages relayed into the game session"})
		RelaysDroppedNoSess = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_relays_dropped_total", Help: "Relays dropped because no game session was connected"})
		RelaysToPlatform = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_relays_to_platform_total", Help: "Game chat lines fanned out to subscribed channels"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_session_reconnects_total", Help: "Game session reconnect attempts"})
		Respawns = promauto.NewCounter(prometheus.CounterOpts{Name: "bridge_respawns_total", Help: "Auto-respawn actions issued"})
		IdentityLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bridge_identity_lookup_duration_seconds", Help: "Identity service lookup duration seconds", Buckets: prometheus.DefBuckets})
		NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bridge_notification_duration_seconds", Help: "Webhook post duration seconds", Buckets: prometheus.DefBuckets})
		SessionConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bridge_session_connected", Help: "Game session connected=1 disconnected=0"})
	})
}

// SetConnected flips the session gauge.
func SetConnected(connected bool) {
	if SessionConnectedGauge == nil {
		return
	}
	if connected {
		SessionConnectedGauge.Set(1)
	} else {
		SessionConnectedGauge.Set(0)
	}
}

// CountChatEvent bumps the per-kind classification counter.
func CountChatEvent(kind string) {
	if ChatEventsClassified != nil {
		ChatEventsClassified.WithLabelValues(kind).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
