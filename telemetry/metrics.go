// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
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
	MessagesSeen        prometheus.Counter
	CommandsDispatched  *prometheus.CounterVec
	CommandsRejected    *prometheus.CounterVec
	CommandErrors       prometheus.Counter
	IssuanceSucceeded   prometheus.Counter
	IssuanceFailed      *prometheus.CounterVec
	ChannelSyncFailures prometheus.Counter

	// Histograms (seconds)
	IssuanceDuration prometheus.Observer
	DispatchDuration prometheus.Observer

	// Gauges
	JoinedChannelsGauge prometheus.Gauge
	ChatConnectedGauge  prometheus.Gauge // 1=connected,0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "dropbot_messages_seen_total", Help: "Chat messages observed"})
		CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dropbot_commands_dispatched_total", Help: "Commands executed, by command"}, []string{"command"})
		CommandsRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dropbot_commands_rejected_total", Help: "Commands rejected by cooldown, by command"}, []string{"command"})
		CommandErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "dropbot_command_errors_total", Help: "Handler errors contained at the dispatch boundary"})
		IssuanceSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "dropbot_issuance_succeeded_total", Help: "Discount issuances that completed both steps"})
		IssuanceFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "dropbot_issuance_failed_total", Help: "Failed discount issuances, by reason"}, []string{"reason"})
		ChannelSyncFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "dropbot_channel_sync_failures_total", Help: "Roster sync passes that failed"})
		IssuanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "dropbot_issuance_duration_seconds", Help: "Issuance round-trip duration seconds", Buckets: prometheus.DefBuckets})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "dropbot_dispatch_duration_seconds", Help: "Command dispatch duration seconds", Buckets: prometheus.DefBuckets})
		JoinedChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "dropbot_joined_channels", Help: "Channels the bot has joined"})
		ChatConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "dropbot_chat_connected", Help: "IRC connection up=1 down=0"})
	})
}

// SetChatConnected flips the connection gauge.
func SetChatConnected(up bool) {
	if ChatConnectedGauge != nil {
		if up {
			ChatConnectedGauge.Set(1)
		} else {
			ChatConnectedGauge.Set(0)
		}
	}
}

// SetJoinedChannels records the current join-set size.
func SetJoinedChannels(n int) {
	if JoinedChannelsGauge != nil {
		JoinedChannelsGauge.Set(float64(n))
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

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
