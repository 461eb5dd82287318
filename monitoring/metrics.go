package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets persisted, by issuance source",
		},
		[]string{"source"},
	)

	idCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_id_collisions_total",
			Help: "Generated ticket numbers rejected as duplicates",
		},
	)

	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchase verification requests by outcome",
		},
		[]string{"outcome"},
	)

	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_redemptions_total",
			Help: "Gate redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_notifications_total",
			Help: "Ticket email deliveries by outcome",
		},
		[]string{"outcome"},
	)

	verifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of payment gateway verification calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"},
	)
)

// Monitor records ticket lifecycle metrics. A nil *Monitor records nothing,
// which keeps services usable without a registry in tests.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) TrackIssued(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	ticketsIssued.WithLabelValues(source).Add(float64(count))
}

func (m *Monitor) TrackCollision() {
	if m == nil {
		return
	}
	idCollisions.Inc()
}

func (m *Monitor) TrackPurchase(outcome string) {
	if m == nil {
		return
	}
	purchases.WithLabelValues(outcome).Inc()
}

func (m *Monitor) TrackRedemption(outcome string) {
	if m == nil {
		return
	}
	redemptions.WithLabelValues(outcome).Inc()
}

func (m *Monitor) TrackNotification(outcome string) {
	if m == nil {
		return
	}
	notifications.WithLabelValues(outcome).Inc()
}

func (m *Monitor) TrackVerify(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	verifyDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
