package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	vaultRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "passvault",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total vault protocol requests.",
		},
		[]string{"method", "outcome"},
	)
	vaultDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "passvault",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Vault request handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "outcome"},
	)
	openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "passvault",
			Subsystem: "server",
			Name:      "open_sessions",
			Help:      "Currently open vault sessions.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(vaultRequests, vaultDuration, openSessions)
	})
}

// RecordRequest counts one handled protocol request. outcome is
// "success", "failure", or "error".
func RecordRequest(method, outcome string, duration time.Duration) {
	RegisterMetrics()
	vaultRequests.WithLabelValues(method, outcome).Inc()
	vaultDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

// SetOpenSessions reports the size of the live session table.
func SetOpenSessions(n int) {
	RegisterMetrics()
	openSessions.Set(float64(n))
}
