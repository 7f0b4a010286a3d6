package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec
	GuardRedirects  *prometheus.CounterVec

	// Persistence
	BackendErrors          *prometheus.CounterVec
	DemoStorePersistFailed prometheus.Counter
	DemoStoreMutations     prometheus.Counter

	// Attachments
	UploadsExpired prometheus.Counter
	UploadBytes    prometheus.Counter

	// Auth provider
	AuthProviderCalls *prometheus.CounterVec
}

// New creates all metrics and registers them on reg. Pass prometheus.NewRegistry() in tests
// so that repeated construction does not collide on the default registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path", "status"}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		GuardRedirects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_redirects_total",
			Help:      "Requests short-circuited by the route guard, by rule",
		}, []string{"rule"}),

		BackendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Errors reported by the persistence backend, by SQLSTATE class",
		}, []string{"module", "code"}),
		DemoStorePersistFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "demo_store",
			Name:      "persist_failures_total",
			Help:      "Demo store writes to disk that failed",
		}),
		DemoStoreMutations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "demo_store",
			Name:      "mutations_total",
			Help:      "Demo store mutations applied",
		}),

		UploadsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radiographs",
			Name:      "uploads_expired_total",
			Help:      "Radiograph uploads marked failed after staying in uploading too long",
		}),
		UploadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radiographs",
			Name:      "upload_bytes_total",
			Help:      "Bytes sent to attachment storage",
		}),

		AuthProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth_provider",
			Name:      "calls_total",
			Help:      "Calls to the hosted auth provider, by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return New("test", prometheus.NewRegistry())
}
