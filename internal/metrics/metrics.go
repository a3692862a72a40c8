package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification path. All methods are
// nil-receiver safe so services under test can run without a registry.
type Metrics struct {
	StoriesReceived          prometheus.Counter
	MessagesSent             prometheus.Counter
	RecipientsSkipped        prometheus.Counter
	DirectoryRefreshes       prometheus.Counter
	DirectoryRefreshFailures prometheus.Counter
	ConduitCalls             *prometheus.CounterVec
	ResolveDuration          prometheus.Histogram
}

// New registers all relay metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		StoriesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phrelay_stories_received_total",
			Help: "Total number of webhook stories received",
		}),
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phrelay_messages_sent_total",
			Help: "Total number of direct messages delivered",
		}),
		RecipientsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phrelay_recipients_skipped_total",
			Help: "Recipients dropped by the filter (no mapping, disabled, or unresolved)",
		}),
		DirectoryRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phrelay_directory_refreshes_total",
			Help: "Successful directory map refreshes",
		}),
		DirectoryRefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "phrelay_directory_refresh_failures_total",
			Help: "Directory map refreshes that failed and kept the stale map",
		}),
		ConduitCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "phrelay_conduit_calls_total",
			Help: "Conduit batch calls by API method",
		}, []string{"method"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "phrelay_resolve_duration_seconds",
			Help:    "Duration of subscriber graph resolution per story",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncStoriesReceived() {
	if m == nil {
		return
	}
	m.StoriesReceived.Inc()
}

func (m *Metrics) IncMessagesSent() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

func (m *Metrics) IncRecipientsSkipped() {
	if m == nil {
		return
	}
	m.RecipientsSkipped.Inc()
}

func (m *Metrics) IncDirectoryRefresh(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.DirectoryRefreshes.Inc()
	} else {
		m.DirectoryRefreshFailures.Inc()
	}
}

func (m *Metrics) IncConduitCall(method string) {
	if m == nil {
		return
	}
	m.ConduitCalls.WithLabelValues(method).Inc()
}

// ObserveResolve records the duration of one subscriber resolution.
// Call with time.Now() taken at the start of the operation.
func (m *Metrics) ObserveResolve(start time.Time) {
	if m == nil {
		return
	}
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
