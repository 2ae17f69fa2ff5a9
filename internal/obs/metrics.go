package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robodata_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	sessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robodata_sessions_expired_total",
		Help: "Sessions ended by idle timeout without renewal.",
	})

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "robodata_events_published_total",
			Help: "Domain events published on the bus, by type.",
		},
		[]string{"type"},
	)

	auditEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "robodata_audit_entries_total",
		Help: "Operation log entries appended.",
	})
)

// Init registers module metrics in the default registry.
func Init() {
	prometheus.MustRegister(loginsTotal, sessionsExpired, eventsPublished, auditEntries)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountLogin records a login attempt outcome ("ok" or "denied").
func CountLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// CountSessionExpired records a forced logout after the renewal grace lapsed.
func CountSessionExpired() {
	sessionsExpired.Inc()
}

// CountEventPublished records one bus publish for the given event type.
func CountEventPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// CountAuditEntry records one appended operation log entry.
func CountAuditEntry() {
	auditEntries.Inc()
}
