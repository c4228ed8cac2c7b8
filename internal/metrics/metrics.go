// Package metrics holds the Prometheus collectors of Data API connections.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/constants"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collection groups the collectors. A nil *Collection records nothing.
type Collection struct {
	Requests          *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	Logins            *prometheus.CounterVec
	Reauthentications *prometheus.CounterVec
	APIErrors         *prometheus.CounterVec
}

var (
	collectionsMu sync.Mutex
	collections   = map[prometheus.Registerer]*Collection{}
)

// New returns the collection registered with reg, creating it on first use
// so several connections can share one registry. A nil reg returns nil.
func New(reg prometheus.Registerer) *Collection {
	if reg == nil {
		return nil
	}

	collectionsMu.Lock()
	defer collectionsMu.Unlock()

	if existing, ok := collections[reg]; ok {
		return existing
	}

	factory := promauto.With(reg)

	collection := &Collection{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "requests_total",
			Help:      "Data API requests by connection, command and result code.",
		}, []string{"connection", "command", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Data API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"connection", "command"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "session_logins_total",
			Help:      "Session tokens fetched from the server.",
		}, []string{"connection"}),
		Reauthentications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "session_reauth_total",
			Help:      "Requests resent after an invalid session (952).",
		}, []string{"connection"}),
		APIErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "api_errors_total",
			Help:      "Non-zero Data API message codes.",
		}, []string{"connection", "code"}),
	}

	collections[reg] = collection

	return collection
}

// ObserveRequest records one HTTP exchange.
func (c *Collection) ObserveRequest(connection, command string, apiCode int, elapsed time.Duration) {
	if c == nil {
		return
	}

	code := strconv.Itoa(apiCode)

	c.Requests.WithLabelValues(connection, command, code).Inc()
	c.RequestDuration.WithLabelValues(connection, command).Observe(elapsed.Seconds())

	if apiCode != constants.CodeOK {
		c.APIErrors.WithLabelValues(connection, code).Inc()
	}
}

// IncLogin records a session token fetched from the server.
func (c *Collection) IncLogin(connection string) {
	if c == nil {
		return
	}

	c.Logins.WithLabelValues(connection).Inc()
}

// IncReauth records a resend after an invalid session.
func (c *Collection) IncReauth(connection string) {
	if c == nil {
		return
	}

	c.Reauthentications.WithLabelValues(connection).Inc()
}
