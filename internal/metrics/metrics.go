package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	GrantsTotal       *prometheus.CounterVec
	LoginsTotal       *prometheus.CounterVec
	TokensIssuedTotal *prometheus.CounterVec
	LockoutsTotal     *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// If enabled=false, returns a noop recorder with zero overhead.
// Uses sync.Once so Prometheus metrics are only registered once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoop()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		GrantsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_grants_total",
				Help: "Total number of token endpoint grant attempts",
			},
			[]string{"grant_type", "result"},
		),
		LoginsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Total number of login state machine outcomes",
			},
			[]string{"realm", "result"},
		),
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"token_type", "grant_type"},
		),
		LockoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_lockouts_total",
				Help: "Total number of account lockouts",
			},
			[]string{"realm"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0},
			},
			[]string{"method", "path"},
		),
	}
}

func (m *Metrics) RecordGrant(grantType, result string) {
	m.GrantsTotal.WithLabelValues(grantType, result).Inc()
}

func (m *Metrics) RecordLogin(realm, result string) {
	m.LoginsTotal.WithLabelValues(realm, result).Inc()
}

func (m *Metrics) RecordTokenIssued(tokenType, grantType string) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
}

func (m *Metrics) RecordLockout(realm string) {
	m.LockoutsTotal.WithLabelValues(realm).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
