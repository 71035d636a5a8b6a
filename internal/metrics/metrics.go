// Package metrics holds the Prometheus collectors of the login path. They live
// in a leaf package so providers, the resolver and the HTTP layer can all
// report without import cycles.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notesauth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by authentication method and outcome",
	}, []string{"method", "outcome"})

	LoginDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notesauth",
		Name:      "login_duration_seconds",
		Help:      "Time from credential to principal, provider calls included",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notesauth",
		Name:      "provider_requests_total",
		Help:      "Outbound provider calls by provider, operation and result",
	}, []string{"provider", "op", "result"}) // result: ok|error|timeout

	IdentityRaceRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notesauth",
		Name:      "identity_race_retries_total",
		Help:      "Uniqueness violations during account creation that triggered a re-resolve",
	})

	DefaultRoleMissing = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notesauth",
		Name:      "default_role_missing_total",
		Help:      "Logins rejected because the configured default role does not exist",
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route pattern and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		LoginAttempts, LoginDuration, ProviderRequests, IdentityRaceRetries, DefaultRoleMissing,
		HTTPRequests, HTTPDuration,
	}
}

// Register registers every collector on reg (default registerer if nil).
// Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// ObserveLogin records one finished login attempt.
func ObserveLogin(method, outcome string, elapsed time.Duration) {
	LoginAttempts.WithLabelValues(method, outcome).Inc()
	LoginDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveProviderRequest records one outbound provider call.
func ObserveProviderRequest(provider, op, result string) {
	ProviderRequests.WithLabelValues(provider, op, result).Inc()
}
