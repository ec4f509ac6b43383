/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergegate_sessions_total",
			Help: "Total number of verification sessions by terminal state",
		},
		[]string{"terminal"},
	)

	attemptCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergegate_attempts_total",
			Help: "Total number of verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	infraRetryCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mergegate_infra_retries_total",
			Help: "Total number of infrastructure check retries",
		},
	)

	failureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergegate_failures_total",
			Help: "Total number of classified check failures by class",
		},
		[]string{"class"},
	)

	checkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mergegate_check_duration_seconds",
			Help:    "Check execution duration by check name and status",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"check", "status"},
	)
)

// RecordSession counts one finished session under its terminal state.
func RecordSession(terminal string) {
	sessionCounter.With(prometheus.Labels{"terminal": terminal}).Inc()
}

// RecordAttempt counts one verification attempt under its outcome.
func RecordAttempt(outcome string) {
	attemptCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordInfraRetries accumulates infra retry rounds.
func RecordInfraRetries(rounds int) {
	infraRetryCounter.Add(float64(rounds))
}

// RecordFailure counts one classified failure under its taxonomy class.
func RecordFailure(class string) {
	failureCounter.With(prometheus.Labels{"class": class}).Inc()
}

// RecordCheck observes one check execution.
func RecordCheck(check, status string, d time.Duration) {
	checkDuration.With(prometheus.Labels{"check": check, "status": status}).Observe(d.Seconds())
}
