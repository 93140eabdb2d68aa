// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry holds the process-wide Prometheus metrics for the
// reconciliation path. Labels are bounded (outcome names only) so
// cardinality stays flat regardless of traffic shape.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookOutcomes counts deliveries by terminal outcome
	// (completed, duplicate, in_flight, ignored, rejected, dropped, error).
	WebhookOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_outcomes_total",
		Help: "Webhook deliveries by terminal outcome",
	}, []string{"outcome"})

	// LockAcquireFailures counts the times a handler proceeded without the
	// advisory lock after exhausting retries — each one is a widened race
	// window worth watching.
	LockAcquireFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_lock_acquire_failures_total",
		Help: "Advisory lock acquisitions that exhausted retries",
	})

	// PartialApplications counts events whose stock mutations applied but
	// whose order creation failed. These need manual reconciliation.
	PartialApplications = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_partial_applications_total",
		Help: "Events with stock mutated but no order record created",
	})

	// OrphanedIntents counts write-ahead intents the sweeper found past the
	// alert age, i.e. likely partial applications from crashed handlers.
	OrphanedIntents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orphaned_intents_total",
		Help: "Write-ahead intent entries detected past the alert age",
	})

	// ReconcileDuration observes end-to-end webhook processing time.
	ReconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_reconcile_duration_seconds",
		Help:    "End-to-end webhook reconciliation duration",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

func init() {
	// Registration is eager and harmless if no /metrics listener is exposed.
	prometheus.MustRegister(WebhookOutcomes, LockAcquireFailures, PartialApplications, OrphanedIntents, ReconcileDuration)
}

// Serve exposes /metrics on its own listener. Callers that already run a
// metrics endpoint should register promhttp themselves and skip this.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
