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

// Package main runs the storefront backend: the payment webhook endpoint and
// its reconciliation pipeline, the background intent sweeper, and an
// optional Prometheus listener.
//
// Coordination state (idempotency claims, advisory locks, write-ahead
// intents) lives in Redis. With an empty -redis_addr the service falls back
// to an in-process store, which is only meaningful for a single-instance
// demo: cross-machine deduplication needs the shared store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/commerce/api"
	"storefront/internal/commerce/config"
	"storefront/internal/commerce/kv"
	"storefront/internal/commerce/ledger"
	"storefront/internal/commerce/lock"
	"storefront/internal/commerce/mailer"
	"storefront/internal/commerce/payments"
	"storefront/internal/commerce/reconcile"
	"storefront/internal/commerce/records"
	"storefront/internal/commerce/telemetry"
)

func main() {
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g. :9090)")
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	redisAddr := flag.String("redis_addr", "127.0.0.1:6379", "Redis address for coordination state; empty selects the in-process store (single-instance demo only)")

	sigTolerance := flag.Duration("signature_tolerance", 5*time.Minute, "Maximum accepted webhook timestamp skew (replay window)")
	processingTTL := flag.Duration("processing_ttl", 30*time.Minute, "Idempotency claim lifetime; must exceed worst-case handling latency")
	retentionTTL := flag.Duration("retention_ttl", 21*24*time.Hour, "How long finished events stay deduplicated")
	lockTTL := flag.Duration("lock_ttl", 30*time.Second, "Advisory inventory lock lifetime")
	lockRetries := flag.Int("lock_retries", 5, "Lock acquisition attempts before proceeding unlocked")
	lockRetryDelay := flag.Duration("lock_retry_delay", 150*time.Millisecond, "Base delay between lock attempts (jitter is added)")
	sweepInterval := flag.Duration("sweep_interval", time.Minute, "How often to scan for orphaned write-ahead intents")
	intentAlertAge := flag.Duration("intent_alert_age", 10*time.Minute, "Intent age past which the sweeper raises an alert")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	var store kv.Store
	if *redisAddr != "" {
		store = kv.NewRedisStore(*redisAddr)
		logger.Info("using redis coordination store", "addr", *redisAddr)
	} else {
		store = kv.NewMemoryStore()
		logger.Warn("using in-process coordination store; deduplication is not shared across instances")
	}

	engine := reconcile.NewEngine(
		ledger.New(store, *processingTTL, *retentionTTL),
		lock.NewManager(store, *lockTTL, *lockRetries, *lockRetryDelay),
		store,
		records.NewClient(cfg.RecordStore.BaseURL, cfg.RecordStore.APIKey),
		payments.NewClient(cfg.Payments.BaseURL, cfg.Payments.APIKey),
		mailer.NewClient(cfg.Mailer.BaseURL, cfg.Mailer.APIKey, cfg.Mailer.From),
		cfg,
		*processingTTL,
		logger,
	)

	sweeper := reconcile.NewSweeper(store, *sweepInterval, *intentAlertAge, logger)
	sweeper.Start()

	if *metricsAddr != "" {
		telemetry.Serve(*metricsAddr)
		logger.Info("metrics listener started", "addr", *metricsAddr)
	}

	server := api.NewServer(engine, cfg.Webhook.Secret, *sigTolerance, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, *httpAddr); err != nil {
		logger.Error("http server failed", "err", err)
		sweeper.Stop()
		os.Exit(1)
	}

	// Sweeper last: its final pass reports any intent stranded by in-flight
	// requests that did not finish before shutdown.
	sweeper.Stop()
	logger.Info("server gracefully stopped")
}
