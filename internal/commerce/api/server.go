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

// Package api exposes the inbound HTTP surface: the payment webhook endpoint
// and liveness. Response codes are the contract with the processor's retry
// machinery: 2xx stops redelivery, 409 and 5xx invite another attempt.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/commerce/reconcile"
	"storefront/internal/commerce/signature"
	"storefront/internal/commerce/telemetry"
)

// SignatureHeader carries the processor's timestamped HMAC.
const SignatureHeader = "Payment-Signature"

// maxWebhookBody bounds how much of a request we will read. Real events are
// a few KB; anything near the cap is not from our processor.
const maxWebhookBody = 1 << 20

// Processor is the engine surface the webhook handler needs.
type Processor interface {
	Process(ctx context.Context, rawBody []byte) (reconcile.Outcome, error)
}

// Server wires the HTTP routes.
type Server struct {
	processor Processor
	secret    string
	tolerance time.Duration
	logger    *slog.Logger
}

// NewServer returns a server verifying webhooks against secret within
// tolerance (zero means the package default window).
func NewServer(processor Processor, secret string, tolerance time.Duration, logger *slog.Logger) *Server {
	if tolerance <= 0 {
		tolerance = signature.DefaultTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{processor: processor, secret: secret, tolerance: tolerance, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.POST("/webhooks/payment", s.handlePaymentWebhook)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// ListenAndServe runs the router on addr until ctx is cancelled, then drains
// with a bounded shutdown window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errC := make(chan error, 1)
	go func() { errC <- srv.ListenAndServe() }()
	s.logger.Info("http server listening", "addr", addr)

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	// Authentication comes before any ledger interaction so an
	// unauthenticated caller cannot create or poison claims.
	if !signature.Verify(body, c.GetHeader(SignatureHeader), s.secret, s.tolerance) {
		telemetry.WebhookOutcomes.WithLabelValues("rejected").Inc()
		s.logger.Warn("webhook signature rejected", "remote", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	outcome, err := s.processor.Process(c.Request.Context(), body)
	if err != nil {
		telemetry.WebhookOutcomes.WithLabelValues("error").Inc()
		s.logger.Error("webhook processing failed", "err", err)
		// 5xx asks the processor to redeliver once the claim TTL frees the event.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	telemetry.WebhookOutcomes.WithLabelValues(outcome.String()).Inc()
	switch outcome {
	case reconcile.OutcomeInFlight:
		c.JSON(http.StatusConflict, gin.H{"received": true, "status": outcome.String()})
	default:
		c.JSON(http.StatusOK, gin.H{"received": true, "status": outcome.String()})
	}
}

// requestLogger logs one line per request with latency and status.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
