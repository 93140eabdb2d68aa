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

// Package reconcile applies the side effects of a completed payment exactly
// once, best effort, despite at-least-once webhook delivery and concurrent
// handlers on separate machines.
//
// Coordination is built entirely from the shared key-value store: an
// idempotency claim per event id, an advisory lock per inventory record, and
// a write-ahead intent entry that lets a background sweeper detect partial
// applications. There is no transaction spanning the stock mutations and the
// order creation; a crash between them leaves inventory decremented with no
// order, which the intent sweeper surfaces for manual reconciliation rather
// than hiding.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/commerce/config"
	"storefront/internal/commerce/kv"
	"storefront/internal/commerce/ledger"
	"storefront/internal/commerce/lock"
	"storefront/internal/commerce/payments"
	"storefront/internal/commerce/records"
	"storefront/internal/commerce/telemetry"
)

// EventTypeCheckoutCompleted is the only event type that mutates anything;
// every other type finalizes as ignored.
const EventTypeCheckoutCompleted = "checkout.completed"

// Event is the webhook envelope. Only the fields the engine routes on are
// decoded; the session re-fetch supplies everything order creation needs.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			PaymentStatus string            `json:"payment_status"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Outcome is the terminal state of one delivery.
type Outcome int

const (
	// OutcomeCompleted: stock decremented, order created, ledger done.
	OutcomeCompleted Outcome = iota
	// OutcomeDuplicate: the event was fully processed by an earlier delivery.
	OutcomeDuplicate
	// OutcomeInFlight: another delivery holds a live claim; redeliver later.
	OutcomeInFlight
	// OutcomeIgnored: wrong type, unpaid, or empty cart; finalized as done.
	OutcomeIgnored
	// OutcomeDropped: no event id, so the event cannot be deduplicated;
	// acknowledged without processing.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeInFlight:
		return "in_flight"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDropped:
		return "dropped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RecordStore is the slice of the record-store client the engine uses.
type RecordStore interface {
	GetRecord(ctx context.Context, table, id string) (*records.Record, error)
	PatchRecord(ctx context.Context, table, id string, fields map[string]any) (*records.Record, error)
	CreateRecord(ctx context.Context, table string, fields map[string]any) (*records.Record, error)
}

// SessionFetcher re-fetches authoritative checkout state by session id.
type SessionFetcher interface {
	GetCheckoutSession(ctx context.Context, id string) (*payments.Session, error)
}

// MessageSender delivers the order confirmation email.
type MessageSender interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Engine orchestrates verification-adjacent steps 2..9 of the webhook flow;
// signature verification happens in the transport layer before any ledger
// interaction, so unauthenticated callers cannot create or poison claims.
type Engine struct {
	ledger   *ledger.Ledger
	locks    *lock.Manager
	store    kv.Store // intents only; ledger and locks own their own keys
	records  RecordStore
	sessions SessionFetcher
	mail     MessageSender
	logger   *slog.Logger

	productsTable string
	ordersTable   string
	fields        config.FieldRoles
	intentTTL     time.Duration

	nowFn func() time.Time
}

// NewEngine wires an engine. intentTTL should match the ledger's processing
// TTL so an intent cannot outlive the claim that wrote it by much.
func NewEngine(
	led *ledger.Ledger,
	locks *lock.Manager,
	store kv.Store,
	recordStore RecordStore,
	sessions SessionFetcher,
	mail MessageSender,
	cfg *config.Config,
	intentTTL time.Duration,
	logger *slog.Logger,
) *Engine {
	if intentTTL <= 0 {
		intentTTL = ledger.DefaultProcessingTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger:        led,
		locks:         locks,
		store:         store,
		records:       recordStore,
		sessions:      sessions,
		mail:          mail,
		logger:        logger,
		productsTable: cfg.RecordStore.ProductsTable,
		ordersTable:   cfg.RecordStore.OrdersTable,
		fields:        cfg.Fields,
		intentTTL:     intentTTL,
		nowFn:         time.Now,
	}
}

// Process handles one authenticated delivery. A non-nil error means the work
// is retryable: the ledger entry stays in processing so a redelivery after
// claim expiry picks the event back up. Terminal outcomes return a nil error.
func (e *Engine) Process(ctx context.Context, rawBody []byte) (Outcome, error) {
	started := e.nowFn()
	defer func() {
		telemetry.ReconcileDuration.Observe(e.nowFn().Sub(started).Seconds())
	}()

	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil || event.ID == "" {
		// Without an id there is nothing to deduplicate against, so retrying
		// could only double-apply. Acknowledge and drop.
		e.logger.Warn("dropping webhook without usable event id", "err", err)
		return OutcomeDropped, nil
	}
	log := e.logger.With("event_id", event.ID, "event_type", event.Type)

	claim, err := e.ledger.TryClaim(ctx, event.ID)
	if err != nil {
		return OutcomeInFlight, err
	}
	switch claim {
	case ledger.AlreadyDone:
		log.Info("duplicate delivery acknowledged")
		return OutcomeDuplicate, nil
	case ledger.AlreadyProcessing:
		log.Info("delivery already in flight, requesting redelivery")
		return OutcomeInFlight, nil
	}

	// From here this handler owns the claim. Errors leave it in processing
	// deliberately: a redelivery sees in-flight until the TTL frees it.

	if event.Type != EventTypeCheckoutCompleted || event.Data.Object.PaymentStatus != payments.PaymentStatusPaid {
		log.Info("ignoring event", "payment_status", event.Data.Object.PaymentStatus)
		return e.finalizeAs(ctx, event.ID, OutcomeIgnored)
	}

	// Re-fetch the session: customer and shipping fields embedded in the
	// event body may be stale by redelivery time.
	session, err := e.sessions.GetCheckoutSession(ctx, event.Data.Object.ID)
	if err != nil {
		return OutcomeInFlight, fmt.Errorf("event %s: %w", event.ID, err)
	}

	lines, err := ParseItems(event.Data.Object.Metadata["items"])
	if err != nil {
		// The same bytes will come back on every redelivery; retrying cannot
		// fix a malformed cart. Finalize so it stops knocking.
		log.Warn("unparseable cart metadata, finalizing as ignored", "err", err)
		return e.finalizeAs(ctx, event.ID, OutcomeIgnored)
	}
	lines = Normalize(lines)
	if len(lines) == 0 {
		log.Info("empty cart after normalization, nothing to reconcile")
		return e.finalizeAs(ctx, event.ID, OutcomeIgnored)
	}

	if err := e.writeIntent(ctx, event.ID, lines); err != nil {
		return OutcomeInFlight, fmt.Errorf("event %s: %w", event.ID, err)
	}

	for _, line := range lines {
		if err := e.decrementStock(ctx, log, line); err != nil {
			return OutcomeInFlight, fmt.Errorf("event %s: %w", event.ID, err)
		}
	}

	if err := e.createOrder(ctx, event.ID, session, lines); err != nil {
		// Stock is already decremented; this is the documented partial
		// application gap. The intent entry stays behind for the sweeper.
		telemetry.PartialApplications.Inc()
		log.Error("order creation failed after stock mutation; manual reconciliation required",
			"session_id", session.ID, "err", err)
		return OutcomeInFlight, fmt.Errorf("event %s: %w", event.ID, err)
	}

	if err := e.store.Del(ctx, intentPrefix+event.ID); err != nil {
		// The order exists; a lingering intent only costs a spurious sweep
		// alert, so log and continue.
		log.Warn("failed to clear intent entry", "err", err)
	}

	e.sendConfirmation(ctx, log, session, lines)

	if err := e.ledger.Finalize(ctx, event.ID); err != nil {
		return OutcomeInFlight, fmt.Errorf("event %s: %w", event.ID, err)
	}
	log.Info("event reconciled", "lines", len(lines), "amount_total", session.AmountTotal)
	return OutcomeCompleted, nil
}

// finalizeAs marks the event done and returns the given terminal outcome.
func (e *Engine) finalizeAs(ctx context.Context, eventID string, outcome Outcome) (Outcome, error) {
	if err := e.ledger.Finalize(ctx, eventID); err != nil {
		return OutcomeInFlight, fmt.Errorf("event %s: %w", eventID, err)
	}
	return outcome, nil
}

func (e *Engine) writeIntent(ctx context.Context, eventID string, lines []Line) error {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ResourceID
	}
	return e.store.Set(ctx, intentPrefix+eventID, encodeIntent(e.nowFn(), ids), e.intentTTL)
}

// decrementStock applies one cart line under the advisory lock: read current
// stock, floor the decrement at zero, write back. The lock serializes
// concurrent writers on the same record; the zero floor keeps an oversold
// item from going negative.
func (e *Engine) decrementStock(ctx context.Context, log *slog.Logger, line Line) error {
	token, locked := e.locks.Acquire(ctx, line.ResourceID)
	if !locked {
		// Best-effort exclusion: stalling fulfillment indefinitely is worse
		// than risking a double decrement, so proceed and say so loudly.
		telemetry.LockAcquireFailures.Inc()
		log.Warn("proceeding without advisory lock", "resource_id", line.ResourceID)
	} else {
		defer func() {
			if _, err := e.locks.Release(ctx, line.ResourceID, token); err != nil {
				log.Warn("lock release failed", "resource_id", line.ResourceID, "err", err)
			}
		}()
	}

	rec, err := e.records.GetRecord(ctx, e.productsTable, line.ResourceID)
	if err != nil {
		return err
	}
	current := intField(rec.Fields, e.fields.Stock)
	next := current - line.Quantity
	if next < 0 {
		log.Warn("stock floor hit", "resource_id", line.ResourceID, "stock", current, "quantity", line.Quantity)
		next = 0
	}
	_, err = e.records.PatchRecord(ctx, e.productsTable, line.ResourceID, map[string]any{
		e.fields.Stock: next,
	})
	return err
}

func (e *Engine) createOrder(ctx context.Context, eventID string, session *payments.Session, lines []Line) error {
	encodedLines, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode order lines: %w", err)
	}

	fields := map[string]any{
		e.fields.OrderSession:  session.ID,
		e.fields.OrderEmail:    session.CustomerDetails.Email,
		e.fields.OrderName:     session.CustomerDetails.Name,
		e.fields.OrderItems:    string(encodedLines),
		e.fields.OrderTotal:    session.AmountTotal,
		e.fields.OrderCurrency: session.Currency,
		e.fields.OrderStatus:   session.PaymentStatus,
	}
	fields[e.fields.OrderAddress] = formatShipping(session.ShippingDetails)

	_, err = e.records.CreateRecord(ctx, e.ordersTable, fields)
	return err
}

// sendConfirmation emails the customer. The order already exists, so a relay
// failure must not fail the event; it is logged and forgotten.
func (e *Engine) sendConfirmation(ctx context.Context, log *slog.Logger, session *payments.Session, lines []Line) {
	to := session.CustomerDetails.Email
	if to == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your order!\n\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "  %dx %s\n", l.Quantity, l.ResourceID)
	}
	fmt.Fprintf(&b, "\nTotal: %.2f %s\n", float64(session.AmountTotal)/100, strings.ToUpper(session.Currency))
	if err := e.mail.Send(ctx, to, "Order confirmation", b.String(), ""); err != nil {
		log.Warn("order confirmation email failed", "err", err)
	}
}

// formatShipping flattens the processor's address shape into the single
// text column the record store uses.
func formatShipping(s *payments.ShippingDetails) string {
	if s == nil {
		return ""
	}
	parts := []string{s.Name, s.Address.Line1, s.Address.Line2, s.Address.City, s.Address.State, s.Address.PostalCode, s.Address.Country}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// intField reads a numeric record field. The store's JSON decoding hands
// numbers back as float64; absent or non-numeric fields read as zero.
func intField(fields map[string]any, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
