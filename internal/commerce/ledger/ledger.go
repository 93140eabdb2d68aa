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

// Package ledger tracks per-event processing state so an at-least-once
// webhook stream produces at-most-once side effects.
//
// Each event id owns one entry under "evt:<id>" holding either "processing"
// or "done". The claim is a single conditional put, so two concurrent
// deliveries of the same event cannot both see Fresh. The ledger alone still
// is not an exactly-once guarantee: a claim that expires mid-flight makes the
// event eligible again, which is safe only because the downstream stock
// mutation sits behind the advisory lock and a read-then-write floor.
package ledger

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/commerce/kv"
)

const (
	keyPrefix = "evt:"

	stateProcessing = "processing"
	stateDone       = "done"

	// DefaultProcessingTTL bounds how long a crashed handler can wedge an
	// event. It must exceed any plausible handling latency; after expiry the
	// next redelivery claims Fresh again.
	DefaultProcessingTTL = 30 * time.Minute

	// DefaultRetentionTTL bounds ledger growth. The upstream redelivery
	// window is days at most, so forgetting a done entry after weeks cannot
	// resurrect a deliverable duplicate.
	DefaultRetentionTTL = 21 * 24 * time.Hour
)

// ClaimResult is the outcome of TryClaim.
type ClaimResult int

const (
	// Fresh means this caller now holds the processing claim.
	Fresh ClaimResult = iota
	// AlreadyDone means the event was fully processed earlier.
	AlreadyDone
	// AlreadyProcessing means another delivery holds a live claim.
	AlreadyProcessing
)

func (r ClaimResult) String() string {
	switch r {
	case Fresh:
		return "fresh"
	case AlreadyDone:
		return "already_done"
	case AlreadyProcessing:
		return "already_processing"
	default:
		return fmt.Sprintf("claim(%d)", int(r))
	}
}

// Ledger is the three-state idempotency ledger over the shared store.
type Ledger struct {
	store         kv.Store
	processingTTL time.Duration
	retentionTTL  time.Duration
}

// New returns a ledger with the given TTLs; zero values fall back to the
// package defaults.
func New(store kv.Store, processingTTL, retentionTTL time.Duration) *Ledger {
	if processingTTL <= 0 {
		processingTTL = DefaultProcessingTTL
	}
	if retentionTTL <= 0 {
		retentionTTL = DefaultRetentionTTL
	}
	return &Ledger{store: store, processingTTL: processingTTL, retentionTTL: retentionTTL}
}

// TryClaim attempts to take ownership of eventID. The conditional put makes
// first-writer-wins authoritative; the follow-up read only classifies why a
// losing claim lost.
func (l *Ledger) TryClaim(ctx context.Context, eventID string) (ClaimResult, error) {
	key := keyPrefix + eventID

	// Two rounds cover the narrow window where the blocking entry expires
	// between our failed put and the classifying read.
	for attempt := 0; attempt < 2; attempt++ {
		won, err := l.store.SetNX(ctx, key, stateProcessing, l.processingTTL)
		if err != nil {
			return AlreadyProcessing, fmt.Errorf("claim %s: %w", eventID, err)
		}
		if won {
			return Fresh, nil
		}
		state, found, err := l.store.Get(ctx, key)
		if err != nil {
			return AlreadyProcessing, fmt.Errorf("claim %s: %w", eventID, err)
		}
		if !found {
			continue // expired under us; retry the put
		}
		if state == stateDone {
			return AlreadyDone, nil
		}
		return AlreadyProcessing, nil
	}
	return AlreadyProcessing, nil
}

// Finalize marks eventID done for the retention window. Overwrites whatever
// state is present; finalizing is always the claim holder's last act.
func (l *Ledger) Finalize(ctx context.Context, eventID string) error {
	if err := l.store.Set(ctx, keyPrefix+eventID, stateDone, l.retentionTTL); err != nil {
		return fmt.Errorf("finalize %s: %w", eventID, err)
	}
	return nil
}

// Abandon deletes the entry so the next delivery starts from scratch. Used
// when processing failed before any side effect was applied.
func (l *Ledger) Abandon(ctx context.Context, eventID string) error {
	if err := l.store.Del(ctx, keyPrefix+eventID); err != nil {
		return fmt.Errorf("abandon %s: %w", eventID, err)
	}
	return nil
}
