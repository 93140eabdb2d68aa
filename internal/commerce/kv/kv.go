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

// Package kv defines the shared key-value store used for all cross-instance
// coordination (idempotency ledger, advisory locks, write-ahead intents).
//
// Webhook handlers for the same event may run concurrently on different
// machines, so no in-process primitive helps here; every marker that two
// handlers could race over lives behind this interface. Entries carry a TTL
// so crashed holders self-heal instead of wedging an event or lock forever.
package kv

import (
	"context"
	"time"
)

// Store is the minimal surface the coordination primitives need.
//
// SetNX is the load-bearing operation: it must be an atomic
// "write only if absent" so that ledger claims and lock acquisitions do not
// need a racy read-then-write emulation. DelIfEquals must likewise be atomic
// so a stale lock holder can never delete a newer owner's entry.
type Store interface {
	// Get returns the value for key. The second return is false when the key
	// is absent or its TTL has elapsed.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value unconditionally. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes value only if key is absent. Returns true if this caller's
	// write won.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// DelIfEquals removes key only if its current value equals expect.
	// Returns true if the entry was deleted.
	DelIfEquals(ctx context.Context, key, expect string) (bool, error)

	// ScanPrefix returns all live entries whose key starts with prefix.
	// Used by the background intent sweeper; not a hot path.
	ScanPrefix(ctx context.Context, prefix string) (map[string]string, error)
}
