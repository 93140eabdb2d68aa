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

// Package lock provides a short-lived advisory mutex over the shared store,
// scoped per inventory record.
//
// Only cooperating callers respect it; nothing at the store level enforces
// exclusion. The entry's TTL is the crash recovery story: when a holder dies
// the entry expires and the lock frees itself. Release is token
// guarded so a holder that outlived its TTL cannot delete a lock that has
// since been re-acquired by someone else.
package lock

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"storefront/internal/commerce/kv"
)

const keyPrefix = "lock:"

// Defaults tuned for the webhook path: total worst-case wait stays well under
// the upstream delivery timeout.
const (
	DefaultTTL        = 30 * time.Second
	DefaultMaxRetries = 5
	DefaultRetryDelay = 150 * time.Millisecond
)

// Manager acquires and releases advisory locks.
type Manager struct {
	store      kv.Store
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewManager returns a manager with the given knobs; zero values fall back to
// the package defaults.
func NewManager(store kv.Store, ttl time.Duration, maxRetries int, retryDelay time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Manager{store: store, ttl: ttl, maxRetries: maxRetries, retryDelay: retryDelay}
}

// Acquire tries to take the lock for resourceID, retrying with jittered
// backoff while someone else holds it. On success it returns the caller's
// release token. ok=false after all retries means the caller must decide
// whether to proceed unlocked — exhaustion is expected under contention, not
// an error.
//
// Store errors are treated like a held lock: retry, then give up. A flaky
// store must not block payment fulfillment outright.
func (m *Manager) Acquire(ctx context.Context, resourceID string) (token string, ok bool) {
	token = uuid.NewString()
	key := keyPrefix + resourceID

	for attempt := 0; attempt < m.maxRetries; attempt++ {
		if attempt > 0 {
			// Jitter desynchronizes deliveries that arrived together.
			delay := m.retryDelay + time.Duration(rand.Int63n(int64(m.retryDelay)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", false
			}
		}
		won, err := m.store.SetNX(ctx, key, token, m.ttl)
		if err != nil {
			continue
		}
		if won {
			return token, true
		}
	}
	return "", false
}

// Release frees the lock if and only if this caller still owns it. Returns
// true when the entry was deleted; false means the lock expired and was
// re-acquired (or already released), in which case it must be left alone.
func (m *Manager) Release(ctx context.Context, resourceID, token string) (bool, error) {
	return m.store.DelIfEquals(ctx, keyPrefix+resourceID, token)
}
