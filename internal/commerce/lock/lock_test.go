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

package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/commerce/kv"
)

// fastManager keeps retry sleeps tiny so contention tests stay quick.
func fastManager(store kv.Store) *Manager {
	return NewManager(store, 50*time.Millisecond, 3, time.Millisecond)
}

func TestAcquireRelease_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	m := fastManager(store)

	token, ok := m.Acquire(ctx, "SKU1")
	if !ok || token == "" {
		t.Fatalf("acquire on free lock failed")
	}

	released, err := m.Release(ctx, "SKU1", token)
	if err != nil || !released {
		t.Fatalf("release with own token = %v, %v; want deleted", released, err)
	}

	// Lock is free again.
	if _, ok := m.Acquire(ctx, "SKU1"); !ok {
		t.Fatalf("acquire after release failed")
	}
}

func TestAcquire_ContendedLockExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	m := fastManager(store)

	if _, ok := m.Acquire(ctx, "SKU1"); !ok {
		t.Fatalf("setup acquire failed")
	}
	if token, ok := m.Acquire(ctx, "SKU1"); ok {
		t.Fatalf("second acquire succeeded with token %q while lock held", token)
	}
}

// TestRelease_NeverDeletesAnotherHoldersToken is the safety property that
// matters after TTL-expiry reassignment: a stale holder's release must be a
// no-op once the lock belongs to someone else.
func TestRelease_NeverDeletesAnotherHoldersToken(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	m := fastManager(store)

	tokenA, ok := m.Acquire(ctx, "SKU1")
	if !ok {
		t.Fatalf("setup acquire failed")
	}
	// Simulate A's TTL expiring and B re-acquiring.
	if err := store.Del(ctx, "lock:SKU1"); err != nil {
		t.Fatalf("expire: %v", err)
	}
	tokenB, ok := m.Acquire(ctx, "SKU1")
	if !ok {
		t.Fatalf("re-acquire failed")
	}

	released, err := m.Release(ctx, "SKU1", tokenA)
	if err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if released {
		t.Fatalf("stale token released B's lock")
	}
	if v, found, _ := store.Get(ctx, "lock:SKU1"); !found || v != tokenB {
		t.Fatalf("lock entry after stale release = %q found=%v, want B's token intact", v, found)
	}
}

func TestAcquire_TTLExpiryFreesCrashedHolder(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	m := NewManager(store, 30*time.Millisecond, 2, time.Millisecond)

	if _, ok := m.Acquire(ctx, "SKU1"); !ok {
		t.Fatalf("setup acquire failed")
	}
	// Holder "crashes": nobody releases. TTL elapses.
	time.Sleep(50 * time.Millisecond)
	if _, ok := m.Acquire(ctx, "SKU1"); !ok {
		t.Fatalf("acquire after TTL expiry failed")
	}
}

func TestAcquire_RespectsContextCancellation(t *testing.T) {
	store := kv.NewMemoryStore()
	m := NewManager(store, time.Minute, 10, 50*time.Millisecond)

	if _, ok := m.Acquire(context.Background(), "SKU1"); !ok {
		t.Fatalf("setup acquire failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if _, ok := m.Acquire(ctx, "SKU1"); ok {
		t.Fatalf("acquire succeeded on a cancelled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled acquire took %v, should bail out promptly", elapsed)
	}
}

// TestAcquire_ConcurrentCallersOneWinner races many goroutines for one lock;
// exactly one may hold it at a time.
func TestAcquire_ConcurrentCallersOneWinner(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	// One attempt, no retries: winners and losers are decided by SetNX alone.
	m := NewManager(store, time.Minute, 1, time.Millisecond)

	const n = 32
	var wg sync.WaitGroup
	winners := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, ok := m.Acquire(ctx, "SKU1"); ok {
				winners <- token
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	if count != 1 {
		t.Fatalf("%d concurrent acquisitions succeeded, want exactly 1", count)
	}
}
