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

package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with lazy TTL expiry. It backs the
// dependency-free demo mode (no Redis required) and the test suites, where
// it doubles as a race harness: all operations take one mutex, so SetNX and
// DelIfEquals are atomic exactly like their Redis counterparts.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// nowFn is swappable in tests to drive TTL expiry without sleeping.
	nowFn func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		nowFn:   time.Now,
	}
}

// live reports whether e exists at time now. Callers hold mu.
func (e memoryEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.live(m.nowFn()) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.newEntry(value, ttl)
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && e.live(m.nowFn()) {
		return false, nil
	}
	m.entries[key] = m.newEntry(value, ttl)
	return true, nil
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) DelIfEquals(_ context.Context, key, expect string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !e.live(m.nowFn()) || e.value != expect {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

func (m *MemoryStore) ScanPrefix(_ context.Context, prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn()
	out := make(map[string]string)
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) && e.live(now) {
			out[k] = e.value
		}
	}
	return out, nil
}

func (m *MemoryStore) newEntry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.nowFn().Add(ttl)
	}
	return e
}
