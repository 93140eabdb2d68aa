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

package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/commerce/kv"
	"storefront/internal/commerce/telemetry"
)

// Sweeper periodically scans for write-ahead intent entries older than the
// alert age. A healthy event deletes its intent right after order creation,
// so an old intent marks a handler that mutated stock and then died — the
// partial application this system cannot roll back. The sweeper detects and
// alerts; it never compensates automatically.
type Sweeper struct {
	store    kv.Store
	interval time.Duration
	alertAge time.Duration
	logger   *slog.Logger

	// alerted suppresses repeat alerts for the same intent across cycles.
	// Entries fall out when the intent itself expires and leaves the scan.
	alerted map[string]bool

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
	nowFn    func() time.Time
}

// NewSweeper returns a sweeper scanning every interval and alerting on
// intents older than alertAge. alertAge should comfortably exceed the worst
// honest handling latency so in-progress events never page anyone.
func NewSweeper(store kv.Store, interval, alertAge time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		alertAge: alertAge,
		logger:   logger,
		alerted:  make(map[string]bool),
		stopChan: make(chan struct{}),
		nowFn:    time.Now,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

// Stop runs one final sweep and shuts the loop down. Safe to call once.
func (s *Sweeper) Stop() {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return
	}
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.stopChan:
			// Final sweep so a shutdown doesn't swallow a pending alert.
			s.runSweep()
			return
		}
	}
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := s.store.ScanPrefix(ctx, intentPrefix)
	if err != nil {
		s.logger.Error("intent sweep failed", "err", err)
		return
	}

	now := s.nowFn()
	for key, value := range entries {
		if s.alerted[key] {
			continue
		}
		writtenAt, resourceIDs, ok := decodeIntent(value)
		if !ok {
			s.alerted[key] = true
			telemetry.OrphanedIntents.Inc()
			s.logger.Error("unreadable intent entry", "key", key, "value", value)
			continue
		}
		if now.Sub(writtenAt) < s.alertAge {
			continue
		}
		s.alerted[key] = true
		telemetry.OrphanedIntents.Inc()
		s.logger.Error("orphaned payment intent: stock may be decremented with no order record",
			"key", key, "age", now.Sub(writtenAt).Round(time.Second).String(), "resource_ids", resourceIDs)
	}

	// Drop suppression state for intents that no longer exist.
	for key := range s.alerted {
		if _, live := entries[key]; !live {
			delete(s.alerted, key)
		}
	}
}
