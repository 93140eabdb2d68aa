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

// webhook-replay signs a synthetic checkout-completed event and delivers it
// repeatedly, optionally in parallel, against a running server. It is a
// manual idempotence probe: however many deliveries go out, exactly one
// should come back "completed" and the rest "duplicate" or 409.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

func main() {
	var (
		base    = flag.String("base", "http://127.0.0.1:8080", "Base URL of the running server")
		secret  = flag.String("secret", "", "Webhook signing secret (required)")
		eventID = flag.String("event_id", fmt.Sprintf("evt_replay_%d", time.Now().Unix()), "Event id to deliver; reuse one id to probe deduplication")
		session = flag.String("session", "cs_replay_1", "Checkout session id embedded in the event")
		sku     = flag.String("resource", "SKU1", "Inventory record id in the cart")
		qty     = flag.Int("quantity", 1, "Cart quantity")
		n       = flag.Int("n", 5, "Total deliveries to send")
		conc    = flag.Int("c", 5, "Concurrent senders")
		skew    = flag.Duration("timestamp_skew", 0, "Offset applied to the signature timestamp (e.g. -10m to probe replay rejection)")
	)
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "-secret is required")
		os.Exit(2)
	}
	if *n <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	items, _ := json.Marshal([]map[string]any{{"resourceId": *sku, "quantity": *qty}})
	body, _ := json.Marshal(map[string]any{
		"id":   *eventID,
		"type": "checkout.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             *session,
				"payment_status": "paid",
				"metadata":       map[string]string{"items": string(items)},
			},
		},
	})

	ts := time.Now().Add(*skew).Unix()
	mac := hmac.New(sha256.New, []byte(*secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	client := &http.Client{Timeout: 30 * time.Second}
	url := *base + "/webhooks/payment"

	type result struct {
		status int
		body   string
	}
	results := make(chan result, *n)
	jobs := make(chan struct{}, *n)
	for i := 0; i < *n; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < *conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
				if err != nil {
					results <- result{status: -1, body: err.Error()}
					continue
				}
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Payment-Signature", header)
				resp, err := client.Do(req)
				if err != nil {
					results <- result{status: -1, body: err.Error()}
					continue
				}
				respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
				resp.Body.Close()
				results <- result{status: resp.StatusCode, body: string(bytes.TrimSpace(respBody))}
			}
		}()
	}
	wg.Wait()
	close(results)

	counts := make(map[string]int)
	for r := range results {
		counts[fmt.Sprintf("%d %s", r.status, r.body)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("delivered %d copies of %s:\n", *n, *eventID)
	for _, k := range keys {
		fmt.Printf("  %3dx %s\n", counts[k], k)
	}
}
