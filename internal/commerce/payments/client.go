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

// Package payments is the thin client for the payment processor's session
// retrieval API.
//
// The reconciliation engine re-fetches the checkout session by id rather than
// trusting the customer/shipping fields embedded in a webhook body, which may
// be stale or truncated by the time a redelivery arrives.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// PaymentStatusPaid is the session status that makes an event actionable.
const PaymentStatusPaid = "paid"

// Session is the authoritative state of one checkout session.
type Session struct {
	ID              string            `json:"id"`
	PaymentStatus   string            `json:"payment_status"`
	Currency        string            `json:"currency"`
	AmountTotal     int64             `json:"amount_total"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
	ShippingDetails *ShippingDetails  `json:"shipping_details"`
}

// CustomerDetails identifies the paying customer.
type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ShippingDetails is the destination, absent for digital-only orders.
type ShippingDetails struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

// Address is the processor's postal address shape.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Client talks to the payment processor's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient returns a client for the processor at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// GetCheckoutSession fetches the authoritative session state by id.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	u := c.baseURL + "/v1/checkout/sessions/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("payments: build session fetch %s: %w", id, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: fetch session %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("payments: fetch session %s: status %d: %s", id, resp.StatusCode, snippet)
	}

	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("payments: decode session %s: %w", id, err)
	}
	return &s, nil
}
