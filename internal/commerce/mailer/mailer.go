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

// Package mailer is the thin client for the transactional email relay.
package mailer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client sends messages through one relay domain.
type Client struct {
	httpClient *http.Client
	baseURL    string // relay endpoint including the sending domain
	apiKey     string
	from       string
}

// NewClient returns a relay client. from is the sender identity
// (e.g. "Storefront <orders@shop.example>").
func NewClient(baseURL, apiKey, from string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		from:       from,
	}
}

// Send delivers one message with a plain-text body and an optional HTML
// rendition (pass "" to send text only). Failures surface verbatim; the
// caller decides whether a failed send is fatal.
func (c *Client) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	form := url.Values{}
	form.Set("from", c.from)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", textBody)
	if htmlBody != "" {
		form.Set("html", htmlBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("mailer: build send to %s: %w", to, err)
	}
	req.SetBasicAuth("api", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer: send to %s: status %d: %s", to, resp.StatusCode, snippet)
	}
	return nil
}
