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

// Package records is the thin client for the external record store that owns
// product and order rows.
//
// It is a pure request/response adapter: remote failures surface verbatim to
// the caller and no retries happen here — retry policy belongs to the
// reconciliation engine, which knows which steps are idempotent.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Record is a row in the record store. Field names are store-specific and
// resolved by callers through the configured field-role map.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Client talks to one record-store base (a set of tables).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient returns a client for the store at baseURL
// (e.g. "https://api.example.com/v0/appXXXX").
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// GetRecord fetches one record by id.
func (c *Client) GetRecord(ctx context.Context, table, id string) (*Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodGet, c.recordURL(table, id), nil, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PatchRecord updates the given fields on an existing record, leaving other
// fields untouched.
func (c *Client) PatchRecord(ctx context.Context, table, id string, fields map[string]any) (*Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodPatch, c.recordURL(table, id), map[string]any{"fields": fields}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateRecord inserts a new record and returns it with its assigned id.
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodPost, c.tableURL(table), map[string]any{"fields": fields}, &rec)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindRecords lists records matching the store's filter formula expression.
func (c *Client) FindRecords(ctx context.Context, table, filterFormula string) ([]Record, error) {
	u := c.tableURL(table)
	if filterFormula != "" {
		u += "?filterByFormula=" + url.QueryEscape(filterFormula)
	}
	var page struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, err
	}
	return page.Records, nil
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + url.PathEscape(table)
}

func (c *Client) recordURL(table, id string) string {
	return c.tableURL(table) + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("record store: encode %s %s: %w", method, rawURL, err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("record store: build %s %s: %w", method, rawURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("record store: %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("record store: %s %s: status %d: %s", method, rawURL, resp.StatusCode, snippet)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("record store: decode %s %s: %w", method, rawURL, err)
		}
	}
	return nil
}
