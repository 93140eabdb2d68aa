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

package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products/rec123", r.URL.Path)
		assert.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Record{ID: "rec123", Fields: map[string]any{"stock": 5}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	rec, err := c.GetRecord(context.Background(), "products", "rec123")
	require.NoError(t, err)
	assert.Equal(t, "rec123", rec.ID)
	assert.EqualValues(t, 5, rec.Fields["stock"])
}

func TestPatchRecord_SendsFieldsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 3, body.Fields["stock"])

		_ = json.NewEncoder(w).Encode(Record{ID: "rec123", Fields: body.Fields})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	rec, err := c.PatchRecord(context.Background(), "products", "rec123", map[string]any{"stock": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 3, rec.Fields["stock"])
}

func TestCreateRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(Record{ID: "recNEW", Fields: body.Fields})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	rec, err := c.CreateRecord(context.Background(), "orders", map[string]any{"email": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "recNEW", rec.ID)
}

func TestFindRecords_EscapesFilterFormula(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `{sku}="SKU 1"`, r.URL.Query().Get("filterByFormula"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []Record{{ID: "rec1"}, {ID: "rec2"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	recs, err := c.FindRecords(context.Background(), "products", `{sku}="SKU 1"`)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

// Remote failures must surface verbatim, never be retried here.
func TestNonSuccessStatusSurfacesAsError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"RATE_LIMITED"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test")
	_, err := c.GetRecord(context.Background(), "products", "rec123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "RATE_LIMITED")
	assert.Equal(t, 1, calls, "client must not retry")
}
