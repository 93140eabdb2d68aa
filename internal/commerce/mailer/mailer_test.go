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

package mailer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "api", user)
		assert.Equal(t, "key_test", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Storefront <orders@shop.example>", r.Form.Get("from"))
		assert.Equal(t, "jo@example.com", r.Form.Get("to"))
		assert.Equal(t, "Order confirmation", r.Form.Get("subject"))
		assert.Contains(t, r.Form.Get("text"), "Thanks")
		assert.Empty(t, r.Form.Get("html"), "empty html rendition must be omitted")

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test", "Storefront <orders@shop.example>")
	err := c.Send(context.Background(), "jo@example.com", "Order confirmation", "Thanks for your order!", "")
	require.NoError(t, err)
}

func TestSend_RelayFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"domain not verified"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_test", "orders@shop.example")
	err := c.Send(context.Background(), "jo@example.com", "s", "t", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
