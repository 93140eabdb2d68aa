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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
webhook:
  secret: whsec_test
record_store:
  base_url: https://records.example/v0/app1
  api_key: key_records
  products_table: products
  orders_table: orders
payments:
  base_url: https://pay.example
  api_key: sk_test
mailer:
  base_url: https://mail.example/v3/shop.example
  api_key: key_mail
  from: Storefront <orders@shop.example>
fields:
  stock: Stock
  order_session: Session ID
  order_email: Email
  order_name: Name
  order_address: Shipping Address
  order_items: Items
  order_total: Total
  order_currency: Currency
  order_status: Status
  tracking_number: Tracking
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "whsec_test", cfg.Webhook.Secret)
	assert.Equal(t, "products", cfg.RecordStore.ProductsTable)
	assert.Equal(t, "Shipping Address", cfg.Fields.OrderAddress)
	assert.Equal(t, "Tracking", cfg.Fields.TrackingNumber)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "whsec_from_env")
	t.Setenv("PAYMENTS_API_KEY", "sk_from_env")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "whsec_from_env", cfg.Webhook.Secret)
	assert.Equal(t, "sk_from_env", cfg.Payments.APIKey)
	// Non-overridden values keep their file form.
	assert.Equal(t, "key_records", cfg.RecordStore.APIKey)
}

func TestLoad_ReportsAllMissingValues(t *testing.T) {
	_, err := Load(writeConfig(t, `
record_store:
  base_url: https://records.example/v0/app1
`))
	require.Error(t, err)
	// Every absent required value is named, in one error.
	assert.Contains(t, err.Error(), "webhook.secret")
	assert.Contains(t, err.Error(), "record_store.api_key")
	assert.Contains(t, err.Error(), "fields.stock")
	assert.Contains(t, err.Error(), "fields.order_items")
	assert.NotContains(t, err.Error(), "record_store.base_url")
	assert.NotContains(t, err.Error(), "tracking_number", "tracking number is optional")
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "webhook: [unclosed"))
	require.Error(t, err)
}
