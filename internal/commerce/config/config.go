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

// Package config loads the service configuration: collaborator endpoints and
// credentials, and the field-role map that binds logical order/product field
// roles to the record store's actual column names.
//
// The record store's schema is operator-owned, so column names arrive as
// configuration rather than compiled-in constants. Everything is validated
// once at startup; a missing role fails boot instead of failing the first
// webhook that needs it.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full startup configuration, loaded from YAML with env-var
// overrides for secrets (so credentials can stay out of the file).
type Config struct {
	Webhook     Webhook     `yaml:"webhook"`
	RecordStore RecordStore `yaml:"record_store"`
	Payments    Payments    `yaml:"payments"`
	Mailer      Mailer      `yaml:"mailer"`
	Fields      FieldRoles  `yaml:"fields"`
}

// Webhook configures inbound notification authentication.
type Webhook struct {
	// Secret is the shared HMAC signing secret. Env override: WEBHOOK_SECRET.
	Secret string `yaml:"secret"`
}

// RecordStore locates the external store and its two tables.
type RecordStore struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"` // env override: RECORD_STORE_API_KEY
	ProductsTable string `yaml:"products_table"`
	OrdersTable   string `yaml:"orders_table"`
}

// Payments locates the payment processor API.
type Payments struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"` // env override: PAYMENTS_API_KEY
}

// Mailer locates the email relay.
type Mailer struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"` // env override: MAILER_API_KEY
	From    string `yaml:"from"`
}

// FieldRoles maps logical field roles to record-store column names.
type FieldRoles struct {
	Stock          string `yaml:"stock"`
	OrderSession   string `yaml:"order_session"`
	OrderEmail     string `yaml:"order_email"`
	OrderName      string `yaml:"order_name"`
	OrderAddress   string `yaml:"order_address"`
	OrderItems     string `yaml:"order_items"`
	OrderTotal     string `yaml:"order_total"`
	OrderCurrency  string `yaml:"order_currency"`
	OrderStatus    string `yaml:"order_status"`
	TrackingNumber string `yaml:"tracking_number"`
}

// Load reads path, applies env overrides, and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overlay(&c.Webhook.Secret, "WEBHOOK_SECRET")
	overlay(&c.RecordStore.APIKey, "RECORD_STORE_API_KEY")
	overlay(&c.Payments.APIKey, "PAYMENTS_API_KEY")
	overlay(&c.Mailer.APIKey, "MAILER_API_KEY")
}

func overlay(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Validate checks that every value the request path will dereference is
// present. It reports all problems at once so operators fix a config file in
// one round trip.
func (c *Config) Validate() error {
	var missing []string
	need := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	need(c.Webhook.Secret, "webhook.secret")
	need(c.RecordStore.BaseURL, "record_store.base_url")
	need(c.RecordStore.APIKey, "record_store.api_key")
	need(c.RecordStore.ProductsTable, "record_store.products_table")
	need(c.RecordStore.OrdersTable, "record_store.orders_table")
	need(c.Payments.BaseURL, "payments.base_url")
	need(c.Payments.APIKey, "payments.api_key")
	need(c.Mailer.BaseURL, "mailer.base_url")
	need(c.Mailer.APIKey, "mailer.api_key")
	need(c.Mailer.From, "mailer.from")

	// Field roles the reconcile path dereferences. TrackingNumber is only
	// used by fulfillment tooling and may be empty.
	need(c.Fields.Stock, "fields.stock")
	need(c.Fields.OrderSession, "fields.order_session")
	need(c.Fields.OrderEmail, "fields.order_email")
	need(c.Fields.OrderName, "fields.order_name")
	need(c.Fields.OrderAddress, "fields.order_address")
	need(c.Fields.OrderItems, "fields.order_items")
	need(c.Fields.OrderTotal, "fields.order_total")
	need(c.Fields.OrderCurrency, "fields.order_currency")
	need(c.Fields.OrderStatus, "fields.order_status")

	if len(missing) > 0 {
		return fmt.Errorf("config: missing required values: %s", strings.Join(missing, ", "))
	}
	return nil
}
