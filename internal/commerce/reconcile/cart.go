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
	"encoding/json"
	"fmt"
)

// Line is one cart entry: a product record id and how many units were bought.
type Line struct {
	ResourceID string `json:"resourceId"`
	Quantity   int    `json:"quantity"`
}

// ParseItems decodes the JSON-encoded cart list carried in the event's
// metadata. The metadata value is a string (the processor only stores string
// metadata), so the cart is a JSON document inside a JSON document.
func ParseItems(raw string) ([]Line, error) {
	if raw == "" {
		return nil, nil
	}
	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("parse cart items: %w", err)
	}
	return lines, nil
}

// Normalize merges duplicate resource ids by summing quantities and drops
// lines with empty ids or non-positive quantities. First-seen order is
// preserved so processing stays deterministic for a given payload.
//
// Malformed carts (duplicated lines, zero quantities) have been seen from
// hand-built checkout metadata; normalizing here keeps every later step
// working on one well-formed line per resource.
func Normalize(lines []Line) []Line {
	index := make(map[string]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ResourceID == "" || l.Quantity <= 0 {
			continue
		}
		if i, seen := index[l.ResourceID]; seen {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ResourceID] = len(out)
		out = append(out, l)
	}
	return out
}
