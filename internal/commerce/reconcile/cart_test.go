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
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   []Line
		want []Line
	}{
		{
			name: "merge duplicates and drop non-positive",
			in:   []Line{{"r1", 2}, {"r1", 3}, {"r2", 0}},
			want: []Line{{"r1", 5}},
		},
		{
			name: "negative quantities dropped",
			in:   []Line{{"r1", -4}, {"r2", 1}},
			want: []Line{{"r2", 1}},
		},
		{
			name: "empty resource id dropped",
			in:   []Line{{"", 3}, {"r1", 1}},
			want: []Line{{"r1", 1}},
		},
		{
			name: "first-seen order preserved",
			in:   []Line{{"b", 1}, {"a", 1}, {"b", 2}},
			want: []Line{{"b", 3}, {"a", 1}},
		},
		{
			name: "nil input",
			in:   nil,
			want: []Line{},
		},
	}

	for _, tc := range cases {
		got := Normalize(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: Normalize(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestParseItems(t *testing.T) {
	lines, err := ParseItems(`[{"resourceId":"SKU1","quantity":2},{"resourceId":"SKU2","quantity":1}]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []Line{{"SKU1", 2}, {"SKU2", 1}}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("ParseItems = %v, want %v", lines, want)
	}
}

func TestParseItems_EmptyStringIsEmptyCart(t *testing.T) {
	lines, err := ParseItems("")
	if err != nil || lines != nil {
		t.Fatalf("ParseItems(\"\") = %v, %v; want nil, nil", lines, err)
	}
}

func TestParseItems_MalformedJSON(t *testing.T) {
	if _, err := ParseItems(`{"not":"a list"}`); err == nil {
		t.Fatalf("expected error for non-array items payload")
	}
	if _, err := ParseItems(`[{"resourceId":`); err == nil {
		t.Fatalf("expected error for truncated items payload")
	}
}
