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
	"strconv"
	"strings"
	"time"
)

// intentPrefix namespaces write-ahead intent entries in the shared store.
// An intent is written before the first stock mutation of an event and
// deleted right after its order record exists. A live intent with no claim
// progressing behind it therefore marks a partial application.
const intentPrefix = "intent:"

// encodeIntent packs the write time and affected resource ids into the entry
// value: "<unix seconds>|r1,r2,...". Carrying the timestamp in the value
// keeps age computable without a second store lookup.
func encodeIntent(at time.Time, resourceIDs []string) string {
	return strconv.FormatInt(at.Unix(), 10) + "|" + strings.Join(resourceIDs, ",")
}

// decodeIntent is the inverse of encodeIntent. ok=false marks a value this
// version cannot read; the sweeper alerts on those too rather than guessing.
func decodeIntent(value string) (at time.Time, resourceIDs []string, ok bool) {
	ts, rest, found := strings.Cut(value, "|")
	if !found {
		return time.Time{}, nil, false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, nil, false
	}
	if rest != "" {
		resourceIDs = strings.Split(rest, ",")
	}
	return time.Unix(unix, 0), resourceIDs, true
}
