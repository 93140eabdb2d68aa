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

// Package signature authenticates inbound payment-processor webhooks.
//
// The processor signs each delivery with a header of the form
//
//	t=<unix seconds>,v1=<hex hmac>[,v1=<hex hmac>...]
//
// where each v1 value is HMAC-SHA256(secret, "<t>.<raw body>"). Multiple v1
// candidates appear while the processor rotates signing secrets; a delivery
// is authentic if any candidate matches. The timestamp bounds the replay
// window: deliveries older (or newer) than the tolerance are rejected even
// with a valid MAC.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the replay window applied by Verify.
const DefaultTolerance = 5 * time.Minute

// Verify reports whether rawBody was signed by the holder of secret within
// the tolerance window. It never panics; every malformed input is simply an
// unauthenticated delivery.
func Verify(rawBody []byte, header, secret string, tolerance time.Duration) bool {
	return verifyAt(time.Now(), rawBody, header, secret, tolerance)
}

// verifyAt is Verify with an injectable clock for tests.
func verifyAt(now time.Time, rawBody []byte, header, secret string, tolerance time.Duration) bool {
	if secret == "" {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	ts, candidates, ok := parseHeader(header)
	if !ok {
		return false
	}

	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > tolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := []byte(hex.EncodeToString(mac.Sum(nil)))

	for _, candidate := range candidates {
		if hmac.Equal(expected, []byte(candidate)) {
			return true
		}
	}
	return false
}

// parseHeader extracts the timestamp and the v1 MAC candidates. Both must be
// present; anything else in the header (unknown schemes, stray parts) is
// ignored rather than rejected so future scheme additions don't break us.
func parseHeader(header string) (ts int64, candidates []string, ok bool) {
	sawTimestamp := false
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || v == "" {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, false
			}
			ts = parsed
			sawTimestamp = true
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if !sawTimestamp || len(candidates) == 0 {
		return 0, nil, false
	}
	return ts, candidates, true
}
