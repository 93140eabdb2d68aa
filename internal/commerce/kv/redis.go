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

package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of github.com/redis/go-redis/v9.
//
// SetNX maps to Redis SET NX EX, which is a true atomic conditional put, so
// claim/acquire callers get real first-writer-wins semantics rather than the
// read-confirm-write approximation they would need over a weaker store.
type RedisStore struct {
	c *redis.Client
}

// NewRedisStore returns a store connected to addr (e.g. "127.0.0.1:6379").
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{c: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisStoreWithClient wraps an existing client. Useful for tests and for
// callers that need custom pool/auth options.
func NewRedisStoreWithClient(c *redis.Client) *RedisStore {
	return &RedisStore{c: c}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.c.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	if err := r.c.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// delIfEqualsScript deletes the key only while it still holds the expected
// value. GET+DEL from the client would race against TTL-expiry reassignment;
// the script runs atomically inside Redis.
const delIfEqualsScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
else
  return 0
end
`

func (r *RedisStore) DelIfEquals(ctx context.Context, key, expect string) (bool, error) {
	res, err := r.c.Eval(ctx, delIfEqualsScript, []string{key}, expect).Result()
	if err != nil {
		return false, fmt.Errorf("redis del-if-equals %s: %w", key, err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

func (r *RedisStore) ScanPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	var cursor uint64
	for {
		keys, next, err := r.c.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
		}
		for _, k := range keys {
			v, found, err := r.Get(ctx, k)
			if err != nil {
				return nil, err
			}
			if found {
				out[k] = v
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}
