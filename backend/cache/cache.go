// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache memoizes lock-one-player search results. Results are a pure
// function of the roster content and the request, so entries are keyed by
// the roster digest and never need explicit invalidation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

// Entry is a cached search result.
type Entry struct {
	Lineups    []lineup.Lineup `json:"lineups"`
	Candidates int64           `json:"candidates"`
}

// Results stores search results.
type Results interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, e *Entry)
}

// Key builds the cache key of one search.
func Key(rosterDigest, locked string, k int) string {
	return fmt.Sprintf("lineup:best:%s:%d:%s", rosterDigest, k, locked)
}

// Memory is an in-process LRU cache.
type Memory struct {
	lru *lru.Cache[string, *Entry]
}

// NewMemory creates an LRU cache holding up to size results.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{lru: c}, nil
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, e *Entry) {
	m.lru.Add(key, e)
}

// Len returns the number of cached results.
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Redis shares results between service instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	// Errorf receives Redis failures; the cache degrades to misses.
	Errorf func(format string, args ...any)
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client, ttl: ttl, Errorf: func(string, ...any) {}}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.Errorf("redis get %s: %v", key, err)
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		r.Errorf("redis decode %s: %v", key, err)
		return nil, false
	}
	return &e, true
}

func (r *Redis) Set(ctx context.Context, key string, e *Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		r.Errorf("redis encode %s: %v", key, err)
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.Errorf("redis set %s: %v", key, err)
	}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop disables caching.
type Nop struct{}

func (Nop) Get(context.Context, string) (*Entry, bool) { return nil, false }
func (Nop) Set(context.Context, string, *Entry)        {}
