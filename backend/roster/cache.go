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

package roster

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type cacheEntry struct {
	roster  *Roster
	size    int64
	modTime time.Time
}

// Cache keeps one roster snapshot per source path. A snapshot is reused
// until the file changes on disk or the entry is invalidated.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry

	// OnLoad, if set, is called every time a source is actually parsed.
	OnLoad func(r *Roster)
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// Get returns the roster for path, reading the file only when its size or
// modification time changed since the last read. A re-read that yields the
// same content digest keeps the existing snapshot.
func (c *Cache) Get(path string) (*Roster, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("roster.Cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.size == fi.Size() && e.modTime.Equal(fi.ModTime()) {
		return e.roster, nil
	}
	return c.loadLocked(key, path, fi)
}

// Reload forces a read of path and replaces the cached snapshot when the
// content changed.
func (c *Cache) Reload(path string) (*Roster, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("roster.Cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(key, path, fi)
}

// Invalidate drops the cached snapshot for path.
func (c *Cache) Invalidate(path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) loadLocked(key, path string, fi os.FileInfo) (*Roster, error) {
	r, err := Load(path)
	if err != nil {
		return nil, err
	}
	if c.OnLoad != nil {
		c.OnLoad(r)
	}
	if e, ok := c.entries[key]; ok && e.roster.Digest == r.Digest {
		e.size = fi.Size()
		e.modTime = fi.ModTime()
		return e.roster, nil
	}
	c.entries[key] = &cacheEntry{roster: r, size: fi.Size(), modTime: fi.ModTime()}
	return r, nil
}
