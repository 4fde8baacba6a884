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

package backend

import (
	"fmt"
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
)

// SavedLineup is a named player selection kept across restarts. Only names
// are stored; scores are recomputed against whichever roster is loaded.
type SavedLineup struct {
	ID            string   `json:"id"`
	SchemaVersion int      `json:"schemaVersion"`
	Name          string   `json:"name,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	Locked        string   `json:"locked,omitempty"`
	Players       []string `json:"players,omitempty"`
	CreatedAt     int64    `json:"createdAt,omitempty"`
	UpdatedAt     int64    `json:"updatedAt,omitempty"`

	// Status can be "active" (default/empty) or "deleted"
	Status string `json:"status,omitempty"`
	// DeletedAt is the timestamp (Unix Nano) when the lineup was deleted.
	DeletedAt int64 `json:"deletedAt,omitempty"`
}

func (l *SavedLineup) normalize() {
	if l.SchemaVersion == 0 {
		l.SchemaVersion = CurrentSchemaVersion
	}
	if l.Players == nil {
		l.Players = make([]string, 0)
	}
}

// Deleted reports whether the lineup is a tombstone.
func (l *SavedLineup) Deleted() bool {
	return l.Status == StatusDeleted
}

// LineupStore manages saved lineup persistence to disk.
type LineupStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.Mutex for each lineup id to protect writes
}

// NewLineupStore creates a new LineupStore.
func NewLineupStore(dataDir string, s *storage.Storage) *LineupStore {
	return &LineupStore{
		DataDir: dataDir,
		storage: s,
	}
}

func (ls *LineupStore) lock(id string) func() {
	m, _ := ls.mu.LoadOrStore(id, &sync.Mutex{})
	mutex := m.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

func lineupFile(id string) string {
	return filepath.Join("lineups", fmt.Sprintf("%s.json", url.PathEscape(id)))
}

// SaveLineup saves the lineup atomically.
func (ls *LineupStore) SaveLineup(l *SavedLineup) error {
	if err := ValidateSavedLineup(l); err != nil {
		return err
	}
	defer ls.lock(l.ID)()

	now := time.Now().UnixNano()
	if l.CreatedAt == 0 {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	l.normalize()

	if err := ls.storage.SaveDataFile(lineupFile(l.ID), l); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// LoadLineup loads the lineup by ID. Tombstones are returned as-is.
func (ls *LineupStore) LoadLineup(id string) (*SavedLineup, error) {
	var l SavedLineup
	if err := ls.storage.ReadDataFile(lineupFile(id), &l); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if l.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d", l.SchemaVersion)
	}
	l.normalize()
	return &l, nil
}

// ListAllLineups returns an iterator over all saved lineups, including
// tombstones, ordered by creation time.
func (ls *LineupStore) ListAllLineups() iter.Seq2[*SavedLineup, error] {
	return func(yield func(*SavedLineup, error) bool) {
		dir := filepath.Join(ls.DataDir, "lineups")
		files, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(nil, fmt.Errorf("could not read lineups directory: %w", err))
			}
			return
		}

		var all []*SavedLineup
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			id, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
			if err != nil {
				continue
			}
			l, err := ls.LoadLineup(id)
			if err != nil {
				log.Printf("Warning: could not load lineup '%s': %v", id, err)
				continue
			}
			all = append(all, l)
		}
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].CreatedAt < all[j].CreatedAt
		})
		for _, l := range all {
			if !yield(l, nil) {
				return
			}
		}
	}
}

// DeleteLineup deletes a lineup by overwriting it with a tombstone.
func (ls *LineupStore) DeleteLineup(id string) error {
	l, err := ls.LoadLineup(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if l.Deleted() {
		return nil
	}

	defer ls.lock(id)()

	tombstone := &SavedLineup{
		ID:            id,
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     time.Now().UnixNano(),
		Status:        StatusDeleted,
		DeletedAt:     time.Now().UnixNano(),
	}
	if err := ls.storage.SaveDataFile(lineupFile(id), tombstone); err != nil {
		return fmt.Errorf("storage.SaveDataFile (tombstone): %w", err)
	}
	return nil
}

// PurgeLineup permanently deletes the lineup file.
func (ls *LineupStore) PurgeLineup(id string) error {
	defer ls.lock(id)()

	fullPath := filepath.Join(ls.DataDir, lineupFile(id))
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already gone
		}
		return fmt.Errorf("could not purge lineup file: %w", err)
	}
	return nil
}

// PurgeDeleted removes tombstones older than maxAge and returns how many
// files were removed.
func (ls *LineupStore) PurgeDeleted(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).UnixNano()
	var ids []string
	for l, err := range ls.ListAllLineups() {
		if err != nil {
			return 0, err
		}
		if l.Deleted() && l.DeletedAt <= cutoff {
			ids = append(ids, l.ID)
		}
	}
	for _, id := range ids {
		if err := ls.PurgeLineup(id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
