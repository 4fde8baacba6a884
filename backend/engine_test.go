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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ttbt-io/lineupkeeper/backend/cache"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
)

func newTestEngine(t *testing.T, results cache.Results) (*Engine, *Metrics, string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "stats.csv"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "stats.csv")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	m := NewMetrics()
	return NewEngine(path, 0, results, m, nil), m, path
}

func TestEngine_Best(t *testing.T) {
	mem, _ := cache.NewMemory(4)
	e, m, _ := newTestEngine(t, mem)

	if e.TopK() != lineup.DefaultTopK {
		t.Errorf("Expected default top k %d, got %d", lineup.DefaultTopK, e.TopK())
	}

	res, err := e.Best(context.Background(), "A", 0)
	if err != nil {
		t.Fatalf("Best failed: %v", err)
	}
	if len(res.Lineups) != lineup.DefaultTopK || res.Cached {
		t.Errorf("Unexpected result: %+v", res)
	}
	if res, err = e.Best(context.Background(), "A", 0); err != nil || !res.Cached {
		t.Errorf("Expected cached result, got %+v, %v", res, err)
	}

	if got := testutil.ToFloat64(m.candidates); got != 9 {
		t.Errorf("Expected 9 candidates counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
	if got := testutil.ToFloat64(m.rosterLoads); got != 1 {
		t.Errorf("Expected 1 roster load, got %v", got)
	}
	if got := testutil.CollectAndCount(m.searchDuration); got != 1 {
		t.Errorf("Expected 1 search duration series, got %d", got)
	}
}

func TestEngine_BestBusy(t *testing.T) {
	mem, _ := cache.NewMemory(4)
	e, _, _ := newTestEngine(t, mem)
	e.SetMaxSearches(1)

	if _, err := e.Best(context.Background(), "A", 0); err != nil {
		t.Fatalf("Best failed: %v", err)
	}

	release, ok := e.acquire()
	if !ok {
		t.Fatal("Expected free search slot")
	}
	if _, ok := e.acquire(); ok {
		t.Fatal("Expected second acquire to fail")
	}

	if _, err := e.Best(context.Background(), "B", 0); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	// Cached results need no slot.
	if res, err := e.Best(context.Background(), "A", 0); err != nil || !res.Cached {
		t.Errorf("Expected cached result while busy, got %+v, %v", res, err)
	}

	release()
	if _, err := e.Best(context.Background(), "B", 0); err != nil {
		t.Errorf("Best after release failed: %v", err)
	}
}

func TestEngine_Evaluate(t *testing.T) {
	e, m, _ := newTestEngine(t, nil)

	if _, err := e.Evaluate(manualPick); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	_, err := e.Evaluate(manualPick[:2])
	var se *lineup.SelectionError
	if !errors.As(err, &se) || se.Kind != lineup.SelectionIncomplete {
		t.Fatalf("Expected incomplete selection, got %v", err)
	}
	if got := testutil.ToFloat64(m.selectionErrors.WithLabelValues("incomplete")); got != 1 {
		t.Errorf("Expected 1 selection error, got %v", got)
	}
}

func TestEngine_Reload(t *testing.T) {
	e, m, path := newTestEngine(t, nil)

	r1, err := e.Roster()
	if err != nil {
		t.Fatal(err)
	}
	// Same content: the snapshot is kept.
	r2, err := e.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Error("Expected unchanged roster to keep its snapshot")
	}

	data, _ := os.ReadFile(path)
	if err := os.WriteFile(path, []byte(strings.Replace(string(data), "A,30,.400,.500", "A,30,.450,.550", 1)), 0644); err != nil {
		t.Fatal(err)
	}
	r3, err := e.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if r3.Digest == r1.Digest {
		t.Error("Expected new digest after edit")
	}
	a, _ := r3.Lookup("A")
	if a.EstimatedRuns != (.450+.550)/2 {
		t.Errorf("Unexpected Estimated Runs %v", a.EstimatedRuns)
	}
	if got := testutil.ToFloat64(m.rosterLoads); got != 3 {
		t.Errorf("Expected 3 roster loads, got %v", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reload(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestEngine_ReloadFailureDropsSnapshot(t *testing.T) {
	e, m, path := newTestEngine(t, nil)
	if _, err := e.Roster(); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	good, _ := os.ReadFile(path)

	if err := os.WriteFile(path, []byte("Name,OBP\nA,.300\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reload(); err == nil {
		t.Fatal("Expected reload of malformed roster to fail")
	}

	// Restore the original file, size and mtime included. The cached entry
	// would match it again, so only a dropped snapshot forces a new read.
	if err := os.WriteFile(path, good, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, fi.ModTime(), fi.ModTime()); err != nil {
		t.Fatal(err)
	}
	before := testutil.ToFloat64(m.rosterLoads)
	if _, err := e.Roster(); err != nil {
		t.Fatalf("Roster after restore failed: %v", err)
	}
	if got := testutil.ToFloat64(m.rosterLoads); got != before+1 {
		t.Errorf("Expected roster to be read again, loads %v -> %v", before, got)
	}
}
