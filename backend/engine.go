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
	"log"
	"runtime"
	"time"

	"github.com/ttbt-io/lineupkeeper/backend/cache"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
	"github.com/ttbt-io/lineupkeeper/backend/roster"
)

// ErrBusy is returned when every search slot is taken.
var ErrBusy = errors.New("too many searches in progress")

// BestResult is the lock-one-player view.
type BestResult struct {
	Locked     string          `json:"locked"`
	Candidates int64           `json:"candidates"`
	Digest     string          `json:"rosterDigest"`
	Lineups    []lineup.Lineup `json:"lineups"`
	Cached     bool            `json:"cached"`
}

// Engine runs lineup computations against the current roster snapshot.
// Every call is independent; the roster is immutable once loaded.
type Engine struct {
	rosterPath string
	topK       int
	rosters    *roster.Cache
	results    cache.Results
	slots      chan struct{}
	metrics    *Metrics
	debugf     func(string, ...any)
}

// NewEngine creates an Engine reading the roster at rosterPath.
func NewEngine(rosterPath string, topK int, results cache.Results, metrics *Metrics, debugf func(string, ...any)) *Engine {
	if topK <= 0 {
		topK = lineup.DefaultTopK
	}
	if results == nil {
		results = cache.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if debugf == nil {
		debugf = func(string, ...any) {}
	}
	e := &Engine{
		rosterPath: rosterPath,
		topK:       topK,
		rosters:    roster.NewCache(),
		results:    results,
		slots:      make(chan struct{}, runtime.GOMAXPROCS(0)),
		metrics:    metrics,
		debugf:     debugf,
	}
	e.rosters.OnLoad = func(r *roster.Roster) {
		metrics.rosterLoads.Inc()
		metrics.rosterPlayers.Set(float64(r.Len()))
		log.Printf("Roster loaded: %s (%d players, %d rows skipped)", r.Source, r.Len(), r.Skipped)
	}
	return e
}

// SetMaxSearches bounds the number of searches running at once. It must be
// called before the engine serves any request.
func (e *Engine) SetMaxSearches(n int) {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	e.slots = make(chan struct{}, n)
}

// acquire reserves a search slot without waiting.
func (e *Engine) acquire() (func(), bool) {
	select {
	case e.slots <- struct{}{}:
		return func() { <-e.slots }, true
	default:
		return nil, false
	}
}

// TopK is the default number of lineups returned by Best.
func (e *Engine) TopK() int {
	return e.topK
}

// Roster returns the current roster snapshot.
func (e *Engine) Roster() (*roster.Roster, error) {
	return e.rosters.Get(e.rosterPath)
}

// Reload forces the roster file to be read again. A failed reload drops the
// current snapshot so that no request is answered from a roster the file no
// longer holds.
func (e *Engine) Reload() (*roster.Roster, error) {
	r, err := e.rosters.Reload(e.rosterPath)
	if err != nil {
		e.rosters.Invalidate(e.rosterPath)
		e.debugf("Roster reload failed, snapshot dropped: %v", err)
		return nil, err
	}
	return r, nil
}

// Best returns the top k lineups containing the locked player. Cached results
// are served without a search slot; a search that finds no free slot fails
// with ErrBusy.
func (e *Engine) Best(ctx context.Context, locked string, k int) (*BestResult, error) {
	if k <= 0 {
		k = e.topK
	}
	r, err := e.Roster()
	if err != nil {
		return nil, err
	}

	key := cache.Key(r.Digest, locked, k)
	if entry, ok := e.results.Get(ctx, key); ok {
		e.metrics.cacheResult(true)
		e.debugf("Result cache hit: %s", key)
		return &BestResult{
			Locked:     locked,
			Candidates: entry.Candidates,
			Digest:     r.Digest,
			Lineups:    entry.Lineups,
			Cached:     true,
		}, nil
	}
	e.metrics.cacheResult(false)

	release, ok := e.acquire()
	if !ok {
		e.debugf("Search %q refused: no free slot", locked)
		return nil, ErrBusy
	}
	defer release()

	start := time.Now()
	lineups, stats, err := lineup.Best(ctx, r, locked, k)
	elapsed := time.Since(start)
	e.metrics.candidates.Add(float64(stats.Candidates))
	if err != nil {
		return nil, err
	}
	e.metrics.observeSearch("best", elapsed)
	e.debugf("Search %q k=%d: %d candidates in %s", locked, k, stats.Candidates, elapsed)

	e.results.Set(ctx, key, &cache.Entry{Lineups: lineups, Candidates: stats.Candidates})
	return &BestResult{
		Locked:     locked,
		Candidates: stats.Candidates,
		Digest:     r.Digest,
		Lineups:    lineups,
	}, nil
}

// Evaluate scores a hand-picked lineup against the current roster.
func (e *Engine) Evaluate(names []string) (lineup.Lineup, error) {
	r, err := e.Roster()
	if err != nil {
		return lineup.Lineup{}, err
	}
	start := time.Now()
	l, err := lineup.Evaluate(r, names)
	if err != nil {
		var se *lineup.SelectionError
		if errors.As(err, &se) {
			e.metrics.selectionErrors.WithLabelValues(string(se.Kind)).Inc()
		}
		return lineup.Lineup{}, err
	}
	e.metrics.observeSearch("evaluate", time.Since(start))
	return l, nil
}
