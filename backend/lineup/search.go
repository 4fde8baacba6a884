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

package lineup

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/ttbt-io/lineupkeeper/backend/roster"
)

// ctxCheckInterval is how many combinations are scored between context checks.
const ctxCheckInterval = 1 << 14

// candidate is one complement kept in the top-k heap.
type candidate struct {
	idx   [LineupSize - 1]int
	score float64
	seq   int64
}

// better orders candidates by score, then by enumeration order.
func (c candidate) better(o candidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	return c.seq < o.seq
}

// topK is a min-heap whose root is the weakest kept candidate.
type topK []candidate

func (h topK) Len() int           { return len(h) }
func (h topK) Less(i, j int) bool { return h[j].better(h[i]) }
func (h topK) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topK) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *topK) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Stats describes one search.
type Stats struct {
	Candidates int64 `json:"candidates"`
}

// Best returns the k highest scoring lineups that include locked. Every
// combination of LineupSize-1 players from the rest of the roster is scored;
// only the best k are kept. Ties go to the combination enumerated first.
func Best(ctx context.Context, r *roster.Roster, locked string, k int) ([]Lineup, Stats, error) {
	var stats Stats
	if k <= 0 {
		k = DefaultTopK
	}
	lp, ok := r.Lookup(locked)
	if !ok {
		return nil, stats, fmt.Errorf("%w: %q", ErrUnknownPlayer, locked)
	}

	remaining := make([]roster.Player, 0, r.Len())
	for _, p := range r.Players {
		if p.Name != locked {
			remaining = append(remaining, p)
		}
	}
	const pick = LineupSize - 1
	n := len(remaining)
	if n < pick {
		return nil, stats, fmt.Errorf("%w: %d other players, need %d", ErrNotEnoughPlayers, n, pick)
	}

	h := make(topK, 0, k+1)
	var idx [pick]int
	for i := range idx {
		idx[i] = i
	}

	var seq int64
	for {
		if seq%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		score := lp.EstimatedRuns
		for _, i := range idx {
			score += remaining[i].EstimatedRuns
		}
		c := candidate{idx: idx, score: score, seq: seq}
		if len(h) < k {
			heap.Push(&h, c)
		} else if c.better(h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
		seq++

		// Advance to the next combination in lexicographic order.
		j := pick - 1
		for j >= 0 && idx[j] == n-pick+j {
			j--
		}
		if j < 0 {
			break
		}
		idx[j]++
		for m := j + 1; m < pick; m++ {
			idx[m] = idx[m-1] + 1
		}
	}
	stats.Candidates = seq

	sort.Slice(h, func(i, j int) bool { return h[i].better(h[j]) })
	out := make([]Lineup, len(h))
	for i, c := range h {
		players := make([]roster.Player, 0, LineupSize)
		players = append(players, lp)
		for _, ri := range c.idx {
			players = append(players, remaining[ri])
		}
		out[i] = newLineup(locked, players)
	}
	return out, stats, nil
}
