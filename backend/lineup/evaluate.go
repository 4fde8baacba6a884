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
	"fmt"
	"strings"

	"github.com/ttbt-io/lineupkeeper/backend/roster"
)

// Evaluate scores a hand-picked lineup. Selecting fewer or more than
// LineupSize players, or the same player twice, yields a *SelectionError.
// Members of the returned lineup are sorted by Estimated Runs.
func Evaluate(r *roster.Roster, names []string) (Lineup, error) {
	seen := make(map[string]bool, len(names))
	picked := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if seen[n] {
			return Lineup{}, &SelectionError{Kind: SelectionDuplicate, Count: len(picked) + 1, Name: n}
		}
		seen[n] = true
		picked = append(picked, n)
	}

	switch {
	case len(picked) < LineupSize:
		return Lineup{}, &SelectionError{Kind: SelectionIncomplete, Count: len(picked)}
	case len(picked) > LineupSize:
		return Lineup{}, &SelectionError{Kind: SelectionOverflow, Count: len(picked)}
	}

	players := make([]roster.Player, 0, LineupSize)
	for _, n := range picked {
		p, ok := r.Lookup(n)
		if !ok {
			return Lineup{}, fmt.Errorf("%w: %q", ErrUnknownPlayer, n)
		}
		players = append(players, p)
	}
	roster.SortByEstimatedRuns(players)
	return newLineup("", players), nil
}
