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

// Package lineup scores 9-player softball lineups by Estimated Runs.
//
// Two tools are provided: Best locks one player in and exhaustively searches
// every 8-player complement from the rest of the roster, and Evaluate scores
// a hand-picked set of nine players. Batting order is not modeled; a lineup
// is a set.
package lineup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ttbt-io/lineupkeeper/backend/roster"
)

const (
	// LineupSize is the number of players in a lineup.
	LineupSize = 9
	// DefaultTopK is the number of lineups reported by Best.
	DefaultTopK = 5
)

var (
	// ErrUnknownPlayer is returned when a name is not on the roster.
	ErrUnknownPlayer = errors.New("player not on roster")
	// ErrNotEnoughPlayers is returned when the roster cannot fill a lineup
	// around the locked player.
	ErrNotEnoughPlayers = errors.New("not enough players")
)

// Lineup is a set of LineupSize players and their combined score.
type Lineup struct {
	// Locked is the player guaranteed a spot, empty for manual lineups.
	Locked             string          `json:"locked,omitempty"`
	Players            []roster.Player `json:"players"`
	TotalEstimatedRuns float64         `json:"totalEstimatedRuns"`
}

func newLineup(locked string, players []roster.Player) Lineup {
	l := Lineup{Locked: locked, Players: players}
	for _, p := range players {
		l.TotalEstimatedRuns += p.EstimatedRuns
	}
	return l
}

// Names returns member names in lineup order.
func (l Lineup) Names() []string {
	names := make([]string, len(l.Players))
	for i, p := range l.Players {
		names[i] = p.Name
	}
	return names
}

// Label is the comma-joined member list shown in lineup tables.
func (l Lineup) Label() string {
	return strings.Join(l.Names(), ", ")
}

// Breakdown returns the members sorted by Estimated Runs, highest first.
func (l Lineup) Breakdown() []roster.Player {
	out := make([]roster.Player, len(l.Players))
	copy(out, l.Players)
	roster.SortByEstimatedRuns(out)
	return out
}

// Contains reports whether name is in the lineup.
func (l Lineup) Contains(name string) bool {
	for _, p := range l.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Binomial returns C(n, k), saturating at the largest int64.
func Binomial(n, k int) int64 {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	var c int64 = 1
	for i := 1; i <= k; i++ {
		next := c * int64(n-k+i)
		if next/int64(n-k+i) != c {
			return 1<<63 - 1
		}
		c = next / int64(i)
	}
	return c
}

// SelectionKind classifies a manual selection that cannot be scored.
type SelectionKind string

const (
	SelectionIncomplete SelectionKind = "incomplete"
	SelectionOverflow   SelectionKind = "overflow"
	SelectionDuplicate  SelectionKind = "duplicate"
)

// SelectionError is a recoverable problem with a manual selection. The
// caller should show Message and let the user pick again.
type SelectionError struct {
	Kind SelectionKind
	// Count is the number of non-blank names read when the problem was found.
	Count int
	Name  string
}

func (e *SelectionError) Error() string {
	switch e.Kind {
	case SelectionIncomplete:
		return fmt.Sprintf("Please select exactly %d players (%d selected).", LineupSize, e.Count)
	case SelectionOverflow:
		return fmt.Sprintf("Too many players selected (%d). Please choose exactly %d.", e.Count, LineupSize)
	case SelectionDuplicate:
		return fmt.Sprintf("%s was selected more than once.", e.Name)
	}
	return "invalid selection"
}

// Warning reports whether the problem is an incomplete pick rather than an
// outright error.
func (e *SelectionError) Warning() bool {
	return e.Kind == SelectionIncomplete
}
