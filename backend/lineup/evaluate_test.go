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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

var manualPick = []string{"A", "B", "C", "D", "E", "F", "G", "H", "J"}

func TestEvaluate(t *testing.T) {
	r := scenarioRoster(t)

	l, err := Evaluate(r, manualPick)
	require.NoError(t, err)
	require.Len(t, l.Players, LineupSize)
	require.Empty(t, l.Locked)

	var sum float64
	for _, n := range manualPick {
		p, _ := r.Lookup(n)
		sum += p.EstimatedRuns
	}
	require.InDelta(t, sum, l.TotalEstimatedRuns, 1e-12)

	for i := 1; i < len(l.Players); i++ {
		require.GreaterOrEqual(t, l.Players[i-1].EstimatedRuns, l.Players[i].EstimatedRuns)
	}
	require.Equal(t, "A", l.Players[0].Name)
}

func TestEvaluate_SelectionErrors(t *testing.T) {
	r := scenarioRoster(t)

	tests := []struct {
		name     string
		pick     []string
		wantKind SelectionKind
		warning  bool
	}{
		{name: "eight", pick: manualPick[:8], wantKind: SelectionIncomplete, warning: true},
		{name: "none", pick: nil, wantKind: SelectionIncomplete, warning: true},
		{name: "ten", pick: r.Names(), wantKind: SelectionOverflow},
		{name: "duplicate", pick: append([]string{"A"}, manualPick[:8]...), wantKind: SelectionDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Evaluate(r, tt.pick)
			var se *SelectionError
			require.True(t, errors.As(err, &se), "got %v", err)
			require.Equal(t, tt.wantKind, se.Kind)
			require.Equal(t, tt.warning, se.Warning())
			require.NotEmpty(t, se.Error())
			require.Empty(t, l.Players)
		})
	}
}

func TestEvaluate_DuplicateCount(t *testing.T) {
	r := scenarioRoster(t)
	var se *SelectionError

	_, err := Evaluate(r, []string{"", "A", " ", "B", "A", ""})
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, SelectionDuplicate, se.Kind)
	require.Equal(t, 3, se.Count)
	require.Equal(t, "A", se.Name)

	// A repeat is reported before the pick is counted, even when it is too long.
	ten := append(append([]string{}, manualPick...), "A")
	_, err = Evaluate(r, ten)
	require.True(t, errors.As(err, &se), "got %v", err)
	require.Equal(t, SelectionDuplicate, se.Kind)
	require.Equal(t, 10, se.Count)
}

func TestEvaluate_UnknownPlayer(t *testing.T) {
	r := scenarioRoster(t)
	pick := append([]string{"Zed"}, manualPick[:8]...)
	_, err := Evaluate(r, pick)
	require.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestEvaluate_TrimsNames(t *testing.T) {
	r := scenarioRoster(t)
	pick := make([]string, len(manualPick))
	for i, n := range manualPick {
		pick[i] = " " + n + " "
	}
	_, err := Evaluate(r, pick)
	require.NoError(t, err)
}

func TestWriteCard_Golden(t *testing.T) {
	r := scenarioRoster(t)
	l, err := Evaluate(r, manualPick)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCard(&buf, l))
	actual := buf.String()

	goldenPath := filepath.Join("testdata", "manual_card.golden")
	if os.Getenv("UPDATE_GOLDENS") == "true" {
		require.NoError(t, os.WriteFile(goldenPath, []byte(actual), 0644))
		t.Logf("Updated golden file: %s", goldenPath)
		return
	}
	expected, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	if actual != string(expected) {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(expected)),
			B:        difflib.SplitLines(actual),
			FromFile: "Expected",
			ToFile:   "Actual",
			Context:  3,
		})
		t.Errorf("Lineup card mismatch:\n%s", diff)
	}
}

func TestWriteTable(t *testing.T) {
	r := scenarioRoster(t)
	l, err := Evaluate(r, manualPick)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, []Lineup{l}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "#"))
	require.Contains(t, lines[1], "A, F, C")
	require.True(t, strings.HasSuffix(lines[1], "3.435"))
}
