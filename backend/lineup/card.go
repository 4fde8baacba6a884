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
	"io"
	"text/tabwriter"
)

// WriteCard writes the lineup card: one numbered entry per player, best
// first, followed by the lineup total.
func WriteCard(w io.Writer, l Lineup) error {
	for i, p := range l.Breakdown() {
		if _, err := fmt.Fprintf(w, "%d. %s\n   OBP: %.3f | SLG: %.3f | Estimated Runs: %.3f\n---\n",
			i+1, p.Name, p.OBP, p.SLG, p.EstimatedRuns); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total Estimated Runs: %.3f\n", l.TotalEstimatedRuns)
	return err
}

// WriteTable writes ranked lineups as an aligned text table.
func WriteTable(w io.Writer, lineups []Lineup) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLineup\tTotal Estimated Runs")
	for i, l := range lineups {
		fmt.Fprintf(tw, "%d\t%s\t%.3f\n", i+1, l.Label(), l.TotalEstimatedRuns)
	}
	return tw.Flush()
}
