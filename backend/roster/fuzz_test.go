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
	"math"
	"strings"
	"testing"
)

// FuzzParseBytes checks the cleaning rules hold for any CSV input.
func FuzzParseBytes(f *testing.F) {
	f.Add([]byte("Player,OBP,SLG\nA,.400,.500\nTeam,.3,.4\n"))
	f.Add([]byte("player,slg,obp\n  B ,.4,NaN\n"))
	f.Add([]byte(""))
	f.Add([]byte("Player,OBP,SLG\n\"A\n\",1,2\nA,1,2\n"))
	f.Fuzz(func(t *testing.T, data []byte) {
		r, err := ParseBytes(data, FormatCSV)
		if err != nil {
			return
		}
		seen := make(map[string]bool)
		for _, p := range r.Players {
			if p.Name == "" || p.Name != strings.TrimSpace(p.Name) {
				t.Fatalf("untrimmed or empty name %q", p.Name)
			}
			if strings.EqualFold(p.Name, summaryRowName) {
				t.Fatalf("summary row kept")
			}
			if seen[p.Name] {
				t.Fatalf("duplicate %q", p.Name)
			}
			seen[p.Name] = true
			for _, v := range []float64{p.OBP, p.SLG, p.EstimatedRuns} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("non-finite stat for %q", p.Name)
				}
			}
		}
	})
}
