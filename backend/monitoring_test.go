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
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.observeSearch("best", 20*time.Millisecond)
	m.cacheResult(true)
	m.cacheResult(false)
	m.cacheResult(false)
	m.activeWS.Set(2)

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("Expected 2 misses, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`lineupkeeper_search_duration_seconds_count{kind="best"} 1`,
		`lineupkeeper_result_cache_lookups_total{result="hit"} 1`,
		"lineupkeeper_websocket_clients 2",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Exposition missing %q", want)
		}
	}
}

func TestNewMetrics_Independent(t *testing.T) {
	// Each server registers its own collectors; this must not panic.
	a, b := NewMetrics(), NewMetrics()
	a.rosterLoads.Inc()
	if testutil.ToFloat64(b.rosterLoads) != 0 {
		t.Error("Metrics instances share state")
	}
}
