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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineupkeeper.toml")
	content := `
[server]
addr = ":9000"
allowed_origins = ["https://coach.example.com"]

[data]
roster = "Interactive Stats - Stats .csv"

[cache]
backend = "redis"
redis_addr = "localhost:6379"
ttl = "10m"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default()
	want.Server.Addr = ":9000"
	want.Server.AllowedOrigins = []string{"https://coach.example.com"}
	want.Data.Roster = "Interactive Stats - Stats .csv"
	want.Cache.Backend = "redis"
	want.Cache.RedisAddr = "localhost:6379"
	want.Cache.TTL = Duration{10 * time.Minute}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("optional Load failed: %v", err)
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("Expected default top_k 5, got %d", cfg.Search.TopK)
	}
	if _, err := Load(path, false); err == nil {
		t.Error("Expected error for missing required config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, true},
		{"negative top k", func(c *Config) { c.Search.TopK = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
