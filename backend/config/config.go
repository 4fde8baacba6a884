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

// Package config reads the optional lineupkeeper.toml file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the service configuration. Command line flags override it.
type Config struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Search SearchConfig `toml:"search"`
	Cache  CacheConfig  `toml:"cache"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	Debug          bool     `toml:"debug"`
	AllowedOrigins []string `toml:"allowed_origins"`
	TLSCert        string   `toml:"tls_cert"`
	TLSKey         string   `toml:"tls_key"`
}

type DataConfig struct {
	// Roster is the season stats file (.csv or .xlsx).
	Roster  string `toml:"roster"`
	DataDir string `toml:"data_dir"`
}

type SearchConfig struct {
	TopK int `toml:"top_k"`
}

// CacheConfig selects the search result cache. Backend is "memory",
// "redis" or "none".
type CacheConfig struct {
	Backend       string   `toml:"backend"`
	Size          int      `toml:"size"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
}

// Duration is a time.Duration written as "10m" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Data: DataConfig{
			Roster:  "stats.csv",
			DataDir: "data",
		},
		Search: SearchConfig{
			TopK: 5,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Size:    256,
			TTL:     Duration{time.Hour},
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that flags cannot fix up later.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be memory, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for the redis backend")
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must not be negative")
	}
	return nil
}
