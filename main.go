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

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ttbt-io/lineupkeeper/backend"
	"github.com/ttbt-io/lineupkeeper/backend/cache"
	"github.com/ttbt-io/lineupkeeper/backend/chart"
	"github.com/ttbt-io/lineupkeeper/backend/config"
	"github.com/ttbt-io/lineupkeeper/backend/lineup"
	"github.com/ttbt-io/lineupkeeper/backend/report"
	"github.com/ttbt-io/lineupkeeper/backend/roster"
	"github.com/ttbt-io/lineupkeeper/backend/search"
	"github.com/urfave/cli/v2"
)

const defaultConfigFile = "lineupkeeper.toml"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "lineupkeeper",
		Usage:  "softball lineup optimizer",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   defaultConfigFile,
				Usage:   "TOML configuration file",
				EnvVars: []string{"LINEUPKEEPER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "roster",
				Usage:   "season stats file (.csv or .xlsx)",
				EnvVars: []string{"LINEUPKEEPER_ROSTER"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "directory for saved lineups",
				EnvVars: []string{"LINEUPKEEPER_DATA_DIR"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			bestCommand(),
			evaluateCommand(),
			rosterCommand(),
		},
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path, !c.IsSet("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("roster") {
		cfg.Data.Roster = c.String("roster")
	}
	if c.IsSet("data-dir") {
		cfg.Data.DataDir = c.String("data-dir")
	}
	if c.IsSet("debug") {
		cfg.Server.Debug = c.Bool("debug")
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("tls-cert") {
		cfg.Server.TLSCert = c.String("tls-cert")
	}
	if c.IsSet("tls-key") {
		cfg.Server.TLSKey = c.String("tls-key")
	}
	if c.IsSet("allowed-origin") {
		cfg.Server.AllowedOrigins = c.StringSlice("allowed-origin")
	}
	if c.IsSet("top-k") {
		cfg.Search.TopK = c.Int("top-k")
	}
	if c.IsSet("cache") {
		cfg.Cache.Backend = c.String("cache")
	}
	if c.IsSet("redis-addr") {
		cfg.Cache.RedisAddr = c.String("redis-addr")
	}
	if c.IsSet("redis-password") {
		cfg.Cache.RedisPassword = c.String("redis-password")
	}
	if c.IsSet("redis-db") {
		cfg.Cache.RedisDB = c.Int("redis-db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openCache builds the configured search result cache. The returned close
// function is never nil.
func openCache(ctx context.Context, cfg config.CacheConfig, debug bool) (cache.Results, func(), error) {
	switch cfg.Backend {
	case "none":
		return cache.Nop{}, func() {}, nil
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL.Duration)
		if err != nil {
			return nil, nil, err
		}
		if debug {
			r.Errorf = func(f string, a ...any) { log.Printf("[DEBUG CACHE] "+f, a...) }
		}
		log.Printf("Using Redis result cache at %s", cfg.RedisAddr)
		return r, func() { r.Close() }, nil
	default:
		m, err := cache.NewMemory(cfg.Size)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the lineup web service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "the TCP address to listen to"},
			&cli.StringFlag{Name: "tls-cert", Usage: "path to TLS certificate"},
			&cli.StringFlag{Name: "tls-key", Usage: "path to TLS key"},
			&cli.StringSliceFlag{Name: "allowed-origin", Usage: "origin allowed to call the API (repeatable)"},
			&cli.IntFlag{Name: "top-k", Usage: "default number of lineups returned"},
			&cli.StringFlag{Name: "cache", Usage: "result cache: memory, redis or none"},
			&cli.StringFlag{Name: "redis-addr", Usage: "Redis address for the redis cache", EnvVars: []string{"LINEUPKEEPER_REDIS_ADDR"}},
			&cli.StringFlag{Name: "redis-password", Usage: "Redis password", EnvVars: []string{"LINEUPKEEPER_REDIS_PASSWORD"}},
			&cli.IntFlag{Name: "redis-db", Usage: "Redis database number"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			var cert *tls.Certificate
			if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
				kp, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
				if err != nil {
					return fmt.Errorf("failed to load TLS cert/key: %w", err)
				}
				cert = &kp
			}

			store, err := backend.OpenStorage(cfg.Data.DataDir, os.Getenv(backend.MasterKeyEnv))
			if err != nil {
				return err
			}

			results, closeCache, err := openCache(c.Context, cfg.Cache, cfg.Server.Debug)
			if err != nil {
				return err
			}
			defer closeCache()

			server, err := backend.StartServer(backend.Options{
				Addr:           cfg.Server.Addr,
				Cert:           cert,
				DataDir:        cfg.Data.DataDir,
				RosterPath:     cfg.Data.Roster,
				TopK:           cfg.Search.TopK,
				Debug:          cfg.Server.Debug,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Storage:        store,
				Cache:          results,
			})
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}

			// Wait for interrupt signal
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			log.Println("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				log.Printf("Shutdown error: %v", err)
			} else {
				log.Println("Gracefully stopped.")
			}
			return nil
		},
	}
}

func loadRoster(c *cli.Context) (*config.Config, *roster.Roster, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	r, err := roster.Load(cfg.Data.Roster)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Server.Debug {
		log.Printf("Roster loaded: %s (%d players, %d rows skipped)", r.Source, r.Len(), r.Skipped)
	}
	return cfg, r, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	log.Printf("Wrote %s", path)
	return nil
}

func bestCommand() *cli.Command {
	return &cli.Command{
		Name:      "best",
		Usage:     "find the top lineups that include one player",
		ArgsUsage: "PLAYER",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "k", Usage: "number of lineups (default search.top_k)"},
			&cli.StringFlag{Name: "xlsx", Usage: "also write the lineups to this workbook"},
			&cli.StringFlag{Name: "chart", Usage: "write the top lineup breakdown chart (PNG) to this file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("best: exactly one PLAYER is required", 2)
			}
			cfg, r, err := loadRoster(c)
			if err != nil {
				return err
			}
			k := cfg.Search.TopK
			if c.IsSet("k") {
				k = c.Int("k")
			}
			locked := strings.TrimSpace(c.Args().First())
			lineups, stats, err := lineup.Best(c.Context, r, locked, k)
			if err != nil {
				if errors.Is(err, lineup.ErrNotEnoughPlayers) {
					return cli.Exit(fmt.Sprintf("Not enough players to build a lineup around %s.", locked), 1)
				}
				return err
			}

			out := c.App.Writer
			fmt.Fprintf(out, "Top %d lineups with %s (%d candidates)\n\n", len(lineups), locked, stats.Candidates)
			if err := lineup.WriteTable(out, lineups); err != nil {
				return err
			}

			if path := c.String("xlsx"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := report.WriteLineups(f, fmt.Sprintf("Top %d lineups with %s", len(lineups), locked), lineups); err != nil {
					return err
				}
				log.Printf("Wrote %s", path)
			}
			if path := c.String("chart"); path != "" {
				png, err := chart.Breakdown(fmt.Sprintf("Lineup #1 with %s", locked), lineups[0].Breakdown())
				if err != nil {
					return err
				}
				return writeFile(path, png)
			}
			return nil
		},
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:      "evaluate",
		Usage:     "score a hand-picked lineup of nine players",
		ArgsUsage: "PLAYER...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "chart", Usage: "write the breakdown chart (PNG) to this file"},
		},
		Action: func(c *cli.Context) error {
			_, r, err := loadRoster(c)
			if err != nil {
				return err
			}
			l, err := lineup.Evaluate(r, c.Args().Slice())
			if err != nil {
				var se *lineup.SelectionError
				if errors.As(err, &se) {
					return cli.Exit(se.Error(), 1)
				}
				return err
			}
			if err := lineup.WriteCard(c.App.Writer, l); err != nil {
				return err
			}
			if path := c.String("chart"); path != "" {
				png, err := chart.Breakdown("Manual Lineup", l.Breakdown())
				if err != nil {
					return err
				}
				return writeFile(path, png)
			}
			return nil
		},
	}
}

func rosterCommand() *cli.Command {
	return &cli.Command{
		Name:      "roster",
		Usage:     "list roster players by Estimated Runs",
		ArgsUsage: "[QUERY]",
		Action: func(c *cli.Context) error {
			_, r, err := loadRoster(c)
			if err != nil {
				return err
			}
			q := search.Parse(strings.Join(c.Args().Slice(), " "))
			if err := q.Validate(); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "Player\tOBP\tSLG\tEstimated Runs")
			for _, p := range q.Apply(r.ByEstimatedRuns()) {
				fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\n", p.Name, p.OBP, p.SLG, p.EstimatedRuns)
			}
			return tw.Flush()
		},
	}
}
