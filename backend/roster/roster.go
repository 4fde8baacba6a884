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

// Package roster loads season batting statistics and derives the per-player
// Estimated Runs score used by the lineup tools.
package roster

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Required column headers.
const (
	ColumnPlayer = "Player"
	ColumnOBP    = "OBP"
	ColumnSLG    = "SLG"
)

// summaryRowName marks the team totals row of a stats export.
const summaryRowName = "team"

// Format identifies the layout of a roster source.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrMissingColumn is returned when the header lacks Player, OBP or SLG.
	ErrMissingColumn = errors.New("missing required column")
	// ErrDuplicatePlayer is returned when two rows share a trimmed player name.
	ErrDuplicatePlayer = errors.New("duplicate player")
	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported roster format")
	// ErrEmpty is returned when the source has no header row.
	ErrEmpty = errors.New("roster source is empty")
)

// Player is one usable roster entry.
type Player struct {
	Name          string  `json:"name"`
	OBP           float64 `json:"obp"`
	SLG           float64 `json:"slg"`
	EstimatedRuns float64 `json:"estimatedRuns"`
}

// NewPlayer builds a Player and derives its Estimated Runs.
func NewPlayer(name string, obp, slg float64) Player {
	return Player{
		Name:          name,
		OBP:           obp,
		SLG:           slg,
		EstimatedRuns: (obp + slg) / 2,
	}
}

// Roster is an immutable snapshot of the usable players of one source.
type Roster struct {
	Source   string    `json:"source"`
	Digest   string    `json:"digest"`
	LoadedAt time.Time `json:"loadedAt"`
	Players  []Player  `json:"players"`
	// Skipped counts rows dropped for missing or unparseable stats.
	Skipped int `json:"skipped"`

	index map[string]int
}

// New builds a roster from already-scored players. Names must be unique.
func New(players []Player) (*Roster, error) {
	r := &Roster{
		LoadedAt: time.Now(),
		Players:  make([]Player, 0, len(players)),
		index:    make(map[string]int, len(players)),
	}
	for _, p := range players {
		if err := r.add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Roster) add(p Player) error {
	if _, exists := r.index[p.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePlayer, p.Name)
	}
	r.index[p.Name] = len(r.Players)
	r.Players = append(r.Players, p)
	return nil
}

// Len returns the number of usable players.
func (r *Roster) Len() int {
	return len(r.Players)
}

// Lookup finds a player by exact (case-sensitive) name.
func (r *Roster) Lookup(name string) (Player, bool) {
	i, ok := r.index[name]
	if !ok {
		return Player{}, false
	}
	return r.Players[i], true
}

// Names returns player names in source order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.Players))
	for i, p := range r.Players {
		names[i] = p.Name
	}
	return names
}

// ByEstimatedRuns returns a copy of the players sorted by Estimated Runs,
// highest first. Ties keep source order.
func (r *Roster) ByEstimatedRuns() []Player {
	out := make([]Player, len(r.Players))
	copy(out, r.Players)
	SortByEstimatedRuns(out)
	return out
}

// SortByEstimatedRuns sorts players in place, highest Estimated Runs first.
func SortByEstimatedRuns(players []Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].EstimatedRuns > players[j].EstimatedRuns
	})
}

// FormatFromPath picks the parser for a file name.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// Load reads and cleans the roster stored at path.
func Load(path string) (*Roster, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster.Load: %w", err)
	}
	r, err := ParseBytes(data, format)
	if err != nil {
		return nil, fmt.Errorf("roster.Load %s: %w", filepath.Base(path), err)
	}
	r.Source = path
	return r, nil
}

// Parse reads a roster from r.
func Parse(r io.Reader, format Format) (*Roster, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data, format)
}

// ParseBytes cleans a raw roster source: the team summary row is removed,
// names are trimmed, rows with unusable OBP or SLG are dropped and every
// remaining player gets its Estimated Runs.
func ParseBytes(data []byte, format Format) (*Roster, error) {
	var rows [][]string
	var err error
	switch format {
	case FormatCSV:
		rows, err = readCSV(data)
	case FormatXLSX:
		rows, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	cols, err := locateColumns(rows[0])
	if err != nil {
		return nil, err
	}

	r, _ := New(nil)
	for _, row := range rows[1:] {
		name := strings.TrimSpace(cell(row, cols.player))
		if name == "" || strings.ToLower(name) == summaryRowName {
			continue
		}
		obp, ok := parseStat(cell(row, cols.obp))
		if !ok {
			r.Skipped++
			continue
		}
		slg, ok := parseStat(cell(row, cols.slg))
		if !ok {
			r.Skipped++
			continue
		}
		p := NewPlayer(name, obp, slg)
		if math.IsInf(p.EstimatedRuns, 0) {
			r.Skipped++
			continue
		}
		if err := r.add(p); err != nil {
			return nil, err
		}
	}

	sum := sha256.Sum256(data)
	r.Digest = fmt.Sprintf("%x", sum)
	return r, nil
}

type columns struct {
	player, obp, slg int
}

func locateColumns(header []string) (columns, error) {
	c := columns{player: -1, obp: -1, slg: -1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, ColumnPlayer) && c.player < 0:
			c.player = i
		case strings.EqualFold(h, ColumnOBP) && c.obp < 0:
			c.obp = i
		case strings.EqualFold(h, ColumnSLG) && c.slg < 0:
			c.slg = i
		}
	}
	var missing []string
	if c.player < 0 {
		missing = append(missing, ColumnPlayer)
	}
	if c.obp < 0 {
		missing = append(missing, ColumnOBP)
	}
	if c.slg < 0 {
		missing = append(missing, ColumnSLG)
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return c, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseStat parses a rate stat. Empty, non-numeric and non-finite values
// are reported as missing.
func parseStat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func readCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("XLSX file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
