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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/xuri/excelize/v2"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"lineupkeeper"}, args...))
	return out.String(), err
}

func rosterFlag() string {
	return "--roster=" + filepath.Join("backend", "testdata", "stats.csv")
}

func TestBestCommand(t *testing.T) {
	xlsx := filepath.Join(t.TempDir(), "top.xlsx")
	png := filepath.Join(t.TempDir(), "top.png")

	out, err := runApp(t, rosterFlag(), "best", "--k", "3", "--xlsx", xlsx, "--chart", png, "A")
	require.NoError(t, err)
	require.Contains(t, out, "Top 3 lineups with A (9 candidates)")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2+1+3)
	require.True(t, strings.HasPrefix(lines[3], "1 "))

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	require.Len(t, f.GetSheetList(), 4)

	fi, err := os.Stat(png)
	require.NoError(t, err)
	require.Positive(t, fi.Size())
}

func TestBestCommand_Errors(t *testing.T) {
	_, err := runApp(t, rosterFlag(), "best")
	require.Error(t, err)

	_, err = runApp(t, rosterFlag(), "best", "Nobody")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not on roster")
}

func TestEvaluateCommand(t *testing.T) {
	out, err := runApp(t, rosterFlag(), "evaluate", "A", "B", "C", "D", "E", "F", "G", "H", "J")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join("backend", "lineup", "testdata", "manual_card.golden"))
	require.NoError(t, err)
	require.Equal(t, string(golden), out)

	_, err = runApp(t, rosterFlag(), "evaluate", "A", "B")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Please select exactly 9 players")
}

func TestRosterCommand(t *testing.T) {
	out, err := runApp(t, rosterFlag(), "roster", "slg:>=.45")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[1], "A "))
	require.True(t, strings.HasPrefix(lines[2], "F "))
	require.True(t, strings.HasPrefix(lines[3], "C "))

	_, err = runApp(t, rosterFlag(), "roster", "bogus:1")
	require.Error(t, err)
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lineupkeeper.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[data]
roster = "does-not-exist.csv"

[search]
top_k = 7
`), 0644))

	var out bytes.Buffer
	app := newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}
	// The flag overrides the roster named in the file.
	err := app.Run([]string{"lineupkeeper", "--config", cfgPath, rosterFlag(), "best", "C"})
	require.NoError(t, err)
	require.Contains(t, out.String(), "Top 7 lineups with C")

	app = newApp(&out)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err = app.Run([]string{"lineupkeeper", "--config", cfgPath, "best", "C"})
	require.Error(t, err)

	// An explicitly named config file must exist.
	err = app.Run([]string{"lineupkeeper", "--config", filepath.Join(dir, "nope.toml"), rosterFlag(), "best", "C"})
	require.Error(t, err)
}
