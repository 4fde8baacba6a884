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

// Package report exports ranked lineups as an XLSX workbook.
package report

import (
	"fmt"
	"io"

	"github.com/ttbt-io/lineupkeeper/backend/lineup"
	"github.com/xuri/excelize/v2"
)

// SummarySheet is the name of the ranked lineup sheet.
const SummarySheet = "Top Lineups"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteLineups writes a workbook with the ranked lineups on SummarySheet and
// one breakdown sheet per lineup.
func WriteLineups(w io.Writer, title string, lineups []lineup.Lineup) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	score, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr("0.000")})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := f.SetCellValue(SummarySheet, "A1", title); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "A1", bold); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := writeRow(f, SummarySheet, 2, []any{"Rank", "Lineup", "Total Estimated Runs"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A2", "C2", bold); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	for i, l := range lineups {
		row := 3 + i
		if err := writeRow(f, SummarySheet, row, []any{i + 1, l.Label(), l.TotalEstimatedRuns}); err != nil {
			return err
		}
		cellName, _ := excelize.CoordinatesToCellName(3, row)
		if err := f.SetCellStyle(SummarySheet, cellName, cellName, score); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	if err := f.SetColWidth(SummarySheet, "B", "B", 90); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	for i, l := range lineups {
		sheet := fmt.Sprintf("Lineup %d", i+1)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		if err := writeRow(f, sheet, 1, []any{"Player", "OBP", "SLG", "Estimated Runs"}); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", "D1", bold); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		players := l.Breakdown()
		for j, p := range players {
			if err := writeRow(f, sheet, j+2, []any{p.Name, p.OBP, p.SLG, p.EstimatedRuns}); err != nil {
				return err
			}
		}
		last := len(players) + 2
		if err := writeRow(f, sheet, last, []any{"Total", nil, nil, l.TotalEstimatedRuns}); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "B2", fmt.Sprintf("D%d", last), score); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cellName, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
