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

// Package chart renders per-player Estimated Runs bar charts.
package chart

import (
	"bytes"
	"fmt"

	"github.com/ttbt-io/lineupkeeper/backend/roster"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	width  = 900
	height = 400
)

// Palette is the bar fill cycle (qualitative "Set3").
var Palette = []string{
	"8dd3c7", "ffffb3", "bebada", "fb8072", "80b1d3",
	"fdb462", "b3de69", "fccde5", "d9d9d9", "bc80bd",
}

// Breakdown renders a PNG bar chart of each player's Estimated Runs in the
// given order. An empty player list renders a placeholder image.
func Breakdown(title string, players []roster.Player) ([]byte, error) {
	if len(players) == 0 {
		return renderNoDataPlaceholder("No players selected")
	}

	maxValue := 0.0
	bars := make([]chart.Value, len(players))
	for i, p := range players {
		fill := drawing.ColorFromHex(Palette[i%len(Palette)])
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%s (%.3f)", p.Name, p.EstimatedRuns),
			Value: p.EstimatedRuns,
			Style: chart.Style{
				FillColor:   fill,
				StrokeColor: fill.WithAlpha(255),
				StrokeWidth: 1,
			},
		}
		if p.EstimatedRuns > maxValue {
			maxValue = p.EstimatedRuns
		}
	}
	if maxValue <= 0 {
		maxValue = 1
	}

	graph := chart.BarChart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Bottom: 20},
		},
		BarWidth:   60,
		BarSpacing: 20,
		XAxis: chart.Style{
			FontSize:            8,
			TextRotationDegrees: 30,
		},
		YAxis: chart.YAxis{
			Name: "Estimated Runs",
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: maxValue * 1.15,
			},
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.3f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("chart.Breakdown: %w", err)
	}
	return buffer.Bytes(), nil
}

func renderNoDataPlaceholder(msg string) ([]byte, error) {
	const w, h = 400, 200
	r, err := chart.PNG(w, h)
	if err != nil {
		return nil, err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, err
	}
	r.SetFont(font)

	r.SetFillColor(drawing.ColorWhite)
	r.MoveTo(0, 0)
	r.LineTo(w, 0)
	r.LineTo(w, h)
	r.LineTo(0, h)
	r.Close()
	r.Fill()

	r.SetFontColor(drawing.ColorBlack)
	r.SetFontSize(12.0)
	tb := r.MeasureText(msg)
	r.Text(msg, (w-tb.Width())/2, (h+tb.Height())/2)

	buffer := bytes.NewBuffer([]byte{})
	if err := r.Save(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
