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

// Package search implements the roster filter language, e.g.
//
//	obp:>=.350 slg:.400...550 "Cole"
package search

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ttbt-io/lineupkeeper/backend/roster"
)

// Operator represents a comparison operator.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpRange          Operator = ".." // for obp:.300..0.400
)

// Filter keys.
const (
	KeyName = "name"
	KeyOBP  = "obp"
	KeySLG  = "slg"
	KeyRuns = "runs"
)

var keyAliases = map[string]string{
	"player": KeyName,
	"er":     KeyRuns,
}

// Filter represents a structured criteria derived from the query string.
type Filter struct {
	Key      string   // e.g., "obp", "name"
	Value    string   // e.g., ".350", "Cole"
	MaxValue string   // Used only for OpRange
	Operator Operator // e.g., "=", ">="
}

// Query represents the parsed search query.
type Query struct {
	Filters  []Filter
	FreeText []string
}

// Parse parses a search query string into a structured Query object.
// It handles:
// - quoted strings (name:"Avery Cole")
// - key:value pairs
// - comparison operators and ranges for the stat keys
func Parse(input string) Query {
	q := Query{
		Filters:  make([]Filter, 0),
		FreeText: make([]string, 0),
	}

	for _, token := range tokenize(input) {
		parts := strings.SplitN(token, ":", 2)
		if len(parts) != 2 {
			q.FreeText = append(q.FreeText, removeQuotes(token))
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		if alias, ok := keyAliases[key]; ok {
			key = alias
		}
		val := strings.TrimSpace(parts[1])

		// An unquoted second colon is ambiguous; keep the token as text.
		if strings.Contains(val, ":") && !strings.HasPrefix(val, "\"") && !strings.HasPrefix(val, "'") {
			q.FreeText = append(q.FreeText, token)
			continue
		}
		if key == "" || val == "" {
			q.FreeText = append(q.FreeText, token)
			continue
		}

		if lo, hi, ok := splitRange(val); ok {
			q.Filters = append(q.Filters, Filter{Key: key, Value: lo, MaxValue: hi, Operator: OpRange})
			continue
		}

		op := OpEqual
		for _, candidate := range []Operator{OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess} {
			if strings.HasPrefix(val, string(candidate)) {
				op = candidate
				val = strings.TrimPrefix(val, string(candidate))
				break
			}
		}
		q.Filters = append(q.Filters, Filter{Key: key, Value: removeQuotes(val), Operator: op})
	}

	return q
}

// splitRange splits "lo..hi". Stats may start with a decimal point, so
// ".300...400" splits as ".300" and ".400".
func splitRange(val string) (string, string, bool) {
	if strings.HasPrefix(val, "\"") || strings.HasPrefix(val, "'") {
		return "", "", false
	}
	i := strings.Index(val, "..")
	if i <= 0 {
		return "", "", false
	}
	lo := val[:i]
	hi := val[i+2:]
	if hi == "" {
		return "", "", false
	}
	return lo, hi, true
}

// Validate reports unknown keys, operators the key does not support and
// stat values that are not numbers.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		switch f.Key {
		case KeyName:
			if f.Operator != OpEqual {
				return fmt.Errorf("%s: operator %s not supported", f.Key, f.Operator)
			}
		case KeyOBP, KeySLG, KeyRuns:
			if _, err := strconv.ParseFloat(f.Value, 64); err != nil {
				return fmt.Errorf("%s: invalid number %q", f.Key, f.Value)
			}
			if f.Operator == OpRange {
				if _, err := strconv.ParseFloat(f.MaxValue, 64); err != nil {
					return fmt.Errorf("%s: invalid number %q", f.Key, f.MaxValue)
				}
			}
		default:
			return fmt.Errorf("unknown filter %q", f.Key)
		}
	}
	return nil
}

// Match reports whether p satisfies every filter and contains every free
// text term (case-insensitive) in its name. Invalid filters never match.
func (q Query) Match(p roster.Player) bool {
	name := strings.ToLower(p.Name)
	for _, term := range q.FreeText {
		if !strings.Contains(name, strings.ToLower(term)) {
			return false
		}
	}
	for _, f := range q.Filters {
		if !f.match(p, name) {
			return false
		}
	}
	return true
}

// Apply returns the players matching q, in their original order.
func (q Query) Apply(players []roster.Player) []roster.Player {
	out := make([]roster.Player, 0, len(players))
	for _, p := range players {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f Filter) match(p roster.Player, lowerName string) bool {
	var stat float64
	switch f.Key {
	case KeyName:
		return strings.Contains(lowerName, strings.ToLower(f.Value))
	case KeyOBP:
		stat = p.OBP
	case KeySLG:
		stat = p.SLG
	case KeyRuns:
		stat = p.EstimatedRuns
	default:
		return false
	}

	v, err := strconv.ParseFloat(f.Value, 64)
	if err != nil {
		return false
	}
	switch f.Operator {
	case OpEqual:
		return stat == v
	case OpGreater:
		return stat > v
	case OpGreaterOrEqual:
		return stat >= v
	case OpLess:
		return stat < v
	case OpLessOrEqual:
		return stat <= v
	case OpRange:
		hi, err := strconv.ParseFloat(f.MaxValue, 64)
		if err != nil {
			return false
		}
		return stat >= v && stat <= hi
	}
	return false
}

// tokenize splits the string by spaces, respecting quotes.
func tokenize(input string) []string {
	var tokens []string
	var currentToken strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, r := range input {
		switch {
		case inQuote:
			if r == quoteChar {
				inQuote = false
			}
			currentToken.WriteRune(r)
		case unicode.IsSpace(r):
			if currentToken.Len() > 0 {
				tokens = append(tokens, currentToken.String())
				currentToken.Reset()
			}
		case r == '"' || r == '\'':
			inQuote = true
			quoteChar = r
			currentToken.WriteRune(r)
		default:
			currentToken.WriteRune(r)
		}
	}
	if currentToken.Len() > 0 {
		tokens = append(tokens, currentToken.String())
	}
	return tokens
}

func removeQuotes(s string) string {
	if len(s) >= 2 {
		first := s[0]
		last := s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
