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
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// isValidUUID checks if the string is a valid UUID.
func isValidUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if utf8.RuneCountInString(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

// validatePlayerName checks a player name received from a client.
func validatePlayerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("player name is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("player name is not valid UTF-8")
	}
	return validateStringLen(name, maxNameLen, "player name")
}

// validateSelection checks the shape of a manual selection. Blank slots are
// allowed; the lineup size rules are left to lineup.Evaluate.
func validateSelection(names []string) error {
	if len(names) > maxSelectionNames {
		return fmt.Errorf("too many names (max %d)", maxSelectionNames)
	}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if err := validatePlayerName(n); err != nil {
			return err
		}
	}
	return nil
}

// parseTopK parses the k query parameter. Empty means the configured default.
func parseTopK(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	k, err := strconv.Atoi(s)
	if err != nil || k < 1 || k > maxTopK {
		return 0, fmt.Errorf("k must be between 1 and %d", maxTopK)
	}
	return k, nil
}

// ValidateSavedLineup checks a lineup before it is persisted.
func ValidateSavedLineup(l *SavedLineup) error {
	if !isValidUUID(l.ID) {
		return fmt.Errorf("invalid id: %q", l.ID)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := validateStringLen(l.Name, maxNameLen, "name"); err != nil {
		return err
	}
	if err := validateStringLen(l.Notes, 2000, "notes"); err != nil {
		return err
	}
	if l.Locked != "" {
		if err := validatePlayerName(l.Locked); err != nil {
			return err
		}
	}
	return validateSelection(l.Players)
}
