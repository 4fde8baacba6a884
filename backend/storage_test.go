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
	"os"
	"path/filepath"
	"testing"
)

func TestOpenStorage(t *testing.T) {
	t.Run("Unencrypted", func(t *testing.T) {
		dir := t.TempDir()
		s, err := OpenStorage(dir, "")
		if err != nil {
			t.Fatalf("OpenStorage failed: %v", err)
		}
		store := NewLineupStore(dir, s)
		l := &SavedLineup{ID: "11111111-1111-4111-8111-111111111111", Name: "plain"}
		if err := store.SaveLineup(l); err != nil {
			t.Fatalf("SaveLineup failed: %v", err)
		}
	})

	t.Run("EncryptedRoundTrip", func(t *testing.T) {
		dir := t.TempDir()
		s, err := OpenStorage(dir, "correct horse")
		if err != nil {
			t.Fatalf("OpenStorage failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "master.key")); err != nil {
			t.Fatalf("master.key not created: %v", err)
		}
		id := "22222222-2222-4222-8222-222222222222"
		if err := NewLineupStore(dir, s).SaveLineup(&SavedLineup{ID: id, Name: "secret"}); err != nil {
			t.Fatalf("SaveLineup failed: %v", err)
		}

		// Reopen with the same passphrase.
		s2, err := OpenStorage(dir, "correct horse")
		if err != nil {
			t.Fatalf("Reopen failed: %v", err)
		}
		l, err := NewLineupStore(dir, s2).LoadLineup(id)
		if err != nil {
			t.Fatalf("LoadLineup failed: %v", err)
		}
		if l.Name != "secret" {
			t.Errorf("Expected name 'secret', got %q", l.Name)
		}

		if _, err := OpenStorage(dir, ""); err == nil {
			t.Error("Expected error opening encrypted data without a passphrase")
		}
		if _, err := OpenStorage(dir, "wrong"); err == nil {
			t.Error("Expected error with the wrong passphrase")
		}
	})
}
