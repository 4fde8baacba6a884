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
	"log"
	"os"
	"path/filepath"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
)

// MasterKeyEnv holds the passphrase protecting the data encryption key.
const MasterKeyEnv = "SK_MASTER_KEY"

// OpenStorage opens the data directory. With a passphrase, files are
// encrypted with a master key kept in dataDir/master.key, created on first
// use. Without one, data is stored unencrypted, and an existing key file is
// an error so encrypted data is never read as plain text.
func OpenStorage(dataDir, passphrase string) (*storage.Storage, error) {
	keyFile := filepath.Join(dataDir, "master.key")

	var masterKey crypto.MasterKey
	if passphrase != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
		var err error
		masterKey, err = crypto.ReadMasterKey([]byte(passphrase), keyFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read master key: %w", err)
			}
			log.Println("Initializing new master encryption key...")
			if masterKey, err = crypto.CreateMasterKey(); err != nil {
				return nil, fmt.Errorf("failed to create master key: %w", err)
			}
			if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
				return nil, fmt.Errorf("failed to save master key: %w", err)
			}
		} else {
			log.Println("Loaded master encryption key.")
		}
	} else {
		if _, err := os.Stat(keyFile); err == nil {
			return nil, fmt.Errorf("%s exists but %s is not set; refusing to read encrypted data in unencrypted mode", keyFile, MasterKeyEnv)
		}
		log.Println("Warning: No SK_MASTER_KEY provided. Data will be stored UNENCRYPTED.")
	}

	store := storage.New(dataDir, masterKey)
	store.EnableCompression(true)
	return store, nil
}
