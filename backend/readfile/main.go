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

// readfile dumps saved lineups, decrypting them when SK_MASTER_KEY is set.
//
//	readfile [-data-dir data] [-deleted] [lineups/<id>.json ...]
//
// Without file arguments every saved lineup is printed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ttbt-io/lineupkeeper/backend"
)

var (
	dataDir     = flag.String("data-dir", "data", "Directory for saved lineups")
	showDeleted = flag.Bool("deleted", false, "Include deleted lineups when listing")
)

func main() {
	flag.Parse()
	store, err := backend.OpenStorage(*dataDir, os.Getenv(backend.MasterKeyEnv))
	if err != nil {
		log.Fatal(err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if flag.NArg() == 0 {
		ls := backend.NewLineupStore(*dataDir, store)
		for l, err := range ls.ListAllLineups() {
			if err != nil {
				log.Fatal(err)
			}
			if l.Deleted() && !*showDeleted {
				continue
			}
			fmt.Printf("=========== %s ===========\n", l.ID)
			if err := enc.Encode(l); err != nil {
				log.Printf("JSON: %s: %v", l.ID, err)
			}
		}
		return
	}

	for _, arg := range flag.Args() {
		arg = strings.TrimPrefix(filepath.Clean(arg), filepath.Clean(*dataDir)+string(filepath.Separator))
		var obj backend.SavedLineup
		if err := store.ReadDataFile(arg, &obj); err != nil {
			log.Printf("%s: %v", arg, err)
			continue
		}
		fmt.Printf("=========== %s ===========\n", arg)
		if err := enc.Encode(obj); err != nil {
			log.Printf("JSON: %s: %v", arg, err)
		}
	}
}
