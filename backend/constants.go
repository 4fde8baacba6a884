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

// Schema Versions
const (
	SchemaVersionV1      = 1
	CurrentSchemaVersion = SchemaVersionV1
)

// Saved lineup status
const (
	StatusActive  = ""
	StatusDeleted = "deleted"
)

// Request limits
const (
	maxRequestBody    = 1 << 20
	maxNameLen        = 120
	maxSelectionNames = 64
	maxTopK           = 50
)

const (
	retryAfterSearch = "2"
)
