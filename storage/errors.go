// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import "errors"

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when adding a record whose id is taken.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrTransactionFailed is returned when a write keeps conflicting with
	// concurrent writers and the retries run out.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrSerializationFailed wraps every decoding failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData means a stored value ended before its last field.
	ErrTruncatedData = errors.New("truncated data")

	// ErrUnsupportedVersion means a stored record was written by a newer
	// format than this build reads.
	ErrUnsupportedVersion = errors.New("unsupported record version")
)
