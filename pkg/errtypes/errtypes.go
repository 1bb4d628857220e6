// Copyright 2018-2021 CERN
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
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package errtypes maps the engine's error kinds onto
// distinct Go types so callers can type-switch instead of parsing
// error strings.
package errtypes

import "fmt"

// Corrupt means a revision file, trailer, representation line, change
// entry, or current/next-ids file failed to parse, or an svndiff
// window requested data outside its extent or disagreed on length.
type Corrupt string

func (e Corrupt) Error() string { return "error: corrupt filesystem: " + string(e) }

// IsCorrupt implements the IsCorrupt interface.
func (e Corrupt) IsCorrupt() {}

// ChecksumMismatch means a reconstructed representation's MD5 does
// not match its descriptor, or a diff source's bytes changed mid-read.
type ChecksumMismatch struct {
	Path     string
	Expected string
	Actual   string
}

func (e ChecksumMismatch) Error() string {
	return fmt.Sprintf("error: checksum mismatch on %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// IsChecksumMismatch implements the IsChecksumMismatch interface.
func (e ChecksumMismatch) IsChecksumMismatch() {}

// OutOfDate means a transaction's base revision is no longer youngest
// at commit time.
type OutOfDate string

func (e OutOfDate) Error() string { return "error: out of date: " + string(e) }

// IsOutOfDate implements the IsOutOfDate interface.
func (e OutOfDate) IsOutOfDate() {}

// NotFound means a revision, transaction, or node file is absent or
// its identifier is unknown.
type NotFound string

func (e NotFound) Error() string { return "error: not found: " + string(e) }

// IsNotFound implements the IsNotFound interface.
func (e NotFound) IsNotFound() {}

// InvalidArgument means a malformed diff option or a non-child path
// was supplied where a relative-to-dir path was required.
type InvalidArgument string

func (e InvalidArgument) Error() string { return "error: invalid argument: " + string(e) }

// IsInvalidArgument implements the IsInvalidArgument interface.
func (e InvalidArgument) IsInvalidArgument() {}

// UniquifierExhausted means 99,999 transaction-directory creation
// attempts all collided with an existing directory.
type UniquifierExhausted string

func (e UniquifierExhausted) Error() string {
	return "error: exhausted uniquifier: " + string(e)
}

// IsUniquifierExhausted implements the IsUniquifierExhausted interface.
func (e UniquifierExhausted) IsUniquifierExhausted() {}

// IsCorrupt is the interface to implement to specify that a resource
// failed to parse.
type IsCorrupt interface{ IsCorrupt() }

// IsChecksumMismatch is the interface to implement to specify a
// checksum mismatch.
type IsChecksumMismatch interface{ IsChecksumMismatch() }

// IsOutOfDate is the interface to implement to specify a stale
// transaction base revision.
type IsOutOfDate interface{ IsOutOfDate() }

// IsNotFound is the interface to implement to specify that a resource
// is not found.
type IsNotFound interface{ IsNotFound() }

// IsInvalidArgument is the interface to implement to specify a
// malformed argument.
type IsInvalidArgument interface{ IsInvalidArgument() }

// IsUniquifierExhausted is the interface to implement to specify a
// retry-budget exhaustion.
type IsUniquifierExhausted interface{ IsUniquifierExhausted() }
