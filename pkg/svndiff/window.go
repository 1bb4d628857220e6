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

// Package svndiff implements the svndiff0 window-framed binary delta
// format: window encoding, decoding and application as standalone
// library primitives, independent of how callers choose delta bases.
// Windows of different delta layers are not composed with each other.
package svndiff

// Magic is the three-byte prefix ("SVN") of the four-byte stream
// header; the version byte follows it.
var Magic = [3]byte{'S', 'V', 'N'}

// OpKind enumerates svndiff instruction kinds.
type OpKind byte

const (
	OpCopyFromSource OpKind = iota
	OpCopyFromTarget
	OpInsert
)

// Op is one copy/insert instruction within a window.
type Op struct {
	Kind   OpKind
	Offset uint64 // meaningful for OpCopyFromSource/OpCopyFromTarget
	Length uint64
}

// Window is one independently framed svndiff window; SrcOps reports
// whether it also needs a source view.
type Window struct {
	SourceViewOffset uint64
	SourceViewLength uint64
	TargetViewLength uint64
	Instructions     []Op
	InstructionData  []byte // the inline bytes backing OpInsert instructions, concatenated in order
}

// SrcOps reports whether this window references any source bytes at
// all; a window with none is self-contained and needs no base.
func (w Window) SrcOps() bool {
	for _, op := range w.Instructions {
		if op.Kind == OpCopyFromSource {
			return true
		}
	}
	return false
}
