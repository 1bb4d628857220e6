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

// Package diff implements a line-oriented diff and three-way merge
// engine: tokenization with configurable EOL/whitespace
// normalization, Adler-32 token hashing, identical prefix/suffix
// trimming, unified-diff hunk emission, and conflict-marked three-way
// merges.
package diff

import (
	"bytes"
	"hash/adler32"
)

// IgnoreSpaceMode controls whitespace normalization before lines are
// compared: none does no normalization at all, change collapses runs
// of spaces/tabs to one space and strips trailing whitespace, all
// removes every space/tab regardless of run length.
type IgnoreSpaceMode int

const (
	IgnoreSpaceNone IgnoreSpaceMode = iota
	IgnoreSpaceChange
	IgnoreSpaceAll
)

// Options controls tokenization and comparison.
type Options struct {
	IgnoreEOLStyle bool            // treat \n, \r\n, \r as equivalent line terminators
	IgnoreSpace    IgnoreSpaceMode // whitespace normalization mode
	ShowCFunction  bool            // annotate unified-diff hunks with the enclosing C function
}

// Token is one line of input: its Adler-32 hash (over the normalized
// bytes) plus the original, un-normalized byte range it came from.
type Token struct {
	Hash  uint32
	Start int
	End   int
}

func (t Token) bytes(src []byte) []byte { return src[t.Start:t.End] }

// Tokenize splits src into lines, each becoming one Token. A line
// terminator is the next "\r\n", "\n", or "\r", with "\r\n" consumed
// as a single terminator. A line includes its terminator in Start:End
// (so reassembly is exact); the normalized form hashed per opt may
// rewrite or drop the terminator, but never the byte range recorded.
func Tokenize(src []byte, opt Options) []Token {
	var toks []Token
	start := 0
	for start < len(src) {
		end := start
		for end < len(src) && src[end] != '\n' && src[end] != '\r' {
			end++
		}
		lineEnd := end
		if end < len(src) {
			lineEnd = end + 1
			if src[end] == '\r' && end+1 < len(src) && src[end+1] == '\n' {
				lineEnd = end + 2
			}
		}
		toks = append(toks, Token{
			Hash:  adler32.Checksum(normalizeLine(src[start:lineEnd], opt)),
			Start: start,
			End:   lineEnd,
		})
		start = lineEnd
	}
	return toks
}

// splitEOL separates a raw line into its body and terminator. The
// terminator slice is empty only for an unterminated final line.
func splitEOL(line []byte) (body, eol []byte) {
	n := len(line)
	switch {
	case n >= 2 && line[n-2] == '\r' && line[n-1] == '\n':
		return line[:n-2], line[n-2:]
	case n >= 1 && (line[n-1] == '\n' || line[n-1] == '\r'):
		return line[:n-1], line[n-1:]
	}
	return line, nil
}

// normalizeLine produces the canonical form of a raw line under opt.
// Two tokens are equal exactly when their normalized forms are
// byte-equal, and a token's hash is the Adler-32 of this form.
func normalizeLine(line []byte, opt Options) []byte {
	body, eol := splitEOL(line)
	if opt.IgnoreEOLStyle && len(eol) > 0 {
		eol = []byte{'\n'}
	}
	switch opt.IgnoreSpace {
	case IgnoreSpaceAll:
		body = stripSpaces(body)
	case IgnoreSpaceChange:
		body = collapseSpaces(trimTrailingSpace(body))
	}
	return append(append([]byte(nil), body...), eol...)
}

// collapseSpaces returns line with every run of spaces/tabs collapsed
// to a single space.
func collapseSpaces(line []byte) []byte {
	var out []byte
	inRun := false
	for _, b := range line {
		if b == ' ' || b == '\t' {
			if !inRun {
				out = append(out, ' ')
				inRun = true
			}
			continue
		}
		inRun = false
		out = append(out, b)
	}
	return out
}

// stripSpaces returns line with every space/tab removed entirely:
// unlike collapseSpaces it never inserts a separator, so lines
// differing only by the presence of whitespace compare equal
// regardless of how many space/tab characters were inserted or
// removed.
func stripSpaces(line []byte) []byte {
	var out []byte
	for _, b := range line {
		if b == ' ' || b == '\t' {
			continue
		}
		out = append(out, b)
	}
	return out
}

// trimTrailingSpace strips trailing spaces/tabs from a line body that
// has already had its terminator removed.
func trimTrailingSpace(line []byte) []byte {
	i := len(line)
	for i > 0 && (line[i-1] == ' ' || line[i-1] == '\t') {
		i--
	}
	return line[:i]
}

// equalTokens reports whether two tokens from (possibly different)
// source buffers represent the same normalized line. The hash check
// is a fast reject; equal hashes still compare normalized bytes.
func equalTokens(a []byte, aTok Token, b []byte, bTok Token, opt Options) bool {
	if aTok.Hash != bTok.Hash {
		return false
	}
	return bytes.Equal(normalizeLine(aTok.bytes(a), opt), normalizeLine(bTok.bytes(b), opt))
}
