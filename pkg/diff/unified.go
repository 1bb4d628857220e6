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

package diff

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// DefaultContext is the number of unchanged lines kept around each
// change in unified output.
const DefaultContext = 3

// cFunctionMaxLen bounds the hunk function annotation emitted under
// ShowCFunction.
const cFunctionMaxLen = 50

// hunk is one grouped run of ops, with leading/trailing equal context
// already trimmed to at most `context` tokens.
type hunk struct{ ops []Op }

// WriteUnified tokenizes a and b, diffs them under opt, and writes a
// unified diff with the given amount of context to w. It returns
// false if the inputs are identical (nothing was written but the
// "--- / +++" file headers, which are suppressed too in that case).
func WriteUnified(w io.Writer, a, b []byte, opt Options, context int, aLabel, bLabel string) (bool, error) {
	ta := Tokenize(a, opt)
	tb := Tokenize(b, opt)
	ops := computeTokens(a, ta, b, tb, opt)
	hunks := groupHunks(ops, context)
	if len(hunks) == 0 {
		return false, nil
	}
	if _, err := fmt.Fprintf(w, "--- %s\n", aLabel); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(w, "+++ %s\n", bLabel); err != nil {
		return false, err
	}
	for _, h := range hunks {
		fn := ""
		if opt.ShowCFunction {
			fn = findCFunction(a, ta, h.ops[0].A0)
		}
		if err := writeHunk(w, a, ta, b, tb, h, fn); err != nil {
			return false, err
		}
	}
	return true, nil
}

func groupHunks(ops []Op, context int) []hunk {
	var changed []int
	for i, op := range ops {
		if op.Kind != OpEqual {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	var hunks []hunk
	start, end := changed[0], changed[0]
	for _, idx := range changed[1:] {
		if equalRunBetween(ops, end, idx) <= 2*context {
			end = idx
			continue
		}
		hunks = append(hunks, buildHunk(ops, start, end, context))
		start, end = idx, idx
	}
	hunks = append(hunks, buildHunk(ops, start, end, context))
	return hunks
}

func equalRunBetween(ops []Op, i, j int) int {
	n := 0
	for k := i + 1; k < j; k++ {
		n += ops[k].A1 - ops[k].A0
	}
	return n
}

func buildHunk(ops []Op, start, end, context int) hunk {
	var hOps []Op
	if start > 0 && ops[start-1].Kind == OpEqual {
		e := ops[start-1]
		take := context
		if n := e.A1 - e.A0; take > n {
			take = n
		}
		hOps = append(hOps, Op{Kind: OpEqual, A0: e.A1 - take, A1: e.A1, B0: e.B1 - take, B1: e.B1})
	}
	hOps = append(hOps, ops[start:end+1]...)
	if end+1 < len(ops) && ops[end+1].Kind == OpEqual {
		e := ops[end+1]
		take := context
		if n := e.A1 - e.A0; take > n {
			take = n
		}
		hOps = append(hOps, Op{Kind: OpEqual, A0: e.A0, A1: e.A0 + take, B0: e.B0, B1: e.B0 + take})
	}
	return hunk{ops: hOps}
}

// findCFunction scans backward from the token before beforeIdx for
// the nearest line opening with an alphabetic, underscore, or '$'
// byte, skipping C++ access-specifier labels. The match is stripped
// of its terminator and trailing whitespace, truncated to
// cFunctionMaxLen bytes, and backed up to a valid UTF-8 boundary.
func findCFunction(src []byte, toks []Token, beforeIdx int) string {
	if beforeIdx > len(toks) {
		beforeIdx = len(toks)
	}
	for i := beforeIdx - 1; i >= 0; i-- {
		line := toks[i].bytes(src)
		if len(line) == 0 {
			continue
		}
		c := line[0]
		if c != '_' && c != '$' && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
			continue
		}
		body, _ := splitEOL(line)
		s := string(body)
		if strings.HasPrefix(s, "public:") || strings.HasPrefix(s, "private:") || strings.HasPrefix(s, "protected:") {
			continue
		}
		body = truncateUTF8(body, cFunctionMaxLen)
		return string(trimTrailingSpace(body))
	}
	return ""
}

// truncateUTF8 cuts b to at most n bytes, then drops any trailing
// partial rune so the result ends on a UTF-8 boundary.
func truncateUTF8(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	b = b[:n]
	for len(b) > 0 {
		if r, _ := utf8.DecodeLastRune(b); r != utf8.RuneError {
			break
		}
		b = b[:len(b)-1]
	}
	return b
}

func writeHunk(w io.Writer, a []byte, ta []Token, b []byte, tb []Token, h hunk, fn string) error {
	var aLen, bLen int
	for _, op := range h.ops {
		aLen += op.A1 - op.A0
		bLen += op.B1 - op.B0
	}
	aStart, bStart := h.ops[0].A0+1, h.ops[0].B0+1
	if aLen == 0 {
		aStart = h.ops[0].A0
	}
	if bLen == 0 {
		bStart = h.ops[0].B0
	}
	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", aStart, aLen, bStart, bLen)
	if fn != "" {
		header += " " + fn
	}
	if _, err := io.WriteString(w, header+"\n"); err != nil {
		return err
	}
	for _, op := range h.ops {
		switch op.Kind {
		case OpEqual:
			if err := writeLines(w, ' ', a, ta, op.A0, op.A1); err != nil {
				return err
			}
		case OpDelete:
			if err := writeLines(w, '-', a, ta, op.A0, op.A1); err != nil {
				return err
			}
		case OpInsert:
			if err := writeLines(w, '+', b, tb, op.B0, op.B1); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeLines writes src's lines [lo, hi) (full byte ranges, including
// terminators, as already produced by Tokenize) each prefixed with
// marker. A final line with no terminator at all gets the
// conventional "no newline at end of file" annotation on the
// following line.
func writeLines(w io.Writer, marker byte, src []byte, toks []Token, lo, hi int) error {
	for i := lo; i < hi; i++ {
		line := toks[i].bytes(src)
		if _, err := w.Write([]byte{marker}); err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		if len(line) > 0 && line[len(line)-1] == '\n' {
			continue
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return err
		}
		if len(line) == 0 || line[len(line)-1] != '\r' {
			if _, err := io.WriteString(w, "\\ No newline at end of file\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
