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

// suffixLinesToKeep bounds how much of the identical tail between two
// inputs is left un-trimmed before the core comparison runs, so a
// unified diff still has real context lines to print near a hunk that
// sits close to the end of the file.
const suffixLinesToKeep = 50

// OpKind classifies one element of an edit script.
type OpKind int

const (
	OpEqual OpKind = iota
	OpDelete
	OpInsert
)

// Op is a contiguous run of tokens handled the same way: present in
// both inputs (OpEqual), only in a (OpDelete), or only in b (OpInsert).
// A0:A1 and B0:B1 are token index ranges into the respective inputs.
type Op struct {
	Kind   OpKind
	A0, A1 int
	B0, B1 int
}

// Compute returns the edit script turning a into b under opt.
func Compute(a, b []byte, opt Options) []Op {
	ta := Tokenize(a, opt)
	tb := Tokenize(b, opt)
	return computeTokens(a, ta, b, tb, opt)
}

func computeTokens(a []byte, ta []Token, b []byte, tb []Token, opt Options) []Op {
	prefix, suffix := trimCommon(a, ta, b, tb, opt)

	var ops []Op
	if prefix > 0 {
		ops = append(ops, Op{Kind: OpEqual, A0: 0, A1: prefix, B0: 0, B1: prefix})
	}

	midA := ta[prefix : len(ta)-suffix]
	midB := tb[prefix : len(tb)-suffix]
	mid := lcsDiff(a, midA, b, midB, opt)
	for _, op := range mid {
		op.A0 += prefix
		op.A1 += prefix
		op.B0 += prefix
		op.B1 += prefix
		ops = appendMerging(ops, op)
	}

	if suffix > 0 {
		ops = appendMerging(ops, Op{Kind: OpEqual, A0: len(ta) - suffix, A1: len(ta), B0: len(tb) - suffix, B1: len(tb)})
	}
	return ops
}

func appendMerging(ops []Op, op Op) []Op {
	if op.A1 == op.A0 && op.B1 == op.B0 {
		return ops
	}
	if n := len(ops); n > 0 && ops[n-1].Kind == op.Kind && ops[n-1].A1 == op.A0 && ops[n-1].B1 == op.B0 {
		ops[n-1].A1 = op.A1
		ops[n-1].B1 = op.B1
		return ops
	}
	return append(ops, op)
}

func trimCommon(a []byte, ta []Token, b []byte, tb []Token, opt Options) (prefix, suffix int) {
	n := len(ta)
	if len(tb) < n {
		n = len(tb)
	}
	for prefix < n && equalTokens(a, ta[prefix], b, tb[prefix], opt) {
		prefix++
	}
	n2 := len(ta) - prefix
	if rem := len(tb) - prefix; rem < n2 {
		n2 = rem
	}
	for suffix < n2 && equalTokens(a, ta[len(ta)-1-suffix], b, tb[len(tb)-1-suffix], opt) {
		suffix++
	}
	if suffix > suffixLinesToKeep {
		suffix -= suffixLinesToKeep
	} else {
		suffix = 0
	}
	return
}

// lcsDiff computes the edit script between two (already prefix/suffix
// trimmed) token slices with a classic O(n*m) longest-common-
// subsequence table. A Myers-style O(ND) pass would win on very large
// inputs, but prefix/suffix trimming keeps the mid section small for
// the revision-sized texts this engine sees.
func lcsDiff(a []byte, ta []Token, b []byte, tb []Token, opt Options) []Op {
	n, m := len(ta), len(tb)
	lengths := make([][]int32, n+1)
	for i := range lengths {
		lengths[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if equalTokens(a, ta[i], b, tb[j], opt) {
				lengths[i][j] = lengths[i+1][j+1] + 1
			} else if lengths[i+1][j] >= lengths[i][j+1] {
				lengths[i][j] = lengths[i+1][j]
			} else {
				lengths[i][j] = lengths[i][j+1]
			}
		}
	}

	var ops []Op
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case equalTokens(a, ta[i], b, tb[j], opt):
			ops = appendMerging(ops, Op{Kind: OpEqual, A0: i, A1: i + 1, B0: j, B1: j + 1})
			i++
			j++
		case lengths[i+1][j] >= lengths[i][j+1]:
			ops = appendMerging(ops, Op{Kind: OpDelete, A0: i, A1: i + 1, B0: j, B1: j})
			i++
		default:
			ops = appendMerging(ops, Op{Kind: OpInsert, A0: i, A1: i, B0: j, B1: j + 1})
			j++
		}
	}
	for i < n {
		ops = appendMerging(ops, Op{Kind: OpDelete, A0: i, A1: i + 1, B0: j, B1: j})
		i++
	}
	for j < m {
		ops = appendMerging(ops, Op{Kind: OpInsert, A0: i, A1: i, B0: j, B1: j + 1})
		j++
	}
	return ops
}
