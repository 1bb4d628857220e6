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

package txn

import "github.com/cs3org/revfs/pkg/revfile"

// ChooseDeltaBase returns how many predecessor links back to walk
// before diffing new content: with N the new node's predecessor
// count, N' = N & (N-1) clears the
// lowest set bit, and the base sits N-N' links behind the new node
// (a result of 1 is the immediate predecessor). This keeps delta chains logarithmic in length instead
// of growing one layer per edit.
func ChooseDeltaBase(predCount int) int {
	if predCount <= 0 {
		return 0
	}
	n := uint64(predCount)
	nPrime := n & (n - 1)
	return int(n - nPrime)
}

// walkPred returns the text representation of the ancestor steps
// links behind the new node whose immediate predecessor is start
// (steps == 1 is start itself; a chain that ends early yields its
// oldest node), to be used as the delta base for a new write.
// steps == 0 means "write PLAIN".
func walkPred(l nodeRevReader, start *revfile.ID, steps int) (*revfile.Rep, error) {
	if steps <= 0 || start == nil {
		return nil, nil
	}
	cur := *start
	for i := 1; i < steps; i++ {
		nr, err := l.nodeRevAt(cur.Rev, cur.Offset)
		if err != nil {
			return nil, err
		}
		if nr.Pred == nil {
			return nr.Text, nil
		}
		cur = *nr.Pred
	}
	nr, err := l.nodeRevAt(cur.Rev, cur.Offset)
	if err != nil {
		return nil, err
	}
	return nr.Text, nil
}

// nodeRevReader is the minimal seam walkPred needs, satisfied by
// *repo.Layout through the adapter in mutate.go.
type nodeRevReader interface {
	nodeRevAt(rev, offset uint64) (revfile.NodeRev, error)
}
