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

package revfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// ID is a node identifier: the triple (node_id, copy_id, location).
// Location is either (Rev, Offset) for committed nodes or Txn for
// in-flight ones. String form is
// "<node_id>.<copy_id>.r<rev>/<offset>" when committed, or
// "<node_id>.<copy_id>.t<txn>" when transaction-local.
type ID struct {
	NodeID string
	CopyID string
	Rev    uint64
	Offset uint64
	Txn    string // non-empty iff transaction-local
}

// InTxn reports whether this id refers to a mutable, uncommitted node.
func (id ID) InTxn() bool { return id.Txn != "" }

// String renders the id in its on-disk textual form.
func (id ID) String() string {
	if id.InTxn() {
		return fmt.Sprintf("%s.%s.t%s", id.NodeID, id.CopyID, id.Txn)
	}
	return fmt.Sprintf("%s.%s.r%d/%d", id.NodeID, id.CopyID, id.Rev, id.Offset)
}

// Equal compares node_id, copy_id, and location; all three
// components must match.
func (id ID) Equal(other ID) bool {
	return id.NodeID == other.NodeID && id.CopyID == other.CopyID &&
		id.InTxn() == other.InTxn() &&
		(id.InTxn() && id.Txn == other.Txn || !id.InTxn() && id.Rev == other.Rev && id.Offset == other.Offset)
}

// ParseID parses a node identifier from its string form.
func ParseID(s string) (ID, error) {
	first := strings.IndexByte(s, '.')
	if first < 0 {
		return ID{}, errtypes.Corrupt("malformed node id: " + s)
	}
	rest := s[first+1:]
	second := strings.IndexByte(rest, '.')
	if second < 0 {
		return ID{}, errtypes.Corrupt("malformed node id: " + s)
	}
	nodeID, copyID, loc := s[:first], rest[:second], rest[second+1:]
	if nodeID == "" || copyID == "" || loc == "" {
		return ID{}, errtypes.Corrupt("malformed node id: " + s)
	}
	switch loc[0] {
	case 't':
		return ID{NodeID: nodeID, CopyID: copyID, Txn: loc[1:]}, nil
	case 'r':
		slash := strings.IndexByte(loc, '/')
		if slash < 0 {
			return ID{}, errtypes.Corrupt("malformed node id: " + s)
		}
		rev, err := strconv.ParseUint(loc[1:slash], 10, 64)
		if err != nil {
			return ID{}, errtypes.Corrupt("malformed node id: " + s)
		}
		off, err := strconv.ParseUint(loc[slash+1:], 10, 64)
		if err != nil {
			return ID{}, errtypes.Corrupt("malformed node id: " + s)
		}
		return ID{NodeID: nodeID, CopyID: copyID, Rev: rev, Offset: off}, nil
	default:
		return ID{}, errtypes.Corrupt("malformed node id: " + s)
	}
}
