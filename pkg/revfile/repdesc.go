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

// Package revfile implements the on-disk revision file codec:
// header blocks of `name: value` lines, representation descriptors,
// the changed-path log, and the fixed trailer.
package revfile

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// Rep is a representation descriptor. A mutable (in-transaction)
// rep carries Txn instead of Rev and a Rev value of 0; Mutable
// reports which form it is.
type Rep struct {
	Rev          uint64
	Txn          string // non-empty iff mutable
	Offset       uint64
	Size         uint64
	ExpandedSize uint64
	MD5          [16]byte
}

// Mutable reports whether this descriptor belongs to an in-flight
// transaction rather than a committed revision.
func (r Rep) Mutable() bool { return r.Txn != "" }

// String renders a committed descriptor as
// "<rev> <offset> <size> <expanded_size> <hex_md5>", or "-1" for a
// mutable descriptor belonging to a transaction (props/dir reps carry
// no byte-level fields once mutable).
func (r Rep) String() string {
	if r.Mutable() {
		return "-1"
	}
	return fmt.Sprintf("%d %d %d %d %s", r.Rev, r.Offset, r.Size, r.ExpandedSize, hex.EncodeToString(r.MD5[:]))
}

// ParseRep parses a representation descriptor line's value (the part
// after "text: " or "props: "). txn is the owning transaction id, used
// to construct the mutable sentinel when the token is "-1".
func ParseRep(s, txn string) (Rep, error) {
	s = strings.TrimSpace(s)
	if s == "-1" {
		return Rep{Txn: txn}, nil
	}
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return Rep{}, errtypes.Corrupt("malformed representation descriptor: " + s)
	}
	rev, err1 := strconv.ParseUint(fields[0], 10, 64)
	off, err2 := strconv.ParseUint(fields[1], 10, 64)
	size, err3 := strconv.ParseUint(fields[2], 10, 64)
	exp, err4 := strconv.ParseUint(fields[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Rep{}, errtypes.Corrupt("malformed representation descriptor: " + s)
	}
	if len(fields[4]) != 32 {
		return Rep{}, errtypes.Corrupt("malformed representation md5: " + s)
	}
	var md5 [16]byte
	if _, err := hex.Decode(md5[:], []byte(strings.ToLower(fields[4]))); err != nil {
		return Rep{}, errtypes.Corrupt("malformed representation md5: " + s)
	}
	return Rep{Rev: rev, Offset: off, Size: size, ExpandedSize: exp, MD5: md5}, nil
}
