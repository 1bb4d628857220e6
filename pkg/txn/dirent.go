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

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/hashfile"
	"github.com/cs3org/revfs/pkg/revfile"
)

func decodeHash(raw []byte) (map[string][]byte, error) {
	return hashfile.Decode(bufio.NewReader(bytes.NewReader(raw)))
}

// encodeDirEntry renders a directory entry's value as "<kind> <id>",
// the same shape a committed directory representation stores it in.
func encodeDirEntry(ref dirEntryRef) string {
	return string(ref.kind) + " " + ref.id.String()
}

func decodeDirEntry(s string) (dirEntryRef, error) {
	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return dirEntryRef{}, errtypes.Corrupt("malformed directory entry: " + s)
	}
	kind := revfile.Kind(s[:idx])
	if kind != revfile.KindFile && kind != revfile.KindDir {
		return dirEntryRef{}, errtypes.Corrupt("malformed directory entry kind: " + s)
	}
	id, err := revfile.ParseID(s[idx+1:])
	if err != nil {
		return dirEntryRef{}, err
	}
	return dirEntryRef{id: id, kind: kind}, nil
}
