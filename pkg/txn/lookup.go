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
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/repo"
	"github.com/cs3org/revfs/pkg/reptree"
	"github.com/cs3org/revfs/pkg/revfile"
)

// Lookup resolves path against the committed tree at rev, returning
// the node-revision found there. Used both to seed a copy source and
// by read-only callers (cmd/revfsutil's cat subcommand) that
// never open a transaction at all.
func Lookup(l *repo.Layout, rev uint64, path string) (revfile.NodeRev, error) {
	f, err := l.OpenRevFile(rev)
	if err != nil {
		return revfile.NodeRev{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return revfile.NodeRev{}, err
	}
	tr, err := revfile.ReadTrailer(f, st.Size(), l.RevPath(rev))
	f.Close()
	if err != nil {
		return revfile.NodeRev{}, err
	}

	cur, err := readNodeRevAt(l, rev, tr.RootOffset)
	if err != nil {
		return revfile.NodeRev{}, err
	}
	clean := strings.Trim(path, "/")
	if clean == "" {
		return cur, nil
	}
	for i, name := range strings.Split(clean, "/") {
		if cur.Kind != revfile.KindDir {
			return revfile.NodeRev{}, errtypes.InvalidArgument("not a directory: " + name)
		}
		if cur.Text == nil {
			return revfile.NodeRev{}, errtypes.NotFound(path)
		}
		raw, err := reptree.Read(l, *cur.Text)
		if err != nil {
			return revfile.NodeRev{}, err
		}
		entries, err := decodeHash(raw)
		if err != nil {
			return revfile.NodeRev{}, err
		}
		val, ok := entries[name]
		if !ok {
			return revfile.NodeRev{}, errtypes.NotFound("/" + strings.Join(strings.Split(clean, "/")[:i+1], "/"))
		}
		ref, err := decodeDirEntry(string(val))
		if err != nil {
			return revfile.NodeRev{}, err
		}
		cur, err = readNodeRevAt(l, ref.id.Rev, ref.id.Offset)
		if err != nil {
			return revfile.NodeRev{}, err
		}
	}
	return cur, nil
}
