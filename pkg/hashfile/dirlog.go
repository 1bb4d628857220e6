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

package hashfile

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// DirLog is a mutable directory's append-only edit log:
// the first write dumps the inherited hash as a terminated hash
// (Encode), subsequent edits append "K <len>\n<name>\nV <len>\n<val>\n"
// (add/modify) or "D <len>\n<name>\n" (delete).
type DirLog struct {
	w io.Writer
}

// NewDirLog wraps w for appending edits.
func NewDirLog(w io.Writer) *DirLog { return &DirLog{w: w} }

// DumpBase writes the inherited entries hash as the log's base
// snapshot. Called exactly once, before any Set/Delete.
func (d *DirLog) DumpBase(entries map[string][]byte) error {
	return Encode(d.w, entries)
}

// Set appends an add/modify edit for name.
func (d *DirLog) Set(name string, val []byte) error {
	return writeEntry(d.w, name, val)
}

// Delete appends a delete edit for name.
func (d *DirLog) Delete(name string) error {
	_, err := fmt.Fprintf(d.w, "D %d\n%s\n", len(name), name)
	return err
}

// ReadDirLog consumes the base hash and then applies incremental
// edits in order, returning the final entries map.
func ReadDirLog(r *bufio.Reader) (map[string][]byte, error) {
	entries, err := Decode(r)
	if err != nil {
		return nil, err
	}
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, errtypes.Corrupt("truncated directory log")
		}
		switch {
		case len(line) >= 2 && line[0] == 'K' && line[1] == ' ':
			key, err := readField(r, line, 'K')
			if err != nil {
				return nil, err
			}
			vline, err := r.ReadString('\n')
			if err != nil {
				return nil, errtypes.Corrupt("truncated directory log")
			}
			val, err := readField(r, vline, 'V')
			if err != nil {
				return nil, err
			}
			entries[string(key)] = val
		case len(line) >= 2 && line[0] == 'D' && line[1] == ' ':
			key, err := readField(r, line, 'D')
			if err != nil {
				return nil, err
			}
			delete(entries, string(key))
		default:
			return nil, errtypes.Corrupt("malformed directory log edit: " + line)
		}
	}
}
