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

// Package hashfile implements the conventional hash-serialized text
// format used for unversioned revision properties and (as a base
// snapshot) directory entries: "K <len>\n<key>\nV <len>\n<value>\n"
// pairs terminated by "END\n".
package hashfile

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// Encode serializes m in a deterministic (sorted-key) order, followed
// by the END terminator.
func Encode(w io.Writer, m map[string][]byte) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeEntry(w, k, m[k]); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "END\n")
	return err
}

func writeEntry(w io.Writer, key string, val []byte) error {
	if _, err := fmt.Fprintf(w, "K %d\n%s\n", len(key), key); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "V %d\n%s\n", len(val), val)
	return err
}

// Decode reads a full hash-serialized file up to and including its
// END terminator.
func Decode(r *bufio.Reader) (map[string][]byte, error) {
	m := map[string][]byte{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, errtypes.Corrupt("truncated hash file")
		}
		if line == "END\n" {
			return m, nil
		}
		key, err := readField(r, line, 'K')
		if err != nil {
			return nil, err
		}
		vline, err := r.ReadString('\n')
		if err != nil {
			return nil, errtypes.Corrupt("truncated hash file")
		}
		val, err := readField(r, vline, 'V')
		if err != nil {
			return nil, err
		}
		m[string(key)] = val
	}
}

// readField parses one "<tag> <len>\n<data>\n" field, where line is
// the already-read "<tag> <len>\n" line.
func readField(r *bufio.Reader, line string, tag byte) ([]byte, error) {
	if len(line) < 3 || line[0] != tag || line[1] != ' ' {
		return nil, errtypes.Corrupt("malformed hash file field")
	}
	n, err := strconv.Atoi(line[2 : len(line)-1])
	if err != nil || n < 0 {
		return nil, errtypes.Corrupt("malformed hash file field length")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errtypes.Corrupt("truncated hash file field data")
	}
	nl := make([]byte, 1)
	if _, err := io.ReadFull(r, nl); err != nil || nl[0] != '\n' {
		return nil, errtypes.Corrupt("malformed hash file field terminator")
	}
	return buf, nil
}
