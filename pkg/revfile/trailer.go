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
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// trailerWindow is the number of trailing bytes read to locate the
// trailer line.
const trailerWindow = 64

// Trailer is the parsed last line of a revision file.
type Trailer struct {
	RootOffset    uint64
	ChangesOffset uint64
}

// ReadTrailer seeks to the last trailerWindow bytes of a revision
// file opened at ra and parses the trailer line.
func ReadTrailer(ra io.ReaderAt, size int64, path string) (Trailer, error) {
	n := int64(trailerWindow)
	if size < n {
		n = size
	}
	buf := make([]byte, n)
	if _, err := ra.ReadAt(buf, size-n); err != nil && err != io.EOF {
		return Trailer{}, err
	}
	if len(buf) == 0 || buf[len(buf)-1] != '\n' {
		return Trailer{}, errtypes.Corrupt(path)
	}
	// Scan backward, skipping the final newline, to the previous '\n'.
	end := len(buf) - 1
	start := bytes.LastIndexByte(buf[:end], '\n')
	line := string(buf[start+1 : end])
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return Trailer{}, errtypes.Corrupt(path)
	}
	root, err1 := strconv.ParseUint(line[:idx], 10, 64)
	changes, err2 := strconv.ParseUint(line[idx+1:], 10, 64)
	if err1 != nil || err2 != nil {
		return Trailer{}, errtypes.Corrupt(path)
	}
	return Trailer{RootOffset: root, ChangesOffset: changes}, nil
}

// WriteTrailer writes the trailer line, preceded by a blank line:
// "\n<root_offset> <changes_offset>\n".
func WriteTrailer(w io.Writer, t Trailer) error {
	_, err := fmt.Fprintf(w, "\n%d %d\n", t.RootOffset, t.ChangesOffset)
	return err
}
