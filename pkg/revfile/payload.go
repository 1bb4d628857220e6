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
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// PayloadHeader is the parsed first line of a representation
// payload: either PLAIN, a DELTA against the empty stream, or a
// DELTA against an earlier base.
type PayloadHeader struct {
	Plain      bool
	HasBase    bool
	BaseRev    uint64
	BaseOffset uint64
	BaseLength uint64
}

// ReadPayloadHeader reads and classifies the first line of a
// representation.
func ReadPayloadHeader(r *bufio.Reader) (PayloadHeader, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return PayloadHeader{}, errtypes.Corrupt("truncated representation payload header")
	}
	line = strings.TrimSuffix(line, "\n")
	switch {
	case line == "PLAIN":
		return PayloadHeader{Plain: true}, nil
	case line == "DELTA":
		return PayloadHeader{}, nil
	case strings.HasPrefix(line, "DELTA "):
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return PayloadHeader{}, errtypes.Corrupt("malformed DELTA header: " + line)
		}
		rev, err1 := strconv.ParseUint(fields[1], 10, 64)
		off, err2 := strconv.ParseUint(fields[2], 10, 64)
		length, err3 := strconv.ParseUint(fields[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return PayloadHeader{}, errtypes.Corrupt("malformed DELTA header: " + line)
		}
		return PayloadHeader{HasBase: true, BaseRev: rev, BaseOffset: off, BaseLength: length}, nil
	default:
		return PayloadHeader{}, errtypes.Corrupt("malformed representation payload header: " + line)
	}
}

// WritePlainHeader writes the "PLAIN\n" payload header.
func WritePlainHeader() string { return "PLAIN\n" }

// WriteDeltaHeader writes the "DELTA\n" (against the empty stream) or
// "DELTA <rev> <off> <len>\n" (against an earlier base) payload
// header.
func WriteDeltaHeader(hasBase bool, rev, off, length uint64) string {
	if !hasBase {
		return "DELTA\n"
	}
	return fmt.Sprintf("DELTA %d %d %d\n", rev, off, length)
}

// EndRep is the cosmetic framing line appended after every
// representation payload.
const EndRep = "ENDREP\n"
