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

package svndiff

import "github.com/cs3org/revfs/pkg/errtypes"

// putVarint appends v to buf in svndiff's base-128 big-endian form:
// 7 bits per byte, most-significant group first, continuation
// signalled by the high bit.
func putVarint(buf []byte, v uint64) []byte {
	var tmp [10]byte
	i := len(tmp)
	i--
	tmp[i] = byte(v & 0x7f)
	v >>= 7
	for v > 0 {
		i--
		tmp[i] = byte(v&0x7f) | 0x80
		v >>= 7
	}
	return append(buf, tmp[i:]...)
}

// readVarint decodes one varint from buf starting at offset off,
// returning the value and the number of bytes consumed.
func readVarint(buf []byte, off int) (uint64, int, error) {
	var v uint64
	start := off
	for {
		if off >= len(buf) {
			return 0, 0, errtypes.Corrupt("truncated svndiff varint")
		}
		b := buf[off]
		off++
		v = (v << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, off - start, nil
		}
		if off-start > 10 {
			return 0, 0, errtypes.Corrupt("svndiff varint too long")
		}
	}
}
