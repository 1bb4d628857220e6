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

// Package reptree assembles the reconstructed byte stream of a
// representation by chaining svndiff windows across revisions back to
// a plain base.
package reptree

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/revfile"
)

// RevOpener opens a committed revision file for reading. *repo.Layout
// satisfies this.
type RevOpener interface {
	OpenRevFile(rev uint64) (*os.File, error)
}

// layer is one representation in a delta chain, ordered from the
// requested representation (index 0) down to an optional plain base
// at the tail.
type layer struct {
	rev         uint64
	payloadAt   int64 // absolute file offset of the svndiff-or-raw bytes
	size        uint64
	plain       bool
	expectedMD5 [16]byte // only meaningful at index 0
}

// buildChain follows DELTA base pointers from rep down to a PLAIN
// representation or an implicit empty base.
func buildChain(open RevOpener, rep revfile.Rep) ([]layer, error) {
	if rep.Mutable() {
		return nil, errtypes.InvalidArgument("cannot read a representation still owned by a transaction")
	}
	var chain []layer
	cur := rep
	first := true
	for {
		f, err := open.OpenRevFile(cur.Rev)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errtypes.NotFound(fmt.Sprintf("revision %d", cur.Rev))
			}
			return nil, err
		}
		// The section spans the header line plus the payload; 128
		// bytes is ample headroom for the longest DELTA header.
		r := bufio.NewReader(io.NewSectionReader(f, int64(cur.Offset), int64(cur.Size)+128))
		hdr, err := revfile.ReadPayloadHeader(r)
		f.Close()
		if err != nil {
			return nil, err
		}
		headerLen := payloadHeaderLen(hdr)
		l := layer{rev: cur.Rev, payloadAt: int64(cur.Offset) + int64(headerLen), size: cur.Size}
		if first {
			l.expectedMD5 = rep.MD5
			first = false
		}
		if hdr.Plain {
			l.plain = true
			chain = append(chain, l)
			return chain, nil
		}
		chain = append(chain, l)
		if !hdr.HasBase {
			// DELTA against the empty stream: implicit empty base,
			// chain ends here with no plain tail.
			return chain, nil
		}
		cur = revfile.Rep{Rev: hdr.BaseRev, Offset: hdr.BaseOffset, Size: hdr.BaseLength}
	}
}

// payloadHeaderLen returns the byte length of the PLAIN/DELTA header
// line reconstructed from its parsed form, used to locate where the
// svndiff-or-raw bytes begin.
func payloadHeaderLen(hdr revfile.PayloadHeader) int {
	if hdr.Plain {
		return len(revfile.WritePlainHeader())
	}
	return len(revfile.WriteDeltaHeader(hdr.HasBase, hdr.BaseRev, hdr.BaseOffset, hdr.BaseLength))
}
