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
	"crypto/md5"
)

// WriteEmptyRootRevision encodes revision 0: a single empty root
// directory that exists from repository creation. Returns the encoded
// bytes.
func WriteEmptyRootRevision() []byte {
	var buf bytes.Buffer

	dirContents := "END\n"
	sum := md5.Sum([]byte(dirContents))

	repOffset := uint64(buf.Len())
	buf.WriteString(WritePlainHeader())
	buf.WriteString(dirContents)
	buf.WriteString(EndRep)

	rootID := ID{NodeID: "0", CopyID: "0", Rev: 0, Offset: 0}
	nodeRevOffset := uint64(buf.Len())
	rep := Rep{Rev: 0, Offset: repOffset, Size: uint64(len(dirContents)), ExpandedSize: uint64(len(dirContents)), MD5: sum}
	nr := NodeRev{
		ID:          rootID,
		Kind:        KindDir,
		Count:       0,
		Text:        &rep,
		CreatedPath: "/",
		CopyRoot:    CopyFrom{Rev: 0, Path: "/"},
	}
	_ = WriteNodeRevHeader(&buf, nr)

	// rootID.Offset above is a placeholder; the node-rev's real
	// offset is nodeRevOffset. Rewrite the id by re-encoding with the
	// correct offset, matching how commit assigns a node's offset
	// before emitting the header.
	out := buf.Bytes()[:nodeRevOffset]
	nr.ID.Offset = nodeRevOffset
	var tail bytes.Buffer
	_ = WriteNodeRevHeader(&tail, nr)
	out = append(out, tail.Bytes()...)

	changesOffset := uint64(len(out))
	_ = WriteTrailer(&bytesWriter{&out}, Trailer{RootOffset: nodeRevOffset, ChangesOffset: changesOffset})
	return out
}

type bytesWriter struct{ buf *[]byte }

func (w *bytesWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
