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

// blockSize is the granularity at which Encode anchors matches
// against the source. Smaller values find more matches at the cost of
// a larger instruction stream; this is an implementation freedom, not
// part of the wire format.
const blockSize = 16

// Encode produces a single self-contained window that reconstructs
// target, copying from source wherever an exact blockSize-aligned
// match is found and falling back to literal inserts elsewhere. It
// never emits OpCopyFromTarget; this keeps the encoder simple while
// the decoder (Apply) still supports it for windows produced
// elsewhere (e.g. by a future RLE-aware encoder).
func Encode(source, target []byte) Window {
	anchors := make(map[string][]int)
	for i := 0; i+blockSize <= len(source); i += blockSize {
		key := string(source[i : i+blockSize])
		anchors[key] = append(anchors[key], i)
	}

	var ops []Op
	var data []byte
	pending := 0 // length of the run of literal bytes not yet flushed, ending at pos

	flush := func(pos int) {
		if pending == 0 {
			return
		}
		ops = append(ops, Op{Kind: OpInsert, Length: uint64(pending)})
		data = append(data, target[pos-pending:pos]...)
		pending = 0
	}

	pos := 0
	for pos < len(target) {
		if pos+blockSize <= len(target) {
			key := string(target[pos : pos+blockSize])
			if cands, ok := anchors[key]; ok {
				srcStart := cands[0]
				matchLen := blockSize
				for srcStart+matchLen < len(source) && pos+matchLen < len(target) &&
					source[srcStart+matchLen] == target[pos+matchLen] {
					matchLen++
				}
				flush(pos)
				ops = append(ops, Op{Kind: OpCopyFromSource, Offset: uint64(srcStart), Length: uint64(matchLen)})
				pos += matchLen
				continue
			}
		}
		pending++
		pos++
	}
	flush(pos)

	return Window{
		SourceViewOffset: 0,
		SourceViewLength: uint64(len(source)),
		TargetViewLength: uint64(len(target)),
		Instructions:     ops,
		InstructionData:  data,
	}
}
