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

// Apply reproduces one window's target bytes. source is the window's
// already-resolved source view: source[k] corresponds to absolute
// source offset SourceViewOffset+k, whichever layer supplied the
// bytes. Apply never panics; malformed instructions surface as
// errtypes.Corrupt.
func Apply(win Window, source []byte) ([]byte, error) {
	out := make([]byte, 0, win.TargetViewLength)
	dataOff := 0
	for _, op := range win.Instructions {
		switch op.Kind {
		case OpCopyFromSource:
			end := op.Offset + op.Length
			if end > uint64(len(source)) {
				return nil, errtypes.Corrupt("svndiff source copy beyond resolved source view")
			}
			out = append(out, source[op.Offset:end]...)
		case OpCopyFromTarget:
			if op.Offset >= uint64(len(out)) {
				return nil, errtypes.Corrupt("svndiff target copy before current output")
			}
			// Target copies may overlap their own source range (RLE
			// expansion), so copy byte by byte rather than via a
			// single append of a slice that might still be growing.
			for i := uint64(0); i < op.Length; i++ {
				out = append(out, out[op.Offset+i])
			}
		case OpInsert:
			end := dataOff + int(op.Length)
			if end > len(win.InstructionData) {
				return nil, errtypes.Corrupt("svndiff insert beyond instruction data")
			}
			out = append(out, win.InstructionData[dataOff:end]...)
			dataOff = end
		default:
			return nil, errtypes.Corrupt("invalid svndiff instruction opcode")
		}
	}
	if uint64(len(out)) != win.TargetViewLength {
		return nil, errtypes.Corrupt("svndiff window length disagreement")
	}
	return out, nil
}
