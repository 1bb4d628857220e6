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

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// SupportedVersion is the only svndiff version this engine decodes:
// svndiff0. Later compressed versions are recognized and rejected,
// not silently mis-parsed.
const SupportedVersion = 0

// ReadMagic reads and validates the four-byte stream header
// ("S V N <ver>") and returns the version byte.
func ReadMagic(r *bufio.Reader) (byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, errtypes.Corrupt("truncated svndiff magic")
	}
	if hdr[0] != Magic[0] || hdr[1] != Magic[1] || hdr[2] != Magic[2] {
		return 0, errtypes.Corrupt("not an svndiff stream")
	}
	if hdr[3] != SupportedVersion {
		return hdr[3], errtypes.Corrupt(fmt.Sprintf("unsupported svndiff version %d", hdr[3]))
	}
	return hdr[3], nil
}

// WriteMagic writes the stream header for svndiff0.
func WriteMagic(w io.Writer) error {
	_, err := w.Write([]byte{Magic[0], Magic[1], Magic[2], SupportedVersion})
	return err
}

// ReadWindow reads one window from r. io.EOF (with zero bytes read)
// signals the end of the stream to callers iterating windows.
func ReadWindow(r *bufio.Reader) (Window, error) {
	sourceOff, err := readWindowVarint(r)
	if err == io.EOF {
		return Window{}, io.EOF
	}
	if err != nil {
		return Window{}, err
	}
	sourceLen, err := readWindowVarint(r)
	if err != nil {
		return Window{}, corruptIfEOF(err)
	}
	targetLen, err := readWindowVarint(r)
	if err != nil {
		return Window{}, corruptIfEOF(err)
	}
	instrLen, err := readWindowVarint(r)
	if err != nil {
		return Window{}, corruptIfEOF(err)
	}
	dataLen, err := readWindowVarint(r)
	if err != nil {
		return Window{}, corruptIfEOF(err)
	}

	instrBuf := make([]byte, instrLen)
	if _, err := io.ReadFull(r, instrBuf); err != nil {
		return Window{}, errtypes.Corrupt("truncated svndiff instruction section")
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return Window{}, errtypes.Corrupt("truncated svndiff data section")
	}

	ops, err := decodeInstructions(instrBuf)
	if err != nil {
		return Window{}, err
	}

	return Window{
		SourceViewOffset: sourceOff,
		SourceViewLength: sourceLen,
		TargetViewLength: targetLen,
		Instructions:     ops,
		InstructionData:  data,
	}, nil
}

func readWindowVarint(r *bufio.Reader) (uint64, error) {
	var v uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v = (v << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

func corruptIfEOF(err error) error {
	if err == io.EOF {
		return errtypes.Corrupt("truncated svndiff window header")
	}
	return err
}

func decodeInstructions(buf []byte) ([]Op, error) {
	var ops []Op
	off := 0
	for off < len(buf) {
		b := buf[off]
		off++
		kind := OpKind((b >> 6) & 0x3)
		if kind == 3 {
			return nil, errtypes.Corrupt("invalid svndiff instruction opcode")
		}
		length := uint64(b & 0x3f)
		if length == 0 {
			l, n, err := readVarint(buf, off)
			if err != nil {
				return nil, err
			}
			length = l
			off += n
		}
		var offset uint64
		if kind == OpCopyFromSource || kind == OpCopyFromTarget {
			o, n, err := readVarint(buf, off)
			if err != nil {
				return nil, err
			}
			offset = o
			off += n
		}
		ops = append(ops, Op{Kind: kind, Offset: offset, Length: length})
	}
	return ops, nil
}

func encodeInstructions(ops []Op) []byte {
	var buf []byte
	for _, op := range ops {
		inline := op.Length <= 0x3f
		b := byte(op.Kind) << 6
		if inline {
			b |= byte(op.Length)
		}
		buf = append(buf, b)
		if !inline {
			buf = putVarint(buf, op.Length)
		}
		if op.Kind == OpCopyFromSource || op.Kind == OpCopyFromTarget {
			buf = putVarint(buf, op.Offset)
		}
	}
	return buf
}

// WriteWindow encodes and writes one window to w.
func WriteWindow(w io.Writer, win Window) error {
	instr := encodeInstructions(win.Instructions)

	var hdr []byte
	hdr = putVarint(hdr, win.SourceViewOffset)
	hdr = putVarint(hdr, win.SourceViewLength)
	hdr = putVarint(hdr, win.TargetViewLength)
	hdr = putVarint(hdr, uint64(len(instr)))
	hdr = putVarint(hdr, uint64(len(win.InstructionData)))

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if _, err := w.Write(instr); err != nil {
		return err
	}
	_, err := w.Write(win.InstructionData)
	return err
}
