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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeApplyRoundTrip(t *testing.T) {
	cases := []struct {
		name           string
		source, target string
	}{
		{"empty to empty", "", ""},
		{"empty source", "", "hello world"},
		{"empty target", "hello world", ""},
		{"identical", "the quick brown fox", "the quick brown fox"},
		{"small edit", "the quick brown fox jumps over the lazy dog", "the quick brown FOX jumps over the lazy dog"},
		{"append", "hello\n", "hello\nworld\n"},
		{"prepend", "world\n", "hello\nworld\n"},
		{"totally different", "aaaaaaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbbbbbb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			win := Encode([]byte(tc.source), []byte(tc.target))
			require.Equal(t, uint64(len(tc.target)), win.TargetViewLength)

			srcEnd := win.SourceViewOffset + win.SourceViewLength
			require.LessOrEqual(t, srcEnd, uint64(len(tc.source)))
			srcView := []byte(tc.source)[win.SourceViewOffset:srcEnd]

			out, err := Apply(win, srcView)
			require.NoError(t, err)
			require.Equal(t, tc.target, string(out))
		})
	}
}

func TestWindowCodecRoundTrip(t *testing.T) {
	win := Encode([]byte("the quick brown fox"), []byte("the quick brown FOX jumps"))

	var buf bytes.Buffer
	require.NoError(t, WriteWindow(&buf, win))

	r := bufio.NewReader(&buf)
	got, err := ReadWindow(r)
	require.NoError(t, err)
	require.Equal(t, win.SourceViewOffset, got.SourceViewOffset)
	require.Equal(t, win.SourceViewLength, got.SourceViewLength)
	require.Equal(t, win.TargetViewLength, got.TargetViewLength)
	require.Equal(t, win.Instructions, got.Instructions)
	require.Equal(t, win.InstructionData, got.InstructionData)

	// A second read against the exhausted reader reports clean EOF,
	// the signal callers iterating windows rely on.
	_, err = ReadWindow(r)
	require.ErrorIs(t, err, io.EOF)
}

func TestMagicRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMagic(&buf))
	v, err := ReadMagic(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, byte(SupportedVersion), v)
}

func TestReadMagicRejectsUnsupportedVersion(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'S', 'V', 'N', 1})
	_, err := ReadMagic(bufio.NewReader(buf))
	require.Error(t, err)
}

func TestReadMagicRejectsBadHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'X', 'X', 'X', 0})
	_, err := ReadMagic(bufio.NewReader(buf))
	require.Error(t, err)
}

func TestApplySourceCopyPastEndIsCorrupt(t *testing.T) {
	win := Window{
		TargetViewLength: 5,
		Instructions:     []Op{{Kind: OpCopyFromSource, Offset: 0, Length: 5}},
	}
	_, err := Apply(win, []byte("ab")) // only 2 bytes of source resolved
	require.Error(t, err)
}

func TestApplyTargetCopyOverlappingSelf(t *testing.T) {
	// Insert "a", then RLE-expand it to "aaaa" via a target copy that
	// reads back over bytes it is still producing.
	win := Window{
		TargetViewLength: 4,
		Instructions: []Op{
			{Kind: OpInsert, Length: 1},
			{Kind: OpCopyFromTarget, Offset: 0, Length: 3},
		},
		InstructionData: []byte("a"),
	}
	out, err := Apply(win, nil)
	require.NoError(t, err)
	require.Equal(t, "aaaa", string(out))
}

func TestApplyLengthDisagreementIsCorrupt(t *testing.T) {
	win := Window{
		TargetViewLength: 10,
		Instructions:     []Op{{Kind: OpInsert, Length: 3}},
		InstructionData:  []byte("abc"),
	}
	_, err := Apply(win, nil)
	require.Error(t, err)
}

func TestSrcOps(t *testing.T) {
	w := Window{Instructions: []Op{{Kind: OpInsert, Length: 1}}}
	require.False(t, w.SrcOps())
	w.Instructions = append(w.Instructions, Op{Kind: OpCopyFromSource, Length: 1})
	require.True(t, w.SrcOps())
}

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 127, 128, 16383, 16384, 1 << 40}
	for _, v := range values {
		buf := putVarint(nil, v)
		got, n, err := readVarint(buf, 0)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}
