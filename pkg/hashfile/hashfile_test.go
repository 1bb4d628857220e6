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

package hashfile

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := map[string][]byte{
		"svn:log":    []byte("a commit message\nwith a newline"),
		"svn:author": []byte("jrandom"),
		"empty":      []byte(""),
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m))
	require.Contains(t, buf.String(), "END\n")

	got, err := Decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(m, got))
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := map[string][]byte{"b": []byte("2"), "a": []byte("1"), "c": []byte("3")}
	var buf1, buf2 bytes.Buffer
	require.NoError(t, Encode(&buf1, m))
	require.NoError(t, Encode(&buf2, m))
	require.Equal(t, buf1.Bytes(), buf2.Bytes())
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := Decode(bufio.NewReader(bytes.NewBufferString("K 3\nfoo\nV 1\n")))
	require.Error(t, err)
}

func TestDecodeRejectsMalformedField(t *testing.T) {
	_, err := Decode(bufio.NewReader(bytes.NewBufferString("X 3\nfoo\nEND\n")))
	require.Error(t, err)
}

func TestDirLogBaseThenIncrementalEdits(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDirLog(&buf)
	base := map[string][]byte{"a": []byte("file 1.0.r1/0"), "b": []byte("file 1.0.r1/0")}
	require.NoError(t, dl.DumpBase(base))
	require.NoError(t, dl.Set("c", []byte("dir 2.0.r1/0")))
	require.NoError(t, dl.Delete("a"))
	require.NoError(t, dl.Set("b", []byte("file 1.0.r2/50")))

	got, err := ReadDirLog(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{
		"b": []byte("file 1.0.r2/50"),
		"c": []byte("dir 2.0.r1/0"),
	}, got)
}

func TestDirLogWithEmptyBase(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDirLog(&buf)
	require.NoError(t, dl.DumpBase(map[string][]byte{}))
	require.NoError(t, dl.Set("only", []byte("file 1.0.r1/0")))

	got, err := ReadDirLog(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"only": []byte("file 1.0.r1/0")}, got)
}
