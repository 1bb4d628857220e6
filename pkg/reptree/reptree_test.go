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

package reptree

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/revfile"
	"github.com/cs3org/revfs/pkg/svndiff"
	"github.com/stretchr/testify/require"
)

// dirOpener is a RevOpener backed by a plain directory of numbered
// files, standing in for a repo.Layout in these tests.
type dirOpener struct{ dir string }

func (d dirOpener) OpenRevFile(rev uint64) (*os.File, error) {
	return os.Open(filepath.Join(d.dir, fmt.Sprintf("%d", rev)))
}

func writeRevFile(t *testing.T, dir string, rev uint64, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d", rev)), data, 0600))
}

func TestReadPlainRepresentation(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello\n")
	writeRevFile(t, dir, 1, append([]byte(revfile.WritePlainHeader()), content...))

	sum := md5.Sum(content)
	rep := revfile.Rep{Rev: 1, Offset: 0, Size: uint64(len(content)), ExpandedSize: uint64(len(content)), MD5: sum}

	got, err := Read(dirOpener{dir}, rep)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestReadDeltaChainAgainstPlainBase(t *testing.T) {
	dir := t.TempDir()

	base := []byte("hello\n")
	writeRevFile(t, dir, 1, append([]byte(revfile.WritePlainHeader()), base...))

	target := []byte("HELLO\n")
	win := svndiff.Encode(base, target)
	var deltaPayload bytes.Buffer
	require.NoError(t, svndiff.WriteMagic(&deltaPayload))
	require.NoError(t, svndiff.WriteWindow(&deltaPayload, win))

	header2 := revfile.WriteDeltaHeader(true, 1, 0, uint64(len(base)))
	var rev2 bytes.Buffer
	rev2.WriteString(header2)
	rev2.Write(deltaPayload.Bytes())
	writeRevFile(t, dir, 2, rev2.Bytes())

	sum := md5.Sum(target)
	rep := revfile.Rep{Rev: 2, Offset: 0, Size: uint64(deltaPayload.Len()), ExpandedSize: uint64(len(target)), MD5: sum}

	got, err := Read(dirOpener{dir}, rep)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestReadDeltaAgainstImplicitEmptyBase(t *testing.T) {
	dir := t.TempDir()

	target := []byte("fresh content\n")
	win := svndiff.Encode(nil, target)
	var payload bytes.Buffer
	require.NoError(t, svndiff.WriteMagic(&payload))
	require.NoError(t, svndiff.WriteWindow(&payload, win))

	header := revfile.WriteDeltaHeader(false, 0, 0, 0)
	var rev bytes.Buffer
	rev.WriteString(header)
	rev.Write(payload.Bytes())
	writeRevFile(t, dir, 1, rev.Bytes())

	sum := md5.Sum(target)
	rep := revfile.Rep{Rev: 1, Offset: 0, Size: uint64(payload.Len()), ExpandedSize: uint64(len(target)), MD5: sum}

	got, err := Read(dirOpener{dir}, rep)
	require.NoError(t, err)
	require.Equal(t, target, got)
}

func TestReadRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello\n")
	writeRevFile(t, dir, 1, append([]byte(revfile.WritePlainHeader()), content...))

	wrongSum := md5.Sum([]byte("not the content"))
	rep := revfile.Rep{Rev: 1, Offset: 0, Size: uint64(len(content)), ExpandedSize: uint64(len(content)), MD5: wrongSum}

	_, err := Read(dirOpener{dir}, rep)
	require.Error(t, err)
	var mismatch errtypes.IsChecksumMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestReadRejectsMutableRepresentation(t *testing.T) {
	_, err := Read(dirOpener{t.TempDir()}, revfile.Rep{Txn: "5-1"})
	require.Error(t, err)
	var invalid errtypes.IsInvalidArgument
	require.ErrorAs(t, err, &invalid)
}

func TestReaderValidatesExpandedSize(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello\n")
	writeRevFile(t, dir, 1, append([]byte(revfile.WritePlainHeader()), content...))

	sum := md5.Sum(content)
	rep := revfile.Rep{Rev: 1, Offset: 0, Size: uint64(len(content)), ExpandedSize: uint64(len(content)) + 1, MD5: sum}

	_, err := Reader(dirOpener{dir}, rep)
	require.Error(t, err)
}
