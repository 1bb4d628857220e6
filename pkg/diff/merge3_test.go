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

package diff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerge3DisjointEditsApplyCleanly(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	mine := []byte("ONE\ntwo\nthree\n")
	theirs := []byte("one\ntwo\nTHREE\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleMarkers)
	require.NoError(t, err)
	require.False(t, conflicted)
	require.Equal(t, "ONE\ntwo\nTHREE\n", buf.String())
}

// Both sides edit the same base line differently. The conflict block
// carries the ancestor line between mine's text and the "======="
// separator.
func TestMerge3ConflictingEditsProduceMarkers(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	mine := []byte("one\nTWO-M\nthree\n")
	theirs := []byte("one\nTWO-T\nthree\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleMarkers)
	require.NoError(t, err)
	require.True(t, conflicted)
	require.Equal(t,
		"one\n<<<<<<< mine\nTWO-M\n||||||| older\ntwo\n=======\nTWO-T\n>>>>>>> theirs\nthree\n",
		buf.String())
}

// StyleModified and StyleLatest resolve a conflict by silently
// picking one side's text, with no markers at all, while still
// reporting that a conflict was found.
func TestMerge3StyleModifiedPicksMineSilently(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	mine := []byte("one\nTWO-M\nthree\n")
	theirs := []byte("one\nTWO-T\nthree\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleModified)
	require.NoError(t, err)
	require.True(t, conflicted)
	require.Equal(t, "one\nTWO-M\nthree\n", buf.String())
}

func TestMerge3StyleLatestPicksTheirsSilently(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	mine := []byte("one\nTWO-M\nthree\n")
	theirs := []byte("one\nTWO-T\nthree\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleLatest)
	require.NoError(t, err)
	require.True(t, conflicted)
	require.Equal(t, "one\nTWO-T\nthree\n", buf.String())
}

// StyleModifiedOriginalLatest and StyleResolvedModifiedLatest render
// identically to StyleModifiedLatest: the marker shape always carries
// the ancestor line and non-conflicting edits always auto-merge, so
// the distinctions those two style names draw are present by default.
func TestMerge3AliasStylesMatchModifiedLatest(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	mine := []byte("one\nTWO-M\nthree\n")
	theirs := []byte("one\nTWO-T\nthree\n")

	var want bytes.Buffer
	_, err := Merge3(&want, base, mine, theirs, Options{}, StyleModifiedLatest)
	require.NoError(t, err)

	for _, style := range []Merge3Style{StyleModifiedOriginalLatest, StyleResolvedModifiedLatest} {
		var got bytes.Buffer
		conflicted, err := Merge3(&got, base, mine, theirs, Options{}, style)
		require.NoError(t, err)
		require.True(t, conflicted)
		require.Equal(t, want.String(), got.String())
	}
}

func TestMerge3IdenticalEditsApplyOnceWithoutConflict(t *testing.T) {
	base := []byte("one\ntwo\nthree\n")
	mine := []byte("one\nSAME\nthree\n")
	theirs := []byte("one\nSAME\nthree\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleMarkers)
	require.NoError(t, err)
	require.False(t, conflicted)
	require.Equal(t, "one\nSAME\nthree\n", buf.String())
}

// With a conflict far from either end of the input, StyleOnlyConflicts
// keeps DefaultContext lines of ancestor text on each side of the
// markers and drops everything beyond that.
func TestMerge3OnlyConflictsStyleKeepsHaloAndOmitsFarContent(t *testing.T) {
	base := []byte("l1\nl2\nl3\nl4\nl5\ntwo\nl7\nl8\nl9\nl10\n")
	mine := []byte("l1\nl2\nl3\nl4\nl5\nTWO-M\nl7\nl8\nl9\nl10\n")
	theirs := []byte("l1\nl2\nl3\nl4\nl5\nTWO-T\nl7\nl8\nl9\nl10\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleOnlyConflicts)
	require.NoError(t, err)
	require.True(t, conflicted)
	require.Equal(t,
		"l3\nl4\nl5\n<<<<<<< mine\nTWO-M\n||||||| older\ntwo\n=======\nTWO-T\n>>>>>>> theirs\nl7\nl8\nl9\n",
		buf.String())
}

// Two conflicts too far apart for their context halos to touch render
// as separate groups joined by a bare "@@\n" line.
func TestMerge3OnlyConflictsStyleSeparatesDistantGroups(t *testing.T) {
	base := []byte("a1\na2\na3\na4\na5\na6\na7\na8\na9\na10\na11\na12\na13\na14\na15\n")
	mine := []byte("A1\na2\na3\na4\na5\na6\na7\na8\na9\na10\na11\na12\na13\na14\nA15\n")
	theirs := []byte("B1\na2\na3\na4\na5\na6\na7\na8\na9\na10\na11\na12\na13\na14\nB15\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleOnlyConflicts)
	require.NoError(t, err)
	require.True(t, conflicted)
	require.Equal(t,
		"<<<<<<< mine\nA1\n||||||| older\na1\n=======\nB1\n>>>>>>> theirs\na2\na3\na4\n"+
			"@@\n"+
			"a12\na13\na14\n<<<<<<< mine\nA15\n||||||| older\na15\n=======\nB15\n>>>>>>> theirs\n",
		buf.String())
}

// The marker end-of-line follows the modified source's first
// terminator, not a hardcoded "\n".
func TestMerge3MarkerEOLFollowsModifiedSource(t *testing.T) {
	base := []byte("one\r\ntwo\r\nthree\r\n")
	mine := []byte("one\r\nTWO-M\r\nthree\r\n")
	theirs := []byte("one\r\nTWO-T\r\nthree\r\n")

	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, mine, theirs, Options{}, StyleMarkers)
	require.NoError(t, err)
	require.True(t, conflicted)
	require.Equal(t,
		"one\r\n<<<<<<< mine\r\nTWO-M\r\n||||||| older\r\ntwo\r\n=======\r\nTWO-T\r\n>>>>>>> theirs\r\nthree\r\n",
		buf.String())
}

func TestMerge3NoEditsIsPassthrough(t *testing.T) {
	base := []byte("unchanged\ncontent\n")
	var buf bytes.Buffer
	conflicted, err := Merge3(&buf, base, base, base, Options{}, StyleMarkers)
	require.NoError(t, err)
	require.False(t, conflicted)
	require.Equal(t, string(base), buf.String())
}
