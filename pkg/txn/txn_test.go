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

package txn

import (
	"crypto/md5"
	"os"
	"testing"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/repo"
	"github.com/cs3org/revfs/pkg/reptree"
	"github.com/cs3org/revfs/pkg/revfile"
	"github.com/stretchr/testify/require"
)

// A file's first content commits as PLAIN; a second edit commits as
// a DELTA against its predecessor.
func TestCommitFirstWriteIsPlainSecondIsDelta(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	txn1, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, txn1.CreateNode("/f", revfile.KindFile))
	require.NoError(t, txn1.SetFileContents("/f", []byte("hello\n")))

	rev1, err := txn1.Commit()
	require.NoError(t, err)
	require.Equal(t, uint64(1), rev1)

	nr1, err := Lookup(l, rev1, "/f")
	require.NoError(t, err)
	require.Equal(t, 0, nr1.Count)
	require.Nil(t, nr1.Pred)
	require.NotNil(t, nr1.Text)
	require.Equal(t, uint64(6), nr1.Text.ExpandedSize)
	sum1 := md5.Sum([]byte("hello\n"))
	require.Equal(t, sum1, nr1.Text.MD5)

	got1, err := reptree.Read(l, *nr1.Text)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got1))

	txn2, err := Create(l, rev1)
	require.NoError(t, err)
	require.NoError(t, txn2.SetFileContents("/f", []byte("HELLO\n")))

	rev2, err := txn2.Commit()
	require.NoError(t, err)
	require.Equal(t, uint64(2), rev2)

	nr2, err := Lookup(l, rev2, "/f")
	require.NoError(t, err)
	require.Equal(t, 1, nr2.Count)
	require.NotNil(t, nr2.Pred)
	require.True(t, nr2.Pred.Equal(nr1.ID))
	require.NotNil(t, nr2.Text)
	require.Equal(t, uint64(6), nr2.Text.ExpandedSize)
	sum2 := md5.Sum([]byte("HELLO\n"))
	require.Equal(t, sum2, nr2.Text.MD5)

	got2, err := reptree.Read(l, *nr2.Text)
	require.NoError(t, err)
	require.Equal(t, "HELLO\n", string(got2))

	// The original revision's content must be unaffected by the later edit.
	got1again, err := reptree.Read(l, *nr1.Text)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got1again))
}

func TestCommitRejectsStaleBaseRevision(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	stale, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, stale.CreateNode("/stale", revfile.KindFile))

	fresh, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, fresh.CreateNode("/fresh", revfile.KindFile))
	_, err = fresh.Commit()
	require.NoError(t, err)

	_, err = stale.Commit()
	require.Error(t, err)
	var outOfDate errtypes.IsOutOfDate
	require.ErrorAs(t, err, &outOfDate)
}

func TestCommitDirectoryWithNestedFile(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	txn1, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, txn1.CreateNode("/dir", revfile.KindDir))
	require.NoError(t, txn1.CreateNode("/dir/a", revfile.KindFile))
	require.NoError(t, txn1.SetFileContents("/dir/a", []byte("contents\n")))

	rev1, err := txn1.Commit()
	require.NoError(t, err)

	nrDir, err := Lookup(l, rev1, "/dir")
	require.NoError(t, err)
	require.Equal(t, revfile.KindDir, nrDir.Kind)

	nrFile, err := Lookup(l, rev1, "/dir/a")
	require.NoError(t, err)
	got, err := reptree.Read(l, *nrFile.Text)
	require.NoError(t, err)
	require.Equal(t, "contents\n", string(got))
}

func TestCopyPreservesNodeIdentityWithFreshCopyID(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	txn1, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, txn1.CreateNode("/orig", revfile.KindFile))
	require.NoError(t, txn1.SetFileContents("/orig", []byte("payload\n")))
	rev1, err := txn1.Commit()
	require.NoError(t, err)

	txn2, err := Create(l, rev1)
	require.NoError(t, err)
	require.NoError(t, txn2.Copy("/copy", rev1, "/orig"))
	rev2, err := txn2.Commit()
	require.NoError(t, err)

	orig, err := Lookup(l, rev2, "/orig")
	require.NoError(t, err)
	copied, err := Lookup(l, rev2, "/copy")
	require.NoError(t, err)

	require.Equal(t, orig.ID.NodeID, copied.ID.NodeID)
	require.NotEqual(t, orig.ID.CopyID, copied.ID.CopyID)
	require.NotNil(t, copied.CopyFrom)
	require.Equal(t, rev1, copied.CopyFrom.Rev)
	require.Equal(t, "/orig", copied.CopyFrom.Path)

	got, err := reptree.Read(l, *copied.Text)
	require.NoError(t, err)
	require.Equal(t, "payload\n", string(got))
}

func TestDeleteEntryRemovesFromTree(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	txn1, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, txn1.CreateNode("/gone", revfile.KindFile))
	rev1, err := txn1.Commit()
	require.NoError(t, err)

	txn2, err := Create(l, rev1)
	require.NoError(t, err)
	require.NoError(t, txn2.DeleteEntry("/gone"))
	rev2, err := txn2.Commit()
	require.NoError(t, err)

	_, err = Lookup(l, rev2, "/gone")
	require.Error(t, err)
	var notFound errtypes.IsNotFound
	require.ErrorAs(t, err, &notFound)

	// Unaffected in the earlier revision.
	_, err = Lookup(l, rev1, "/gone")
	require.NoError(t, err)
}

func TestSetFileContentsRejectsNonFileNode(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	txn1, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, txn1.CreateNode("/dir", revfile.KindDir))

	err = txn1.SetFileContents("/dir", []byte("x"))
	require.Error(t, err)
	var invalid errtypes.IsInvalidArgument
	require.ErrorAs(t, err, &invalid)
}

func TestCreateSeedsScratchFiles(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	tx, err := Create(l, 0)
	require.NoError(t, err)

	data, err := os.ReadFile(l.TxnNextIDsPath(tx.ID))
	require.NoError(t, err)
	require.Equal(t, "0 0\n", string(data))
	for _, p := range []string{l.TxnProtoRevPath(tx.ID), l.TxnChangesPath(tx.ID)} {
		fi, err := os.Stat(p)
		require.NoError(t, err)
		require.Zero(t, fi.Size())
	}

	require.NoError(t, tx.CreateNode("/f", revfile.KindFile))
	fi, err := os.Stat(l.TxnChangesPath(tx.ID))
	require.NoError(t, err)
	require.NotZero(t, fi.Size())
}

// A successor of a copied node is a plain edit, not itself a copy:
// its node-rev carries no copyfrom of its own.
func TestEditAfterCopyClearsCopyFrom(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	txn1, err := Create(l, 0)
	require.NoError(t, err)
	require.NoError(t, txn1.CreateNode("/orig", revfile.KindFile))
	require.NoError(t, txn1.SetFileContents("/orig", []byte("v1\n")))
	rev1, err := txn1.Commit()
	require.NoError(t, err)

	txn2, err := Create(l, rev1)
	require.NoError(t, err)
	require.NoError(t, txn2.Copy("/copy", rev1, "/orig"))
	rev2, err := txn2.Commit()
	require.NoError(t, err)

	txn3, err := Create(l, rev2)
	require.NoError(t, err)
	require.NoError(t, txn3.SetFileContents("/copy", []byte("v2\n")))
	rev3, err := txn3.Commit()
	require.NoError(t, err)

	copied, err := Lookup(l, rev2, "/copy")
	require.NoError(t, err)
	require.NotNil(t, copied.CopyFrom)

	edited, err := Lookup(l, rev3, "/copy")
	require.NoError(t, err)
	require.Nil(t, edited.CopyFrom)
	require.NotNil(t, edited.Pred)
	require.True(t, edited.Pred.Equal(copied.ID))
}

func TestResumeReopensTransactionFromMeta(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	created, err := Create(l, 0)
	require.NoError(t, err)

	resumed, err := Resume(l, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, resumed.ID)
	require.Equal(t, created.BaseRev, resumed.BaseRev)

	require.NoError(t, resumed.CreateNode("/f", revfile.KindFile))
	require.NoError(t, resumed.SetFileContents("/f", []byte("resumed\n")))
	rev, err := resumed.Commit()
	require.NoError(t, err)

	nr, err := Lookup(l, rev, "/f")
	require.NoError(t, err)
	got, err := reptree.Read(l, *nr.Text)
	require.NoError(t, err)
	require.Equal(t, "resumed\n", string(got))
}

func TestResumeUnknownTransactionIsNotFound(t *testing.T) {
	root := t.TempDir()
	l, err := repo.Create(root)
	require.NoError(t, err)

	_, err = Resume(l, "0-9999")
	require.Error(t, err)
	var notFound errtypes.IsNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestChooseDeltaBaseSkipListRule(t *testing.T) {
	cases := []struct {
		predCount int
		want      int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 1},
		{4, 4},
		{5, 1},
		{6, 2},
		{7, 1},
		{8, 8},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ChooseDeltaBase(c.predCount), "predCount=%d", c.predCount)
	}
}
