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

// Package repo lays out the on-disk repository: the current
// pointer, per-revision files, per-transaction scratch
// directories, and the write lock, plus the atomic rename-or-copy
// promotion primitive every other component builds on.
package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// OpenRevFile opens a committed revision file for reading.
func (l *Layout) OpenRevFile(rev uint64) (*os.File, error) {
	return os.Open(l.RevPath(rev))
}

// FormatVersion is the on-disk format number this engine understands.
// Repositories created by a different version fail to open.
const FormatVersion = 1

// Layout resolves the fixed set of paths under a repository root.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root. It does not touch the
// filesystem.
func New(root string) *Layout {
	return &Layout{Root: root}
}

// FormatPath is the repository format marker.
func (l *Layout) FormatPath() string { return filepath.Join(l.Root, "format") }

// CurrentPath is the youngest-revision pointer file.
func (l *Layout) CurrentPath() string { return filepath.Join(l.Root, "current") }

// UUIDPath is the repository identity file.
func (l *Layout) UUIDPath() string { return filepath.Join(l.Root, "uuid") }

// WriteLockPath is the exclusive advisory lock used by commit.
func (l *Layout) WriteLockPath() string { return filepath.Join(l.Root, "write-lock") }

// RevsDir is the directory holding one file per committed revision.
func (l *Layout) RevsDir() string { return filepath.Join(l.Root, "revs") }

// RevPath is the path of revision rev's revision file.
func (l *Layout) RevPath(rev uint64) string {
	return filepath.Join(l.RevsDir(), fmt.Sprintf("%d", rev))
}

// RevPropsDir is the directory holding one file per revision's
// unversioned properties.
func (l *Layout) RevPropsDir() string { return filepath.Join(l.Root, "revprops") }

// RevPropsPath is the path of revision rev's property file.
func (l *Layout) RevPropsPath(rev uint64) string {
	return filepath.Join(l.RevPropsDir(), fmt.Sprintf("%d", rev))
}

// TransactionsDir is the directory holding in-flight transaction
// scratch directories.
func (l *Layout) TransactionsDir() string { return filepath.Join(l.Root, "transactions") }

// TxnDir is the scratch directory for transaction id txn.
func (l *Layout) TxnDir(txn string) string {
	return filepath.Join(l.TransactionsDir(), txn+".txn")
}

// TxnProtoRevPath is the transaction's append-only proto-revision file.
func (l *Layout) TxnProtoRevPath(txn string) string { return filepath.Join(l.TxnDir(txn), "rev") }

// TxnChangesPath is the transaction's append-only change log.
func (l *Layout) TxnChangesPath(txn string) string { return filepath.Join(l.TxnDir(txn), "changes") }

// TxnPropsPath is the transaction's unversioned-property hash file.
func (l *Layout) TxnPropsPath(txn string) string { return filepath.Join(l.TxnDir(txn), "props") }

// TxnNextIDsPath is the transaction's next-ids counter file.
func (l *Layout) TxnNextIDsPath(txn string) string {
	return filepath.Join(l.TxnDir(txn), "next-ids")
}

// TxnMetaPath is the transaction's auxiliary bookkeeping file
// (uniquifier, creation time), persisted with msgpack since it has no
// wire-compatibility requirement, unlike the files above.
func (l *Layout) TxnMetaPath(txn string) string { return filepath.Join(l.TxnDir(txn), "txn-meta") }

// NodeFilePath is a mutable node-rev header file inside a transaction.
func (l *Layout) NodeFilePath(txn, nodeID, copyID string) string {
	return filepath.Join(l.TxnDir(txn), fmt.Sprintf("node.%s.%s", nodeID, copyID))
}

// NodePropsPath is a mutable node's property file.
func (l *Layout) NodePropsPath(txn, nodeID, copyID string) string {
	return l.NodeFilePath(txn, nodeID, copyID) + ".props"
}

// NodeChildrenPath is a mutable directory node's entry log.
func (l *Layout) NodeChildrenPath(txn, nodeID, copyID string) string {
	return l.NodeFilePath(txn, nodeID, copyID) + ".children"
}

// LockWriter acquires the repository write lock for the duration of
// a commit. Release by closing the returned file; do
// this with defer so the lock is released on every exit path.
func (l *Layout) LockWriter() (*lockedfile.File, error) {
	return lockedfile.OpenFile(l.WriteLockPath(), os.O_RDWR|os.O_CREATE, 0600)
}
