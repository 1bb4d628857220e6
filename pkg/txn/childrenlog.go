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
	"os"

	"github.com/cs3org/revfs/pkg/hashfile"
	"github.com/cs3org/revfs/pkg/repo"
)

// openChildrenLog opens ns's scratch children-log file, dumping
// ns.entries as they stand as the base hash on the first call; later
// edits only append K/V or D records. Every entry add and delete
// (CreateNode, Copy, DeleteEntry) funnels through here so the scratch
// directory on disk carries that edit trail; resolveNode re-pointing
// an entry at its in-transaction clone is not logged, and this engine's
// own commit path rebuilds the final hash from ns.entries in memory
// rather than replaying the log back.
func (ns *nodeState) openChildrenLog(l *repo.Layout) (*hashfile.DirLog, *os.File, error) {
	path := l.NodeChildrenPath(ns.id.Txn, ns.id.NodeID, ns.id.CopyID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	dl := hashfile.NewDirLog(f)
	if !ns.childrenLogDumped {
		base := entriesToHash(ns.entries)
		if err := dl.DumpBase(base); err != nil {
			f.Close()
			return nil, nil, err
		}
		ns.childrenLogDumped = true
	}
	return dl, f, nil
}

// logEntrySet appends an add/modify record for name to ns's children
// log. Must be called before ns.entries is updated in memory, so the
// base snapshot dumped on first use (if this is that first call)
// reflects the state prior to this edit.
func (ns *nodeState) logEntrySet(l *repo.Layout, name string, ref dirEntryRef) error {
	dl, f, err := ns.openChildrenLog(l)
	if err != nil {
		return err
	}
	defer f.Close()
	return dl.Set(name, []byte(encodeDirEntry(ref)))
}

// logEntryDelete appends a delete record for name to ns's children
// log, under the same before-the-in-memory-edit ordering requirement
// as logEntrySet.
func (ns *nodeState) logEntryDelete(l *repo.Layout, name string) error {
	dl, f, err := ns.openChildrenLog(l)
	if err != nil {
		return err
	}
	defer f.Close()
	return dl.Delete(name)
}
