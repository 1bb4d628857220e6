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
	"bytes"
	"crypto/md5"
	"os"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/reptree"
	"github.com/cs3org/revfs/pkg/revfile"
	"github.com/cs3org/revfs/pkg/svndiff"
)

// idRef names a node either by a key into this transaction's mutable
// node set, or directly by an already-committed id. pendingChange
// entries use it so that deleting an entry nobody else has touched
// doesn't force a needless clone.
type idRef struct {
	inTxn bool
	key   string
	id    revfile.ID
}

// pendingChange is one edit recorded as it happens; the final
// changed-path log entries are derived from these at commit time,
// after every touched node has a permanent id and the per-path
// folding rules have collapsed repeated edits.
type pendingChange struct {
	path         string
	ref          idRef
	kind         revfile.ChangeKind
	textMod      bool
	propMod      bool
	hasCopyFrom  bool
	copyFromRev  uint64
	copyFromPath string
}

func refOf(ns *nodeState) idRef { return idRef{inTxn: true, key: nodeKey(ns.id)} }

func (t *Transaction) recordChange(path string, ref idRef, kind revfile.ChangeKind, textMod, propMod bool, cf *revfile.CopyFrom) error {
	pc := pendingChange{path: path, ref: ref, kind: kind, textMod: textMod, propMod: propMod}
	if cf != nil {
		pc.hasCopyFrom = true
		pc.copyFromRev = cf.Rev
		pc.copyFromPath = cf.Path
	}
	t.changes = append(t.changes, pc)
	return t.appendChangeLog(pc)
}

// appendChangeLog mirrors each recorded edit into the transaction's
// scratch changes file as it happens. Commit folds from the in-memory
// list; the on-disk log carries the same trail for a crash-recovery
// tool, the way the per-node children logs do.
func (t *Transaction) appendChangeLog(pc pendingChange) error {
	f, err := os.OpenFile(t.layout.TxnChangesPath(t.ID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	c := revfile.Change{
		Path: pc.path, Kind: pc.kind,
		TextMod: pc.textMod, PropMod: pc.propMod,
		HasCopyFrom: pc.hasCopyFrom, CopyFromRev: pc.copyFromRev, CopyFromPath: pc.copyFromPath,
	}
	if pc.kind != revfile.ChangeReset {
		id := pc.ref.id
		if pc.ref.inTxn {
			node, copyID, _ := strings.Cut(pc.ref.key, ".")
			id = revfile.ID{NodeID: node, CopyID: copyID, Txn: t.ID}
		}
		c.ID = &id
	}
	return revfile.WriteChange(f, c)
}

type layoutReader struct{ t *Transaction }

func (r layoutReader) nodeRevAt(rev, offset uint64) (revfile.NodeRev, error) {
	return readNodeRevAt(r.t.layout, rev, offset)
}

// SetFileContents replaces a file node's byte content, choosing a
// delta base via ChooseDeltaBase and appending the encoded
// representation to the transaction's proto-revision file.
func (t *Transaction) SetFileContents(path string, data []byte) error {
	ns, err := t.resolveNode(path)
	if err != nil {
		return err
	}
	if ns.kind != revfile.KindFile {
		return errtypes.InvalidArgument("not a file: " + path)
	}
	rep, err := t.writeFileRep(ns, data)
	if err != nil {
		return err
	}
	ns.textRep = &rep
	ns.textMod = true
	return t.recordChange(path, refOf(ns), revfile.ChangeModify, true, false, nil)
}

func (t *Transaction) writeFileRep(ns *nodeState, data []byte) (revfile.Rep, error) {
	steps := ChooseDeltaBase(ns.count)
	cfg, err := t.layout.ReadConfig()
	if err != nil {
		return revfile.Rep{}, err
	}
	if cfg.DeltaCompressionLevel == 0 {
		steps = 0
	}
	baseRep, err := walkPred(layoutReader{t}, ns.pred, steps)
	if err != nil {
		return revfile.Rep{}, err
	}

	var header string
	var payload []byte
	if baseRep == nil {
		header = revfile.WritePlainHeader()
		payload = data
	} else {
		baseBytes, err := reptree.Read(t, *baseRep)
		if err != nil {
			return revfile.Rep{}, err
		}
		win := svndiff.Encode(baseBytes, data)
		var buf bytes.Buffer
		svndiff.WriteMagic(&buf)
		if err := svndiff.WriteWindow(&buf, win); err != nil {
			return revfile.Rep{}, err
		}
		header = revfile.WriteDeltaHeader(true, baseRep.Rev, baseRep.Offset, baseRep.Size)
		payload = buf.Bytes()
	}

	f, err := os.OpenFile(t.layout.TxnProtoRevPath(t.ID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return revfile.Rep{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return revfile.Rep{}, err
	}
	offset := uint64(st.Size())
	if _, err := f.WriteString(header); err != nil {
		return revfile.Rep{}, err
	}
	if _, err := f.Write(payload); err != nil {
		return revfile.Rep{}, err
	}
	if _, err := f.WriteString(revfile.EndRep); err != nil {
		return revfile.Rep{}, err
	}
	sum := md5.Sum(data)
	return revfile.Rep{Txn: t.ID, Offset: offset, Size: uint64(len(payload)), ExpandedSize: uint64(len(data)), MD5: sum}, nil
}

// SetProplist replaces a node's entire property set.
func (t *Transaction) SetProplist(path string, props map[string]string) error {
	ns, err := t.resolveNode(path)
	if err != nil {
		return err
	}
	if err := ns.loadProps(t.layout); err != nil {
		return err
	}
	cp := make(map[string]string, len(props))
	for k, v := range props {
		cp[k] = v
	}
	ns.props = cp
	ns.propsSet = true
	ns.propsMod = true
	return t.recordChange(path, refOf(ns), revfile.ChangeModify, false, true, nil)
}

// CreateNode adds a brand-new, empty file or directory entry at
// path. The parent directory must already exist and must not
// already have an entry with this name.
func (t *Transaction) CreateNode(path string, kind revfile.Kind) error {
	parent, name, err := t.resolveParent(path)
	if err != nil {
		return err
	}
	if parent.kind != revfile.KindDir {
		return errtypes.InvalidArgument("parent is not a directory: " + path)
	}
	if err := parent.loadEntries(t.layout); err != nil {
		return err
	}
	if _, exists := parent.entries[name]; exists {
		return errtypes.InvalidArgument("already exists: " + path)
	}

	ns := &nodeState{
		id:            revfile.ID{NodeID: t.allocNodeID(), CopyID: "0", Txn: t.ID},
		kind:          kind,
		createdPath:   path,
		propsSet:      true,
		props:         map[string]string{},
		entriesLoaded: kind == revfile.KindDir,
		entries:       map[string]dirEntryRef{},
	}
	t.nodes[nodeKey(ns.id)] = ns
	ref := dirEntryRef{id: ns.id, kind: kind}
	if err := parent.logEntrySet(t.layout, name, ref); err != nil {
		return err
	}
	parent.entries[name] = ref
	parent.entriesMod = true
	return t.recordChange(path, refOf(ns), revfile.ChangeAdd, kind == revfile.KindFile, false, nil)
}

// Copy adds an entry at dstPath that is a copy of srcPath as it
// stood at srcRev. The copy is recorded with a fresh copy_id; its
// node_id is inherited from the source so later successors of the
// copy still chain their deltas against it.
func (t *Transaction) Copy(dstPath string, srcRev uint64, srcPath string) error {
	parent, name, err := t.resolveParent(dstPath)
	if err != nil {
		return err
	}
	if err := parent.loadEntries(t.layout); err != nil {
		return err
	}
	if _, exists := parent.entries[name]; exists {
		return errtypes.InvalidArgument("already exists: " + dstPath)
	}
	src, err := Lookup(t.layout, srcRev, srcPath)
	if err != nil {
		return err
	}

	ns := t.cloneFrom(src, dstPath)
	ns.id.CopyID = t.allocCopyID()
	ns.copyFrom = &revfile.CopyFrom{Rev: srcRev, Path: srcPath}
	ns.copyRoot = revfile.CopyFrom{Rev: srcRev, Path: srcPath}
	t.nodes[nodeKey(ns.id)] = ns

	ref := dirEntryRef{id: ns.id, kind: ns.kind}
	if err := parent.logEntrySet(t.layout, name, ref); err != nil {
		return err
	}
	parent.entries[name] = ref
	parent.entriesMod = true
	return t.recordChange(dstPath, refOf(ns), revfile.ChangeAdd, false, false, ns.copyFrom)
}

// DeleteEntry removes a name from its parent directory. The
// underlying subtree's node-revisions are left untouched; they
// simply become unreachable from the new tree.
func (t *Transaction) DeleteEntry(path string) error {
	parent, name, err := t.resolveParent(path)
	if err != nil {
		return err
	}
	if err := parent.loadEntries(t.layout); err != nil {
		return err
	}
	ref, ok := parent.entries[name]
	if !ok {
		return errtypes.NotFound(path)
	}
	if err := parent.logEntryDelete(t.layout, name); err != nil {
		return err
	}
	delete(parent.entries, name)
	parent.entriesMod = true

	var changeRef idRef
	if ref.id.InTxn() {
		changeRef = idRef{inTxn: true, key: nodeKey(ref.id)}
	} else {
		changeRef = idRef{id: ref.id}
	}
	return t.recordChange(path, changeRef, revfile.ChangeDelete, false, false, nil)
}

// ChangeTxnProp sets an unversioned revision property that will be
// promoted alongside the new revision at commit.
func (t *Transaction) ChangeTxnProp(name, value string) {
	t.revProps[name] = value
}
