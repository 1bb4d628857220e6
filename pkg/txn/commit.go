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
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/hashfile"
	"github.com/cs3org/revfs/pkg/repo"
	"github.com/cs3org/revfs/pkg/revfile"
)

// Commit serializes the mutated tree into a new revision file and
// promotes it atomically:
//
//  1. acquire the write lock and re-read current; a base revision that
//     is no longer youngest aborts with errtypes.OutOfDate.
//  2. recursively walk the mutated tree bottom-up, assigning each
//     touched node its permanent (rev, offset) id as its node-rev
//     header is appended to the already-open proto-revision file.
//  3. fold the recorded edits into the changed-path log and append it.
//  4. append the trailer and promote the proto-revision file to
//     revs/<new_rev>; promote the accumulated revision properties the
//     same way; publish the new current pointer; remove the
//     transaction's scratch directory.
func (t *Transaction) Commit() (uint64, error) {
	lock, err := t.layout.LockWriter()
	if err != nil {
		return 0, err
	}
	defer lock.Close()

	cur, err := t.layout.ReadCurrent()
	if err != nil {
		return 0, err
	}
	if cur.Rev != t.BaseRev {
		return 0, errtypes.OutOfDate(fmt.Sprintf("transaction based on r%d, current is r%d", t.BaseRev, cur.Rev))
	}
	newRev := cur.Rev + 1

	protoPath := t.layout.TxnProtoRevPath(t.ID)
	f, err := os.OpenFile(protoPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return 0, err
	}

	finalIDs := map[string]revfile.ID{}
	root := t.nodes[t.rootKey]
	rootID, err := t.finalizeNode(f, root, newRev, finalIDs)
	if err != nil {
		f.Close()
		return 0, err
	}

	changesOffset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return 0, err
	}
	for _, c := range foldChanges(t.changes) {
		wc := revfile.Change{Path: c.path, Kind: c.kind, TextMod: c.textMod, PropMod: c.propMod}
		if c.kind != revfile.ChangeReset {
			id, err := t.resolveIDRef(c.ref, finalIDs)
			if err != nil {
				f.Close()
				return 0, err
			}
			wc.ID = &id
		}
		if c.hasCopyFrom {
			wc.HasCopyFrom = true
			wc.CopyFromRev = c.copyFromRev
			wc.CopyFromPath = c.copyFromPath
		}
		if err := revfile.WriteChange(f, wc); err != nil {
			f.Close()
			return 0, err
		}
	}

	if err := revfile.WriteTrailer(f, revfile.Trailer{RootOffset: rootID.Offset, ChangesOffset: uint64(changesOffset)}); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	revPath := t.layout.RevPath(newRev)
	if err := repo.MoveIntoPlace(protoPath, revPath, revPath); err != nil {
		return 0, errors.Wrapf(err, "promoting proto-revision to %s", revPath)
	}

	propsBytes, err := encodeProps(t.revProps)
	if err != nil {
		return 0, err
	}
	propsTmp := t.layout.TxnPropsPath(t.ID)
	if err := os.WriteFile(propsTmp, propsBytes, 0600); err != nil {
		return 0, err
	}
	propsPath := t.layout.RevPropsPath(newRev)
	if err := repo.MoveIntoPlace(propsTmp, propsPath, propsPath); err != nil {
		return 0, errors.Wrapf(err, "promoting revision properties to %s", propsPath)
	}

	if err := t.layout.WriteCurrent(repo.Current{Rev: newRev, NextNode: t.nextNodeID, NextCopy: t.nextCopyID}); err != nil {
		return 0, errors.Wrap(err, "publishing new current pointer")
	}

	_ = os.RemoveAll(t.layout.TxnDir(t.ID))
	return newRev, nil
}

func (t *Transaction) resolveIDRef(ref idRef, finalIDs map[string]revfile.ID) (revfile.ID, error) {
	if !ref.inTxn {
		return ref.id, nil
	}
	id, ok := finalIDs[ref.key]
	if !ok {
		return revfile.ID{}, errtypes.Corrupt("change referenced a node never finalized: " + ref.key)
	}
	return id, nil
}

// finalizeNode recurses into ns's still-mutable children first (so a
// directory's serialized entries always name final ids), serializes
// any mutated representation, and appends the node-rev header itself,
// returning the id just assigned.
func (t *Transaction) finalizeNode(f *os.File, ns *nodeState, newRev uint64, finalIDs map[string]revfile.ID) (revfile.ID, error) {
	if id, ok := finalIDs[nodeKey(ns.id)]; ok {
		return id, nil
	}

	if ns.kind == revfile.KindDir && ns.entriesMod {
		if err := ns.loadEntries(t.layout); err != nil {
			return revfile.ID{}, err
		}
		for name, ref := range ns.entries {
			if !ref.id.InTxn() {
				continue
			}
			child := t.nodes[nodeKey(ref.id)]
			finalChild, err := t.finalizeNode(f, child, newRev, finalIDs)
			if err != nil {
				return revfile.ID{}, err
			}
			ns.entries[name] = dirEntryRef{id: finalChild, kind: child.kind}
		}
		rep, err := writeHashRep(f, entriesToHash(ns.entries))
		if err != nil {
			return revfile.ID{}, err
		}
		rep.Rev = newRev
		ns.textRep = &rep
	}
	if ns.kind == revfile.KindDir && !ns.entriesMod && ns.baseText == nil {
		// Brand-new directory that was created but never populated:
		// still needs an (empty) entries representation.
		rep, err := writeHashRep(f, map[string][]byte{})
		if err != nil {
			return revfile.ID{}, err
		}
		rep.Rev = newRev
		ns.textRep = &rep
	}
	if ns.kind == revfile.KindFile && ns.textRep == nil && ns.baseText == nil {
		rep, err := writeHashRep(f, map[string][]byte{})
		if err != nil {
			return revfile.ID{}, err
		}
		rep.Rev = newRev
		ns.textRep = &rep
	}
	if ns.textMod && ns.textRep != nil {
		// Written by SetFileContents earlier in the transaction, at a
		// known offset in this same proto-revision file; only its
		// revision number was pending.
		ns.textRep.Rev = newRev
		ns.textRep.Txn = ""
	}
	if ns.propsMod {
		props := map[string][]byte{}
		for k, v := range ns.props {
			props[k] = []byte(v)
		}
		rep, err := writeHashRep(f, props)
		if err != nil {
			return revfile.ID{}, err
		}
		rep.Rev = newRev
		ns.baseProps = &rep
	}

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return revfile.ID{}, err
	}
	final := revfile.ID{NodeID: ns.id.NodeID, CopyID: ns.id.CopyID, Rev: newRev, Offset: uint64(offset)}

	// text/props left unset above are untouched this transaction: keep
	// referencing the revision they were actually written in.
	text := ns.textRep
	if text == nil {
		text = ns.baseText
	}
	props := ns.baseProps
	copyRoot := ns.copyRoot
	if copyRoot == (revfile.CopyFrom{}) {
		copyRoot = revfile.CopyFrom{Rev: newRev, Path: ns.createdPath}
	}

	nr := revfile.NodeRev{
		ID:          final,
		Kind:        ns.kind,
		Pred:        ns.pred,
		Count:       ns.count,
		Text:        text,
		Props:       props,
		CreatedPath: ns.createdPath,
		CopyFrom:    ns.copyFrom,
		CopyRoot:    copyRoot,
	}
	if err := revfile.WriteNodeRevHeader(f, nr); err != nil {
		return revfile.ID{}, err
	}

	finalIDs[nodeKey(ns.id)] = final
	return final, nil
}

func entriesToHash(entries map[string]dirEntryRef) map[string][]byte {
	m := make(map[string][]byte, len(entries))
	for name, ref := range entries {
		m[name] = []byte(encodeDirEntry(ref))
	}
	return m
}

// writeHashRep appends a PLAIN representation wrapping a
// hash-serialized blob (used for both directory entries and property
// lists; these are always written PLAIN rather than deltified
// against the previous revision's hash).
func writeHashRep(f *os.File, m map[string][]byte) (revfile.Rep, error) {
	var buf bytes.Buffer
	if err := hashfile.Encode(&buf, m); err != nil {
		return revfile.Rep{}, err
	}
	sum := md5.Sum(buf.Bytes())

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return revfile.Rep{}, err
	}
	if _, err := f.WriteString(revfile.WritePlainHeader()); err != nil {
		return revfile.Rep{}, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return revfile.Rep{}, err
	}
	if _, err := f.WriteString(revfile.EndRep); err != nil {
		return revfile.Rep{}, err
	}
	return revfile.Rep{Offset: uint64(offset), Size: uint64(buf.Len()), ExpandedSize: uint64(buf.Len()), MD5: sum}, nil
}

func encodeProps(props map[string]string) ([]byte, error) {
	m := make(map[string][]byte, len(props))
	for k, v := range props {
		m[k] = []byte(v)
	}
	var buf bytes.Buffer
	if err := hashfile.Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
