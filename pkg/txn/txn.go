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

// Package txn implements the transaction and commit engine: a
// mutable working copy of the node tree rooted at a base revision,
// path-oriented edit operations that clone nodes on write up
// to the root, and the algorithm that serializes the mutated tree into
// a new revision file and promotes it atomically.
package txn

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/repo"
	"github.com/cs3org/revfs/pkg/reptree"
	"github.com/cs3org/revfs/pkg/revfile"
	"github.com/shamaton/msgpack/v2"
)

// maxUniquifierAttempts bounds the "<rev>-<i>.txn" directory creation
// loop.
const maxUniquifierAttempts = 99999

// Transaction is a mutable working copy of the node tree rooted at
// BaseRev, scoped to one commit. It is not safe for concurrent use.
type Transaction struct {
	ID      string
	BaseRev uint64

	layout *repo.Layout

	nextNodeID uint64
	nextCopyID uint64

	nodes   map[string]*nodeState // key: "<nodeID>.<copyID>"
	rootKey string
	changes []pendingChange

	revProps map[string]string
}

// nodeState is the in-memory, mutable form of one node-revision while
// it is owned by a transaction. Unmodified descendants are never
// cloned into this map; they remain referenced by their committed
// (rev, offset) id directly in their parent's entries.
type nodeState struct {
	id          revfile.ID
	kind        revfile.Kind
	pred        *revfile.ID
	count       int
	createdPath string
	copyFrom    *revfile.CopyFrom
	copyRoot    revfile.CopyFrom

	baseProps *revfile.Rep
	props     map[string]string
	propsSet  bool
	propsMod  bool

	baseText *revfile.Rep // previous content (file) or previous entries hash (dir)
	textRep  *revfile.Rep // freshly written during this transaction, nil until first write
	textMod  bool

	entriesLoaded bool
	entries       map[string]dirEntryRef
	entriesMod    bool

	// childrenLogDumped tracks whether this node's scratch children
	// log has had its base snapshot written yet; the first logged entry
	// edit dumps the entries as they stand then, later edits only append.
	childrenLogDumped bool
}

type dirEntryRef struct {
	id   revfile.ID
	kind revfile.Kind
}

func nodeKey(id revfile.ID) string { return id.NodeID + "." + id.CopyID }

// Create opens transaction id "<baseRev>-<i>" against baseRev's root
// (with node/copy ids allocated from current's counters), picking the
// first uniquifier i in [1, 99999] whose
// scratch directory doesn't already exist.
func Create(l *repo.Layout, baseRev uint64) (*Transaction, error) {
	var id string
	var ok bool
	for i := 1; i <= maxUniquifierAttempts; i++ {
		candidate := fmt.Sprintf("%d-%d", baseRev, i)
		if err := os.Mkdir(l.TxnDir(candidate), 0700); err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, err
		}
		id = candidate
		ok = true
		break
	}
	if !ok {
		return nil, errtypes.UniquifierExhausted(fmt.Sprintf("base revision %d", baseRev))
	}

	cur, err := l.ReadCurrent()
	if err != nil {
		os.RemoveAll(l.TxnDir(id))
		return nil, err
	}

	// The scratch directory starts with an empty proto-revision file,
	// an empty change log, and a zeroed next-ids counter.
	for _, seed := range []struct{ path, content string }{
		{l.TxnProtoRevPath(id), ""},
		{l.TxnChangesPath(id), ""},
		{l.TxnNextIDsPath(id), "0 0\n"},
	} {
		if err := os.WriteFile(seed.path, []byte(seed.content), 0600); err != nil {
			os.RemoveAll(l.TxnDir(id))
			return nil, err
		}
	}

	t := &Transaction{
		ID:         id,
		BaseRev:    baseRev,
		layout:     l,
		nextNodeID: cur.NextNode,
		nextCopyID: cur.NextCopy,
		nodes:      map[string]*nodeState{},
		revProps:   map[string]string{},
	}

	rootOld, err := readNodeRevAt(l, baseRev, rootOffsetOf(l, baseRev))
	if err != nil {
		os.RemoveAll(l.TxnDir(id))
		return nil, err
	}
	root := t.cloneFrom(rootOld, "/")
	t.nodes[nodeKey(root.id)] = root
	t.rootKey = nodeKey(root.id)

	if err := t.saveMeta(); err != nil {
		os.RemoveAll(l.TxnDir(id))
		return nil, err
	}
	return t, nil
}

// Resume reopens an existing transaction scratch directory. The tree
// state is rebuilt lazily from the repository as paths are touched
// again, matching the clone-on-write model: a Resume'd transaction
// behaves exactly like one that has not yet mutated anything beyond
// the root.
func Resume(l *repo.Layout, id string) (*Transaction, error) {
	data, err := os.ReadFile(l.TxnMetaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errtypes.NotFound("transaction " + id)
		}
		return nil, err
	}
	var meta txnMeta
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return nil, errtypes.Corrupt("transaction metadata: " + id)
	}
	t := &Transaction{
		ID:         id,
		BaseRev:    meta.BaseRev,
		layout:     l,
		nextNodeID: meta.NextNodeID,
		nextCopyID: meta.NextCopyID,
		nodes:      map[string]*nodeState{},
		revProps:   map[string]string{},
	}
	rootOld, err := readNodeRevAt(l, meta.BaseRev, rootOffsetOf(l, meta.BaseRev))
	if err != nil {
		return nil, err
	}
	root := t.cloneFrom(rootOld, "/")
	t.nodes[nodeKey(root.id)] = root
	t.rootKey = nodeKey(root.id)
	return t, nil
}

// txnMeta is the scratch bookkeeping persisted alongside a
// transaction's node-id allocator. It carries no wire-compatibility
// requirement (nothing outside this engine ever reads it), so it is
// encoded with msgpack rather than the line-oriented formats the
// committed revision files use.
type txnMeta struct {
	BaseRev    uint64
	NextNodeID uint64
	NextCopyID uint64
}

func (t *Transaction) saveMeta() error {
	data, err := msgpack.Marshal(txnMeta{BaseRev: t.BaseRev, NextNodeID: t.nextNodeID, NextCopyID: t.nextCopyID})
	if err != nil {
		return err
	}
	return os.WriteFile(t.layout.TxnMetaPath(t.ID), data, 0600)
}

func (t *Transaction) allocNodeID() string {
	id := t.nextNodeID
	t.nextNodeID++
	return strconv.FormatUint(id, 10)
}

func (t *Transaction) allocCopyID() string {
	id := t.nextCopyID
	t.nextCopyID++
	return strconv.FormatUint(id, 10)
}

// cloneFrom builds a mutable clone of a committed node-revision,
// preserving its node_id/copy_id (identity survives a plain edit) and
// recording it as this clone's predecessor. The clone's copyfrom is
// cleared: only an explicit Copy sets one, a successor of a copy is
// not itself a copy.
func (t *Transaction) cloneFrom(old revfile.NodeRev, createdPath string) *nodeState {
	ns := &nodeState{
		id:          revfile.ID{NodeID: old.ID.NodeID, CopyID: old.ID.CopyID, Txn: t.ID},
		kind:        old.Kind,
		pred:        &old.ID,
		count:       old.Count + 1,
		createdPath: createdPath,
		copyRoot:    old.CopyRoot,
		baseProps:   old.Props,
		baseText:    old.Text,
	}
	return ns
}

func readNodeRevAt(l *repo.Layout, rev, offset uint64) (revfile.NodeRev, error) {
	f, err := l.OpenRevFile(rev)
	if err != nil {
		if os.IsNotExist(err) {
			return revfile.NodeRev{}, errtypes.NotFound(fmt.Sprintf("revision %d", rev))
		}
		return revfile.NodeRev{}, err
	}
	defer f.Close()
	if _, err := f.Seek(int64(offset), 0); err != nil {
		return revfile.NodeRev{}, err
	}
	return revfile.ReadNodeRevHeader(bufio.NewReader(f), rev, "")
}

func rootOffsetOf(l *repo.Layout, rev uint64) uint64 {
	f, err := l.OpenRevFile(rev)
	if err != nil {
		return 0
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0
	}
	tr, err := revfile.ReadTrailer(f, st.Size(), l.RevPath(rev))
	if err != nil {
		return 0
	}
	return tr.RootOffset
}

// loadProps populates ns.props from its base representation, if not
// already loaded.
func (ns *nodeState) loadProps(open reptree.RevOpener) error {
	if ns.propsSet {
		return nil
	}
	ns.props = map[string]string{}
	if ns.baseProps != nil {
		raw, err := reptree.Read(open, *ns.baseProps)
		if err != nil {
			return err
		}
		m, err := decodeHash(raw)
		if err != nil {
			return err
		}
		for k, v := range m {
			ns.props[k] = string(v)
		}
	}
	ns.propsSet = true
	return nil
}

// loadEntries populates ns.entries from its base representation, if
// not already loaded. Only valid for directory nodes.
func (ns *nodeState) loadEntries(open *repo.Layout) error {
	if ns.entriesLoaded {
		return nil
	}
	ns.entries = map[string]dirEntryRef{}
	if ns.baseText != nil {
		raw, err := reptree.Read(open, *ns.baseText)
		if err != nil {
			return err
		}
		m, err := decodeHash(raw)
		if err != nil {
			return err
		}
		for name, val := range m {
			ref, err := decodeDirEntry(string(val))
			if err != nil {
				return err
			}
			ns.entries[name] = ref
		}
	}
	ns.entriesLoaded = true
	return nil
}

// resolveNode walks path from the root, cloning committed nodes into
// this transaction on write as it descends, and returns the
// (now-mutable) node at path. path is slash-separated and relative to
// the repository root; "" or "/" refers to the root itself.
func (t *Transaction) resolveNode(path string) (*nodeState, error) {
	root := t.nodes[t.rootKey]
	clean := strings.Trim(path, "/")
	if clean == "" {
		return root, nil
	}
	parts := strings.Split(clean, "/")
	cur := root
	for i, name := range parts {
		if cur.kind != revfile.KindDir {
			return nil, errtypes.InvalidArgument("not a directory: " + strings.Join(parts[:i], "/"))
		}
		if err := cur.loadEntries(t.layout); err != nil {
			return nil, err
		}
		ref, ok := cur.entries[name]
		if !ok {
			return nil, errtypes.NotFound("/" + strings.Join(parts[:i+1], "/"))
		}
		var child *nodeState
		if ref.id.InTxn() {
			child = t.nodes[nodeKey(ref.id)]
		} else {
			old, err := readNodeRevAt(t.layout, ref.id.Rev, ref.id.Offset)
			if err != nil {
				return nil, err
			}
			child = t.cloneFrom(old, "/"+strings.Join(parts[:i+1], "/"))
			t.nodes[nodeKey(child.id)] = child
			cur.entries[name] = dirEntryRef{id: child.id, kind: child.kind}
			cur.entriesMod = true
		}
		cur = child
	}
	return cur, nil
}

// resolveParent is resolveNode for the parent directory of path, also
// returning the final path component's name. Used by mutations that
// add or remove an entry rather than editing an existing node's
// content.
func (t *Transaction) resolveParent(path string) (*nodeState, string, error) {
	clean := strings.Trim(path, "/")
	if clean == "" {
		return nil, "", errtypes.InvalidArgument("path has no parent: " + path)
	}
	idx := strings.LastIndexByte(clean, '/')
	if idx < 0 {
		parent, err := t.resolveNode("")
		return parent, clean, err
	}
	parent, err := t.resolveNode(clean[:idx])
	return parent, clean[idx+1:], err
}

// OpenRevFile satisfies reptree.RevOpener so a transaction can read
// committed base content through the same delta-chain reader used
// outside of transactions.
func (t *Transaction) OpenRevFile(rev uint64) (*os.File, error) { return t.layout.OpenRevFile(rev) }
