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
	"strings"

	"github.com/cs3org/revfs/pkg/revfile"
)

// foldChanges collapses a path's repeated edits within one transaction
// into the single changed-path entry that describes the net effect:
// an add immediately undone by a delete leaves no trace at all, a
// delete followed by a fresh add at the same path becomes a replace,
// and repeated modifies just union their text/prop flags. A delete or
// replace also drops every previously recorded entry strictly below
// that path, since the old subtree those entries described is gone.
func foldChanges(changes []pendingChange) []pendingChange {
	var order []string
	folded := map[string]pendingChange{}

	for _, c := range changes {
		if prev, seen := folded[c.path]; seen {
			if merged, keep := mergeChange(prev, c); keep {
				folded[c.path] = merged
			} else {
				delete(folded, c.path)
			}
		} else if c.kind != revfile.ChangeReset {
			// A reset on a path with nothing recorded has nothing to
			// clear and records nothing itself.
			folded[c.path] = c
			order = append(order, c.path)
		}
		if c.kind == revfile.ChangeDelete || c.kind == revfile.ChangeReplace {
			removeDescendants(folded, c.path)
		}
	}

	out := make([]pendingChange, 0, len(order))
	emitted := map[string]bool{}
	for _, p := range order {
		c, ok := folded[p]
		if !ok || emitted[p] {
			continue
		}
		emitted[p] = true
		out = append(out, c)
	}
	return out
}

// removeDescendants drops every recorded entry whose path is a strict
// descendant of path.
func removeDescendants(folded map[string]pendingChange, path string) {
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range folded {
		if p != path && strings.HasPrefix(p, prefix) {
			delete(folded, p)
		}
	}
}

// mergeChange folds one more change into a path's running state: given
// the already-folded state of a path (prev) and its next change in
// transaction order (next), it returns the new folded state and
// whether the path still has an entry at all (an add undone by a
// delete does not). Combinations that can't arise through the
// mutate.go API (it already rejects e.g. adding over an existing
// entry) fall through to the same flag-union behavior as the modify
// case rather than being rejected here.
func mergeChange(prev, next pendingChange) (pendingChange, bool) {
	switch prev.kind {
	case revfile.ChangeAdd:
		switch next.kind {
		case revfile.ChangeDelete, revfile.ChangeReset:
			// an add undone within the same transaction leaves no trace.
			return pendingChange{}, false
		default:
			merged := next
			merged.kind = revfile.ChangeAdd
			merged.textMod = prev.textMod || next.textMod
			merged.propMod = prev.propMod || next.propMod
			if prev.hasCopyFrom && !next.hasCopyFrom {
				merged.hasCopyFrom = true
				merged.copyFromRev = prev.copyFromRev
				merged.copyFromPath = prev.copyFromPath
			}
			return merged, true
		}
	case revfile.ChangeDelete:
		switch next.kind {
		case revfile.ChangeAdd, revfile.ChangeReplace:
			// delete followed by a fresh add/replace nets to a replace
			// carrying the new node's id and copyfrom.
			merged := next
			merged.kind = revfile.ChangeReplace
			return merged, true
		case revfile.ChangeReset:
			merged := prev
			merged.kind = revfile.ChangeReset
			merged.hasCopyFrom = false
			return merged, true
		default:
			merged := next
			merged.textMod = prev.textMod || next.textMod
			merged.propMod = prev.propMod || next.propMod
			return merged, true
		}
	default: // modify or replace
		switch next.kind {
		case revfile.ChangeDelete:
			// the node never survives to this revision: the net effect is
			// a delete, not the modify/replace that preceded it.
			merged := next
			merged.kind = revfile.ChangeDelete
			merged.textMod = prev.textMod || next.textMod
			merged.propMod = prev.propMod || next.propMod
			merged.hasCopyFrom = false
			return merged, true
		case revfile.ChangeReplace:
			merged := next
			merged.kind = revfile.ChangeReplace
			return merged, true
		case revfile.ChangeReset:
			merged := next
			merged.kind = revfile.ChangeReset
			merged.hasCopyFrom = false
			return merged, true
		default: // modify: OR flags, kind unchanged
			merged := next
			merged.kind = prev.kind
			merged.textMod = prev.textMod || next.textMod
			merged.propMod = prev.propMod || next.propMod
			if prev.hasCopyFrom && !next.hasCopyFrom {
				merged.hasCopyFrom = true
				merged.copyFromRev = prev.copyFromRev
				merged.copyFromPath = prev.copyFromPath
			}
			return merged, true
		}
	}
}
