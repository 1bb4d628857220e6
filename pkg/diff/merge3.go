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

import "io"

// edit is a maximal run of non-equal ops, expressed as the base range
// it replaces and the range of the other input's tokens it replaces
// it with.
type edit struct{ a0, a1, b0, b1 int }

func extractEdits(ops []Op) []edit {
	var edits []edit
	i := 0
	for i < len(ops) {
		if ops[i].Kind == OpEqual {
			i++
			continue
		}
		e := edit{a0: ops[i].A0, a1: ops[i].A1, b0: ops[i].B0, b1: ops[i].B1}
		j := i + 1
		for j < len(ops) && ops[j].Kind != OpEqual {
			if ops[j].A1 > e.a1 {
				e.a1 = ops[j].A1
			}
			if ops[j].B1 > e.b1 {
				e.b1 = ops[j].B1
			}
			j++
		}
		edits = append(edits, e)
		i = j
	}
	return edits
}

// Merge3Style selects how Merge3 renders its output. The marker
// shape itself never varies with
// style: every conflict always carries its mine/ancestor/theirs
// content under <<<<<<< / ||||||| / ======= / >>>>>>>. Style only
// selects what surrounds a conflict (full context, only the
// conflicting hunks) or how a conflict is resolved (markers, or
// silently picking one side).
type Merge3Style int

const (
	// StyleModifiedLatest inlines unchanged base content and cleanly
	// merged edits from either side, wrapping only genuine conflicts
	// in markers.
	StyleModifiedLatest Merge3Style = iota
	// StyleModifiedOriginalLatest renders identically to
	// StyleModifiedLatest: the marker shape already carries the
	// ancestor ||||||| line unconditionally, so the "original"
	// qualifier this style name adds is always present. Kept as a
	// distinct constant so callers can name either behavior
	// explicitly.
	StyleModifiedOriginalLatest
	// StyleModified resolves every conflict to mine's content with no
	// markers at all.
	StyleModified
	// StyleLatest resolves every conflict to theirs' content with no
	// markers at all.
	StyleLatest
	// StyleResolvedModifiedLatest is StyleModifiedLatest: edits the
	// two sides made to disjoint or identical base regions are always
	// auto-merged without markers (see sameReplacement below), so the
	// "resolved" qualifier names behavior every style already gets,
	// not a distinct rendering.
	StyleResolvedModifiedLatest
	// StyleOnlyConflicts emits only the conflicting regions, each
	// still wrapped in markers, surrounded by up to DefaultContext
	// lines of ancestor context on either side. Conflicts at most
	// twice that context apart are merged into one group with
	// the gap between them rendered in full; non-adjacent groups are
	// separated by a bare "@@\n" line.
	StyleOnlyConflicts
)

// StyleMarkers is a legacy alias for StyleModifiedLatest.
const StyleMarkers = StyleModifiedLatest

// segKind classifies one contiguous run of the merge output by where
// its content came from.
type segKind int

const (
	segClean     segKind = iota // unchanged base content
	segMineOnly                 // mine edited, theirs didn't touch this range
	segTheirOnly                // theirs edited, mine didn't touch this range
	segSame                     // both sides made the identical edit
	segConflict                 // both sides edited the same range differently
)

// segment is one step of the merge, expressed as the base range it
// covers and (for edited segments) the edit each side made there.
type segment struct {
	kind   segKind
	a0, a1 int // base token range this segment covers
	me, te edit
}

// Merge3 merges mine and theirs against their common ancestor base,
// writing the result to w and reporting whether any conflict was
// found. Edits the two sides made to disjoint base regions are
// applied independently; identical edits to the same region are
// applied once; anything else becomes a conflict, rendered per style.
func Merge3(w io.Writer, base, mine, theirs []byte, opt Options, style Merge3Style) (bool, error) {
	tb := Tokenize(base, opt)
	tm := Tokenize(mine, opt)
	tt := Tokenize(theirs, opt)

	mineEdits := extractEdits(computeTokens(base, tb, mine, tm, opt))
	theirEdits := extractEdits(computeTokens(base, tb, theirs, tt, opt))

	segs, conflicted := buildSegments(len(tb), mineEdits, theirEdits, mine, tm, theirs, tt)

	m := merger{base: base, tb: tb, mine: mine, tm: tm, theirs: theirs, tt: tt, eol: detectEOL(mine)}
	if style == StyleOnlyConflicts {
		return conflicted, m.writeOnlyConflicts(w, segs)
	}
	for _, s := range segs {
		if err := m.writeSegment(w, s, style); err != nil {
			return conflicted, err
		}
	}
	return conflicted, nil
}

// merger bundles the three tokenized sources with the marker
// end-of-line detected from the modified source's first terminator
// (falling back to "\n" when it has none).
type merger struct {
	base, mine, theirs []byte
	tb, tm, tt         []Token
	eol                string
}

func detectEOL(src []byte) string {
	for i, b := range src {
		switch b {
		case '\n':
			return "\n"
		case '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				return "\r\n"
			}
			return "\r"
		}
	}
	return "\n"
}

// buildSegments sweeps mineEdits/theirEdits in base order and records
// every step as a segment instead of writing it immediately so styles
// can post-process the sequence (StyleOnlyConflicts groups it;
// everything else renders it in order as-is).
func buildSegments(baseLen int, mineEdits, theirEdits []edit, mine []byte, tm []Token, theirs []byte, tt []Token) ([]segment, bool) {
	var segs []segment
	conflicted := false
	pos, mi, ti := 0, 0, 0

	for mi < len(mineEdits) || ti < len(theirEdits) {
		var me, te *edit
		if mi < len(mineEdits) {
			me = &mineEdits[mi]
		}
		if ti < len(theirEdits) {
			te = &theirEdits[ti]
		}

		next := pos
		switch {
		case me != nil && te != nil:
			next = min(me.a0, te.a0)
		case me != nil:
			next = me.a0
		case te != nil:
			next = te.a0
		}
		if pos < next {
			segs = append(segs, segment{kind: segClean, a0: pos, a1: next})
			pos = next
		}

		switch {
		case me != nil && te != nil && me.a0 == next && te.a0 == next && overlap(*me, *te):
			a1 := max(me.a1, te.a1)
			if sameReplacement(mine, tm, *me, theirs, tt, *te) {
				segs = append(segs, segment{kind: segSame, a0: me.a0, a1: a1, me: *me, te: *te})
			} else {
				conflicted = true
				segs = append(segs, segment{kind: segConflict, a0: me.a0, a1: a1, me: *me, te: *te})
			}
			pos = a1
			mi++
			ti++
		case me != nil && me.a0 == next:
			segs = append(segs, segment{kind: segMineOnly, a0: me.a0, a1: me.a1, me: *me})
			pos = me.a1
			mi++
		case te != nil && te.a0 == next:
			segs = append(segs, segment{kind: segTheirOnly, a0: te.a0, a1: te.a1, te: *te})
			pos = te.a1
			ti++
		}
	}
	if pos < baseLen {
		segs = append(segs, segment{kind: segClean, a0: pos, a1: baseLen})
	}
	return segs, conflicted
}

func overlap(a, b edit) bool { return a.a0 < b.a1 && b.a0 < a.a1 }

func sameReplacement(mine []byte, tm []Token, me edit, theirs []byte, tt []Token, te edit) bool {
	if me.a0 != te.a0 || me.a1 != te.a1 {
		return false
	}
	if me.b1-me.b0 != te.b1-te.b0 {
		return false
	}
	for k := 0; k < me.b1-me.b0; k++ {
		if string(tm[me.b0+k].bytes(mine)) != string(tt[te.b0+k].bytes(theirs)) {
			return false
		}
	}
	return true
}

func writeTokenRange(w io.Writer, src []byte, toks []Token, lo, hi int) error {
	if lo >= hi {
		return nil
	}
	_, err := w.Write(src[toks[lo].Start:toks[hi-1].End])
	return err
}

// writeSegment renders one segment inline, the default (non
// StyleOnlyConflicts) rendering every other style uses.
func (m *merger) writeSegment(w io.Writer, s segment, style Merge3Style) error {
	switch s.kind {
	case segClean:
		return writeTokenRange(w, m.base, m.tb, s.a0, s.a1)
	case segMineOnly:
		return writeTokenRange(w, m.mine, m.tm, s.me.b0, s.me.b1)
	case segTheirOnly:
		return writeTokenRange(w, m.theirs, m.tt, s.te.b0, s.te.b1)
	case segSame:
		return writeTokenRange(w, m.mine, m.tm, s.me.b0, s.me.b1)
	case segConflict:
		switch style {
		case StyleModified:
			return writeTokenRange(w, m.mine, m.tm, s.me.b0, s.me.b1)
		case StyleLatest:
			return writeTokenRange(w, m.theirs, m.tt, s.te.b0, s.te.b1)
		default:
			return m.writeConflict(w, s)
		}
	}
	return nil
}

// writeConflict emits one conflict block in full: mine's text, the
// ancestor range both sides diverged from, and theirs' text, under
// the usual <<<<<<< / ||||||| / ======= / >>>>>>> markers.
func (m *merger) writeConflict(w io.Writer, s segment) error {
	if _, err := io.WriteString(w, "<<<<<<< mine"+m.eol); err != nil {
		return err
	}
	if err := writeTokenRange(w, m.mine, m.tm, s.me.b0, s.me.b1); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "||||||| older"+m.eol); err != nil {
		return err
	}
	if err := writeTokenRange(w, m.base, m.tb, s.a0, s.a1); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "======="+m.eol); err != nil {
		return err
	}
	if err := writeTokenRange(w, m.theirs, m.tt, s.te.b0, s.te.b1); err != nil {
		return err
	}
	_, err := io.WriteString(w, ">>>>>>> theirs"+m.eol)
	return err
}

// writeOnlyConflicts renders StyleOnlyConflicts: every non-conflict
// segment is suppressed except for up to DefaultContext lines of
// ancestor context leading into and trailing out of each conflict,
// grouped the way groupHunks groups unified-diff hunks (conflicts
// whose context would touch or overlap merge into one group, with the
// gap between them rendered in full rather than re-suppressed).
func (m *merger) writeOnlyConflicts(w io.Writer, segs []segment) error {
	const context = DefaultContext

	var groups [][]segment
	for _, s := range segs {
		if s.kind != segConflict {
			continue
		}
		if len(groups) > 0 {
			last := groups[len(groups)-1]
			gap := s.a0 - last[len(last)-1].a1
			if gap <= 2*context {
				groups[len(groups)-1] = append(last, s)
				continue
			}
		}
		groups = append(groups, []segment{s})
	}

	for gi, g := range groups {
		if gi > 0 {
			if _, err := io.WriteString(w, "@@\n"); err != nil {
				return err
			}
		}
		leadStart := max(g[0].a0-context, 0)
		if err := writeTokenRange(w, m.base, m.tb, leadStart, g[0].a0); err != nil {
			return err
		}
		for i, c := range g {
			if i > 0 {
				if err := writeTokenRange(w, m.base, m.tb, g[i-1].a1, c.a0); err != nil {
					return err
				}
			}
			if err := m.writeConflict(w, c); err != nil {
				return err
			}
		}
		last := g[len(g)-1]
		trailEnd := min(last.a1+context, len(m.tb))
		if err := writeTokenRange(w, m.base, m.tb, last.a1, trailEnd); err != nil {
			return err
		}
	}
	return nil
}
