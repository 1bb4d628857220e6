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

package revfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
)

// Kind distinguishes file and directory nodes.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// CopyFrom is the optional (rev, path) a node was copied from.
type CopyFrom struct {
	Rev  uint64
	Path string
}

// NodeRev is the immutable record for one node at one revision.
type NodeRev struct {
	ID          ID
	Kind        Kind
	Pred        *ID
	Count       int
	Text        *Rep
	Props       *Rep
	CreatedPath string
	CopyFrom    *CopyFrom
	CopyRoot    CopyFrom
}

// readHeaderBlock reads "name: value\n" lines up to the blank line
// terminator and returns them in encounter order, preserving
// duplicates (none are expected, but the caller decides).
func readHeaderBlock(r *bufio.Reader) ([][2]string, error) {
	var lines [][2]string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return nil, errtypes.Corrupt("unexpected EOF in header block")
			}
			if err != io.EOF {
				return nil, err
			}
		}
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			return lines, nil
		}
		idx := strings.Index(line, ": ")
		if idx < 0 {
			return nil, errtypes.Corrupt("malformed header line: " + line)
		}
		lines = append(lines, [2]string{line[:idx], line[idx+2:]})
	}
}

// ReadNodeRevHeader reads one node-rev header block from r.
func ReadNodeRevHeader(r *bufio.Reader, selfRev uint64, txn string) (NodeRev, error) {
	lines, err := readHeaderBlock(r)
	if err != nil {
		return NodeRev{}, err
	}
	var nr NodeRev
	var haveCopyRoot bool
	for _, kv := range lines {
		name, val := kv[0], kv[1]
		switch name {
		case "id":
			nr.ID, err = ParseID(val)
		case "type":
			switch val {
			case "file":
				nr.Kind = KindFile
			case "dir":
				nr.Kind = KindDir
			default:
				err = errtypes.Corrupt("invalid node type: " + val)
			}
		case "pred":
			var pid ID
			pid, err = ParseID(val)
			nr.Pred = &pid
		case "count":
			var c int
			c, err = strconv.Atoi(val)
			nr.Count = c
		case "text":
			var rep Rep
			rep, err = ParseRep(val, txn)
			nr.Text = &rep
		case "props":
			var rep Rep
			rep, err = ParseRep(val, txn)
			nr.Props = &rep
		case "cpath":
			nr.CreatedPath = val
		case "copyfrom":
			var cf CopyFrom
			cf, err = parseCopyFrom(val)
			nr.CopyFrom = &cf
		case "copyroot":
			nr.CopyRoot, err = parseCopyFrom(val)
			haveCopyRoot = true
		default:
			// forward compatible: unknown headers are ignored
		}
		if err != nil {
			return NodeRev{}, err
		}
	}
	if nr.CreatedPath == "" {
		return NodeRev{}, errtypes.Corrupt("node-rev missing required cpath header")
	}
	if !haveCopyRoot {
		nr.CopyRoot = CopyFrom{Rev: selfRev, Path: nr.CreatedPath}
	}
	return nr, nil
}

func parseCopyFrom(val string) (CopyFrom, error) {
	idx := strings.IndexByte(val, ' ')
	if idx < 0 {
		return CopyFrom{}, errtypes.Corrupt("malformed copyfrom/copyroot: " + val)
	}
	rev, err := strconv.ParseUint(val[:idx], 10, 64)
	if err != nil {
		return CopyFrom{}, errtypes.Corrupt("malformed copyfrom/copyroot: " + val)
	}
	return CopyFrom{Rev: rev, Path: val[idx+1:]}, nil
}

// WriteNodeRevHeader writes one node-rev header block, terminated by
// a blank line, to w.
func WriteNodeRevHeader(w io.Writer, nr NodeRev) error {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", nr.ID.String())
	fmt.Fprintf(&b, "type: %s\n", nr.Kind)
	if nr.Pred != nil {
		fmt.Fprintf(&b, "pred: %s\n", nr.Pred.String())
	}
	fmt.Fprintf(&b, "count: %d\n", nr.Count)
	if nr.Text != nil {
		fmt.Fprintf(&b, "text: %s\n", nr.Text.String())
	}
	if nr.Props != nil {
		fmt.Fprintf(&b, "props: %s\n", nr.Props.String())
	}
	fmt.Fprintf(&b, "cpath: %s\n", nr.CreatedPath)
	if nr.CopyFrom != nil {
		fmt.Fprintf(&b, "copyfrom: %d %s\n", nr.CopyFrom.Rev, nr.CopyFrom.Path)
	}
	if !(nr.CopyRoot.Rev == nr.ID.Rev && nr.CopyRoot.Path == nr.CreatedPath) {
		fmt.Fprintf(&b, "copyroot: %d %s\n", nr.CopyRoot.Rev, nr.CopyRoot.Path)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
