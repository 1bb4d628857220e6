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

// ChangeKind enumerates the kinds a changed-path log entry can carry.
type ChangeKind string

const (
	ChangeModify  ChangeKind = "modify"
	ChangeAdd     ChangeKind = "add"
	ChangeDelete  ChangeKind = "delete"
	ChangeReplace ChangeKind = "replace"
	ChangeReset   ChangeKind = "reset"
)

// Change is one changed-path log entry.
type Change struct {
	Path         string
	ID           *ID // nil for "reset"
	Kind         ChangeKind
	TextMod      bool
	PropMod      bool
	CopyFromRev  uint64
	CopyFromPath string
	HasCopyFrom  bool
}

// ReadChange reads one changed-path log entry: the entry line,
// followed by either a blank line or a copyfrom line.
func ReadChange(r *bufio.Reader) (Change, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return Change{}, io.EOF
		}
		return Change{}, errtypes.Corrupt("truncated changed-path entry")
	}
	line = strings.TrimSuffix(line, "\n")
	fields := strings.SplitN(line, " ", 5)
	if len(fields) != 5 {
		return Change{}, errtypes.Corrupt("malformed changed-path entry: " + line)
	}
	var c Change
	if fields[0] != "reset" {
		id, err := ParseID(fields[0])
		if err != nil {
			return Change{}, err
		}
		c.ID = &id
	}
	switch ChangeKind(fields[1]) {
	case ChangeModify, ChangeAdd, ChangeDelete, ChangeReplace, ChangeReset:
		c.Kind = ChangeKind(fields[1])
	default:
		return Change{}, errtypes.Corrupt("invalid change action: " + fields[1])
	}
	c.TextMod, err = parseBoolFlag(fields[2])
	if err != nil {
		return Change{}, err
	}
	c.PropMod, err = parseBoolFlag(fields[3])
	if err != nil {
		return Change{}, err
	}
	c.Path = fields[4]

	cfLine, err := r.ReadString('\n')
	if err != nil {
		return Change{}, errtypes.Corrupt("truncated changed-path copyfrom line")
	}
	cfLine = strings.TrimSuffix(cfLine, "\n")
	if cfLine != "" {
		idx := strings.IndexByte(cfLine, ' ')
		if idx < 0 {
			return Change{}, errtypes.Corrupt("malformed copyfrom line: " + cfLine)
		}
		rev, err := strconv.ParseUint(cfLine[:idx], 10, 64)
		if err != nil {
			return Change{}, errtypes.Corrupt("malformed copyfrom line: " + cfLine)
		}
		c.HasCopyFrom = true
		c.CopyFromRev = rev
		c.CopyFromPath = cfLine[idx+1:]
	}
	return c, nil
}

func parseBoolFlag(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errtypes.Corrupt("invalid boolean flag: " + s)
	}
}

// WriteChange appends one changed-path log entry, preserving the
// two-line shape existing repositories expect.
func WriteChange(w io.Writer, c Change) error {
	idTok := "reset"
	if c.ID != nil {
		idTok = c.ID.String()
	}
	_, err := fmt.Fprintf(w, "%s %s %s %s %s\n", idTok, c.Kind, boolFlag(c.TextMod), boolFlag(c.PropMod), c.Path)
	if err != nil {
		return err
	}
	if c.HasCopyFrom {
		_, err = fmt.Fprintf(w, "%d %s\n", c.CopyFromRev, c.CopyFromPath)
	} else {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

func boolFlag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
