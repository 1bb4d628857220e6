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

package repo

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cs3org/revfs/pkg/errtypes"
	"github.com/cs3org/revfs/pkg/revfile"
	"github.com/google/uuid"
)

// Create lays out a fresh repository at root: the directory
// skeleton, the format marker, a freshly minted uuid, revision 0's
// empty-root-directory revision file, and an initial current
// pointer. Revision 0 exists from creation and holds a single empty
// root directory.
func Create(root string) (*Layout, error) {
	l := New(root)
	for _, dir := range []string{l.Root, l.RevsDir(), l.RevPropsDir(), l.TransactionsDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(l.FormatPath(), []byte(strconv.Itoa(FormatVersion)+"\n"), 0600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(l.UUIDPath(), []byte(uuid.NewString()+"\n"), 0600); err != nil {
		return nil, err
	}
	if _, err := os.Create(l.WriteLockPath()); err != nil {
		return nil, err
	}
	if err := os.WriteFile(l.RevPath(0), revfile.WriteEmptyRootRevision(), 0600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(l.RevPropsPath(0), []byte("END\n"), 0600); err != nil {
		return nil, err
	}
	if err := l.WriteCurrent(Current{Rev: 0, NextNode: 1, NextCopy: 1}); err != nil {
		return nil, err
	}
	return l, nil
}

// Open validates an existing repository's format marker and returns
// its Layout.
func Open(root string) (*Layout, error) {
	l := New(root)
	data, err := os.ReadFile(l.FormatPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errtypes.NotFound(l.FormatPath())
		}
		return nil, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errtypes.Corrupt(l.FormatPath())
	}
	if v != FormatVersion {
		return nil, errtypes.Corrupt(fmt.Sprintf("%s: unsupported format %d", l.FormatPath(), v))
	}
	return l, nil
}

// Youngest returns the youngest committed revision number.
func (l *Layout) Youngest() (uint64, error) {
	c, err := l.ReadCurrent()
	if err != nil {
		return 0, err
	}
	return c.Rev, nil
}
