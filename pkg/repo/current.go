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

	"github.com/cs3org/revfs/pkg/errtypes"
)

// Current is the parsed form of the `current` file: the youngest
// committed revision and the next available (node_id, copy_id).
type Current struct {
	Rev      uint64
	NextNode uint64
	NextCopy uint64
}

// ReadCurrent reads and parses the current pointer file.
func (l *Layout) ReadCurrent() (Current, error) {
	data, err := os.ReadFile(l.CurrentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Current{}, errtypes.NotFound(l.CurrentPath())
		}
		return Current{}, err
	}
	var c Current
	n, err := fmt.Sscanf(string(data), "%d %d %d\n", &c.Rev, &c.NextNode, &c.NextCopy)
	if err != nil || n != 3 {
		return Current{}, errtypes.Corrupt(l.CurrentPath())
	}
	return c, nil
}

// WriteCurrent atomically promotes a new current pointer into place,
// the final step of commit.
func (l *Layout) WriteCurrent(c Current) error {
	tmp := l.CurrentPath() + ".tmp"
	line := fmt.Sprintf("%d %d %d\n", c.Rev, c.NextNode, c.NextCopy)
	if err := os.WriteFile(tmp, []byte(line), 0600); err != nil {
		return err
	}
	return MoveIntoPlace(tmp, l.CurrentPath(), l.CurrentPath())
}
