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

package reptree

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pkg/xattr"
)

// md5AttrName names the extended attribute a plain representation's
// last-verified MD5 is cached under, keyed by its offset since a
// single revision file holds many representations.
func md5AttrName(offset uint64) string {
	return fmt.Sprintf("user.revfs.md5.%d", offset)
}

// verifiedByXattr reports whether f already carries a cached
// last-verified MD5 for the plain representation at offset matching
// want. A miss (attribute absent, unsupported filesystem, or stale
// value) simply means the caller falls back to hashing the bytes
// itself; this cache is an accelerator, never a substitute for the
// MD5 verification every full read of the top-level representation
// already performs.
func verifiedByXattr(f *os.File, offset uint64, want [16]byte) bool {
	got, err := xattr.FGet(f, md5AttrName(offset))
	if err != nil {
		return false
	}
	return hex.EncodeToString(want[:]) == string(got)
}

// markVerifiedXattr records that the plain representation at offset
// hashed to sum. Best-effort: filesystems without xattr support (or a
// read-only mount) silently skip the cache.
func markVerifiedXattr(f *os.File, offset uint64, sum [16]byte) {
	_ = xattr.FSet(f, md5AttrName(offset), []byte(hex.EncodeToString(sum[:])))
}
