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
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the repository-wide tunables kept in the "conf"
// file: a struct tagged for toml.Decode, with defaults applied
// before the file is read so a missing or partial conf is never an
// error.
type Config struct {
	// DeltaCompressionLevel: 0 disables deltification entirely (every
	// write is PLAIN), >0 enables it. Only 0/1 are meaningful since
	// there is a single svndiff encoding strategy, not a tunable
	// compressor.
	DeltaCompressionLevel int `toml:"delta-compression-level"`

	// MaxFilesPerDirectory is accepted but unused: revs/ and
	// revprops/ are never sharded into numbered subdirectories.
	MaxFilesPerDirectory int `toml:"max-files-per-directory"`

	// Diff holds default normalization options for diff/merge. Nothing
	// in this module reads them: the diff and merge3 subcommands take
	// their options from their own flags.
	Diff DiffConfig `toml:"diff"`
}

// DiffConfig is the on-disk shape of diff.Options. IgnoreSpace
// holds the mode name ("none", "change", or "all") rather than
// diff.IgnoreSpaceMode's int encoding, so the conf file stays
// human-readable.
type DiffConfig struct {
	IgnoreEOLStyle bool   `toml:"ignore-eol-style"`
	IgnoreSpace    string `toml:"ignore-space"`
}

// DefaultConfig is deltification on, no directory sharding,
// exact-byte comparison.
func DefaultConfig() Config {
	return Config{DeltaCompressionLevel: 1}
}

// ConfPath is the repository's configuration file.
func (l *Layout) ConfPath() string { return filepath.Join(l.Root, "conf") }

// ReadConfig loads the repository's conf file, falling back to
// DefaultConfig for any field it doesn't set and tolerating a missing
// file entirely (a freshly Create'd repository has none).
func (l *Layout) ReadConfig() (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(l.ConfPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteConfig serializes cfg to the repository's conf file.
func (l *Layout) WriteConfig(cfg Config) error {
	f, err := os.Create(l.ConfPath())
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
