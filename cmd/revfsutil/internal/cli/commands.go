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

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cs3org/revfs/internal/applog"
	"github.com/cs3org/revfs/pkg/diff"
	"github.com/cs3org/revfs/pkg/ipc"
	"github.com/cs3org/revfs/pkg/repo"
	"github.com/cs3org/revfs/pkg/reptree"
	"github.com/cs3org/revfs/pkg/revfile"
	"github.com/cs3org/revfs/pkg/txn"
)

func newCreateRepoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-repo <path>",
		Short: "Lay out a fresh repository at path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := repo.Create(args[0])
			if err != nil {
				return err
			}
			applog.FromContext(cmd.Context()).Info().Str("root", l.Root).Msg("repository created")
			return nil
		},
	}
}

func newCommitCmd() *cobra.Command {
	var ops []string
	cmd := &cobra.Command{
		Use:   "commit <repo>",
		Short: "Open a transaction against the youngest revision, apply --op edits in order, and commit it",
		Long: `Opens a transaction at the repository's youngest revision, applies each
--op in the order given, and commits. Prints the new revision number on
success. Recognized --op forms:

  mkfile:<path>             create an empty file
  mkdir:<path>              create an empty directory
  set:<path>:<localfile>    replace a file's contents from localfile
  copy:<dst>:<srcrev>:<src> copy <src> as of <srcrev> to <dst>
  rm:<path>                 delete an entry`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := repo.Open(args[0])
			if err != nil {
				return err
			}
			base, err := l.Youngest()
			if err != nil {
				return err
			}
			t, err := txn.Create(l, base)
			if err != nil {
				return err
			}
			for _, op := range ops {
				if err := applyCommitOp(t, op); err != nil {
					return fmt.Errorf("--op %q: %w", op, err)
				}
			}
			rev, err := t.Commit()
			if err != nil {
				return err
			}
			applog.FromContext(cmd.Context()).Info().
				Str("txn", t.ID).Uint64("rev", rev).Int("ops", len(ops)).
				Msg("transaction committed")
			fmt.Fprintln(cmd.OutOrStdout(), rev)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&ops, "op", nil, "edit to apply before commit (repeatable); see --help")
	return cmd
}

func applyCommitOp(t *txn.Transaction, op string) error {
	idx := strings.IndexByte(op, ':')
	if idx < 0 {
		return errors.New("malformed op, expected \"<kind>:...\"")
	}
	kind, rest := op[:idx], op[idx+1:]
	switch kind {
	case "mkfile":
		return t.CreateNode(rest, revfile.KindFile)
	case "mkdir":
		return t.CreateNode(rest, revfile.KindDir)
	case "rm":
		return t.DeleteEntry(rest)
	case "set":
		path, localFile, ok := strings.Cut(rest, ":")
		if !ok {
			return errors.New("malformed set op, expected \"set:<path>:<localfile>\"")
		}
		data, err := os.ReadFile(localFile)
		if err != nil {
			return err
		}
		return t.SetFileContents(path, data)
	case "copy":
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 {
			return errors.New("malformed copy op, expected \"copy:<dst>:<srcrev>:<src>\"")
		}
		rev, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed source revision: %w", err)
		}
		return t.Copy(parts[0], rev, parts[2])
	default:
		return fmt.Errorf("unknown op kind %q", kind)
	}
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <repo> <rev> <path>",
		Short: "Stream the reconstructed contents of path as of rev to stdout",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := repo.Open(args[0])
			if err != nil {
				return err
			}
			rev, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("malformed revision: %w", err)
			}
			nr, err := txn.Lookup(l, rev, args[2])
			if err != nil {
				return err
			}
			if nr.Text == nil {
				return nil
			}
			r, err := reptree.Reader(l, *nr.Text)
			if err != nil {
				return err
			}
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		},
	}
}

func newDiffCmd() *cobra.Command {
	var ignoreSpaceChange, ignoreAllSpace, ignoreEOL, showCFunction bool
	cmd := &cobra.Command{
		Use:   "diff <fileA> <fileB>",
		Short: "Print a unified diff between two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			b, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			opt := diff.Options{
				IgnoreEOLStyle: ignoreEOL,
				IgnoreSpace:    resolveIgnoreSpace(ignoreSpaceChange, ignoreAllSpace),
				ShowCFunction:  showCFunction,
			}
			_, err = diff.WriteUnified(cmd.OutOrStdout(), a, b, opt, diff.DefaultContext,
				diffLabel(args[0]), diffLabel(args[1]))
			return err
		},
	}
	cmd.Flags().BoolVarP(&ignoreSpaceChange, "ignore-space-change", "b", false, "treat runs of whitespace as equivalent")
	cmd.Flags().BoolVarP(&ignoreAllSpace, "ignore-all-space", "w", false, "ignore all whitespace (overrides -b)")
	cmd.Flags().BoolVar(&ignoreEOL, "ignore-eol-style", false, `treat "\n", "\r", "\r\n" as equivalent line terminators`)
	cmd.Flags().BoolVarP(&showCFunction, "show-c-function", "p", false, "annotate each hunk with the enclosing C function")
	cmd.Flags().BoolP("unified", "u", true, "unified output (accepted, ignored: this engine only emits unified diffs)")
	return cmd
}

// diffLabel renders a "--- <path>\t<mtime>" file header label. A
// path that can't be stat'd (already reported by the read above in
// practice) falls back to the bare path.
func diffLabel(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return path
	}
	return path + "\t" + fi.ModTime().Format("2006-01-02 15:04:05 -0700")
}

// resolveIgnoreSpace maps -b/-w onto the whitespace normalization
// modes; -w (ignore-all-space) overrides -b.
func resolveIgnoreSpace(ignoreSpaceChange, ignoreAllSpace bool) diff.IgnoreSpaceMode {
	switch {
	case ignoreAllSpace:
		return diff.IgnoreSpaceAll
	case ignoreSpaceChange:
		return diff.IgnoreSpaceChange
	default:
		return diff.IgnoreSpaceNone
	}
}

var errMergeConflicted = errors.New("merge produced conflicts")

// mergeStyles maps the named merge rendering styles onto
// diff.Merge3Style. "markers" is kept as an alias for "modified_latest"
// for compatibility with earlier output of this command.
var mergeStyles = map[string]diff.Merge3Style{
	"modified_latest":          diff.StyleModifiedLatest,
	"modified_original_latest": diff.StyleModifiedOriginalLatest,
	"modified":                 diff.StyleModified,
	"latest":                   diff.StyleLatest,
	"resolved_modified_latest": diff.StyleResolvedModifiedLatest,
	"only_conflicts":           diff.StyleOnlyConflicts,
	"markers":                  diff.StyleModifiedLatest,
}

func newMerge3Cmd() *cobra.Command {
	var onlyConflicts bool
	var styleName, tool string
	cmd := &cobra.Command{
		Use:   "merge3 <base> <mine> <theirs>",
		Short: "Three-way merge base/mine/theirs, writing conflict markers on divergent edits",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mine, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			theirs, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			if tool != "" {
				return runMergeTool(cmd, tool, base, mine, theirs)
			}
			style, ok := mergeStyles[styleName]
			if !ok {
				return fmt.Errorf("unknown --style %q", styleName)
			}
			if onlyConflicts {
				style = diff.StyleOnlyConflicts
			}
			conflicted, err := diff.Merge3(cmd.OutOrStdout(), base, mine, theirs, diff.Options{}, style)
			if err != nil {
				return err
			}
			if conflicted {
				cmd.SilenceUsage = true
				return errMergeConflicted
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&styleName, "style", "modified_latest", "merge rendering style: modified_latest, modified_original_latest, modified, latest, resolved_modified_latest, only_conflicts")
	cmd.Flags().BoolVar(&onlyConflicts, "only-conflicts", false, "shorthand for --style only_conflicts, kept for compatibility")
	cmd.Flags().StringVar(&tool, "tool", "", "delegate the merge to an external helper speaking the length-prefixed frame protocol")
	return cmd
}

// runMergeTool hands the three inputs to an external helper process
// instead of the built-in engine: one frame each for base, mine, and
// theirs on the helper's stdin, one merged-result frame expected back
// on its stdout. The helper lock is a file in the system temporary
// directory named after the tool's base name, so two concurrent
// invocations of the same tool never race on its scratch state.
func runMergeTool(cmd *cobra.Command, tool string, base, mine, theirs []byte) error {
	lockPath := filepath.Join(os.TempDir(), "revfsutil-merge-"+filepath.Base(tool)+".lock")
	h, err := ipc.Spawn(cmd.Context(), lockPath, tool)
	if err != nil {
		return err
	}
	for _, payload := range [][]byte{base, mine, theirs} {
		if err := h.Send(payload); err != nil {
			_ = h.Close()
			return err
		}
	}
	merged, err := h.Receive()
	if err != nil {
		_ = h.Close()
		return err
	}
	applog.FromContext(cmd.Context()).Debug().Str("tool", tool).Int("bytes", len(merged)).Msg("external merge finished")
	if _, err := cmd.OutOrStdout().Write(merged); err != nil {
		_ = h.Close()
		return err
	}
	return h.Close()
}
