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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := Root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateRepoThenCommitAndCat(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	_, err := runRoot(t, "create-repo", repoPath)
	require.NoError(t, err)

	localFile := filepath.Join(t.TempDir(), "contents.txt")
	require.NoError(t, os.WriteFile(localFile, []byte("payload\n"), 0600))

	out, err := runRoot(t, "commit", repoPath,
		"--op", "mkfile:/f",
		"--op", "set:/f:"+localFile,
	)
	require.NoError(t, err)
	require.Equal(t, "1\n", out)

	out, err = runRoot(t, "cat", repoPath, "1", "/f")
	require.NoError(t, err)
	require.Equal(t, "payload\n", out)
}

func TestCommitRejectsMalformedOp(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	_, err := runRoot(t, "create-repo", repoPath)
	require.NoError(t, err)

	_, err = runRoot(t, "commit", repoPath, "--op", "nocolonhere")
	require.Error(t, err)
}

func TestCommitRejectsUnknownOpKind(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	_, err := runRoot(t, "create-repo", repoPath)
	require.NoError(t, err)

	_, err = runRoot(t, "commit", repoPath, "--op", "bogus:/x")
	require.Error(t, err)
}

func TestCommitWithDirAndCopyAndRemove(t *testing.T) {
	repoPath := filepath.Join(t.TempDir(), "repo")
	_, err := runRoot(t, "create-repo", repoPath)
	require.NoError(t, err)

	localFile := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(localFile, []byte("orig\n"), 0600))

	out, err := runRoot(t, "commit", repoPath,
		"--op", "mkdir:/d",
		"--op", "mkfile:/d/a",
		"--op", "set:/d/a:"+localFile,
	)
	require.NoError(t, err)
	require.Equal(t, "1\n", out)

	out, err = runRoot(t, "commit", repoPath,
		"--op", "copy:/d/b:1:/d/a",
		"--op", "rm:/d/a",
	)
	require.NoError(t, err)
	require.Equal(t, "2\n", out)

	out, err = runRoot(t, "cat", repoPath, "2", "/d/b")
	require.NoError(t, err)
	require.Equal(t, "orig\n", out)

	_, err = runRoot(t, "cat", repoPath, "2", "/d/a")
	require.Error(t, err)

	// The earlier revision is unaffected.
	out, err = runRoot(t, "cat", repoPath, "1", "/d/a")
	require.NoError(t, err)
	require.Equal(t, "orig\n", out)
}

func TestDiffCommandPrintsUnifiedDiff(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.txt")
	fileB := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(fileA, []byte("a\nb\nc\n"), 0600))
	require.NoError(t, os.WriteFile(fileB, []byte("a\nB\nc\n"), 0600))

	out, err := runRoot(t, "diff", fileA, fileB)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "--- "+fileA+"\t"))
	require.Contains(t, out, "\n+++ "+fileB+"\t")
	require.Contains(t, out, "-b\n+B\n")
}

func TestDiffCommandShowCFunctionAnnotatesHunks(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.c")
	fileB := filepath.Join(dir, "b.c")
	src := "static int answer(void)\n{\n  int a = 1;\n  int b = 2;\n  int c = 3;\n  int d = 4;\n  return 42;\n}\n"
	require.NoError(t, os.WriteFile(fileA, []byte(src), 0600))
	require.NoError(t, os.WriteFile(fileB, []byte(strings.Replace(src, "return 42;", "return 0;", 1)), 0600))

	out, err := runRoot(t, "diff", "-p", fileA, fileB)
	require.NoError(t, err)
	require.Contains(t, out, "@@ static int answer(void)\n")
}

func TestDiffCommandRejectsUnknownOption(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(fileA, []byte("a\n"), 0600))

	_, err := runRoot(t, "diff", "--no-such-option", fileA, fileA)
	require.Error(t, err)
}

func TestMerge3CommandReturnsErrorOnConflict(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.txt")
	mine := filepath.Join(dir, "mine.txt")
	theirs := filepath.Join(dir, "theirs.txt")
	require.NoError(t, os.WriteFile(base, []byte("one\ntwo\nthree\n"), 0600))
	require.NoError(t, os.WriteFile(mine, []byte("one\nTWO-M\nthree\n"), 0600))
	require.NoError(t, os.WriteFile(theirs, []byte("one\nTWO-T\nthree\n"), 0600))

	out, err := runRoot(t, "merge3", base, mine, theirs)
	require.ErrorIs(t, err, errMergeConflicted)
	require.Contains(t, out, "<<<<<<< mine\n")
	require.Contains(t, out, ">>>>>>> theirs\n")
}

func TestMerge3CommandNoConflict(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.txt")
	mine := filepath.Join(dir, "mine.txt")
	theirs := filepath.Join(dir, "theirs.txt")
	require.NoError(t, os.WriteFile(base, []byte("one\ntwo\nthree\n"), 0600))
	require.NoError(t, os.WriteFile(mine, []byte("ONE\ntwo\nthree\n"), 0600))
	require.NoError(t, os.WriteFile(theirs, []byte("one\ntwo\nTHREE\n"), 0600))

	out, err := runRoot(t, "merge3", base, mine, theirs)
	require.NoError(t, err)
	require.Equal(t, "ONE\ntwo\nTHREE\n", out)
}
