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

package ipc

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"github.com/gofrs/flock"
)

// Helper is one spawned external-tool child process, talked to over
// the length-prefixed frame protocol in ipc.go.
type Helper struct {
	cmd    *exec.Cmd
	stdin  *bufio.Writer
	stdout *bufio.Reader
	lock   *flock.Flock
}

// Spawn starts name (with args) and wires its stdin/stdout for
// framed IPC. lockPath names a file the helper takes an exclusive
// flock on for its lifetime, independent of the repository's own
// write-lock: a second Spawn against the same lockPath blocks until
// the first helper's process is reaped, so a caller never leaks two
// copies of an external merge tool racing on the same scratch files.
func Spawn(ctx context.Context, lockPath, name string, args ...string) (*Helper, error) {
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("ipc: acquiring helper lock %s: %w", lockPath, err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return &Helper{cmd: cmd, stdin: bufio.NewWriter(stdin), stdout: bufio.NewReader(stdout), lock: lock}, nil
}

// Send writes one frame to the helper's stdin and flushes it.
func (h *Helper) Send(payload []byte) error {
	if err := WriteFrame(h.stdin, payload); err != nil {
		return err
	}
	return h.stdin.Flush()
}

// Receive reads one frame from the helper's stdout.
func (h *Helper) Receive() ([]byte, error) {
	return ReadFrame(h.stdout)
}

// Close waits for the child to exit and releases the helper lock, so
// the process is reaped before control returns to the caller.
func (h *Helper) Close() error {
	waitErr := h.cmd.Wait()
	_ = h.lock.Unlock()
	return waitErr
}
