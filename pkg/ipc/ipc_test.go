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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello world")))
	require.Equal(t, "11:hello world", buf.String())

	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)
}

func TestWriteThenReadFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))
	require.Equal(t, "0:", buf.String())

	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadFrameMultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("one")))
	require.NoError(t, WriteFrame(&buf, []byte("two")))

	r := bufio.NewReader(&buf)
	first, err := ReadFrame(r)
	require.NoError(t, err)
	require.Equal(t, []byte("one"), first)

	second, err := ReadFrame(r)
	require.NoError(t, err)
	require.Equal(t, []byte("two"), second)
}

func TestReadFrameRejectsMalformedLength(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("notanumber:payload")))
	_, err := ReadFrame(r)
	require.Error(t, err)
}

func TestReadFrameRejectsTruncatedPayload(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("10:short")))
	_, err := ReadFrame(r)
	require.Error(t, err)
}

func TestReadFrameRejectsMissingDelimiter(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("5payload")))
	_, err := ReadFrame(r)
	require.Error(t, err)
}
