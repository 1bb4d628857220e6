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

package applog

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFromContextReturnsAttachedLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), l)
	got := FromContext(ctx)
	got.Info().Msg("hello")

	require.Contains(t, buf.String(), "hello")
}

func TestFromContextFallsBackToDefaultLogger(t *testing.T) {
	got := FromContext(context.Background())
	require.NotNil(t, got)
	require.Same(t, &base, got)
}

func TestWithLoggerIsolatesDistinctContexts(t *testing.T) {
	var bufA, bufB bytes.Buffer
	ctxA := WithLogger(context.Background(), zerolog.New(&bufA))
	ctxB := WithLogger(context.Background(), zerolog.New(&bufB))

	FromContext(ctxA).Info().Msg("to-a")
	FromContext(ctxB).Info().Msg("to-b")

	require.Contains(t, bufA.String(), "to-a")
	require.NotContains(t, bufA.String(), "to-b")
	require.Contains(t, bufB.String(), "to-b")
	require.NotContains(t, bufB.String(), "to-a")
}
