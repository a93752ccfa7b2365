// Copyright 2025 The ocx Authors
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

package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history", "ocx.db")
	store, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user", "", "how do I expose a service?"))
	require.NoError(t, store.Append(ctx, "assistant", "", "Use oc expose."))
	require.NoError(t, store.Append(ctx, "user", "docs", "routes"))

	turns, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 3)

	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "how do I expose a service?", turns[0].Content)
	assert.Equal(t, "docs", turns[2].Command)
	assert.False(t, turns[0].CreatedAt.IsZero())
}

func TestRecentLimitsAndOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user", "", "first"))
	require.NoError(t, store.Append(ctx, "user", "", "second"))
	require.NoError(t, store.Append(ctx, "user", "", "third"))

	turns, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	// Oldest-first within the window.
	assert.Equal(t, "second", turns[0].Content)
	assert.Equal(t, "third", turns[1].Content)
}

func TestRecentZeroIsEmpty(t *testing.T) {
	store := newTestStore(t)

	turns, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user", "", "hello"))
	require.NoError(t, store.Clear(ctx))

	turns, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}
