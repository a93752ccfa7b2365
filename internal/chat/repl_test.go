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

package chat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClearer struct {
	calls int
	err   error
}

func (f *fakeClearer) Clear(_ context.Context) error {
	f.calls++
	return f.err
}

func runREPL(t *testing.T, input string, history HistoryClearer) string {
	t.Helper()

	assistant, _ := newTestAssistant(t, Config{})
	out, err := os.Create(filepath.Join(t.TempDir(), "repl.out"))
	require.NoError(t, err)
	defer out.Close()

	repl := NewREPL(assistant, strings.NewReader(input), out)
	if history != nil {
		repl.SetHistory(history)
	}
	require.NoError(t, repl.Run(context.Background()))

	data, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	return string(data)
}

func TestREPLClearWipesHistory(t *testing.T) {
	clearer := &fakeClearer{}

	out := runREPL(t, "/clear\nexit\n", clearer)

	assert.Equal(t, 1, clearer.calls)
	assert.Contains(t, out, "Chat history cleared.")
}

func TestREPLClearWithoutHistory(t *testing.T) {
	out := runREPL(t, "/clear\nexit\n", nil)

	assert.Contains(t, out, "Chat history is not enabled.")
}
