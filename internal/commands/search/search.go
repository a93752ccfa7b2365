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

// Package search implements the community search command.
package search

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ocxlabs/ocx/internal/chat"
	"github.com/ocxlabs/ocx/internal/commands/shared"
)

// NewCommand creates the search command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>...",
		Short: "Search Stack Overflow for community solutions",
		Example: `  ocx search ImagePullBackOff
  ocx search route returns 503`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.RunOneShot(cmd, chat.Request{
				Command: chat.CommandSearch,
				Prompt:  strings.Join(args, " "),
			})
		},
	}
}
