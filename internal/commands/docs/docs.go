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

// Package docs implements the documentation lookup command.
package docs

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ocxlabs/ocx/internal/chat"
	"github.com/ocxlabs/ocx/internal/commands/shared"
)

// NewCommand creates the docs command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "docs <topic>...",
		Short: "Fetch official OpenShift documentation",
		Example: `  ocx docs create a route
  ocx docs persistent volume claims`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.RunOneShot(cmd, chat.Request{
				Command: chat.CommandDocs,
				Prompt:  strings.Join(args, " "),
			})
		},
	}
}
