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

// Package commands holds the ocx CLI command tree.
package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ocxlabs/ocx/internal/commands/shared"
	"github.com/ocxlabs/ocx/internal/tracing"
)

// NewRootCommand builds the ocx root command.
func NewRootCommand() *cobra.Command {
	var (
		traceEnabled  bool
		traceShutdown func(context.Context) error
	)

	cmd := &cobra.Command{
		Use:   "ocx",
		Short: "OpenShift chat assistant",
		Long: `ocX is an AI assistant specialized for Red Hat OpenShift.

It answers questions with a language model, fetches official
documentation through an MCP backend, and searches Stack Overflow
for community solutions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !traceEnabled {
				return nil
			}
			v, _, _ := shared.GetVersion()
			shutdown, err := tracing.Setup("ocx", v)
			if err != nil {
				return err
			}
			traceShutdown = shutdown
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if traceShutdown == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = traceShutdown(ctx)
		},
	}

	cmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "export spans to stderr")

	return cmd
}
