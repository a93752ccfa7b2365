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

// Package chat implements the interactive chat command.
package chat

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	chatpkg "github.com/ocxlabs/ocx/internal/chat"
	"github.com/ocxlabs/ocx/internal/commands/shared"
)

// NewCommand creates the chat command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the OpenShift assistant.

Inside the session, use /docs <topic> for official documentation,
/search <query> for Stack Overflow, and /explain <snippet> to have
code explained. /clear wipes the saved history; type exit to quit.`,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := shared.BuildApp(shared.Options{EnableHistory: true, WatchConfig: true})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repl := chatpkg.NewREPL(app.Assistant, os.Stdin, os.Stdout)
	if store := app.History(); store != nil {
		repl.SetHistory(store)
	}
	if err := repl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
