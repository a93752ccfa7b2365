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

package main

import (
	"github.com/ocxlabs/ocx/internal/commands"
	"github.com/ocxlabs/ocx/internal/commands/ask"
	"github.com/ocxlabs/ocx/internal/commands/auth"
	chatcmd "github.com/ocxlabs/ocx/internal/commands/chat"
	"github.com/ocxlabs/ocx/internal/commands/docs"
	"github.com/ocxlabs/ocx/internal/commands/search"
	"github.com/ocxlabs/ocx/internal/commands/serve"
	"github.com/ocxlabs/ocx/internal/commands/shared"
	versioncmd "github.com/ocxlabs/ocx/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	shared.SetVersion(version, commit, buildDate)

	rootCmd := commands.NewRootCommand()
	rootCmd.AddCommand(chatcmd.NewCommand())
	rootCmd.AddCommand(ask.NewCommand())
	rootCmd.AddCommand(auth.NewCommand())
	rootCmd.AddCommand(docs.NewCommand())
	rootCmd.AddCommand(search.NewCommand())
	rootCmd.AddCommand(serve.NewCommand())
	rootCmd.AddCommand(versioncmd.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		shared.Fatal(err)
	}
}
