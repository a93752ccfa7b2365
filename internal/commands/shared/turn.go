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

package shared

import (
	goerrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ocxlabs/ocx/internal/chat"
)

// ErrTurnFailed signals that a one-shot turn ended with a rendered
// error. The detail has already been written to the stream.
var ErrTurnFailed = goerrors.New("the request could not be completed")

// RunOneShot assembles the app, runs a single chat turn against the
// terminal, and maps a rendered error to a non-zero exit.
func RunOneShot(cmd *cobra.Command, req chat.Request) error {
	app, err := BuildApp(Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := chat.NewTerminalStream(os.Stdout)
	result := app.Assistant.Handle(ctx, req, stream)
	stream.Flush()

	if result.ErrorMessage != "" {
		return ErrTurnFailed
	}
	return nil
}
