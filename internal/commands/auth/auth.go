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

// Package auth manages provider API keys in the OS keychain.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ocxlabs/ocx/pkg/llm"
)

// keyedProviders are the providers that authenticate with an API key.
var keyedProviders = []string{"anthropic", "openai"}

// NewCommand creates the auth command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider API keys",
		Long: `Manage provider API keys stored in the system keychain.

Keys set here are used when the matching environment variable
(ANTHROPIC_API_KEY, OPENAI_API_KEY) is not set.`,
	}
	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newRemoveCommand())
	return cmd
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider>",
		Short: "Store a provider API key in the system keychain",
		Example: `  ocx auth set openai
  echo "$OPENAI_API_KEY" | ocx auth set openai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if err := validateProvider(provider); err != nil {
				return err
			}

			key, err := readKey(cmd, provider)
			if err != nil {
				return err
			}
			if err := llm.StoreAPIKey(provider, key); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s API key in the system keychain.\n", provider)
			return nil
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <provider>",
		Short: "Remove a provider API key from the system keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if err := validateProvider(provider); err != nil {
				return err
			}
			if err := llm.DeleteAPIKey(provider); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s API key from the system keychain.\n", provider)
			return nil
		},
	}
}

func validateProvider(name string) error {
	if slices.Contains(keyedProviders, name) {
		return nil
	}
	return fmt.Errorf("unknown provider %q (expected one of: %s)",
		name, strings.Join(keyedProviders, ", "))
}

// readKey reads the API key without echo when stdin is a terminal,
// otherwise it takes the first line of piped input.
func readKey(cmd *cobra.Command, provider string) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(cmd.OutOrStdout(), "Enter %s API key: ", provider)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return validateKey(string(raw))
	}

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return "", fmt.Errorf("no API key provided")
	}
	return validateKey(scanner.Text())
}

func validateKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("no API key provided")
	}
	return key, nil
}
