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

// Package shared wires the assistant's collaborators for the CLI
// commands: configuration, logging, the MCP documentation backend,
// community search, model providers, and optional chat history.
package shared

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ocxlabs/ocx/internal/chat"
	"github.com/ocxlabs/ocx/internal/config"
	"github.com/ocxlabs/ocx/internal/docs"
	"github.com/ocxlabs/ocx/internal/history"
	"github.com/ocxlabs/ocx/internal/log"
	"github.com/ocxlabs/ocx/internal/mcp"
	"github.com/ocxlabs/ocx/internal/stackoverflow"
	"github.com/ocxlabs/ocx/pkg/errors"
	"github.com/ocxlabs/ocx/pkg/llm"
	"github.com/ocxlabs/ocx/pkg/llm/providers"
)

// Version information injected via ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion stores build-time version metadata.
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns version, commit, and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// defaultProviderOrder decides which active provider becomes the default.
var defaultProviderOrder = []string{"openai", "anthropic", "ollama"}

// Options selects optional app features.
type Options struct {
	// EnableHistory opens the transcript store (interactive chat only).
	EnableHistory bool

	// WatchConfig hot-reloads mcp.json on change.
	WatchConfig bool
}

// App is the assembled application.
type App struct {
	Config    config.App
	Logger    *slog.Logger
	Assistant *chat.Assistant
	Registry  *llm.Registry

	resolver *docs.Resolver
	client   *mcp.Switchable
	store    *history.Store
	watcher  *config.Watcher
}

// BuildApp loads configuration and assembles the assistant.
func BuildApp(opts Options) (*App, error) {
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	appCfg := config.DefaultApp()
	if path, err := config.AppConfigPath(); err == nil {
		var loadErr error
		appCfg, loadErr = config.LoadApp(path)
		if loadErr != nil {
			logger.Warn("could not load app config, using defaults", log.ErrorKey, loadErr)
		}
	}

	mcpPath, err := config.MCPConfigPath()
	if err != nil {
		return nil, errors.Wrap(err, "locating config directory")
	}
	mcpCfg, loadErr := config.LoadMCP(mcpPath)
	if loadErr != nil {
		logger.Warn("using default documentation backend", log.ErrorKey, loadErr)
	}

	inner, err := newDocsClient(mcpCfg, logger)
	if err != nil {
		return nil, err
	}
	client := mcp.NewSwitchable(inner)
	resolver := docs.NewResolver(client, logger)

	search, err := stackoverflow.New(stackoverflow.Config{Logger: logger})
	if err != nil {
		client.Close()
		return nil, err
	}

	registry := llm.NewRegistry()
	providers.RegisterAll(registry)
	activateProviders(registry, logger)

	app := &App{
		Config:   appCfg,
		Logger:   logger,
		Registry: registry,
		resolver: resolver,
		client:   client,
	}

	var transcript chat.Transcript
	if opts.EnableHistory && !appCfg.History.Disabled {
		if store, err := openHistory(logger); err != nil {
			logger.Warn("chat history disabled", log.ErrorKey, err)
		} else {
			app.store = store
			transcript = store
		}
	}

	app.Assistant = chat.NewAssistant(chat.Config{
		Registry:        registry,
		Docs:            resolver,
		Search:          search,
		Transcript:      transcript,
		PreferredModels: appCfg.Models.Preferred,
		Logger:          logger,
	})

	if opts.WatchConfig {
		watcher, err := config.WatchMCP(mcpPath, func(updated config.MCP) {
			replacement, err := newDocsClient(updated, logger)
			if err != nil {
				logger.Error("config reload: could not build documentation client", log.ErrorKey, err)
				return
			}
			if err := client.Swap(replacement); err != nil {
				logger.Warn("config reload: closing previous client", log.ErrorKey, err)
			}
			logger.Info("documentation backend reloaded")
		}, logger)
		if err != nil {
			logger.Warn("config hot-reload disabled", log.ErrorKey, err)
		} else {
			app.watcher = watcher
		}
	}

	return app, nil
}

// History returns the transcript store, or nil when history is disabled.
func (a *App) History() *history.Store {
	return a.store
}

// Close releases everything BuildApp opened.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.resolver != nil {
		a.resolver.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// newDocsClient builds the MCP client for the documentation server named
// in cfg, falling back to the hardcoded default descriptor when the file
// does not define one.
func newDocsClient(cfg config.MCP, logger *slog.Logger) (mcp.Client, error) {
	server, ok := cfg.Servers[config.DocsServerName]
	if !ok {
		logger.Warn("mcp.json does not define the documentation server, using default",
			log.ServerKey, config.DocsServerName)
		server = config.DefaultMCP().Servers[config.DocsServerName]
	}
	return mcp.NewClient(config.DocsServerName, server, cfg, logger)
}

// activateProviders activates every provider with resolvable credentials.
// Ollama needs none and is always activated.
func activateProviders(registry *llm.Registry, logger *slog.Logger) {
	for _, name := range []string{"anthropic", "openai"} {
		key, err := llm.ResolveAPIKey(name)
		if err != nil {
			logger.Warn("credential lookup failed", log.ProviderKey, name, log.ErrorKey, err)
			continue
		}
		if key == "" {
			continue
		}
		if err := registry.Activate(name, llm.APIKeyCredentials{APIKey: key}); err != nil {
			logger.Warn("provider activation failed", log.ProviderKey, name, log.ErrorKey, err)
		}
	}

	if err := registry.Activate("ollama", llm.LocalCredentials{}); err != nil {
		logger.Warn("provider activation failed", log.ProviderKey, "ollama", log.ErrorKey, err)
	}

	for _, name := range defaultProviderOrder {
		if registry.IsActive(name) {
			if err := registry.SetDefault(name); err == nil {
				break
			}
		}
	}
}

func openHistory(logger *slog.Logger) (*history.Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return history.Open(filepath.Join(dir, "history.db"), logger)
}

// Fatal prints err to stderr and exits non-zero.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
