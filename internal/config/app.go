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

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App is the application configuration (config.yaml).
type App struct {
	// Log configures logging output.
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// Models lists preferred LLM models in priority order.
	Models struct {
		Preferred []string `yaml:"preferred"`
	} `yaml:"models"`

	// Serve configures the HTTP API mode.
	Serve struct {
		Addr string `yaml:"addr"`
	} `yaml:"serve"`

	// History configures the chat transcript store.
	History struct {
		Disabled bool `yaml:"disabled"`
	} `yaml:"history"`
}

// DefaultApp returns the defaults used when config.yaml is absent.
func DefaultApp() App {
	var app App
	app.Log.Level = "info"
	app.Log.Format = "text"
	app.Models.Preferred = []string{"gpt-4.1", "claude-3-5-sonnet-latest"}
	app.Serve.Addr = "127.0.0.1:8488"
	return app
}

// LoadApp reads the application configuration from path. A missing file is
// not an error; defaults are returned. A malformed file is an error.
func LoadApp(path string) (App, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultApp(), nil
	}
	if err != nil {
		return DefaultApp(), fmt.Errorf("reading %s: %w", path, err)
	}

	app := DefaultApp()
	if err := yaml.Unmarshal(raw, &app); err != nil {
		return DefaultApp(), fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(app.Models.Preferred) == 0 {
		app.Models.Preferred = DefaultApp().Models.Preferred
	}

	return app, nil
}
