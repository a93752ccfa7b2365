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

package mcp

import (
	"io"
	"os"
	"os/exec"
)

// procHandle abstracts a spawned server process so the supervisor can be
// exercised in tests without forking real children.
type procHandle struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// wait blocks until the process exits.
	wait func() error

	// kill signals the process to terminate.
	kill func() error
}

// spawnFunc starts one server process with piped standard streams.
type spawnFunc func() (*procHandle, error)

// execSpawner returns a spawnFunc backed by os/exec.
func execSpawner(command string, args, env []string) spawnFunc {
	return func() (*procHandle, error) {
		cmd := exec.Command(command, args...)
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			stdin.Close()
			return nil, err
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			stdin.Close()
			stdout.Close()
			return nil, err
		}

		if err := cmd.Start(); err != nil {
			stdin.Close()
			stdout.Close()
			stderr.Close()
			return nil, err
		}

		return &procHandle{
			stdin:  stdin,
			stdout: stdout,
			stderr: stderr,
			wait:   cmd.Wait,
			kill: func() error {
				if cmd.Process == nil {
					return nil
				}
				return cmd.Process.Kill()
			},
		}, nil
	}
}
