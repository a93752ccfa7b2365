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
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ocxlabs/ocx/internal/jsonrpc"
	"github.com/ocxlabs/ocx/internal/metrics"
)

// State is the lifecycle state of a supervised server process.
type State string

const (
	// StateStopped indicates no process has been started yet.
	StateStopped State = "stopped"
	// StateStarting indicates a spawn is in progress.
	StateStarting State = "starting"
	// StateConnected indicates the process is up and taking requests.
	// No handshake is required by this protocol; readiness is assumed
	// once the spawn succeeds.
	StateConnected State = "connected"
	// StateExited indicates the process died unexpectedly; a respawn is
	// scheduled after the restart backoff.
	StateExited State = "exited"
	// StateFailed indicates the process could not be spawned. Spawn
	// failures are assumed persistent, so there is no auto-restart.
	StateFailed State = "failed"
	// StateDisposed is terminal; the supervisor will never spawn again.
	StateDisposed State = "disposed"
)

// maxLineBytes bounds one framed protocol line. Documentation payloads can
// be large, so this is generous.
const maxLineBytes = 16 * 1024 * 1024

// SupervisorConfig configures a supervised stdio MCP server.
type SupervisorConfig struct {
	// ServerName identifies the server in logs and errors.
	ServerName string

	// Command is the executable to run.
	Command string

	// Args are the command-line arguments.
	Args []string

	// Env are extra environment variables for the child process.
	Env []string

	// RequestTimeout is the per-request timeout (defaults to 30s).
	RequestTimeout time.Duration

	// RestartBackoff is the delay before respawning after an unexpected
	// exit (defaults to 5s).
	RestartBackoff time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// spawn overrides process creation in tests.
	spawn spawnFunc
}

// Supervisor owns the lifecycle of one long-running MCP server child process.
// It restarts the process on unexpected exit and fails all in-flight requests
// when the process disappears. Only one child exists at a time; a new spawn is
// attempted only after the previous one has fully exited.
type Supervisor struct {
	cfg     SupervisorConfig
	backoff time.Duration
	logger  *slog.Logger
	spawn   spawnFunc

	ids  *jsonrpc.IDGenerator
	corr *jsonrpc.Correlator

	// writeMu serializes stdin writes so frames stay intact.
	writeMu sync.Mutex

	mu         sync.Mutex
	state      State
	proc       *procHandle
	generation int
	disposed   bool
}

// NewSupervisor creates a supervisor and spawns the first child process.
// A spawn failure is returned to the caller; the supervisor is then in the
// Failed state and will not retry on its own.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.ServerName == "" {
		return nil, &ProcessError{Code: ErrorCodeSpawnFailed, Message: "server name is required"}
	}
	if cfg.Command == "" && cfg.spawn == nil {
		return nil, &ProcessError{Code: ErrorCodeSpawnFailed, Server: cfg.ServerName, Message: "command is required"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("server", cfg.ServerName)

	backoff := cfg.RestartBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}

	spawn := cfg.spawn
	if spawn == nil {
		spawn = execSpawner(cfg.Command, cfg.Args, cfg.Env)
	}

	s := &Supervisor{
		cfg:     cfg,
		backoff: backoff,
		logger:  logger,
		spawn:   spawn,
		ids:     jsonrpc.NewIDGenerator(),
		corr:    jsonrpc.NewCorrelator(cfg.RequestTimeout, logger),
		state:   StateStopped,
	}

	if err := s.start(); err != nil {
		return s, err
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports the number of in-flight requests.
func (s *Supervisor) Pending() int {
	return s.corr.Len()
}

// Call sends a tools/call request for the named tool and waits for the
// matching response, a timeout, or a process failure. Cancelling ctx
// abandons the request; a response arriving afterwards is discarded.
func (s *Supervisor) Call(ctx context.Context, tool string, args map[string]any) (*jsonrpc.Response, error) {
	s.mu.Lock()
	if s.state != StateConnected || s.proc == nil {
		state := s.state
		s.mu.Unlock()
		return nil, &ProcessError{
			Code:    ErrorCodeUnavailable,
			Server:  s.cfg.ServerName,
			Message: "server is not connected (state: " + string(state) + ")",
			Suggestions: []string{
				"Check that the MCP server command is installed and on PATH.",
			},
		}
	}
	stdin := s.proc.stdin
	s.mu.Unlock()

	id := s.ids.Next()
	req := jsonrpc.NewToolCall(id, tool, args)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &ProcessError{Code: ErrorCodeTransport, Server: s.cfg.ServerName, Message: "encoding request", Cause: err}
	}

	done := s.corr.Register(id)

	s.writeMu.Lock()
	_, err = stdin.Write(append(payload, '\n'))
	s.writeMu.Unlock()
	if err != nil {
		s.corr.Fail(id, err)
		<-done
		return nil, &ProcessError{Code: ErrorCodeTransport, Server: s.cfg.ServerName, Message: "writing to server stdin", Cause: err}
	}

	s.logger.Debug("sent mcp request", "request_id", id, "tool", tool)

	return s.corr.Wait(ctx, id, done)
}

// Close disposes the supervisor: fails all pending requests, terminates the
// child, and suppresses further exit handling. Safe to call multiple times.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.state = StateDisposed
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()

	s.corr.FailAll(&ProcessError{
		Code:    ErrorCodeDisposed,
		Server:  s.cfg.ServerName,
		Message: "client disposed",
	})

	if proc != nil {
		s.logger.Debug("killing mcp server process")
		_ = proc.kill()
	}

	return nil
}

// start spawns the child process and wires up its stream handlers.
func (s *Supervisor) start() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return &ProcessError{Code: ErrorCodeDisposed, Server: s.cfg.ServerName, Message: "client disposed"}
	}
	if s.proc != nil {
		// Invariant: never two children at once.
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	s.logger.Info("spawning mcp server", "command", s.cfg.Command)

	proc, err := s.spawn()
	if err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.mu.Unlock()

		perr := &ProcessError{
			Code:    ErrorCodeSpawnFailed,
			Server:  s.cfg.ServerName,
			Message: "process failed to start",
			Suggestions: []string{
				"Check that the command exists and is executable.",
			},
			Cause: err,
		}
		s.corr.FailAll(perr)
		return perr
	}

	s.mu.Lock()
	if s.disposed {
		// Disposal raced the spawn; tear the child down again.
		s.mu.Unlock()
		_ = proc.kill()
		return &ProcessError{Code: ErrorCodeDisposed, Server: s.cfg.ServerName, Message: "client disposed"}
	}
	s.proc = proc
	s.generation++
	gen := s.generation
	s.state = StateConnected
	s.mu.Unlock()

	go s.readLoop(proc.stdout)
	go s.drainStderr(proc.stderr)
	go func() {
		err := proc.wait()
		s.handleExit(gen, err)
	}()

	return nil
}

// readLoop parses each newline-terminated stdout line as one protocol
// message. Malformed lines are logged and dropped; parsing resumes on the
// next line.
func (s *Supervisor) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp jsonrpc.Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			s.logger.Warn("dropping malformed server line", "error", err)
			continue
		}
		s.corr.Complete(&resp)
	}
}

// drainStderr logs the child's standard error output, which is never parsed.
func (s *Supervisor) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			s.logger.Warn("mcp server stderr", "line", line)
		}
	}
}

// handleExit reacts to the child process exiting. The generation guard keeps
// a stale exit event (from a process already replaced or from disposal) from
// clobbering the current child.
func (s *Supervisor) handleExit(gen int, waitErr error) {
	s.mu.Lock()
	if s.disposed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.state = StateExited
	s.proc = nil
	s.mu.Unlock()

	s.logger.Warn("mcp server exited unexpectedly", "error", waitErr)

	s.corr.FailAll(&ProcessError{
		Code:    ErrorCodeProcessExited,
		Server:  s.cfg.ServerName,
		Message: "process exited unexpectedly",
		Cause:   waitErr,
	})

	time.AfterFunc(s.backoff, func() {
		s.mu.Lock()
		stale := s.disposed || gen != s.generation || s.proc != nil
		s.mu.Unlock()
		if stale {
			return
		}

		s.logger.Info("restarting mcp server after backoff", "backoff", s.backoff)
		metrics.MCPRestarts.Inc()
		if err := s.start(); err != nil {
			s.logger.Error("mcp server restart failed", "error", err)
		}
	})
}
