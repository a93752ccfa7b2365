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
	goerrors "errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocxlabs/ocx/internal/jsonrpc"
	"github.com/ocxlabs/ocx/pkg/errors"
)

// fakeProc simulates a spawned MCP server with in-memory pipes. Tests read
// the requests the supervisor writes and push response lines back.
type fakeProc struct {
	handle   *procHandle
	requests chan jsonrpc.Request

	stdinR  *io.PipeReader
	stdoutW *io.PipeWriter
	stderrW *io.PipeWriter

	exitOnce sync.Once
	exitCh   chan error
}

func newFakeProc() *fakeProc {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	p := &fakeProc{
		requests: make(chan jsonrpc.Request, 16),
		stdinR:   stdinR,
		stdoutW:  stdoutW,
		stderrW:  stderrW,
		exitCh:   make(chan error, 1),
	}
	p.handle = &procHandle{
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderrR,
		wait:   func() error { return <-p.exitCh },
		kill:   func() error { p.exit(nil); return nil },
	}

	go p.readRequests()
	return p
}

func (p *fakeProc) readRequests() {
	scanner := bufio.NewScanner(p.stdinR)
	for scanner.Scan() {
		var req jsonrpc.Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		p.requests <- req
	}
}

// writeLine pushes one raw stdout line to the supervisor's read loop.
func (p *fakeProc) writeLine(line string) {
	_, _ = p.stdoutW.Write([]byte(line + "\n"))
}

func (p *fakeProc) respond(resp *jsonrpc.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		panic(err)
	}
	p.writeLine(string(payload))
}

// echo answers every request with a fixed result until stdin closes.
func (p *fakeProc) echo() {
	go func() {
		for req := range p.requests {
			p.respond(&jsonrpc.Response{ID: req.ID, Result: json.RawMessage(`{"ok":true}`)})
		}
	}()
}

// exit simulates the process dying. Safe to call multiple times.
func (p *fakeProc) exit(err error) {
	p.exitOnce.Do(func() {
		p.stdoutW.Close()
		p.stderrW.Close()
		p.stdinR.Close()
		close(p.requests)
		p.exitCh <- err
	})
}

// fakeSpawner delivers each new fake process on procs so the test can drive
// it. The channel must be buffered deep enough for the expected respawns.
func fakeSpawner(procs chan *fakeProc) spawnFunc {
	return func() (*procHandle, error) {
		p := newFakeProc()
		procs <- p
		return p.handle, nil
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSupervisor(t *testing.T, cfg SupervisorConfig) (*Supervisor, chan *fakeProc) {
	t.Helper()

	procs := make(chan *fakeProc, 4)
	cfg.ServerName = "test-server"
	cfg.Logger = testLogger()
	cfg.spawn = fakeSpawner(procs)

	s, err := NewSupervisor(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, procs
}

func TestSupervisorCallRoundTrip(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{RequestTimeout: 2 * time.Second})
	(<-procs).echo()

	require.Equal(t, StateConnected, s.State())

	resp, err := s.Call(context.Background(), "get-library-docs", map[string]any{
		"context7CompatibleLibraryID": "/redhat/openshift",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
	assert.Equal(t, 0, s.Pending())
}

func TestSupervisorSendsWellFormedFrames(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{RequestTimeout: 2 * time.Second})
	p := <-procs

	go func() {
		req := <-p.requests
		p.respond(&jsonrpc.Response{ID: req.ID, Result: json.RawMessage(`{}`)})
	}()

	_, err := s.Call(context.Background(), "resolve-library-id", map[string]any{"libraryName": "openshift"})
	require.NoError(t, err)

	// The request already passed through the fake's line scanner, so
	// framing held; spot-check the envelope via a second call.
	go func() {
		req := <-p.requests
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "tools/call", req.Method)
		assert.Equal(t, "resolve-library-id", req.Params.Name)
		assert.NotEmpty(t, req.ID)
		p.respond(&jsonrpc.Response{ID: req.ID, Result: json.RawMessage(`{}`)})
	}()

	_, err = s.Call(context.Background(), "resolve-library-id", map[string]any{"libraryName": "openshift"})
	require.NoError(t, err)
}

func TestSupervisorRemoteErrorSurfaces(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{RequestTimeout: 2 * time.Second})
	p := <-procs

	go func() {
		req := <-p.requests
		p.respond(&jsonrpc.Response{ID: req.ID, Error: &jsonrpc.Error{Code: -32601, Message: "unknown tool"}})
	}()

	_, err := s.Call(context.Background(), "bogus-tool", nil)
	require.Error(t, err)

	var rpcErr *jsonrpc.Error
	require.True(t, goerrors.As(err, &rpcErr))
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestSupervisorRequestTimeout(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{RequestTimeout: 50 * time.Millisecond})
	<-procs // never responds

	_, err := s.Call(context.Background(), "get-library-docs", nil)
	require.Error(t, err)

	var timeoutErr *errors.TimeoutError
	assert.True(t, goerrors.As(err, &timeoutErr))
	assert.Equal(t, 0, s.Pending())
}

func TestSupervisorMalformedLinesAreDropped(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{RequestTimeout: 2 * time.Second})
	p := <-procs

	go func() {
		req := <-p.requests
		p.writeLine("not json at all")
		p.writeLine(`{"truncated":`)
		p.respond(&jsonrpc.Response{ID: req.ID, Result: json.RawMessage(`{"ok":true}`)})
	}()

	resp, err := s.Call(context.Background(), "get-library-docs", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestSupervisorExitFailsPendingAndRestarts(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{
		RequestTimeout: 5 * time.Second,
		RestartBackoff: 20 * time.Millisecond,
	})
	first := <-procs

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Call(context.Background(), "get-library-docs", nil)
		errCh <- err
	}()

	// Make sure the request is in flight before killing the process.
	<-first.requests
	first.exit(goerrors.New("killed"))

	select {
	case err := <-errCh:
		var perr *ProcessError
		require.True(t, goerrors.As(err, &perr))
		assert.Equal(t, ErrorCodeProcessExited, perr.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request did not fail after process exit")
	}

	// A replacement process is spawned after the backoff, and requests
	// issued after the respawn succeed.
	var second *fakeProc
	select {
	case second = <-procs:
	case <-time.After(2 * time.Second):
		t.Fatal("no respawn after backoff")
	}
	second.echo()

	require.Eventually(t, func() bool {
		return s.State() == StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	resp, err := s.Call(context.Background(), "get-library-docs", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestSupervisorSpawnFailureDoesNotRetry(t *testing.T) {
	spawnCalls := 0
	cfg := SupervisorConfig{
		ServerName:     "test-server",
		RestartBackoff: 10 * time.Millisecond,
		Logger:         testLogger(),
		spawn: func() (*procHandle, error) {
			spawnCalls++
			return nil, goerrors.New("executable not found")
		},
	}

	s, err := NewSupervisor(cfg)
	require.Error(t, err)

	var perr *ProcessError
	require.True(t, goerrors.As(err, &perr))
	assert.Equal(t, ErrorCodeSpawnFailed, perr.Code)
	assert.Equal(t, StateFailed, s.State())

	// Spawn failures are persistent; no backoff respawn is scheduled.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, spawnCalls)

	_, err = s.Call(context.Background(), "get-library-docs", nil)
	require.Error(t, err)
	require.True(t, goerrors.As(err, &perr))
	assert.Equal(t, ErrorCodeUnavailable, perr.Code)
}

func TestSupervisorCloseIsTerminal(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{
		RequestTimeout: 5 * time.Second,
		RestartBackoff: 10 * time.Millisecond,
	})
	p := <-procs

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Call(context.Background(), "get-library-docs", nil)
		errCh <- err
	}()
	<-p.requests

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := <-errCh
	var perr *ProcessError
	require.True(t, goerrors.As(err, &perr))
	assert.Equal(t, ErrorCodeDisposed, perr.Code)

	// The kill-triggered exit must not schedule a respawn.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateDisposed, s.State())
	select {
	case <-procs:
		t.Fatal("respawn after dispose")
	default:
	}

	_, err = s.Call(context.Background(), "get-library-docs", nil)
	require.Error(t, err)
}

func TestSupervisorCallCancellation(t *testing.T) {
	s, procs := newTestSupervisor(t, SupervisorConfig{RequestTimeout: 5 * time.Second})
	p := <-procs

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Call(ctx, "get-library-docs", nil)
		errCh <- err
	}()

	req := <-p.requests
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Pending())

	// A late reply for the abandoned request is discarded.
	p.respond(&jsonrpc.Response{ID: req.ID, Result: json.RawMessage(`{}`)})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}
