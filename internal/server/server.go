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

// Package server exposes the assistant over HTTP. Chat turns stream back
// as server-sent events; health and Prometheus metrics ride alongside.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocxlabs/ocx/internal/chat"
)

// TurnHandler processes one chat turn. Satisfied by *chat.Assistant.
type TurnHandler interface {
	Handle(ctx context.Context, req chat.Request, stream chat.ResponseStream) chat.Result
}

// Config holds server settings.
type Config struct {
	Addr   string
	Logger *slog.Logger
}

// Server is the headless chat API.
type Server struct {
	echo      *echo.Echo
	assistant TurnHandler
	logger    *slog.Logger
	addr      string
}

// New builds a Server routing chat turns to assistant.
func New(assistant TurnHandler, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		assistant: assistant,
		logger:    logger,
		addr:      cfg.Addr,
	}

	e.POST("/v1/chat", s.handleChat)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start blocks serving HTTP until Shutdown. Returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info("serving chat api", "addr", s.addr)
	return s.echo.Start(s.addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type chatRequest struct {
	Prompt    string `json:"prompt"`
	Command   string `json:"command,omitempty"`
	Selection string `json:"selection,omitempty"`
}

type chatDone struct {
	Error string `json:"error,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" && strings.TrimSpace(req.Selection) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	stream := newSSEStream(c.Response())
	result := s.assistant.Handle(c.Request().Context(), chat.Request{
		Prompt:    req.Prompt,
		Command:   req.Command,
		Selection: req.Selection,
	}, stream)

	stream.event("done", chatDone{Error: result.ErrorMessage})
	return nil
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// sseStream renders chat output as server-sent events. Fragments are
// JSON-encoded so embedded newlines survive the SSE framing.
type sseStream struct {
	mu sync.Mutex
	w  *echo.Response
}

func newSSEStream(w *echo.Response) *sseStream {
	return &sseStream{w: w}
}

type ssePayload struct {
	Text string `json:"text"`
}

// Markdown implements chat.ResponseStream.
func (s *sseStream) Markdown(text string) {
	s.event("markdown", ssePayload{Text: text})
}

// Progress implements chat.ResponseStream.
func (s *sseStream) Progress(message string) {
	s.event("progress", ssePayload{Text: message})
}

func (s *sseStream) event(name string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data)
	s.w.Flush()
}
