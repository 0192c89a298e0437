// Copyright 2026 OpenHallmark Labs
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

// Package api implements the REST interface for asset, metadata and
// issuance-queue operations.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/openhallmark/hallmarkd/issuance"
	"github.com/openhallmark/hallmarkd/metadata"
	"github.com/openhallmark/hallmarkd/registry"
	"github.com/openhallmark/hallmarkd/roles"
)

// PrincipalHeader carries the caller identity on every request.
const PrincipalHeader = "X-Hallmark-Principal"

type ServerConfig struct {
	ListenAddress string
	Logger        *slog.Logger
	Metadata      *metadata.Workflow
	Issuance      *issuance.Controller
	Registry      *registry.Registry
	Roles         *roles.Registry
}

// Server is the REST API server.
type Server struct {
	config     ServerConfig
	logger     *slog.Logger
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new API server instance.
func New(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8322"
	}
	return &Server{
		config: cfg,
		logger: logger,
	}
}

// Start starts the HTTP server in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	// Bind the listening socket first so port conflicts are detected
	// immediately, then serve in a background goroutine
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()

	s.logger.Info(
		"API listener started on " + s.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		srv := s.httpServer
		s.httpServer = nil
		s.mu.Unlock()

		if srv != nil {
			s.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv != nil {
		s.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
	}
	return nil
}

// Handler returns the request mux. It's exposed separately from Start
// for use with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/supply", s.handleSupply)
	mux.HandleFunc("GET /v1/assets/{id}", s.handleAsset)
	mux.HandleFunc("POST /v1/assets/{id}/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/assets/{id}/burn", s.handleBurn)
	mux.HandleFunc("POST /v1/metadata/{id}/propose", s.handlePropose)
	mux.HandleFunc(
		"POST /v1/metadata/{id}/self-approve",
		s.handleSelfApprove,
	)
	mux.HandleFunc(
		"POST /v1/metadata/{id}/self-revert",
		s.handleSelfRevert,
	)
	mux.HandleFunc("POST /v1/metadata/approve", s.handleApproveBatch)
	mux.HandleFunc("GET /v1/queue", s.handleQueueStatus)
	mux.HandleFunc("POST /v1/queue/entries", s.handleAddEntries)
	mux.HandleFunc("POST /v1/queue/reset", s.handleResetQueue)
	mux.HandleFunc("POST /v1/queue/destination", s.handleSetDestination)
	mux.HandleFunc("POST /v1/queue/confirm", s.handleUnlockerConfirm)
	mux.HandleFunc("POST /v1/queue/lock", s.handleLock)
	mux.HandleFunc("POST /v1/queue/check", s.handleUnlockerCheck)
	mux.HandleFunc("POST /v1/queue/deposit", s.handleDeposit)
	mux.HandleFunc("POST /v1/queue/issue", s.handleIssueNext)
	mux.HandleFunc("POST /v1/queue/unlock", s.handleUnlockAndReset)
	mux.HandleFunc("GET /v1/roles/{role}", s.handleGetRole)
	mux.HandleFunc("POST /v1/roles/{role}", s.handleSetRole)
	mux.HandleFunc("POST /v1/deposits/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /v1/policy", s.handleSetPolicy)
	return mux
}

// caller extracts the authenticated principal from the request.
// Authentication itself is expected to happen at the edge; this
// service trusts the header.
func caller(r *http.Request) roles.Principal {
	return roles.Principal(r.Header.Get(PrincipalHeader))
}
