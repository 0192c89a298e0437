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

// Package hallmarkd wires the asset registry, metadata approval
// workflow and gated issuance queue into one service under a
// role-separated governance model.
package hallmarkd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/openhallmark/hallmarkd/api"
	"github.com/openhallmark/hallmarkd/database"
	"github.com/openhallmark/hallmarkd/event"
	"github.com/openhallmark/hallmarkd/issuance"
	"github.com/openhallmark/hallmarkd/metadata"
	"github.com/openhallmark/hallmarkd/registry"
	"github.com/openhallmark/hallmarkd/roles"
)

type Service struct {
	config        Config
	logger        *slog.Logger
	eventBus      *event.EventBus
	db            *database.Database
	roles         *roles.Registry
	registry      *registry.Registry
	metadata      *metadata.Workflow
	issuance      *issuance.Controller
	api           *api.Server
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Service, error) {
	logger := cfg.logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Service{
		config:   cfg,
		logger:   logger,
		eventBus: event.NewEventBus(cfg.promRegistry, logger),
		done:     make(chan struct{}),
	}
	db, err := database.New(&database.Config{
		DataDir:      cfg.dataDir,
		Logger:       logger,
		PromRegistry: cfg.promRegistry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	roleRegistry, err := roles.NewRegistry(db)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	s.roles = roleRegistry
	if s.roles.Principal(roles.RoleAdmin) == roles.None {
		if cfg.adminPrincipal == roles.None {
			return nil, errors.New("no admin assigned and no admin principal configured")
		}
		if err := s.roles.Bootstrap(cfg.adminPrincipal); err != nil {
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		logger.Info(
			"bootstrapped admin role",
			"component", "service",
			"admin", string(cfg.adminPrincipal),
		)
	}
	assetRegistry, err := registry.NewRegistry(registry.Config{
		PromRegistry: cfg.promRegistry,
		Logger:       logger,
		Database:     db,
		Roles:        s.roles,
		TransferFunc: cfg.transferFunc,
		SupplyCap:    cfg.supplyCap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create asset registry: %w", err)
	}
	s.registry = assetRegistry
	workflow, err := metadata.NewWorkflow(metadata.WorkflowConfig{
		PromRegistry:       cfg.promRegistry,
		Logger:             logger,
		EventBus:           s.eventBus,
		Database:           db,
		Roles:              s.roles,
		Owners:             assetRegistry,
		Clock:              cfg.clock,
		Commitment:         cfg.commitmentFunc,
		ApprovalWindow:     cfg.approvalWindow,
		MaxProposalLength:  cfg.maxProposalLength,
		RequireCommitments: cfg.requireCommitments,
		SelfApproveEnabled: cfg.selfApproveEnabled,
		SelfRevertEnabled:  cfg.selfRevertEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create approval workflow: %w", err)
	}
	s.metadata = workflow
	controller, err := issuance.NewController(issuance.ControllerConfig{
		PromRegistry:    cfg.promRegistry,
		Logger:          logger,
		EventBus:        s.eventBus,
		Database:        db,
		Roles:           s.roles,
		Minter:          assetRegistry,
		Clock:           cfg.clock,
		CoolDown:        cfg.coolDown,
		InterIssueDelay: cfg.interIssueDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create issuance controller: %w", err)
	}
	s.issuance = controller
	if cfg.apiListenAddress != "" {
		s.api = api.New(api.ServerConfig{
			ListenAddress: cfg.apiListenAddress,
			Logger:        logger,
			Metadata:      workflow,
			Issuance:      controller,
			Registry:      assetRegistry,
			Roles:         s.roles,
		})
	}
	return s, nil
}

// Run starts the service and blocks until Stop is called
func (s *Service) Run() error {
	if s.config.tracing {
		if err := s.setupTracing(); err != nil {
			return err
		}
	}
	if s.api != nil {
		if err := s.api.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start API: %w", err)
		}
	}
	<-s.done
	return nil
}

func (s *Service) Stop() error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *Service) shutdown() error {
	shutdownTimeout := 30 * time.Second
	if s.config.shutdownTimeout > 0 {
		shutdownTimeout = s.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var err error
	s.logger.Debug("starting graceful shutdown", "component", "service")
	if s.api != nil {
		if stopErr := s.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	s.eventBus.Stop()
	if s.db != nil {
		if dbErr := s.db.Close(); dbErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", dbErr))
		}
	}
	for _, fn := range s.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fnErr)
		}
	}
	close(s.done)
	return err
}

// EventBus returns the service event bus
func (s *Service) EventBus() *event.EventBus {
	return s.eventBus
}

// Roles returns the role registry
func (s *Service) Roles() *roles.Registry {
	return s.roles
}

// Registry returns the asset registry
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Metadata returns the approval workflow
func (s *Service) Metadata() *metadata.Workflow {
	return s.metadata
}

// Issuance returns the issuance queue controller
func (s *Service) Issuance() *issuance.Controller {
	return s.issuance
}

// Database returns the underlying database
func (s *Service) Database() *database.Database {
	return s.db
}
