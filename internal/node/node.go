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

package node

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openhallmark/hallmarkd"
	"github.com/openhallmark/hallmarkd/internal/config"
	"github.com/openhallmark/hallmarkd/roles"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")

	// Parse shutdown timeout
	shutdownTimeout := 30 * time.Second // Default timeout
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}

	opts := []hallmarkd.ConfigOptionFunc{
		hallmarkd.WithLogger(logger),
		hallmarkd.WithDataDir(cfg.DataDir),
		hallmarkd.WithApiListenAddress(
			fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
		),
		hallmarkd.WithAdminPrincipal(
			roles.Principal(cfg.AdminPrincipal),
		),
		hallmarkd.WithSupplyCap(cfg.SupplyCap),
		hallmarkd.WithRequireCommitments(cfg.RequireCommitments),
		hallmarkd.WithSelfApproveEnabled(cfg.SelfApproveEnabled),
		hallmarkd.WithSelfRevertEnabled(cfg.SelfRevertEnabled),
		hallmarkd.WithShutdownTimeout(shutdownTimeout),
		hallmarkd.WithTracing(cfg.Tracing),
		hallmarkd.WithTracingStdout(cfg.TracingStdout),
		// Enable metrics with default prometheus registry
		hallmarkd.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}
	if cfg.MaxProposalLength > 0 {
		opts = append(
			opts,
			hallmarkd.WithMaxProposalLength(cfg.MaxProposalLength),
		)
	}
	for _, d := range []struct {
		value string
		name  string
		opt   func(time.Duration) hallmarkd.ConfigOptionFunc
	}{
		{cfg.ApprovalWindow, "approval window", hallmarkd.WithApprovalWindow},
		{cfg.CoolDown, "cool-down", hallmarkd.WithCoolDown},
		{cfg.InterIssueDelay, "inter-issue delay", hallmarkd.WithInterIssueDelay},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		opts = append(opts, d.opt(parsed))
	}

	svc, err := hallmarkd.New(hallmarkd.NewConfig(opts...))
	if err != nil {
		return err
	}

	// Metrics listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component",
		"node",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			os.Exit(1)
		}
	}()

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run service in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := svc.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	shutdownMetrics := func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		shutdownMetrics()
		if err := svc.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("service stopped")
			shutdownMetrics()
			if err := svc.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("service error", "error", err)
		signalCtxStop()
		if stopErr := svc.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}
		shutdownMetrics()
		return err
	}
}
