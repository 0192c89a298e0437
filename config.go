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

package hallmarkd

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openhallmark/hallmarkd/metadata"
	"github.com/openhallmark/hallmarkd/registry"
	"github.com/openhallmark/hallmarkd/roles"
)

type Config struct {
	promRegistry       prometheus.Registerer
	logger             *slog.Logger
	clock              func() time.Time
	commitmentFunc     metadata.CommitmentFunc
	transferFunc       registry.TransferFunc
	dataDir            string
	apiListenAddress   string
	adminPrincipal     roles.Principal
	supplyCap          uint64
	approvalWindow     time.Duration
	coolDown           time.Duration
	interIssueDelay    time.Duration
	maxProposalLength  int
	shutdownTimeout    time.Duration
	requireCommitments bool
	selfApproveEnabled bool
	selfRevertEnabled  bool
	tracing            bool
	tracingStdout      bool
}

// ConfigOptionFunc is a type that represents functions that modify the service config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new service config with the specified options applied
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. Defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus registerer for metrics
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDataDir specifies the persistent data directory. An empty value
// selects in-memory storage
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithApiListenAddress specifies the listen address for the ops API
// (empty = disabled)
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithAdminPrincipal specifies the principal bootstrapped into the
// admin role when no admin has been assigned yet
func WithAdminPrincipal(admin roles.Principal) ConfigOptionFunc {
	return func(c *Config) {
		c.adminPrincipal = admin
	}
}

// WithSupplyCap specifies the default maximum number of assets ever
// issued (0 = unlimited)
func WithSupplyCap(supplyCap uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.supplyCap = supplyCap
	}
}

// WithApprovalWindow specifies the default minimum delay between a
// metadata proposal and its approval
func WithApprovalWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.approvalWindow = window
	}
}

// WithCoolDown specifies the default delay between the unlocker check
// and the first issuance
func WithCoolDown(coolDown time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.coolDown = coolDown
	}
}

// WithInterIssueDelay specifies the default minimum spacing between
// consecutive issuance calls
func WithInterIssueDelay(delay time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.interIssueDelay = delay
	}
}

// WithMaxProposalLength bounds metadata proposal payload size
func WithMaxProposalLength(length int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxProposalLength = length
	}
}

// WithRequireCommitments specifies whether batch approval demands
// commitment hashes by default
func WithRequireCommitments(required bool) ConfigOptionFunc {
	return func(c *Config) {
		c.requireCommitments = required
	}
}

// WithSelfApproveEnabled toggles the owner self-approval shortcut
func WithSelfApproveEnabled(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.selfApproveEnabled = enabled
	}
}

// WithSelfRevertEnabled toggles the owner revert-to-original shortcut
func WithSelfRevertEnabled(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.selfRevertEnabled = enabled
	}
}

// WithClock specifies the time source used for all delay and window
// checks. Defaults to time.Now
func WithClock(clock func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithCommitmentFunc overrides the commitment digest, mostly useful
// for deterministic tests
func WithCommitmentFunc(fn metadata.CommitmentFunc) ConfigOptionFunc {
	return func(c *Config) {
		c.commitmentFunc = fn
	}
}

// WithTransferFunc specifies the external value-transfer backend used
// by the deposit rescue path
func WithTransferFunc(fn registry.TransferFunc) ConfigOptionFunc {
	return func(c *Config) {
		c.transferFunc = fn
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
