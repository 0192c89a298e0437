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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 30*time.Second, cfg.shutdownTimeout)
	assert.Empty(t, cfg.dataDir)
	assert.Empty(t, cfg.apiListenAddress)
	assert.False(t, cfg.tracing)
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithDataDir("/var/lib/hallmarkd"),
		WithApiListenAddress("127.0.0.1:9000"),
		WithAdminPrincipal("alice"),
		WithSupplyCap(1000),
		WithApprovalWindow(2*time.Hour),
		WithCoolDown(45*time.Minute),
		WithInterIssueDelay(30*time.Second),
		WithMaxProposalLength(512),
		WithRequireCommitments(true),
		WithSelfApproveEnabled(true),
		WithSelfRevertEnabled(true),
		WithShutdownTimeout(5*time.Second),
		WithTracing(true),
		WithTracingStdout(true),
	)
	assert.Equal(t, "/var/lib/hallmarkd", cfg.dataDir)
	assert.Equal(t, "127.0.0.1:9000", cfg.apiListenAddress)
	assert.Equal(t, "alice", string(cfg.adminPrincipal))
	assert.Equal(t, uint64(1000), cfg.supplyCap)
	assert.Equal(t, 2*time.Hour, cfg.approvalWindow)
	assert.Equal(t, 45*time.Minute, cfg.coolDown)
	assert.Equal(t, 30*time.Second, cfg.interIssueDelay)
	assert.Equal(t, 512, cfg.maxProposalLength)
	assert.True(t, cfg.requireCommitments)
	assert.True(t, cfg.selfApproveEnabled)
	assert.True(t, cfg.selfRevertEnabled)
	assert.Equal(t, 5*time.Second, cfg.shutdownTimeout)
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
}

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := NewConfig(WithClock(func() time.Time { return fixed }))
	assert.Equal(t, fixed, cfg.clock())
}
