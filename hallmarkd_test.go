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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhallmark/hallmarkd/roles"
)

func TestNewRequiresAdmin(t *testing.T) {
	_, err := New(NewConfig(
		WithDataDir(t.TempDir()),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admin assigned")
}

func TestNewBootstrapsAdmin(t *testing.T) {
	svc, err := New(NewConfig(
		WithDataDir(t.TempDir()),
		WithAdminPrincipal("alice"),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	))
	require.NoError(t, err)
	defer svc.Stop() //nolint:errcheck

	assert.Equal(
		t,
		roles.Principal("alice"),
		svc.Roles().Principal(roles.RoleAdmin),
	)
	assert.NotNil(t, svc.Registry())
	assert.NotNil(t, svc.Metadata())
	assert.NotNil(t, svc.Issuance())
	assert.NotNil(t, svc.EventBus())
	assert.NotNil(t, svc.Database())
}

func TestAdminSurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()
	svc, err := New(NewConfig(
		WithDataDir(dataDir),
		WithAdminPrincipal("alice"),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	))
	require.NoError(t, err)
	require.NoError(t, svc.Stop())

	// A restart over the same data dir needs no bootstrap principal
	svc, err = New(NewConfig(
		WithDataDir(dataDir),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	))
	require.NoError(t, err)
	defer svc.Stop() //nolint:errcheck
	assert.Equal(
		t,
		roles.Principal("alice"),
		svc.Roles().Principal(roles.RoleAdmin),
	)
}

func TestStopIsIdempotent(t *testing.T) {
	svc, err := New(NewConfig(
		WithDataDir(t.TempDir()),
		WithAdminPrincipal("alice"),
		WithPrometheusRegistry(prometheus.NewRegistry()),
	))
	require.NoError(t, err)
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
}
