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

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhallmark/hallmarkd/database"
	"github.com/openhallmark/hallmarkd/event"
	"github.com/openhallmark/hallmarkd/issuance"
	"github.com/openhallmark/hallmarkd/metadata"
	"github.com/openhallmark/hallmarkd/registry"
	"github.com/openhallmark/hallmarkd/roles"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

type apiHarness struct {
	handler http.Handler
	clock   *testClock
}

// newApiHarness wires the full stack behind the handler: alice is
// admin, bob is issuer, carol is approver, dave is unlocker.
func newApiHarness(t *testing.T) *apiHarness {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	roleRegistry, err := roles.NewRegistry(db)
	require.NoError(t, err)
	require.NoError(t, roleRegistry.Bootstrap("alice"))
	require.NoError(t, roleRegistry.SetRole("alice", roles.RoleIssuer, "bob"))
	require.NoError(
		t,
		roleRegistry.SetRole("alice", roles.RoleApprover, "carol"),
	)
	require.NoError(
		t,
		roleRegistry.SetRole("alice", roles.RoleUnlocker, "dave"),
	)
	clock := &testClock{
		now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	promRegistry := prometheus.NewRegistry()
	bus := event.NewEventBus(promRegistry, nil)
	t.Cleanup(bus.Stop)
	assetRegistry, err := registry.NewRegistry(registry.Config{
		PromRegistry: promRegistry,
		Database:     db,
		Roles:        roleRegistry,
	})
	require.NoError(t, err)
	workflow, err := metadata.NewWorkflow(metadata.WorkflowConfig{
		PromRegistry: promRegistry,
		EventBus:     bus,
		Database:     db,
		Roles:        roleRegistry,
		Owners:       assetRegistry,
		Clock:        clock.Now,
	})
	require.NoError(t, err)
	controller, err := issuance.NewController(issuance.ControllerConfig{
		PromRegistry: promRegistry,
		EventBus:     bus,
		Database:     db,
		Roles:        roleRegistry,
		Minter:       assetRegistry,
		Clock:        clock.Now,
	})
	require.NoError(t, err)
	server := New(ServerConfig{
		Metadata: workflow,
		Issuance: controller,
		Registry: assetRegistry,
		Roles:    roleRegistry,
	})
	return &apiHarness{
		handler: server.Handler(),
		clock:   clock,
	}
}

func (h *apiHarness) do(
	t *testing.T,
	method string,
	path string,
	principal string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	if principal != "" {
		req.Header.Set(PrincipalHeader, principal)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// issueOne drives the queue through its full lifecycle and returns the
// minted asset id.
func (h *apiHarness) issueOne(t *testing.T, value string) uint64 {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/v1/queue/entries", "bob",
		AddEntriesRequest{Values: []string{value}})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/queue/confirm", "dave", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/queue/lock", "bob", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/queue/check", "dave", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h.clock.now = h.clock.now.Add(issuance.DefaultCoolDown)
	rec = h.do(t, http.MethodPost, "/v1/queue/issue", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp IssueResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.AssetId
}

func TestRootAndHealth(t *testing.T) {
	h := newApiHarness(t)

	rec := h.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var root RootResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&root))
	assert.Equal(t, "hallmarkd", root.Service)

	rec = h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.True(t, health.IsHealthy)
}

func TestQueueLifecycleAndAssetLookup(t *testing.T) {
	h := newApiHarness(t)
	assetId := h.issueOne(t, `{"name":"first"}`)
	assert.Equal(t, uint64(1), assetId)

	rec := h.do(t, http.MethodGet, "/v1/assets/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var asset AssetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&asset))
	assert.Equal(t, uint64(1), asset.AssetId)
	assert.Equal(t, "bob", asset.Owner)
	assert.Equal(t, `{"name":"first"}`, asset.OriginalMetadata)
	assert.Equal(t, `{"name":"first"}`, asset.ActiveMetadata)
	assert.Empty(t, asset.ProposedMetadata)

	rec = h.do(t, http.MethodGet, "/v1/supply", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var supply SupplyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&supply))
	assert.Equal(t, uint64(1), supply.TotalIssued)
}

func TestAssetLookupErrors(t *testing.T) {
	h := newApiHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/assets/notanumber", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/assets/42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFaultStatusMapping(t *testing.T) {
	h := newApiHarness(t)

	// AuthorizationError -> 403
	rec := h.do(t, http.MethodPost, "/v1/queue/entries", "mallory",
		AddEntriesRequest{Values: []string{"x"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// PreconditionError -> 400 (lock without unlocker confirmation)
	rec = h.do(t, http.MethodPost, "/v1/queue/entries", "bob",
		AddEntriesRequest{Values: []string{"x"}})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/queue/lock", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// StateError -> 409 (mutating a locked queue)
	rec = h.do(t, http.MethodPost, "/v1/queue/confirm", "dave", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/queue/lock", "bob", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/queue/entries", "bob",
		AddEntriesRequest{Values: []string{"y"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// TimingError -> 425 (issuing inside the cool-down)
	rec = h.do(t, http.MethodPost, "/v1/queue/check", "dave", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/queue/issue", "bob", nil)
	assert.Equal(t, http.StatusTooEarly, rec.Code)
}

func TestMetadataEndpoints(t *testing.T) {
	h := newApiHarness(t)
	h.issueOne(t, "original")

	// Non-owner proposal is forbidden
	rec := h.do(t, http.MethodPost, "/v1/metadata/1/propose", "mallory",
		ProposeRequest{Value: "hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/metadata/1/propose", "bob",
		ProposeRequest{Value: "updated"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/assets/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var asset AssetResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&asset))
	assert.Equal(t, "updated", asset.ProposedMetadata)
	assert.Equal(t, "original", asset.ActiveMetadata)

	// Approval before the window has elapsed reports the id as failed
	rec = h.do(t, http.MethodPost, "/v1/metadata/approve", "carol",
		ApproveBatchRequest{AssetIds: []uint64{1}})
	require.Equal(t, http.StatusOK, rec.Code)
	var batch ApproveBatchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&batch))
	assert.Equal(t, []uint64{1}, batch.Failed)

	h.clock.now = h.clock.now.Add(metadata.DefaultApprovalWindow)
	rec = h.do(t, http.MethodPost, "/v1/metadata/approve", "carol",
		ApproveBatchRequest{AssetIds: []uint64{1}})
	require.Equal(t, http.StatusOK, rec.Code)
	batch = ApproveBatchResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&batch))
	assert.Empty(t, batch.Failed)

	rec = h.do(t, http.MethodGet, "/v1/assets/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	asset = AssetResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&asset))
	assert.Equal(t, "updated", asset.ActiveMetadata)
	assert.Empty(t, asset.ProposedMetadata)
}

func TestApproveBatchBadCommitmentEncoding(t *testing.T) {
	h := newApiHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/metadata/approve", "carol",
		ApproveBatchRequest{
			AssetIds:    []uint64{1},
			Commitments: []string{"not-hex"},
		})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleEndpoints(t *testing.T) {
	h := newApiHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/roles/issuer", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var role RoleResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&role))
	assert.Equal(t, "issuer", role.Role)
	assert.Equal(t, "bob", role.Principal)

	rec = h.do(t, http.MethodGet, "/v1/roles/superuser", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Only the admin can reassign
	rec = h.do(t, http.MethodPost, "/v1/roles/issuer", "mallory",
		SetRoleRequest{Principal: "mallory"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/roles/issuer", "alice",
		SetRoleRequest{Principal: "erin"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/roles/issuer", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	role = RoleResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&role))
	assert.Equal(t, "erin", role.Principal)

	// Handing over the admin slot clears the delegates
	rec = h.do(t, http.MethodPost, "/v1/roles/admin", "alice",
		SetRoleRequest{Principal: "frank"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/v1/roles/issuer", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	role = RoleResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&role))
	assert.Empty(t, role.Principal)
}

func TestPolicyEndpoint(t *testing.T) {
	h := newApiHarness(t)
	window := int64(7200)
	cap := uint64(100)

	rec := h.do(t, http.MethodPost, "/v1/policy", "mallory",
		PolicyRequest{ApprovalWindowSeconds: &window})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/policy", "alice",
		PolicyRequest{
			ApprovalWindowSeconds: &window,
			SupplyCap:             &cap,
		})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/supply", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var supply SupplyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&supply))
	assert.Equal(t, uint64(100), supply.SupplyCap)
}

func TestPolicyEndpointRejectsBatchWhole(t *testing.T) {
	h := newApiHarness(t)
	cap := uint64(50)
	badCoolDown := int64(-5)

	// One invalid field rejects the whole bundle; the valid supply cap
	// must not be applied
	rec := h.do(t, http.MethodPost, "/v1/policy", "alice",
		PolicyRequest{
			SupplyCap:       &cap,
			CoolDownSeconds: &badCoolDown,
		})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/supply", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var supply SupplyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&supply))
	assert.Equal(t, uint64(0), supply.SupplyCap)
}

func TestQueueStatusEndpoint(t *testing.T) {
	h := newApiHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/queue/entries", "bob",
		AddEntriesRequest{Values: []string{"a", "b"}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/queue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status QueueStatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "unlocked", status.State)
	assert.Equal(t, "bob", status.Destination)
	assert.Equal(t, int64(2), status.Length)
	assert.Equal(t, int64(2), status.Remaining)

	rec = h.do(t, http.MethodPost, "/v1/queue/reset", "bob", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/v1/queue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status = QueueStatusResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, int64(0), status.Length)
}

func TestMalformedBody(t *testing.T) {
	h := newApiHarness(t)

	req := httptest.NewRequest(
		http.MethodPost,
		"/v1/queue/entries",
		bytes.NewBufferString("{nope"),
	)
	req.Header.Set(PrincipalHeader, "bob")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
