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

package roles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhallmark/hallmarkd/fault"
)

type memStore struct {
	assignments map[string]string
	failNext    bool
}

func newMemStore() *memStore {
	return &memStore{assignments: make(map[string]string)}
}

func (m *memStore) GetRole(role string) (string, error) {
	return m.assignments[role], nil
}

func (m *memStore) SetRoles(assignments map[string]string) error {
	if m.failNext {
		m.failNext = false
		return errors.New("store write failed")
	}
	for k, v := range assignments {
		m.assignments[k] = v
	}
	return nil
}

func newTestRegistry(t *testing.T, store *memStore) *Registry {
	t.Helper()
	r, err := NewRegistry(store)
	require.NoError(t, err)
	return r
}

func TestUnsetRoleAuthorizesNobody(t *testing.T) {
	r := newTestRegistry(t, newMemStore())

	err := r.Require(RoleIssuer, "anyone", "AddEntries")
	var authErr *fault.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "issuer", authErr.Required)

	// Even the empty caller is rejected against an unset slot
	err = r.Require(RoleIssuer, None, "AddEntries")
	require.ErrorAs(t, err, &authErr)
}

func TestBootstrap(t *testing.T) {
	store := newMemStore()
	r := newTestRegistry(t, store)

	require.NoError(t, r.Bootstrap("alice"))
	assert.Equal(t, Principal("alice"), r.Principal(RoleAdmin))
	assert.Equal(t, "alice", store.assignments["admin"])

	// Second bootstrap fails
	err := r.Bootstrap("mallory")
	var precondErr *fault.PreconditionError
	require.ErrorAs(t, err, &precondErr)
	assert.Equal(t, Principal("alice"), r.Principal(RoleAdmin))
}

func TestSetRole(t *testing.T) {
	r := newTestRegistry(t, newMemStore())
	require.NoError(t, r.Bootstrap("alice"))

	// Non-admin cannot assign
	err := r.SetRole("bob", RoleIssuer, "bob")
	var authErr *fault.AuthorizationError
	require.ErrorAs(t, err, &authErr)

	require.NoError(t, r.SetRole("alice", RoleIssuer, "bob"))
	require.NoError(t, r.Require(RoleIssuer, "bob", "AddEntries"))

	// Revocation by assigning None
	require.NoError(t, r.SetRole("alice", RoleIssuer, None))
	err = r.Require(RoleIssuer, "bob", "AddEntries")
	require.ErrorAs(t, err, &authErr)

	// Admin slot is not assignable through SetRole
	err = r.SetRole("alice", RoleAdmin, "mallory")
	var precondErr *fault.PreconditionError
	require.ErrorAs(t, err, &precondErr)
}

func TestSetAdminClearsDelegates(t *testing.T) {
	store := newMemStore()
	r := newTestRegistry(t, store)
	require.NoError(t, r.Bootstrap("alice"))
	require.NoError(t, r.SetRole("alice", RoleIssuer, "bob"))
	require.NoError(t, r.SetRole("alice", RoleApprover, "carol"))
	require.NoError(t, r.SetRole("alice", RoleUnlocker, "dave"))

	require.NoError(t, r.SetAdmin("alice", "eve"))

	assert.Equal(t, Principal("eve"), r.Principal(RoleAdmin))
	assert.Equal(t, None, r.Principal(RoleIssuer))
	assert.Equal(t, None, r.Principal(RoleApprover))
	// The unlocker survives an admin handover
	assert.Equal(t, Principal("dave"), r.Principal(RoleUnlocker))

	// The old admin is fully deposed
	err := r.SetRole("alice", RoleIssuer, "bob")
	var authErr *fault.AuthorizationError
	require.ErrorAs(t, err, &authErr)

	// Store agrees with memory
	assert.Equal(t, "eve", store.assignments["admin"])
	assert.Empty(t, store.assignments["issuer"])
	assert.Empty(t, store.assignments["approver"])
}

func TestSetAdminRejectsUnset(t *testing.T) {
	r := newTestRegistry(t, newMemStore())
	require.NoError(t, r.Bootstrap("alice"))

	err := r.SetAdmin("alice", None)
	var precondErr *fault.PreconditionError
	require.ErrorAs(t, err, &precondErr)
	assert.Equal(t, Principal("alice"), r.Principal(RoleAdmin))
}

func TestFailedStoreWriteLeavesMemoryUnchanged(t *testing.T) {
	store := newMemStore()
	r := newTestRegistry(t, store)
	require.NoError(t, r.Bootstrap("alice"))

	store.failNext = true
	err := r.SetRole("alice", RoleIssuer, "bob")
	require.Error(t, err)
	assert.Equal(t, None, r.Principal(RoleIssuer))
}

func TestLoadsExistingAssignments(t *testing.T) {
	store := newMemStore()
	store.assignments["admin"] = "alice"
	store.assignments["unlocker"] = "dave"

	r := newTestRegistry(t, store)
	assert.Equal(t, Principal("alice"), r.Principal(RoleAdmin))
	assert.Equal(t, Principal("dave"), r.Principal(RoleUnlocker))
	require.NoError(t, r.Require(RoleUnlocker, "dave", "UnlockAndReset"))
}
