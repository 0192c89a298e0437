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

// Package roles holds the singleton principal assignments that gate
// every privileged operation: admin configures policy and delegates,
// issuer drives the issuance queue, approver commits metadata changes,
// and unlocker attests the frozen queue configuration.
package roles

import (
	"fmt"
	"sync"

	"github.com/openhallmark/hallmarkd/fault"
)

// Principal is an opaque caller identity. The empty string is the
// "no principal" sentinel for an unset role slot.
type Principal string

const None Principal = ""

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleIssuer   Role = "issuer"
	RoleApprover Role = "approver"
	RoleUnlocker Role = "unlocker"
)

// Store persists role assignments. SetRoles must apply all given
// assignments atomically.
type Store interface {
	GetRole(role string) (string, error)
	SetRoles(assignments map[string]string) error
}

// Registry resolves and reassigns the four role slots. All reads are
// served from memory; writes go through the store first so that a
// failed write never leaves memory and storage disagreeing.
type Registry struct {
	store       Store
	assignments map[Role]Principal
	mu          sync.RWMutex
}

// NewRegistry loads current assignments from the store.
func NewRegistry(store Store) (*Registry, error) {
	r := &Registry{
		store:       store,
		assignments: make(map[Role]Principal),
	}
	for _, role := range []Role{RoleAdmin, RoleIssuer, RoleApprover, RoleUnlocker} {
		val, err := store.GetRole(string(role))
		if err != nil {
			return nil, fmt.Errorf("loading role %s: %w", role, err)
		}
		r.assignments[role] = Principal(val)
	}
	return r, nil
}

// Principal returns the current holder of a role, or None.
func (r *Registry) Principal(role Role) Principal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assignments[role]
}

// Require returns an AuthorizationError unless caller currently holds
// the role. An unset role authorizes nobody.
func (r *Registry) Require(role Role, caller Principal, operation string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	holder := r.assignments[role]
	if holder == None || caller != holder {
		return &fault.AuthorizationError{
			Caller:    string(caller),
			Required:  string(role),
			Operation: operation,
		}
	}
	return nil
}

// SetAdmin reassigns the admin slot and atomically clears the issuer
// and approver delegates. A new admin must never inherit delegates it
// did not appoint.
func (r *Registry) SetAdmin(caller, newAdmin Principal) error {
	if err := r.Require(RoleAdmin, caller, "SetAdmin"); err != nil {
		return err
	}
	if newAdmin == None {
		return &fault.PreconditionError{Reason: "admin cannot be unset"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.store.SetRoles(map[string]string{
		string(RoleAdmin):    string(newAdmin),
		string(RoleIssuer):   "",
		string(RoleApprover): "",
	})
	if err != nil {
		return err
	}
	r.assignments[RoleAdmin] = newAdmin
	r.assignments[RoleIssuer] = None
	r.assignments[RoleApprover] = None
	return nil
}

// SetRole assigns a delegate slot (issuer, approver or unlocker).
// Admin-only. Assigning None revokes the role.
func (r *Registry) SetRole(caller Principal, role Role, holder Principal) error {
	if err := r.Require(RoleAdmin, caller, "SetRole"); err != nil {
		return err
	}
	if role == RoleAdmin {
		return &fault.PreconditionError{
			Reason: "admin reassignment requires SetAdmin",
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.store.SetRoles(map[string]string{
		string(role): string(holder),
	})
	if err != nil {
		return err
	}
	r.assignments[role] = holder
	return nil
}

// Bootstrap assigns the initial admin when no admin exists yet. Used
// once at first startup; fails if an admin is already set.
func (r *Registry) Bootstrap(admin Principal) error {
	if admin == None {
		return &fault.PreconditionError{Reason: "admin cannot be unset"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assignments[RoleAdmin] != None {
		return &fault.PreconditionError{Reason: "admin already assigned"}
	}
	err := r.store.SetRoles(map[string]string{
		string(RoleAdmin): string(admin),
	})
	if err != nil {
		return err
	}
	r.assignments[RoleAdmin] = admin
	return nil
}
