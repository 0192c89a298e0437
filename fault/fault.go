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

// Package fault defines the error kinds shared by the governance
// workflows. Every failed operation returns one of these types so that
// callers can distinguish "retry later" (timing) from "reconfigure"
// (authorization, precondition) from "resupply data" (commitment).
package fault

import (
	"fmt"
	"time"
)

// AuthorizationError indicates the caller is not the principal required
// for the attempted operation.
type AuthorizationError struct {
	Caller    string
	Required  string
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf(
		"not authorized: caller %q requires role %q for %s",
		e.Caller,
		e.Required,
		e.Operation,
	)
}

// PreconditionError indicates the operation is well-formed but its
// inputs or current data do not permit it (length limits, supply caps,
// queue exhausted, nothing to change).
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// TimingError indicates a mandatory delay has not yet elapsed.
type TimingError struct {
	Operation string
	ReadyAt   time.Time
	Now       time.Time
}

func (e *TimingError) Error() string {
	return fmt.Sprintf(
		"%s not ready until %s (now %s)",
		e.Operation,
		e.ReadyAt.UTC().Format(time.RFC3339),
		e.Now.UTC().Format(time.RFC3339),
	)
}

// CommitmentMismatchError indicates a supplied commitment hash does not
// match the digest of the observed (active, proposed) pair.
type CommitmentMismatchError struct {
	AssetId uint64
}

func (e *CommitmentMismatchError) Error() string {
	return fmt.Sprintf(
		"commitment mismatch for asset %d",
		e.AssetId,
	)
}

// StateError indicates the operation is invalid for the current lock
// state, such as locking an already-locked queue.
type StateError struct {
	Operation string
	State     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf(
		"invalid operation %s in state %s",
		e.Operation,
		e.State,
	)
}
