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

package metadata

import (
	"strconv"
	"time"

	"github.com/openhallmark/hallmarkd/fault"
	"github.com/openhallmark/hallmarkd/roles"
)

func (w *Workflow) ApprovalWindow() time.Duration {
	w.policyMu.RLock()
	defer w.policyMu.RUnlock()
	return w.policy.approvalWindow
}

func (w *Workflow) MaxProposalLength() int {
	w.policyMu.RLock()
	defer w.policyMu.RUnlock()
	return w.policy.maxProposalLength
}

func (w *Workflow) RequireCommitments() bool {
	w.policyMu.RLock()
	defer w.policyMu.RUnlock()
	return w.policy.requireCommitments
}

func (w *Workflow) SelfApproveEnabled() bool {
	w.policyMu.RLock()
	defer w.policyMu.RUnlock()
	return w.policy.selfApproveEnabled
}

func (w *Workflow) SelfRevertEnabled() bool {
	w.policyMu.RLock()
	defer w.policyMu.RUnlock()
	return w.policy.selfRevertEnabled
}

// SetApprovalWindow sets the minimum delay between a proposal and its
// approval. Admin-only.
func (w *Workflow) SetApprovalWindow(
	caller roles.Principal,
	window time.Duration,
) error {
	if err := w.roles.Require(roles.RoleAdmin, caller, "SetApprovalWindow"); err != nil {
		return err
	}
	if window <= 0 {
		return &fault.PreconditionError{Reason: "approval window must be positive"}
	}
	w.policyMu.Lock()
	defer w.policyMu.Unlock()
	secs := strconv.FormatInt(int64(window/time.Second), 10)
	if err := w.db.SetParam(approvalWindowParam, secs, nil); err != nil {
		return err
	}
	w.policy.approvalWindow = window
	return nil
}

// SetCommitmentRequirement toggles mandatory commitment hashes on batch
// approval. Admin-only.
func (w *Workflow) SetCommitmentRequirement(
	caller roles.Principal,
	required bool,
) error {
	if err := w.roles.Require(roles.RoleAdmin, caller, "SetCommitmentRequirement"); err != nil {
		return err
	}
	w.policyMu.Lock()
	defer w.policyMu.Unlock()
	if err := w.db.SetParam(requireCommitmentsParam, strconv.FormatBool(required), nil); err != nil {
		return err
	}
	w.policy.requireCommitments = required
	return nil
}

// SetMaxProposalLength bounds proposal payload size. Admin-only.
func (w *Workflow) SetMaxProposalLength(
	caller roles.Principal,
	length int,
) error {
	if err := w.roles.Require(roles.RoleAdmin, caller, "SetMaxProposalLength"); err != nil {
		return err
	}
	if length <= 0 {
		return &fault.PreconditionError{Reason: "max proposal length must be positive"}
	}
	w.policyMu.Lock()
	defer w.policyMu.Unlock()
	if err := w.db.SetParam(maxProposalLengthParam, strconv.Itoa(length), nil); err != nil {
		return err
	}
	w.policy.maxProposalLength = length
	return nil
}

// SetSelfApproveEnabled toggles the owner self-approval shortcut. Admin-only.
func (w *Workflow) SetSelfApproveEnabled(
	caller roles.Principal,
	enabled bool,
) error {
	if err := w.roles.Require(roles.RoleAdmin, caller, "SetSelfApproveEnabled"); err != nil {
		return err
	}
	w.policyMu.Lock()
	defer w.policyMu.Unlock()
	if err := w.db.SetParam(selfApproveParam, strconv.FormatBool(enabled), nil); err != nil {
		return err
	}
	w.policy.selfApproveEnabled = enabled
	return nil
}

// SetSelfRevertEnabled toggles the owner revert-to-original shortcut. Admin-only.
func (w *Workflow) SetSelfRevertEnabled(
	caller roles.Principal,
	enabled bool,
) error {
	if err := w.roles.Require(roles.RoleAdmin, caller, "SetSelfRevertEnabled"); err != nil {
		return err
	}
	w.policyMu.Lock()
	defer w.policyMu.Unlock()
	if err := w.db.SetParam(selfRevertParam, strconv.FormatBool(enabled), nil); err != nil {
		return err
	}
	w.policy.selfRevertEnabled = enabled
	return nil
}
