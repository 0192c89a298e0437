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

// ErrorResponse is the error body format for all endpoints.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type RootResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

type SupplyResponse struct {
	TotalIssued uint64 `json:"total_issued"`
	SupplyCap   uint64 `json:"supply_cap"`
}

type AssetResponse struct {
	AssetId          uint64 `json:"asset_id"`
	Owner            string `json:"owner"`
	OriginalMetadata string `json:"original_metadata"`
	ActiveMetadata   string `json:"active_metadata"`
	ProposedMetadata string `json:"proposed_metadata,omitempty"`
	LastProposalTime int64  `json:"last_proposal_time,omitempty"`
}

type TransferRequest struct {
	To string `json:"to"`
}

type ProposeRequest struct {
	Value string `json:"value"`
}

type ApproveBatchRequest struct {
	AssetIds []uint64 `json:"asset_ids"`
	// Commitments are hex-encoded SHA3-256 digests, parallel to
	// AssetIds. May be empty when commitments are not required.
	Commitments []string `json:"commitments,omitempty"`
}

type ApproveBatchResponse struct {
	Failed []uint64 `json:"failed"`
}

type QueueStatusResponse struct {
	State       string `json:"state"`
	Destination string `json:"destination"`
	Cursor      int64  `json:"cursor"`
	Length      int64  `json:"length"`
	Remaining   int64  `json:"remaining"`
}

type AddEntriesRequest struct {
	Values []string `json:"values"`
}

type SetDestinationRequest struct {
	Destination string `json:"destination"`
}

type UnlockerCheckResponse struct {
	Remaining   int64  `json:"remaining"`
	Destination string `json:"destination"`
}

type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

type IssueResponse struct {
	AssetId uint64 `json:"asset_id"`
}

type RoleResponse struct {
	Role      string `json:"role"`
	Principal string `json:"principal"`
}

type SetRoleRequest struct {
	Principal string `json:"principal"`
}

type WithdrawRequest struct {
	To string `json:"to"`
}

// PolicyRequest updates any subset of the tunable policy parameters.
// Unset fields are left unchanged.
type PolicyRequest struct {
	ApprovalWindowSeconds  *int64  `json:"approval_window_seconds,omitempty"`
	RequireCommitments     *bool   `json:"require_commitments,omitempty"`
	MaxProposalLength      *int    `json:"max_proposal_length,omitempty"`
	SelfApproveEnabled     *bool   `json:"self_approve_enabled,omitempty"`
	SelfRevertEnabled      *bool   `json:"self_revert_enabled,omitempty"`
	CoolDownSeconds        *int64  `json:"cool_down_seconds,omitempty"`
	InterIssueDelaySeconds *int64  `json:"inter_issue_delay_seconds,omitempty"`
	SupplyCap              *uint64 `json:"supply_cap,omitempty"`
}
