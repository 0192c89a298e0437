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
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/openhallmark/hallmarkd/fault"
	"github.com/openhallmark/hallmarkd/roles"
)

const apiVersion = "0.1.0"

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeFault maps domain error kinds to HTTP status codes. Anything
// not in the domain taxonomy is a 500.
func (s *Server) writeFault(w http.ResponseWriter, err error) {
	var authErr *fault.AuthorizationError
	var precondErr *fault.PreconditionError
	var timingErr *fault.TimingError
	var commitErr *fault.CommitmentMismatchError
	var stateErr *fault.StateError
	switch {
	case errors.As(err, &authErr):
		writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &precondErr):
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.As(err, &timingErr):
		writeError(w, http.StatusTooEarly, "Too Early", err.Error())
	case errors.As(err, &commitErr):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	default:
		s.logger.Error("internal error", "error", err)
		writeError(
			w,
			http.StatusInternalServerError,
			"Internal Server Error",
			"internal error",
		)
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"malformed request body",
		)
		return false
	}
	return true
}

func assetIdParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid asset id",
		)
		return 0, false
	}
	return id, true
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Service: "hallmarkd",
		Version: apiVersion,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy: true,
	})
}

func (s *Server) handleSupply(w http.ResponseWriter, _ *http.Request) {
	issued, err := s.config.Registry.TotalIssued()
	if err != nil {
		s.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SupplyResponse{
		TotalIssued: issued,
		SupplyCap:   s.config.Registry.SupplyCap(),
	})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	assetId, ok := assetIdParam(w, r)
	if !ok {
		return
	}
	owner, err := s.config.Registry.OwnerOf(assetId)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	if owner == roles.None {
		writeError(w, http.StatusNotFound, "Not Found", "asset not found")
		return
	}
	record, err := s.config.Metadata.Record(assetId)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	resp := AssetResponse{
		AssetId: assetId,
		Owner:   string(owner),
	}
	if record != nil {
		resp.OriginalMetadata = record.Original
		resp.ActiveMetadata = record.Active
		resp.ProposedMetadata = record.Proposed
		resp.LastProposalTime = record.LastProposalTime
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	assetId, ok := assetIdParam(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	err := s.config.Registry.Transfer(
		caller(r),
		assetId,
		roles.Principal(req.To),
	)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	assetId, ok := assetIdParam(w, r)
	if !ok {
		return
	}
	if err := s.config.Registry.Burn(caller(r), assetId); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	assetId, ok := assetIdParam(w, r)
	if !ok {
		return
	}
	var req ProposeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	err := s.config.Metadata.Propose(caller(r), assetId, req.Value)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApproveBatch(w http.ResponseWriter, r *http.Request) {
	var req ApproveBatchRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	var commitments [][]byte
	for _, c := range req.Commitments {
		decoded, err := hex.DecodeString(c)
		if err != nil {
			writeError(
				w,
				http.StatusBadRequest,
				"Bad Request",
				"invalid commitment encoding",
			)
			return
		}
		commitments = append(commitments, decoded)
	}
	failed, err := s.config.Metadata.ApproveBatch(
		caller(r),
		req.AssetIds,
		commitments,
	)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	if failed == nil {
		failed = []uint64{}
	}
	writeJSON(w, http.StatusOK, ApproveBatchResponse{
		Failed: failed,
	})
}

func (s *Server) handleSelfApprove(w http.ResponseWriter, r *http.Request) {
	assetId, ok := assetIdParam(w, r)
	if !ok {
		return
	}
	if err := s.config.Metadata.SelfApprove(caller(r), assetId); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelfRevert(w http.ResponseWriter, r *http.Request) {
	assetId, ok := assetIdParam(w, r)
	if !ok {
		return
	}
	if err := s.config.Metadata.SelfRevert(caller(r), assetId); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, _ *http.Request) {
	status, err := s.config.Issuance.Status()
	if err != nil {
		s.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueueStatusResponse{
		State:       string(status.State),
		Destination: string(status.Destination),
		Cursor:      status.Cursor,
		Length:      status.Length,
		Remaining:   status.Remaining,
	})
}

func (s *Server) handleAddEntries(w http.ResponseWriter, r *http.Request) {
	var req AddEntriesRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := s.config.Issuance.AddEntries(caller(r), req.Values); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Issuance.ResetQueue(caller(r)); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetDestination(w http.ResponseWriter, r *http.Request) {
	var req SetDestinationRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	err := s.config.Issuance.SetDestination(
		caller(r),
		roles.Principal(req.Destination),
	)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlockerConfirm(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Issuance.UnlockerConfirm(caller(r)); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Issuance.Lock(caller(r)); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnlockerCheck(w http.ResponseWriter, r *http.Request) {
	remaining, destination, err := s.config.Issuance.UnlockerCheck(caller(r))
	if err != nil {
		s.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnlockerCheckResponse{
		Remaining:   remaining,
		Destination: string(destination),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := s.config.Issuance.Deposit(caller(r), req.Amount); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIssueNext(w http.ResponseWriter, r *http.Request) {
	assetId, err := s.config.Issuance.IssueNext(caller(r))
	if err != nil {
		s.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IssueResponse{
		AssetId: assetId,
	})
}

func (s *Server) handleUnlockAndReset(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Issuance.UnlockAndReset(caller(r)); err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseRole(w http.ResponseWriter, r *http.Request) (roles.Role, bool) {
	role := roles.Role(r.PathValue("role"))
	switch role {
	case roles.RoleAdmin, roles.RoleIssuer,
		roles.RoleApprover, roles.RoleUnlocker:
		return role, true
	}
	writeError(w, http.StatusNotFound, "Not Found", "unknown role")
	return "", false
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, ok := parseRole(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RoleResponse{
		Role:      string(role),
		Principal: string(s.config.Roles.Principal(role)),
	})
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	role, ok := parseRole(w, r)
	if !ok {
		return
	}
	var req SetRoleRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	var err error
	if role == roles.RoleAdmin {
		err = s.config.Roles.SetAdmin(
			caller(r),
			roles.Principal(req.Principal),
		)
	} else {
		err = s.config.Roles.SetRole(
			caller(r),
			role,
			roles.Principal(req.Principal),
		)
	}
	if err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	err := s.config.Registry.WithdrawDeposits(
		caller(r),
		roles.Principal(req.To),
	)
	if err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validatePolicyRequest checks every provided field against the same
// bounds the individual setters enforce, so a bundled update is
// rejected whole before any part of it is applied.
func validatePolicyRequest(req PolicyRequest) error {
	if req.ApprovalWindowSeconds != nil && *req.ApprovalWindowSeconds <= 0 {
		return &fault.PreconditionError{Reason: "approval window must be positive"}
	}
	if req.MaxProposalLength != nil && *req.MaxProposalLength <= 0 {
		return &fault.PreconditionError{Reason: "max proposal length must be positive"}
	}
	if req.CoolDownSeconds != nil && *req.CoolDownSeconds <= 0 {
		return &fault.PreconditionError{Reason: "cool-down must be positive"}
	}
	if req.InterIssueDelaySeconds != nil && *req.InterIssueDelaySeconds <= 0 {
		return &fault.PreconditionError{Reason: "inter-issue delay must be positive"}
	}
	return nil
}

func (s *Server) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	var req PolicyRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	// Authorization and validation happen before any setter runs, so
	// a rejected request leaves every parameter unchanged
	admin := caller(r)
	if s.config.Roles.Principal(roles.RoleAdmin) != admin || admin == roles.None {
		s.writeFault(w, &fault.AuthorizationError{
			Caller:    string(admin),
			Required:  string(roles.RoleAdmin),
			Operation: "SetPolicy",
		})
		return
	}
	if err := validatePolicyRequest(req); err != nil {
		s.writeFault(w, err)
		return
	}
	var err error
	if req.ApprovalWindowSeconds != nil {
		err = s.config.Metadata.SetApprovalWindow(
			admin,
			time.Duration(*req.ApprovalWindowSeconds)*time.Second,
		)
	}
	if err == nil && req.RequireCommitments != nil {
		err = s.config.Metadata.SetCommitmentRequirement(
			admin,
			*req.RequireCommitments,
		)
	}
	if err == nil && req.MaxProposalLength != nil {
		err = s.config.Metadata.SetMaxProposalLength(
			admin,
			*req.MaxProposalLength,
		)
	}
	if err == nil && req.SelfApproveEnabled != nil {
		err = s.config.Metadata.SetSelfApproveEnabled(
			admin,
			*req.SelfApproveEnabled,
		)
	}
	if err == nil && req.SelfRevertEnabled != nil {
		err = s.config.Metadata.SetSelfRevertEnabled(
			admin,
			*req.SelfRevertEnabled,
		)
	}
	if err == nil && req.CoolDownSeconds != nil {
		err = s.config.Issuance.SetCoolDown(
			admin,
			time.Duration(*req.CoolDownSeconds)*time.Second,
		)
	}
	if err == nil && req.InterIssueDelaySeconds != nil {
		err = s.config.Issuance.SetInterIssueDelay(
			admin,
			time.Duration(*req.InterIssueDelaySeconds)*time.Second,
		)
	}
	if err == nil && req.SupplyCap != nil {
		err = s.config.Registry.SetSupplyCap(admin, *req.SupplyCap)
	}
	if err != nil {
		s.writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
