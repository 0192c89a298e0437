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

// Package metadata implements the approval workflow for per-asset
// metadata changes: owners propose, the approver commits after a
// mandatory window, optionally bound to a cryptographic commitment over
// the exact (active, proposed) pair it observed.
package metadata

import (
	"bytes"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"github.com/openhallmark/hallmarkd/database"
	"github.com/openhallmark/hallmarkd/event"
	"github.com/openhallmark/hallmarkd/fault"
	"github.com/openhallmark/hallmarkd/roles"
)

const (
	MetadataProposedEventType event.EventType = "metadata.proposed"
	MetadataApprovedEventType event.EventType = "metadata.approved"
	MetadataUpdatedEventType  event.EventType = "metadata.updated"
)

type MetadataProposedEvent struct {
	AssetId  uint64
	Proposed string
}

type MetadataApprovedEvent struct {
	ApprovedIds []uint64
}

type MetadataUpdatedEvent struct {
	AssetId uint64
}

const (
	approvalWindowParam     = "policy.approval_window"
	requireCommitmentsParam = "policy.require_commitments"
	maxProposalLengthParam  = "policy.max_proposal_length"
	selfApproveParam        = "policy.self_approve_enabled"
	selfRevertParam         = "policy.self_revert_enabled"

	DefaultApprovalWindow    = time.Hour
	DefaultMaxProposalLength = 2048
)

// OwnerLookup resolves current asset ownership, normally backed by the
// asset registry.
type OwnerLookup interface {
	OwnerOf(assetId uint64) (roles.Principal, error)
}

type WorkflowConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	Database     *database.Database
	Roles        *roles.Registry
	Owners       OwnerLookup
	Clock        func() time.Time
	Commitment   CommitmentFunc
	// Policy defaults; persisted admin overrides take precedence
	ApprovalWindow     time.Duration
	MaxProposalLength  int
	RequireCommitments bool
	SelfApproveEnabled bool
	SelfRevertEnabled  bool
}

type policy struct {
	approvalWindow     time.Duration
	maxProposalLength  int
	requireCommitments bool
	selfApproveEnabled bool
	selfRevertEnabled  bool
}

type Workflow struct {
	config   WorkflowConfig
	logger   *slog.Logger
	eventBus *event.EventBus
	db       *database.Database
	roles    *roles.Registry
	owners   OwnerLookup
	clock    func() time.Time
	commit   CommitmentFunc
	policy   policy
	policyMu sync.RWMutex
	metrics  struct {
		proposals  prometheus.Counter
		approvals  prometheus.Counter
		rejections prometheus.Counter
	}
	// Serializes record mutations; the database transaction alone
	// cannot order two concurrent read-modify-write calls over the
	// same record.
	mu sync.Mutex
}

func NewWorkflow(config WorkflowConfig) (*Workflow, error) {
	w := &Workflow{
		config:   config,
		eventBus: config.EventBus,
		db:       config.Database,
		roles:    config.Roles,
		owners:   config.Owners,
		clock:    config.Clock,
		commit:   config.Commitment,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		w.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		w.logger = config.Logger.With("component", "metadata")
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	if w.commit == nil {
		w.commit = Commitment
	}
	w.policy = policy{
		approvalWindow:     config.ApprovalWindow,
		maxProposalLength:  config.MaxProposalLength,
		requireCommitments: config.RequireCommitments,
		selfApproveEnabled: config.SelfApproveEnabled,
		selfRevertEnabled:  config.SelfRevertEnabled,
	}
	if w.policy.approvalWindow <= 0 {
		w.policy.approvalWindow = DefaultApprovalWindow
	}
	if w.policy.maxProposalLength <= 0 {
		w.policy.maxProposalLength = DefaultMaxProposalLength
	}
	if err := w.loadPolicy(); err != nil {
		return nil, err
	}
	promautoFactory := promauto.With(config.PromRegistry)
	w.metrics.proposals = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "hallmarkd_metadata_proposals_total",
			Help: "total metadata proposals recorded",
		},
	)
	w.metrics.approvals = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "hallmarkd_metadata_approvals_total",
			Help: "total metadata approvals applied",
		},
	)
	w.metrics.rejections = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "hallmarkd_metadata_rejections_total",
			Help: "total per-entry approval rejections",
		},
	)
	return w, nil
}

// loadPolicy applies persisted admin overrides on top of configured defaults
func (w *Workflow) loadPolicy() error {
	if val, err := w.db.GetParam(approvalWindowParam, nil); err != nil {
		return err
	} else if val != "" {
		if secs, err := strconv.ParseInt(val, 10, 64); err == nil {
			w.policy.approvalWindow = time.Duration(secs) * time.Second
		}
	}
	if val, err := w.db.GetParam(maxProposalLengthParam, nil); err != nil {
		return err
	} else if val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			w.policy.maxProposalLength = n
		}
	}
	for param, field := range map[string]*bool{
		requireCommitmentsParam: &w.policy.requireCommitments,
		selfApproveParam:        &w.policy.selfApproveEnabled,
		selfRevertParam:         &w.policy.selfRevertEnabled,
	} {
		val, err := w.db.GetParam(param, nil)
		if err != nil {
			return err
		}
		if val != "" {
			*field = val == "true"
		}
	}
	return nil
}

// Record returns the metadata record for an asset, or nil when none exists
func (w *Workflow) Record(assetId uint64) (*database.MetadataRecord, error) {
	return w.db.GetMetadataRecord(assetId, nil)
}

// Propose records intent to change an asset's metadata. Owner-only.
// No approval happens here; the proposal only starts the clock.
func (w *Workflow) Propose(
	caller roles.Principal,
	assetId uint64,
	newValue string,
) error {
	if newValue == "" {
		return &fault.PreconditionError{Reason: "empty proposal"}
	}
	if maxLen := w.MaxProposalLength(); len(newValue) > maxLen {
		return &fault.PreconditionError{
			Reason: "proposal exceeds maximum length " + strconv.Itoa(maxLen),
		}
	}
	owner, err := w.owners.OwnerOf(assetId)
	if err != nil {
		return err
	}
	if owner == roles.None {
		return &fault.PreconditionError{Reason: "asset does not exist"}
	}
	if caller != owner {
		return &fault.AuthorizationError{
			Caller:    string(caller),
			Required:  "owner",
			Operation: "Propose",
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err = w.db.Transaction(func(txn *gorm.DB) error {
		record, err := w.db.GetMetadataRecord(assetId, txn)
		if err != nil {
			return err
		}
		if record == nil {
			return &fault.PreconditionError{Reason: "no metadata record"}
		}
		// Writes only the proposal columns; active belongs to the
		// approval paths
		return w.db.SetMetadataProposal(
			assetId,
			newValue,
			w.clock().Unix(),
			txn,
		)
	})
	if err != nil {
		return err
	}
	w.metrics.proposals.Inc()
	w.logger.Info(
		"metadata proposed",
		"asset_id", assetId,
		"owner", string(caller),
	)
	w.eventBus.Publish(
		MetadataProposedEventType,
		event.NewEvent(
			MetadataProposedEventType,
			MetadataProposedEvent{AssetId: assetId, Proposed: newValue},
		),
	)
	return nil
}

// ApproveBatch validates and commits pending proposals. Approver-only.
// Per-entry failures are collected and returned, never escalated: one
// stale or malicious proposal must not block unrelated approvals in the
// same batch. The returned slice is empty when every entry succeeded.
func (w *Workflow) ApproveBatch(
	caller roles.Principal,
	assetIds []uint64,
	commitments [][]byte,
) ([]uint64, error) {
	if err := w.roles.Require(roles.RoleApprover, caller, "ApproveBatch"); err != nil {
		return nil, err
	}
	if len(assetIds) == 0 {
		return nil, &fault.PreconditionError{Reason: "empty batch"}
	}
	requireCommitments := w.RequireCommitments()
	if requireCommitments && len(commitments) == 0 {
		return nil, &fault.PreconditionError{
			Reason: "commitments required by policy",
		}
	}
	if len(commitments) > 0 && len(commitments) != len(assetIds) {
		return nil, &fault.PreconditionError{
			Reason: "commitment count does not match asset count",
		}
	}
	now := w.clock()
	window := w.ApprovalWindow()
	checkCommitments := len(commitments) > 0
	approved := make([]uint64, 0, len(assetIds))
	failed := []uint64{}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.db.Transaction(func(txn *gorm.DB) error {
		for i, assetId := range assetIds {
			record, err := w.db.GetMetadataRecord(assetId, txn)
			if err != nil {
				return err
			}
			var commitment []byte
			if checkCommitments {
				commitment = commitments[i]
			}
			entryErr := w.validateApproval(
				record,
				assetId,
				now,
				window,
				commitment,
				checkCommitments,
			)
			if entryErr != nil {
				failed = append(failed, assetId)
				w.logger.Debug(
					"approval entry rejected",
					"asset_id", assetId,
					"error", entryErr,
				)
				continue
			}
			record.Active = record.Proposed
			record.Proposed = ""
			if err := w.db.UpdateMetadataRecord(*record, txn); err != nil {
				return err
			}
			approved = append(approved, assetId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.metrics.approvals.Add(float64(len(approved)))
	w.metrics.rejections.Add(float64(len(failed)))
	w.logger.Info(
		"approval batch processed",
		"approved", len(approved),
		"failed", len(failed),
	)
	w.eventBus.Publish(
		MetadataApprovedEventType,
		event.NewEvent(
			MetadataApprovedEventType,
			MetadataApprovedEvent{ApprovedIds: approved},
		),
	)
	for _, assetId := range approved {
		w.eventBus.Publish(
			MetadataUpdatedEventType,
			event.NewEvent(
				MetadataUpdatedEventType,
				MetadataUpdatedEvent{AssetId: assetId},
			),
		)
	}
	return failed, nil
}

// validateApproval reports why a single batch entry cannot be
// committed, as one of the shared error kinds, or nil when it may be.
func (w *Workflow) validateApproval(
	record *database.MetadataRecord,
	assetId uint64,
	now time.Time,
	window time.Duration,
	commitment []byte,
	checkCommitment bool,
) error {
	if record == nil || record.Proposed == "" {
		return &fault.PreconditionError{Reason: "no pending proposal"}
	}
	readyAt := time.Unix(record.LastProposalTime, 0).Add(window)
	if now.Before(readyAt) {
		return &fault.TimingError{
			Operation: "ApproveBatch",
			ReadyAt:   readyAt,
			Now:       now,
		}
	}
	if checkCommitment {
		expected := w.commit(record.Active, record.Proposed)
		if !bytes.Equal(commitment, expected) {
			return &fault.CommitmentMismatchError{AssetId: assetId}
		}
	}
	return nil
}

// SelfApprove applies the caller's own pending proposal immediately,
// bypassing the window and commitment check. Owner == proposer ==
// beneficiary, so there is no third party to front-run. Gated by a
// global switch.
func (w *Workflow) SelfApprove(caller roles.Principal, assetId uint64) error {
	if !w.SelfApproveEnabled() {
		return &fault.PreconditionError{Reason: "self-approval disabled"}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.db.Transaction(func(txn *gorm.DB) error {
		record, err := w.requireOwnedRecord(caller, assetId, "SelfApprove", txn)
		if err != nil {
			return err
		}
		if record.Proposed == "" || record.Proposed == record.Active {
			return &fault.PreconditionError{Reason: "nothing to change"}
		}
		record.Active = record.Proposed
		record.Proposed = ""
		return w.db.UpdateMetadataRecord(*record, txn)
	})
	if err != nil {
		return err
	}
	w.metrics.approvals.Inc()
	w.logger.Info("metadata self-approved", "asset_id", assetId)
	w.eventBus.Publish(
		MetadataUpdatedEventType,
		event.NewEvent(
			MetadataUpdatedEventType,
			MetadataUpdatedEvent{AssetId: assetId},
		),
	)
	return nil
}

// SelfRevert restores active metadata to the immutable original. Does
// not touch any pending proposal. Gated by a global switch.
func (w *Workflow) SelfRevert(caller roles.Principal, assetId uint64) error {
	if !w.SelfRevertEnabled() {
		return &fault.PreconditionError{Reason: "self-revert disabled"}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.db.Transaction(func(txn *gorm.DB) error {
		record, err := w.requireOwnedRecord(caller, assetId, "SelfRevert", txn)
		if err != nil {
			return err
		}
		if record.Active == record.Original {
			return &fault.PreconditionError{Reason: "nothing to change"}
		}
		record.Active = record.Original
		return w.db.UpdateMetadataRecord(*record, txn)
	})
	if err != nil {
		return err
	}
	w.logger.Info("metadata reverted", "asset_id", assetId)
	w.eventBus.Publish(
		MetadataUpdatedEventType,
		event.NewEvent(
			MetadataUpdatedEventType,
			MetadataUpdatedEvent{AssetId: assetId},
		),
	)
	return nil
}

func (w *Workflow) requireOwnedRecord(
	caller roles.Principal,
	assetId uint64,
	operation string,
	txn *gorm.DB,
) (*database.MetadataRecord, error) {
	owner, err := w.owners.OwnerOf(assetId)
	if err != nil {
		return nil, err
	}
	if owner == roles.None {
		return nil, &fault.PreconditionError{Reason: "asset does not exist"}
	}
	if caller != owner {
		return nil, &fault.AuthorizationError{
			Caller:    string(caller),
			Required:  "owner",
			Operation: operation,
		}
	}
	record, err := w.db.GetMetadataRecord(assetId, txn)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &fault.PreconditionError{Reason: "no metadata record"}
	}
	return record, nil
}
