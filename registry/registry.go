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

// Package registry is the asset registry: it assigns sequential ids at
// mint time, tracks ownership, and holds the deposit ledger used for
// destination-control proofs and the rescue path.
package registry

import (
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"github.com/openhallmark/hallmarkd/database"
	"github.com/openhallmark/hallmarkd/fault"
	"github.com/openhallmark/hallmarkd/roles"
)

const supplyCapParam = "policy.supply_cap"

// TransferFunc moves value to an external recipient. It transfers
// control outside the process, so callers hold the reentrancy guard
// around it.
type TransferFunc func(to roles.Principal, amount uint64) error

type Config struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	Database     *database.Database
	Roles        *roles.Registry
	TransferFunc TransferFunc
	// SupplyCap is the default maximum number of assets ever issued
	// (0 = unlimited). A persisted admin override takes precedence.
	SupplyCap uint64
}

type Registry struct {
	config  Config
	logger  *slog.Logger
	db      *database.Database
	roles   *roles.Registry
	metrics struct {
		assetsMinted prometheus.Counter
		assetsBurned prometheus.Counter
	}
	supplyCap     uint64
	supplyCapMu   sync.RWMutex
	withdrawGuard atomic.Bool
	// Serializes ownership mutations; the database transaction alone
	// cannot order two concurrent owner-check-then-write calls over
	// the same asset. Mint is excluded: it runs in the caller's
	// transaction under the issuance controller's own lock.
	mu sync.Mutex
}

func NewRegistry(config Config) (*Registry, error) {
	r := &Registry{
		config: config,
		db:     config.Database,
		roles:  config.Roles,
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		r.logger = config.Logger.With("component", "registry")
	}
	r.supplyCap = config.SupplyCap
	val, err := r.db.GetParam(supplyCapParam, nil)
	if err != nil {
		return nil, err
	}
	if val != "" {
		capVal, err := strconv.ParseUint(val, 10, 64)
		if err == nil {
			r.supplyCap = capVal
		}
	}
	promautoFactory := promauto.With(config.PromRegistry)
	r.metrics.assetsMinted = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "hallmarkd_assets_minted_total",
			Help: "total assets minted",
		},
	)
	r.metrics.assetsBurned = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "hallmarkd_assets_burned_total",
			Help: "total assets burned",
		},
	)
	return r, nil
}

// Mint creates a new asset owned by recipient, with its metadata record
// initialized so that active equals the immutable original. Runs inside
// the caller's transaction; authorization is the caller's concern.
func (r *Registry) Mint(
	txn *gorm.DB,
	recipient roles.Principal,
	originalMetadata string,
) (uint64, error) {
	if recipient == roles.None {
		return 0, &fault.PreconditionError{Reason: "mint to unset principal"}
	}
	supplyCap := r.SupplyCap()
	if supplyCap > 0 {
		issued, err := r.db.TotalIssued(txn)
		if err != nil {
			return 0, err
		}
		if issued >= supplyCap {
			return 0, &fault.PreconditionError{
				Reason: "supply cap reached",
			}
		}
	}
	assetId, err := r.db.NextAssetId(txn)
	if err != nil {
		return 0, err
	}
	err = r.db.CreateAsset(database.Asset{
		ID:       assetId,
		Owner:    string(recipient),
		IssuedAt: time.Now().Unix(),
	}, txn)
	if err != nil {
		return 0, err
	}
	err = r.db.CreateMetadataRecord(database.MetadataRecord{
		AssetID:  assetId,
		Original: originalMetadata,
		Active:   originalMetadata,
	}, txn)
	if err != nil {
		return 0, err
	}
	r.metrics.assetsMinted.Inc()
	r.logger.Info(
		"minted asset",
		"asset_id", assetId,
		"owner", string(recipient),
	)
	return assetId, nil
}

// OwnerOf returns the current owner, or None for unknown or burned ids
func (r *Registry) OwnerOf(assetId uint64) (roles.Principal, error) {
	return r.ownerOf(assetId, nil)
}

func (r *Registry) ownerOf(
	assetId uint64,
	txn *gorm.DB,
) (roles.Principal, error) {
	asset, err := r.db.GetAsset(assetId, txn)
	if err != nil {
		return roles.None, err
	}
	if asset == nil || asset.Burned {
		return roles.None, nil
	}
	return roles.Principal(asset.Owner), nil
}

// requireOwner resolves ownership inside the caller's transaction and
// checks the caller against it.
func (r *Registry) requireOwner(
	caller roles.Principal,
	assetId uint64,
	operation string,
	txn *gorm.DB,
) error {
	owner, err := r.ownerOf(assetId, txn)
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
			Operation: operation,
		}
	}
	return nil
}

// Transfer moves an asset to a new owner. Owner-only.
func (r *Registry) Transfer(
	caller roles.Principal,
	assetId uint64,
	to roles.Principal,
) error {
	if to == roles.None {
		return &fault.PreconditionError{Reason: "transfer to unset principal"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Transaction(func(txn *gorm.DB) error {
		if err := r.requireOwner(caller, assetId, "Transfer", txn); err != nil {
			return err
		}
		return r.db.SetAssetOwner(assetId, string(to), txn)
	})
}

// Burn destroys an asset and clears its metadata record. The id stays
// consumed forever. Owner-only.
func (r *Registry) Burn(caller roles.Principal, assetId uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.db.Transaction(func(txn *gorm.DB) error {
		if err := r.requireOwner(caller, assetId, "Burn", txn); err != nil {
			return err
		}
		if err := r.db.SetAssetBurned(assetId, txn); err != nil {
			return err
		}
		return r.db.DeleteMetadataRecord(assetId, txn)
	})
	if err != nil {
		return err
	}
	r.metrics.assetsBurned.Inc()
	r.logger.Info("burned asset", "asset_id", assetId)
	return nil
}

// TotalIssued returns the count of ids consumed so far
func (r *Registry) TotalIssued() (uint64, error) {
	return r.db.TotalIssued(nil)
}

// SupplyCap returns the effective cap (0 = unlimited)
func (r *Registry) SupplyCap() uint64 {
	r.supplyCapMu.RLock()
	defer r.supplyCapMu.RUnlock()
	return r.supplyCap
}

// SetSupplyCap updates the cap. Admin-only. A cap below the current
// issued count simply blocks further minting.
func (r *Registry) SetSupplyCap(caller roles.Principal, newCap uint64) error {
	if err := r.roles.Require(roles.RoleAdmin, caller, "SetSupplyCap"); err != nil {
		return err
	}
	r.supplyCapMu.Lock()
	defer r.supplyCapMu.Unlock()
	err := r.db.SetParam(supplyCapParam, strconv.FormatUint(newCap, 10), nil)
	if err != nil {
		return err
	}
	r.supplyCap = newCap
	return nil
}

// WithdrawDeposits sends all accumulated deposits to an external
// recipient. Admin-only. The guard is held across the external transfer
// so a reentrant call fails instead of double-spending the ledger.
func (r *Registry) WithdrawDeposits(
	caller roles.Principal,
	to roles.Principal,
) error {
	if err := r.roles.Require(roles.RoleAdmin, caller, "WithdrawDeposits"); err != nil {
		return err
	}
	if to == roles.None {
		return &fault.PreconditionError{Reason: "withdraw to unset principal"}
	}
	if r.config.TransferFunc == nil {
		return &fault.PreconditionError{Reason: "no transfer backend configured"}
	}
	if !r.withdrawGuard.CompareAndSwap(false, true) {
		return &fault.StateError{
			Operation: "WithdrawDeposits",
			State:     "withdrawal in progress",
		}
	}
	defer r.withdrawGuard.Store(false)
	total, err := r.db.TotalDeposits(nil)
	if err != nil {
		return err
	}
	if total == 0 {
		return &fault.PreconditionError{Reason: "no deposits to withdraw"}
	}
	if err := r.config.TransferFunc(to, total); err != nil {
		return err
	}
	if err := r.db.ClearDeposits(nil); err != nil {
		return err
	}
	r.logger.Info(
		"withdrew deposits",
		"to", string(to),
		"amount", total,
	)
	return nil
}
