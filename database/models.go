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

package database

// Asset is one issued asset. Ids are assigned sequentially from 1 by
// the issuance counter and are never reused, so a burned asset keeps
// its row with Burned set.
type Asset struct {
	ID       uint64 `gorm:"primaryKey"`
	Owner    string `gorm:"index"`
	Burned   bool
	IssuedAt int64
}

func (Asset) TableName() string {
	return "asset"
}

// MetadataRecord is the per-asset metadata triple. Original is written
// once at issuance; Proposed is owner-writable; Active is written only
// by an approved transition. Times are unix seconds.
type MetadataRecord struct {
	AssetID          uint64 `gorm:"primaryKey"`
	Original         string
	Proposed         string
	Active           string
	LastProposalTime int64
}

func (MetadataRecord) TableName() string {
	return "metadata_record"
}

// QueueEntry is one pending asset definition. Insertion order is the
// autoincrement id; logical removal is tracked by the cursor in
// LockState, not by deleting rows.
type QueueEntry struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	Value string
}

func (QueueEntry) TableName() string {
	return "queue_entry"
}

// LockState is the singleton row holding the queue gate. Cursor lives
// here rather than with the queue rows because it resets with the lock
// epoch.
type LockState struct {
	ID                uint `gorm:"primaryKey"`
	State             string
	LockCheckTime     int64
	LastIssueTime     int64
	Destination       string
	ConfirmedDeposit  uint64
	UnlockerConfirmed bool
	Cursor            int64
}

func (LockState) TableName() string {
	return "lock_state"
}

// Role is one singleton role slot assignment.
type Role struct {
	Name      string `gorm:"primaryKey"`
	Principal string
}

func (Role) TableName() string {
	return "role"
}

// Deposit is one value transfer received from a principal, kept for
// the destination-control proof and the rescue path.
type Deposit struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	From       string `gorm:"column:from_principal;index"`
	Amount     uint64
	ReceivedAt int64
}

func (Deposit) TableName() string {
	return "deposit"
}

// Param is one persisted policy parameter or counter.
type Param struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

func (Param) TableName() string {
	return "param"
}

// MigrateModels is the set of models managed by auto-migration
var MigrateModels = []any{
	&Asset{},
	&MetadataRecord{},
	&QueueEntry{},
	&LockState{},
	&Role{},
	&Deposit{},
	&Param{},
}
