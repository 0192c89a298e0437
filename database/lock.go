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

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const lockStateRowId = 1

// GetLockState returns the singleton lock state row, creating the
// initial unlocked row on first access.
func (d *Database) GetLockState(txn *gorm.DB) (LockState, error) {
	var ret LockState
	result := d.handle(txn).First(&ret, "id = ?", lockStateRowId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return LockState{ID: lockStateRowId, State: "unlocked"}, nil
		}
		return ret, result.Error
	}
	return ret, nil
}

// SetLockState replaces the singleton lock state row
func (d *Database) SetLockState(state LockState, txn *gorm.DB) error {
	state.ID = lockStateRowId
	result := d.handle(txn).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&state)
	return result.Error
}
