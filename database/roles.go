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

// GetRole returns the principal holding a role slot, or empty string
// when unset. Implements roles.Store.
func (d *Database) GetRole(role string) (string, error) {
	var ret Role
	result := d.db.First(&ret, "name = ?", role)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return ret.Principal, nil
}

// SetRoles applies all given assignments in one transaction.
// Implements roles.Store.
func (d *Database) SetRoles(assignments map[string]string) error {
	return d.db.Transaction(func(txn *gorm.DB) error {
		for role, principal := range assignments {
			result := txn.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"principal"}),
			}).Create(&Role{Name: role, Principal: principal})
			if result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
}
