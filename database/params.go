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

// GetParam returns a persisted parameter value, or empty string when
// the parameter was never set.
func (d *Database) GetParam(name string, txn *gorm.DB) (string, error) {
	var ret Param
	result := d.handle(txn).First(&ret, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return ret.Value, nil
}

// SetParam stores a parameter value, replacing any existing value
func (d *Database) SetParam(name, value string, txn *gorm.DB) error {
	result := d.handle(txn).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Param{Name: name, Value: value})
	return result.Error
}
