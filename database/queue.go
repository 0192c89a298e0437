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
)

// AddQueueEntries appends pending asset definitions in order
func (d *Database) AddQueueEntries(values []string, txn *gorm.DB) error {
	db := d.handle(txn)
	for _, value := range values {
		entry := QueueEntry{Value: value}
		if result := db.Create(&entry); result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// QueueLength returns the total entry count, issued entries included
func (d *Database) QueueLength(txn *gorm.DB) (int64, error) {
	var count int64
	result := d.handle(txn).Model(&QueueEntry{}).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// QueueEntryAt returns the entry at the given insertion-order position,
// or nil when the position is past the end of the queue.
func (d *Database) QueueEntryAt(
	position int64,
	txn *gorm.DB,
) (*QueueEntry, error) {
	var ret QueueEntry
	result := d.handle(txn).Order("id").
		Offset(int(position)).
		Limit(1).
		First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// QueueEntries returns all entries in insertion order
func (d *Database) QueueEntries(txn *gorm.DB) ([]QueueEntry, error) {
	var ret []QueueEntry
	result := d.handle(txn).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// ClearQueue removes all entries. Only used on full reset, which also
// rewinds the cursor held in the lock state.
func (d *Database) ClearQueue(txn *gorm.DB) error {
	result := d.handle(txn).Where("1 = 1").Delete(&QueueEntry{})
	return result.Error
}
