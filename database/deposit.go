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
	"gorm.io/gorm"
)

// AddDeposit records a value transfer received from a principal
func (d *Database) AddDeposit(deposit Deposit, txn *gorm.DB) error {
	result := d.handle(txn).Create(&deposit)
	return result.Error
}

// TotalDeposits returns the sum of all recorded deposits
func (d *Database) TotalDeposits(txn *gorm.DB) (uint64, error) {
	var total *uint64
	result := d.handle(txn).Model(&Deposit{}).
		Select("sum(amount)").
		Scan(&total)
	if result.Error != nil {
		return 0, result.Error
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// ClearDeposits removes all deposit records after a withdrawal
func (d *Database) ClearDeposits(txn *gorm.DB) error {
	result := d.handle(txn).Where("1 = 1").Delete(&Deposit{})
	return result.Error
}
