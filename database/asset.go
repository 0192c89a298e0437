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
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

const nextAssetIdParam = "counter.next_asset_id"

// NextAssetId consumes and returns the next sequential asset id,
// starting from 1. Ids are never reused; the counter only advances.
func (d *Database) NextAssetId(txn *gorm.DB) (uint64, error) {
	db := d.handle(txn)
	val, err := d.GetParam(nextAssetIdParam, txn)
	if err != nil {
		return 0, err
	}
	next := uint64(1)
	if val != "" {
		next, err = strconv.ParseUint(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt asset id counter %q: %w", val, err)
		}
	}
	if err := d.SetParam(nextAssetIdParam, strconv.FormatUint(next+1, 10), db); err != nil {
		return 0, err
	}
	return next, nil
}

// TotalIssued returns the count of ids consumed so far, including
// burned assets.
func (d *Database) TotalIssued(txn *gorm.DB) (uint64, error) {
	val, err := d.GetParam(nextAssetIdParam, txn)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return 0, nil
	}
	next, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt asset id counter %q: %w", val, err)
	}
	return next - 1, nil
}

// CreateAsset stores a newly issued asset row
func (d *Database) CreateAsset(asset Asset, txn *gorm.DB) error {
	result := d.handle(txn).Create(&asset)
	return result.Error
}

// GetAsset returns an asset row, or nil when the id was never issued
func (d *Database) GetAsset(assetId uint64, txn *gorm.DB) (*Asset, error) {
	var ret Asset
	result := d.handle(txn).First(&ret, "id = ?", assetId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// SetAssetOwner updates the owner of an existing asset
func (d *Database) SetAssetOwner(
	assetId uint64,
	owner string,
	txn *gorm.DB,
) error {
	result := d.handle(txn).Model(&Asset{}).
		Where("id = ?", assetId).
		Update("owner", owner)
	return result.Error
}

// SetAssetBurned marks an asset destroyed. The row is retained so the
// id stays consumed.
func (d *Database) SetAssetBurned(assetId uint64, txn *gorm.DB) error {
	result := d.handle(txn).Model(&Asset{}).
		Where("id = ?", assetId).
		Updates(map[string]any{"burned": true, "owner": ""})
	return result.Error
}
