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

// CreateMetadataRecord stores the metadata record created alongside a
// newly issued asset.
func (d *Database) CreateMetadataRecord(
	record MetadataRecord,
	txn *gorm.DB,
) error {
	result := d.handle(txn).Create(&record)
	return result.Error
}

// GetMetadataRecord returns the metadata record for an asset, or nil
// when none exists (never issued, or destroyed).
func (d *Database) GetMetadataRecord(
	assetId uint64,
	txn *gorm.DB,
) (*MetadataRecord, error) {
	var ret MetadataRecord
	result := d.handle(txn).First(&ret, "asset_id = ?", assetId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ret, nil
}

// SetMetadataProposal updates only the proposal columns of an existing
// record, leaving active untouched.
func (d *Database) SetMetadataProposal(
	assetId uint64,
	proposed string,
	lastProposalTime int64,
	txn *gorm.DB,
) error {
	result := d.handle(txn).Model(&MetadataRecord{}).
		Where("asset_id = ?", assetId).
		Updates(map[string]any{
			"proposed":           proposed,
			"last_proposal_time": lastProposalTime,
		})
	return result.Error
}

// UpdateMetadataRecord replaces all mutable fields of an existing record
func (d *Database) UpdateMetadataRecord(
	record MetadataRecord,
	txn *gorm.DB,
) error {
	result := d.handle(txn).Model(&MetadataRecord{}).
		Where("asset_id = ?", record.AssetID).
		Updates(map[string]any{
			"proposed":           record.Proposed,
			"active":             record.Active,
			"last_proposal_time": record.LastProposalTime,
		})
	return result.Error
}

// DeleteMetadataRecord clears the record when its asset is destroyed
func (d *Database) DeleteMetadataRecord(assetId uint64, txn *gorm.DB) error {
	result := d.handle(txn).Delete(&MetadataRecord{}, "asset_id = ?", assetId)
	return result.Error
}
