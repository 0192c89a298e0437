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
	"log/slog"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// blobStore is the append-only issuance journal. Each issued asset gets
// one immutable entry recording its original metadata, kept outside the
// relational store so the journal survives metadata-record destruction.
type blobStore struct {
	db     *badger.DB
	logger *slog.Logger
}

func newBlobStore(dataDir string, logger *slog.Logger) (*blobStore, error) {
	var blobDb *badger.DB
	var err error
	if dataDir == "" {
		badgerOpts := badger.DefaultOptions("").
			WithLogger(newBadgerLogger(logger)).
			// The default INFO logging is a bit verbose
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
		blobDb, err = badger.Open(badgerOpts)
	} else {
		blobDir := filepath.Join(dataDir, "journal")
		badgerOpts := badger.DefaultOptions(blobDir).
			WithLogger(newBadgerLogger(logger)).
			WithLoggingLevel(badger.WARNING).
			WithCompression(options.Snappy)
		blobDb, err = badger.Open(badgerOpts)
	}
	if err != nil {
		return nil, err
	}
	return &blobStore{
		db:     blobDb,
		logger: logger,
	}, nil
}

func (b *blobStore) Close() error {
	return b.db.Close()
}

func journalKey(assetId uint64) []byte {
	return fmt.Appendf(nil, "issue.%016x", assetId)
}

// AppendIssuance journals the original metadata of a newly issued asset
func (d *Database) AppendIssuance(assetId uint64, original string) error {
	return d.blob.db.Update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(assetId), []byte(original))
	})
}

// GetIssuance returns the journaled original metadata for an asset id.
// Returns empty string without error when no entry exists.
func (d *Database) GetIssuance(assetId uint64) (string, error) {
	var ret string
	err := d.blob.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(journalKey(assetId))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		ret = string(val)
		return nil
	})
	return ret, err
}

// badgerLogger wraps slog for badger's logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{
		logger: logger.With("component", "journal"),
	}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Info(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}
