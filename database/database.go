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

// Package database provides persistent storage for all governance
// state: assets, metadata records, the issuance queue, the lock state,
// role assignments, deposits and policy parameters. Relational state
// lives in sqlite via gorm; the append-only issuance journal lives in
// badger.
package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Config struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	DataDir      string
}

type Database struct {
	logger       *slog.Logger
	db           *gorm.DB
	blob         *blobStore
	promRegistry prometheus.Registerer
	dataDir      string
}

// New creates a database instance. An empty data dir selects in-memory
// storage for both the relational store and the journal, useful for
// testing.
func New(cfg *Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var metadataDb *gorm.DB
	var err error
	if cfg.DataDir == "" {
		// cache=shared allows multiple connections to share the same in-memory database
		metadataDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(cfg.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		metadataDbPath := filepath.Join(cfg.DataDir, "hallmark.sqlite")
		// WAL journal mode so reads don't block on writes
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		metadataDb, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", metadataDbPath, connOpts)),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	}
	blob, err := newBlobStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	d := &Database{
		logger:       logger,
		db:           metadataDb,
		blob:         blob,
		promRegistry: cfg.PromRegistry,
		dataDir:      cfg.DataDir,
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) init() error {
	// Configure tracing for GORM
	if err := d.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return err
	}
	for _, model := range MigrateModels {
		d.logger.Debug(
			fmt.Sprintf("creating table: %#v", model),
			"component", "database",
		)
		if err := d.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the underlying gorm handle
func (d *Database) DB() *gorm.DB {
	return d.db
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction runs fn inside a relational transaction. Any error rolls
// the whole transaction back, giving operations their all-or-nothing
// semantics.
func (d *Database) Transaction(fn func(txn *gorm.DB) error) error {
	return d.db.Transaction(fn)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	sqlDB, sqlErr := d.db.DB()
	if sqlErr == nil {
		err = errors.Join(err, sqlDB.Close())
	}
	err = errors.Join(err, d.blob.Close())
	return err
}

// handle returns txn when inside a transaction, the base DB otherwise
func (d *Database) handle(txn *gorm.DB) *gorm.DB {
	if txn != nil {
		return txn
	}
	return d.db
}
