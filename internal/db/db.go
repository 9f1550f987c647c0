// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db provides the local data access layer for Foothold: the pinned
// SSH host keys used by the trust-on-first-use policy, and the audit log of
// bootstrap runs. It is backed by Bun and supports SQLite (default),
// PostgreSQL and MySQL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (registers "pgx")
	_ "modernc.org/sqlite"             // Pure Go SQLite driver

	"github.com/toeirei/foothold/internal/logging"
	"github.com/toeirei/foothold/internal/model"
)

// sqlOpenFunc is swappable in tests.
var sqlOpenFunc = sql.Open

// InitDB opens the database for the given type and DSN, creates the schema
// if needed, and installs the resulting store as the package-level default.
func InitDB(dbType, dsn string) error {
	s, err := NewStoreFromDSN(dbType, dsn)
	if err != nil {
		return err
	}
	store = s
	return nil
}

// NewStoreFromDSN opens a sql.DB for the given DSN, ensures the schema, and
// returns a Store backed by a long-lived *bun.DB. This hides *sql.DB usage
// from higher-level callers.
func NewStoreFromDSN(dbType, dsn string) (Store, error) {
	driverName := dbType
	// The pgx stdlib registers driver name "pgx"; map "postgres" to that driver.
	if dbType == "postgres" {
		driverName = "pgx"
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory SQLite databases are per-connection; force a single open
	// connection so the schema stays visible. Tests commonly use ":memory:".
	if dbType == "sqlite" && dsn == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	bunDB := createBunDB(sqlDB, dbType)
	if err := ensureSchema(bunDB); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logging.Debugf("db: opened %s store in %s", dbType, time.Since(start))

	return &bunStore{bun: bunDB}, nil
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
// Centralizing construction keeps dialect selection in one place.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "sqlite":
		return bun.NewDB(sqlDB, sqlitedialect.New())
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		// Fallback to SQLite dialect as a safe default; callers should
		// validate dbType earlier.
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// ensureSchema creates the two Foothold tables when they don't exist yet.
// The DDL is identical across the supported dialects, so Bun's portable
// CreateTable is enough and no migration history is kept.
func ensureSchema(bdb *bun.DB) error {
	ctx := context.Background()
	models := []interface{}{
		(*model.KnownHostModel)(nil),
		(*model.AuditLogModel)(nil),
	}
	for _, m := range models {
		if _, err := bdb.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
