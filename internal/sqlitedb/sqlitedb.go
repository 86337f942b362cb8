/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sqlitedb opens the SQLite databases of a store with the pragmas
// every one of them needs.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"

	"github.com/yorkie-team/livesync/pkg/errors"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	// DefaultBusyTimeout is the busy timeout in milliseconds.
	DefaultBusyTimeout = 10_000
)

// Open opens the SQLite database at the given path. A single connection is
// kept so that an in-memory database is shared by every call and writes are
// serialized.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, Error("open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = OFF",
		fmt.Sprintf("PRAGMA busy_timeout = %d", DefaultBusyTimeout),
	}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, Error(p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Error("ping", err)
	}

	return db, nil
}

// Exec runs the given statements in order.
func Exec(ctx context.Context, db *sql.DB, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return Error(stmt, err)
		}
	}
	return nil
}

// Error wraps an error of the driver into errors.SqliteError.
func Error(query string, err error) error {
	if err == nil {
		return nil
	}

	code := 0
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code = sqliteErr.Code()
	}
	return &errors.SqliteError{Query: compact(query), Code: code, Cause: err}
}

// IsBusy reports whether err indicates that the database is locked.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
