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

// Package statedb provides the SQLite store of the materialized state. Every
// write goes through a Tx that records an invertible changeset, so applied
// events can later be rolled back.
package statedb

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/sqlitedb"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/materializer"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = sqlitedb.MemoryPath

	// internalPrefix marks the tables the state store keeps for itself.
	internalPrefix = "__livesync_"

	metaTable      = internalPrefix + "meta"
	changesetTable = internalPrefix + "session_changeset"
)

// Row is a single row returned by Query.
type Row map[string]interface{}

type tableInfo struct {
	name    string
	columns []string

	// rowidAlias is the INTEGER PRIMARY KEY column aliasing the rowid, if
	// any.
	rowidAlias string
}

// DB is the materialized state of a store.
type DB struct {
	db     *sql.DB
	schema *materializer.Schema
	logger logging.Logger

	// mu serializes the transactions and the reads. A single connection is
	// kept open so that an in-memory database is shared by every call.
	mu sync.Mutex

	tables map[string]*tableInfo
	order  []string
	fresh  bool

	// captureWidth is the number of value columns of each image in the
	// capture table.
	captureWidth int
}

// Open opens the state database at the given path and makes sure its tables
// match the schema. When the database is new or its schema hash differs, the
// state tables are recreated empty and Fresh reports true.
func Open(ctx context.Context, path string, schema *materializer.Schema) (*DB, error) {
	conn, err := sqlitedb.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	d := &DB{
		db:     conn,
		schema: schema,
		logger: logging.New("statedb"),
	}

	if err := d.init(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return d, nil
}

func (d *DB) init(ctx context.Context) error {
	if err := sqlitedb.Exec(ctx, d.db,
		`CREATE TABLE IF NOT EXISTS ` + metaTable + ` (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS ` + changesetTable + ` (
			seq_global INTEGER NOT NULL,
			seq_client INTEGER NOT NULL,
			seq_rebase_generation INTEGER NOT NULL,
			changeset BLOB,
			PRIMARY KEY (seq_global, seq_client, seq_rebase_generation)
		)`,
	); err != nil {
		return err
	}

	hash := strconv.FormatUint(d.schema.Hash(), 16)
	var stored string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM `+metaTable+` WHERE key = 'schema_hash'`).Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
		return sqliteError("select schema hash", err)
	}

	if stored != hash {
		if err := d.recreate(ctx, hash); err != nil {
			return err
		}
		d.fresh = true
		if stored != "" {
			d.logger.Infof("schema changed from %s to %s, state tables recreated", stored, hash)
		}
	}

	if err := d.loadTables(ctx); err != nil {
		return err
	}
	return d.installCapture(ctx)
}

// recreate drops every state table and runs the DDL of the schema.
func (d *DB) recreate(ctx context.Context, hash string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return sqliteError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	names, err := userTables(ctx, tx)
	if err != nil {
		return err
	}
	for _, name := range names {
		stmt := `DROP TABLE ` + quote(name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return sqliteError(stmt, err)
		}
	}

	for _, ddl := range d.schema.Tables {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return sqliteError(ddl, err)
		}
	}

	stmt := `DELETE FROM ` + changesetTable
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return sqliteError(stmt, err)
	}
	stmt = `INSERT OR REPLACE INTO ` + metaTable + ` (key, value) VALUES ('schema_hash', ?)`
	if _, err := tx.ExecContext(ctx, stmt, hash); err != nil {
		return sqliteError(stmt, err)
	}

	if err := tx.Commit(); err != nil {
		return sqliteError("commit", err)
	}
	return nil
}

func (d *DB) loadTables(ctx context.Context) error {
	names, err := userTables(ctx, d.db)
	if err != nil {
		return err
	}

	d.tables = make(map[string]*tableInfo, len(names))
	d.order = names
	for _, name := range names {
		info, err := describeTable(ctx, d.db, name)
		if err != nil {
			return err
		}
		d.tables[name] = info
	}
	return nil
}

// Fresh returns whether the state tables were created by Open and nothing
// was loaded since, i.e. the state must be rebuilt from the event log.
func (d *DB) Fresh() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fresh
}

// Schema returns the schema the database was opened with.
func (d *DB) Schema() *materializer.Schema {
	return d.schema
}

// Tables returns the names of the state tables in alphabetical order.
func (d *DB) Tables() []string {
	return append([]string(nil), d.order...)
}

// Close closes the database.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return sqliteError("close", err)
	}
	return nil
}

// Begin starts a transaction. The database is locked until the transaction
// is committed or aborted.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	d.mu.Lock()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		d.mu.Unlock()
		return nil, sqliteError("begin", err)
	}
	return &Tx{db: d, tx: tx}, nil
}

// Query runs a read-only query against the state.
func (d *DB) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteError(query, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, sqliteError(query, err)
	}

	var result []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, sqliteError(query, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError(query, err)
	}
	return result, nil
}

// Changesets returns every changeset recorded for an applied event.
func (d *DB) Changesets(ctx context.Context) (map[eventseq.SeqNum][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := `SELECT seq_global, seq_client, seq_rebase_generation, changeset FROM ` + changesetTable
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, sqliteError(query, err)
	}
	defer func() { _ = rows.Close() }()

	changesets := make(map[eventseq.SeqNum][]byte)
	for rows.Next() {
		var global int64
		var client, gen int64
		var blob []byte
		if err := rows.Scan(&global, &client, &gen, &blob); err != nil {
			return nil, sqliteError(query, err)
		}
		changesets[eventseq.New(uint64(global), uint32(client), uint32(gen))] = blob
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError(query, err)
	}
	return changesets, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func userTables(ctx context.Context, q querier) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' ` +
		`AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ` +
		`AND name NOT LIKE '\_\_livesync\_%' ESCAPE '\' ORDER BY name`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, sqliteError(query, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, sqliteError(query, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError(query, err)
	}
	return names, nil
}

func describeTable(ctx context.Context, q querier, name string) (*tableInfo, error) {
	query := `PRAGMA table_info(` + quote(name) + `)`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, sqliteError(query, err)
	}
	defer func() { _ = rows.Close() }()

	info := &tableInfo{name: name}
	var pkColumns []string
	var pkTypes []string
	for rows.Next() {
		var (
			cid       int
			column    string
			typ       string
			notNull   int
			dfltValue interface{}
			pk        int
		)
		if err := rows.Scan(&cid, &column, &typ, &notNull, &dfltValue, &pk); err != nil {
			return nil, sqliteError(query, err)
		}
		info.columns = append(info.columns, column)
		if pk > 0 {
			pkColumns = append(pkColumns, column)
			pkTypes = append(pkTypes, strings.ToUpper(typ))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError(query, err)
	}

	if len(pkColumns) == 1 && pkTypes[0] == "INTEGER" {
		info.rowidAlias = pkColumns[0]
	}
	return info, nil
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteError(query string, err error) error {
	return sqlitedb.Error(query, err)
}
