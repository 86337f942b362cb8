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

package statedb

import (
	"context"
	"fmt"
	"sort"

	"github.com/yorkie-team/livesync/pkg/errors"
)

// TableSnapshot is the content of one state table.
type TableSnapshot struct {
	Name    string
	Columns []string
	RowIDs  []int64
	Rows    [][]interface{}
}

// Snapshot is the whole content of the state tables, e.g. to boot a session
// from the state of its leader.
type Snapshot struct {
	SchemaHash uint64
	Tables     []TableSnapshot
}

// image is the content of a table keyed by rowid.
type image struct {
	Columns []string
	Rows    map[int64][]interface{}
}

// Dump returns a snapshot of the state tables.
func (d *DB) Dump(ctx context.Context) (*Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := &Snapshot{SchemaHash: d.schema.Hash()}
	for _, name := range d.order {
		img, err := readImage(ctx, d.db, name)
		if err != nil {
			return nil, err
		}

		table := TableSnapshot{Name: name, Columns: img.Columns}
		for id := range img.Rows {
			table.RowIDs = append(table.RowIDs, id)
		}
		sort.Slice(table.RowIDs, func(i, j int) bool { return table.RowIDs[i] < table.RowIDs[j] })
		for _, id := range table.RowIDs {
			table.Rows = append(table.Rows, img.Rows[id])
		}
		snapshot.Tables = append(snapshot.Tables, table)
	}

	return snapshot, nil
}

// Load replaces the content of the state tables with the snapshot. Recorded
// changesets are dropped because they no longer describe the state.
func (d *DB) Load(ctx context.Context, snapshot *Snapshot) error {
	if snapshot.SchemaHash != d.schema.Hash() {
		return errors.Unexpectedf(
			"load snapshot: schema hash %x does not match %x",
			snapshot.SchemaHash, d.schema.Hash(),
		)
	}

	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Abort()

	for _, name := range d.order {
		stmt := `DELETE FROM ` + quote(name)
		if _, err := tx.tx.ExecContext(ctx, stmt); err != nil {
			return sqliteError(stmt, err)
		}
	}

	for _, table := range snapshot.Tables {
		info, ok := d.tables[table.Name]
		if !ok {
			return errors.Unexpectedf("load snapshot: unknown table %q", table.Name)
		}
		if len(table.RowIDs) != len(table.Rows) {
			return errors.Unexpected(fmt.Errorf("load snapshot: %d rowids for %d rows", len(table.RowIDs), len(table.Rows)))
		}
		for i, values := range table.Rows {
			if err := tx.insertRow(ctx, info, table.Columns, table.RowIDs[i], values); err != nil {
				return err
			}
		}
	}

	stmt := `DELETE FROM ` + changesetTable
	if _, err := tx.tx.ExecContext(ctx, stmt); err != nil {
		return sqliteError(stmt, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	d.mu.Lock()
	d.fresh = false
	d.mu.Unlock()
	return nil
}

// Reset empties the state tables and drops the recorded changesets, e.g.
// before rebuilding the state from the event log.
func (d *DB) Reset(ctx context.Context) error {
	return d.Load(ctx, &Snapshot{SchemaHash: d.schema.Hash()})
}

// readImage reads the whole content of a table keyed by rowid.
func readImage(ctx context.Context, q querier, table string) (image, error) {
	query := `SELECT rowid AS __livesync_rowid, * FROM ` + quote(table)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return image{}, sqliteError(query, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return image{}, sqliteError(query, err)
	}

	img := image{
		Columns: columns[1:],
		Rows:    make(map[int64][]interface{}),
	}
	for rows.Next() {
		var rowID int64
		values := make([]interface{}, len(columns)-1)
		ptrs := make([]interface{}, len(columns))
		ptrs[0] = &rowID
		for i := range values {
			ptrs[i+1] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return image{}, sqliteError(query, err)
		}
		img.Rows[rowID] = values
	}
	if err := rows.Err(); err != nil {
		return image{}, sqliteError(query, err)
	}
	return img, nil
}
