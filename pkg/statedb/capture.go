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
	"database/sql"
	"fmt"
	"strings"

	"github.com/yorkie-team/livesync/internal/sqlitedb"
	"github.com/yorkie-team/livesync/pkg/changeset"
	"github.com/yorkie-team/livesync/pkg/errors"
)

// The rows changed by a transaction are captured by temporary triggers on
// every state table. While capturing is armed, each insert, update or delete
// copies the rowid and the old and new image of the row into captureTable.
// The columns of captureTable carry no type so that values keep their
// storage class.
const (
	captureTable = internalPrefix + "capture"
	captureFlag  = internalPrefix + "capture_armed"
)

// installCapture creates the capture table and the triggers of the state
// tables on the connection.
func (d *DB) installCapture(ctx context.Context) error {
	width := 1
	for _, name := range d.order {
		if n := len(d.tables[name].columns); n > width {
			width = n
		}
	}
	d.captureWidth = width

	columns := []string{"tbl INTEGER NOT NULL", "old_rowid INTEGER", "new_rowid INTEGER"}
	for i := 0; i < width; i++ {
		columns = append(columns, fmt.Sprintf("o%d", i))
	}
	for i := 0; i < width; i++ {
		columns = append(columns, fmt.Sprintf("n%d", i))
	}

	stmts := []string{
		// REPLACE resolution only fires the delete triggers with this on.
		`PRAGMA recursive_triggers = ON`,
		`CREATE TEMP TABLE IF NOT EXISTS ` + captureTable + ` (` + strings.Join(columns, ", ") + `)`,
		`CREATE TEMP TABLE IF NOT EXISTS ` + captureFlag + ` (armed INTEGER NOT NULL)`,
		`DELETE FROM temp.` + captureTable,
		`DELETE FROM temp.` + captureFlag,
		`INSERT INTO temp.` + captureFlag + ` (armed) VALUES (0)`,
	}
	for i, name := range d.order {
		stmts = append(stmts, captureTriggers(i, d.tables[name])...)
	}
	return sqlitedb.Exec(ctx, d.db, stmts...)
}

func captureTriggers(index int, info *tableInfo) []string {
	var olds, news, oldCols, newCols []string
	for i, col := range info.columns {
		olds = append(olds, "OLD."+quote(col))
		news = append(news, "NEW."+quote(col))
		oldCols = append(oldCols, fmt.Sprintf("o%d", i))
		newCols = append(newCols, fmt.Sprintf("n%d", i))
	}

	trigger := func(op, columns, values string) string {
		return fmt.Sprintf(
			`CREATE TEMP TRIGGER IF NOT EXISTS %s AFTER %s ON %s WHEN (SELECT armed FROM %s) `+
				`BEGIN INSERT INTO %s (tbl, %s) VALUES (%d, %s); END`,
			quote(fmt.Sprintf("%s%d_%s", captureTable, index, strings.ToLower(op))),
			op, quote(info.name), captureFlag, captureTable, columns, index, values,
		)
	}

	return []string{
		trigger("INSERT",
			"new_rowid, "+strings.Join(newCols, ", "),
			"NEW.rowid, "+strings.Join(news, ", "),
		),
		trigger("UPDATE",
			"old_rowid, new_rowid, "+strings.Join(oldCols, ", ")+", "+strings.Join(newCols, ", "),
			"OLD.rowid, NEW.rowid, "+strings.Join(olds, ", ")+", "+strings.Join(news, ", "),
		),
		trigger("DELETE",
			"old_rowid, "+strings.Join(oldCols, ", "),
			"OLD.rowid, "+strings.Join(olds, ", "),
		),
	}
}

// arm turns capturing on or off for the following statements of the
// transaction.
func (t *Tx) arm(ctx context.Context, armed bool) error {
	value := 0
	if armed {
		value = 1
	}
	stmt := `UPDATE temp.` + captureFlag + ` SET armed = ?`
	if _, err := t.tx.ExecContext(ctx, stmt, value); err != nil {
		return sqliteError(stmt, err)
	}
	return nil
}

// drain reads and clears the captured changes. Changes to the same row are
// folded into one, and tables are listed in alphabetical order.
func (t *Tx) drain(ctx context.Context) (*changeset.Changeset, error) {
	width := t.db.captureWidth
	columns := make([]string, 0, 2*width)
	for i := 0; i < width; i++ {
		columns = append(columns, fmt.Sprintf("o%d", i))
	}
	for i := 0; i < width; i++ {
		columns = append(columns, fmt.Sprintf("n%d", i))
	}

	query := `SELECT tbl, old_rowid, new_rowid, ` + strings.Join(columns, ", ") +
		` FROM temp.` + captureTable + ` ORDER BY rowid`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, sqliteError(query, err)
	}

	captured := make(map[int][]changeset.RowChange)
	for rows.Next() {
		var index int
		var oldRowID, newRowID sql.NullInt64
		values := make([]interface{}, 2*width)
		ptrs := make([]interface{}, 0, len(values)+3)
		ptrs = append(ptrs, &index, &oldRowID, &newRowID)
		for i := range values {
			ptrs = append(ptrs, &values[i])
		}
		if err := rows.Scan(ptrs...); err != nil {
			_ = rows.Close()
			return nil, sqliteError(query, err)
		}
		if index < 0 || index >= len(t.db.order) {
			_ = rows.Close()
			return nil, errors.Unexpectedf("captured change of unknown table %d", index)
		}

		n := len(t.db.tables[t.db.order[index]].columns)
		var before, after []interface{}
		if oldRowID.Valid {
			before = values[:n:n]
		}
		if newRowID.Valid {
			after = values[width : width+n : width+n]
		}

		switch {
		case oldRowID.Valid && newRowID.Valid && oldRowID.Int64 != newRowID.Int64:
			captured[index] = append(captured[index],
				changeset.RowChange{RowID: oldRowID.Int64, Before: before},
				changeset.RowChange{RowID: newRowID.Int64, After: after},
			)
		case oldRowID.Valid:
			captured[index] = append(captured[index], changeset.RowChange{RowID: oldRowID.Int64, Before: before, After: after})
		default:
			captured[index] = append(captured[index], changeset.RowChange{RowID: newRowID.Int64, After: after})
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, sqliteError(query, err)
	}
	if err := rows.Close(); err != nil {
		return nil, sqliteError(query, err)
	}

	stmt := `DELETE FROM temp.` + captureTable
	if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
		return nil, sqliteError(stmt, err)
	}

	cs := &changeset.Changeset{}
	for index, name := range t.db.order {
		changes, ok := captured[index]
		if !ok {
			continue
		}
		folded := changeset.Collapse(name, t.db.tables[name].columns, changes)
		if len(folded.Rows) > 0 {
			cs.Tables = append(cs.Tables, folded)
		}
	}
	return cs, nil
}
