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

	"github.com/yorkie-team/livesync/pkg/changeset"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/materializer"
)

// Tx is a transaction on the state. It must be committed or aborted.
type Tx struct {
	db   *DB
	tx   *sql.Tx
	done bool
}

// Execute runs the statements of one event and returns the changeset they
// produced. Only the rows the statements change are captured.
func (t *Tx) Execute(ctx context.Context, stmts []materializer.Statement) (event.ChangesetState, error) {
	if len(stmts) == 0 {
		return event.NoOpChangeset, nil
	}
	if err := t.checkWrittenTables(stmts); err != nil {
		return event.UnsetChangeset, err
	}

	if err := t.arm(ctx, true); err != nil {
		return event.UnsetChangeset, err
	}
	execErr := t.exec(ctx, stmts)
	if err := t.arm(ctx, false); err != nil && execErr == nil {
		execErr = err
	}
	cs, err := t.drain(ctx)
	if execErr != nil {
		return event.UnsetChangeset, execErr
	}
	if err != nil {
		return event.UnsetChangeset, err
	}
	if cs.IsEmpty() {
		return event.NoOpChangeset, nil
	}

	b, err := cs.Encode()
	if err != nil {
		return event.UnsetChangeset, errors.Unexpected(err)
	}
	return event.PresentChangeset(b), nil
}

func (t *Tx) exec(ctx context.Context, stmts []materializer.Statement) error {
	for _, stmt := range stmts {
		if _, err := t.tx.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
			return sqliteError(stmt.SQL, err)
		}
	}
	return nil
}

// Materialize materializes the event and executes its statements. It
// returns a copy of the event carrying the captured changeset and the hash of
// the statements.
func (t *Tx) Materialize(ctx context.Context, m *materializer.Materializer, ev *event.Event) (*event.Event, error) {
	stmts, hash, err := m.Materialize(ev)
	if err != nil {
		return nil, err
	}

	cs, err := t.Execute(ctx, stmts)
	if err != nil {
		return nil, err
	}

	applied := ev.WithChangeset(cs)
	applied.Meta.MaterializerHash = hash
	return applied, nil
}

// Apply applies the given changeset to the state.
func (t *Tx) Apply(ctx context.Context, cs *changeset.Changeset) error {
	for _, changes := range cs.Tables {
		info, ok := t.db.tables[changes.Table]
		if !ok {
			return errors.Unexpectedf("apply changeset: unknown table %q", changes.Table)
		}

		for _, row := range changes.Rows {
			var err error
			switch row.Op() {
			case changeset.Insert:
				err = t.insertRow(ctx, info, changes.Columns, row.RowID, row.After)
			case changeset.Update:
				err = t.updateRow(ctx, info, changes.Columns, row.RowID, row.After)
			case changeset.Delete:
				stmt := `DELETE FROM ` + quote(info.name) + ` WHERE rowid = ?`
				if _, execErr := t.tx.ExecContext(ctx, stmt, row.RowID); execErr != nil {
					err = sqliteError(stmt, execErr)
				}
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Rollback undoes the changeset captured when an event was applied. Undoing
// a no-op changeset does nothing.
func (t *Tx) Rollback(ctx context.Context, state event.ChangesetState) error {
	switch state.Kind {
	case event.ChangesetNoOp:
		return nil
	case event.ChangesetPresent:
		cs, err := changeset.Decode(state.Bytes)
		if err != nil {
			return errors.Unexpected(err)
		}
		return t.Apply(ctx, cs.Invert())
	default:
		return errors.Unexpectedf("cannot roll back an event without changeset")
	}
}

// PutChangeset records the changeset of an applied event.
func (t *Tx) PutChangeset(ctx context.Context, seq eventseq.SeqNum, state event.ChangesetState) error {
	if !state.IsApplied() {
		return errors.Unexpectedf("put changeset of %s: not applied", seq)
	}

	var blob interface{}
	if state.Kind == event.ChangesetPresent {
		blob = state.Bytes
	}

	stmt := `INSERT OR REPLACE INTO ` + changesetTable +
		` (seq_global, seq_client, seq_rebase_generation, changeset) VALUES (?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, stmt, int64(seq.Global), seq.Client, seq.RebaseGeneration, blob); err != nil {
		return sqliteError(stmt, err)
	}
	return nil
}

// DeleteChangesets removes the changesets of the given events.
func (t *Tx) DeleteChangesets(ctx context.Context, seqs ...eventseq.SeqNum) error {
	stmt := `DELETE FROM ` + changesetTable +
		` WHERE seq_global = ? AND seq_client = ? AND seq_rebase_generation = ?`
	for _, seq := range seqs {
		if _, err := t.tx.ExecContext(ctx, stmt, int64(seq.Global), seq.Client, seq.RebaseGeneration); err != nil {
			return sqliteError(stmt, err)
		}
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return errors.Unexpectedf("transaction already finished")
	}
	t.done = true
	defer t.db.mu.Unlock()

	if err := t.tx.Commit(); err != nil {
		return sqliteError("commit", err)
	}
	return nil
}

// Abort rolls the transaction back. It is a no-op after Commit.
func (t *Tx) Abort() {
	if t.done {
		return
	}
	t.done = true
	defer t.db.mu.Unlock()

	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		t.db.logger.Warnf("abort state transaction: %v", err)
	}
}

// checkWrittenTables checks that the statements only declare state tables.
func (t *Tx) checkWrittenTables(stmts []materializer.Statement) error {
	for _, stmt := range stmts {
		for _, name := range stmt.WrittenTables {
			if _, ok := t.db.tables[name]; !ok {
				return errors.Unexpectedf("statement writes unknown table %q", name)
			}
		}
	}
	return nil
}

func (t *Tx) insertRow(
	ctx context.Context,
	info *tableInfo,
	columns []string,
	rowID int64,
	values []interface{},
) error {
	names := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns)+1)
	if info.rowidAlias == "" {
		names = append(names, "rowid")
		args = append(args, rowID)
	}
	for i, col := range columns {
		names = append(names, quote(col))
		args = append(args, values[i])
	}

	stmt := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		quote(info.name),
		strings.Join(names, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "),
	)
	if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
		return sqliteError(stmt, err)
	}
	return nil
}

func (t *Tx) updateRow(
	ctx context.Context,
	info *tableInfo,
	columns []string,
	rowID int64,
	values []interface{},
) error {
	sets := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for i, col := range columns {
		sets = append(sets, quote(col)+" = ?")
		args = append(args, values[i])
	}
	args = append(args, rowID)

	stmt := fmt.Sprintf(`UPDATE %s SET %s WHERE rowid = ?`, quote(info.name), strings.Join(sets, ", "))
	if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
		return sqliteError(stmt, err)
	}
	return nil
}
