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

// Package sqlite implements the event log on a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yorkie-team/livesync/internal/sqlitedb"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

const ddl = `
CREATE TABLE IF NOT EXISTS eventlog (
	seq_global INTEGER NOT NULL,
	seq_client INTEGER NOT NULL,
	seq_rebase_generation INTEGER NOT NULL,
	parent_global INTEGER NOT NULL,
	parent_client INTEGER NOT NULL,
	parent_rebase_generation INTEGER NOT NULL,
	name TEXT NOT NULL,
	args TEXT NOT NULL,
	client_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	materializer_hash INTEGER NOT NULL DEFAULT 0,
	sync_metadata TEXT,
	PRIMARY KEY (seq_global, seq_client, seq_rebase_generation)
);
CREATE TABLE IF NOT EXISTS sync_status (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	head_global INTEGER NOT NULL,
	head_client INTEGER NOT NULL,
	head_rebase_generation INTEGER NOT NULL,
	backend_id TEXT NOT NULL
);`

const selectEvents = `SELECT seq_global, seq_client, seq_rebase_generation,
	parent_global, parent_client, parent_rebase_generation,
	name, args, client_id, session_id, materializer_hash, sync_metadata
FROM eventlog
WHERE (seq_global, seq_client, seq_rebase_generation) > (?, ?, ?)
ORDER BY seq_global, seq_client, seq_rebase_generation`

// Store is an event log persisted in SQLite.
type Store struct {
	db *sql.DB

	// mu keeps a single write transaction at a time and keeps reads out of
	// the single connection while it is held.
	mu sync.Mutex
}

// Open opens the event log at the given path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlitedb.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := sqlitedb.Exec(ctx, db, ddl); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Begin starts a write transaction.
func (s *Store) Begin(ctx context.Context) (eventlog.Txn, error) {
	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return nil, sqlitedb.Error("begin", err)
	}
	return &txn{store: s, tx: tx}, nil
}

// EventsAfter returns the events after the given number.
func (s *Store) EventsAfter(ctx context.Context, after eventseq.SeqNum) ([]*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, selectEvents, int64(after.Global), after.Client, after.RebaseGeneration)
	if err != nil {
		return nil, sqlitedb.Error(selectEvents, err)
	}
	defer func() { _ = rows.Close() }()

	var events []*event.Event
	for rows.Next() {
		var (
			seqGlobal, parentGlobal int64
			seqClient, parentClient uint32
			seqGen, parentGen       uint32
			args                    string
			hash                    int64
			metadata                sql.NullString
		)
		e := &event.Event{}
		if err := rows.Scan(
			&seqGlobal, &seqClient, &seqGen,
			&parentGlobal, &parentClient, &parentGen,
			&e.Name, &args, &e.ClientID, &e.SessionID, &hash, &metadata,
		); err != nil {
			return nil, sqlitedb.Error(selectEvents, err)
		}

		e.Seq = eventseq.New(uint64(seqGlobal), seqClient, seqGen)
		e.Parent = eventseq.New(uint64(parentGlobal), parentClient, parentGen)
		e.Args = json.RawMessage(args)
		e.Meta.MaterializerHash = uint64(hash)
		if metadata.Valid {
			e.Meta.SyncMetadata = json.RawMessage(metadata.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlitedb.Error(selectEvents, err)
	}
	return events, nil
}

// SyncStatus returns the sync status.
func (s *Store) SyncStatus(ctx context.Context) (*eventlog.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT head_global, head_client, head_rebase_generation, backend_id FROM sync_status WHERE id = 1`
	var (
		global      int64
		client, gen uint32
		status      eventlog.SyncStatus
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&global, &client, &gen, &status.BackendID)
	if err == sql.ErrNoRows {
		return &eventlog.SyncStatus{}, nil
	}
	if err != nil {
		return nil, sqlitedb.Error(query, err)
	}

	status.BackendHead = eventseq.New(uint64(global), client, gen)
	return &status, nil
}

// Close closes the store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return sqlitedb.Error("close", err)
	}
	return nil
}

type txn struct {
	store *Store
	tx    *sql.Tx
	done  bool
}

func (t *txn) Append(events ...*event.Event) error {
	stmt := `INSERT INTO eventlog (
		seq_global, seq_client, seq_rebase_generation,
		parent_global, parent_client, parent_rebase_generation,
		name, args, client_id, session_id, materializer_hash, sync_metadata
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, e := range events {
		var metadata interface{}
		if len(e.Meta.SyncMetadata) > 0 {
			metadata = string(e.Meta.SyncMetadata)
		}
		args := string(e.Args)
		if args == "" {
			args = "null"
		}

		if _, err := t.tx.Exec(stmt,
			int64(e.Seq.Global), e.Seq.Client, e.Seq.RebaseGeneration,
			int64(e.Parent.Global), e.Parent.Client, e.Parent.RebaseGeneration,
			e.Name, args, e.ClientID, e.SessionID, int64(e.Meta.MaterializerHash), metadata,
		); err != nil {
			return fmt.Errorf("append %s: %w", e.Seq, sqlitedb.Error(stmt, err))
		}
	}
	return nil
}

func (t *txn) Remove(seqs ...eventseq.SeqNum) error {
	stmt := `DELETE FROM eventlog WHERE seq_global = ? AND seq_client = ? AND seq_rebase_generation = ?`
	for _, seq := range seqs {
		if _, err := t.tx.Exec(stmt, int64(seq.Global), seq.Client, seq.RebaseGeneration); err != nil {
			return fmt.Errorf("remove %s: %w", seq, sqlitedb.Error(stmt, err))
		}
	}
	return nil
}

func (t *txn) SetSyncMetadata(seq eventseq.SeqNum, md json.RawMessage) error {
	stmt := `UPDATE eventlog SET sync_metadata = ?
		WHERE seq_global = ? AND seq_client = ? AND seq_rebase_generation = ?`

	var metadata interface{}
	if len(md) > 0 {
		metadata = string(md)
	}
	result, err := t.tx.Exec(stmt, metadata, int64(seq.Global), seq.Client, seq.RebaseGeneration)
	if err != nil {
		return fmt.Errorf("set sync metadata of %s: %w", seq, sqlitedb.Error(stmt, err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set sync metadata of %s: %w", seq, sqlitedb.Error(stmt, err))
	}
	if affected == 0 {
		return fmt.Errorf("set sync metadata of %s: %w", seq, eventlog.ErrEventNotFound)
	}
	return nil
}

func (t *txn) SetSyncStatus(status *eventlog.SyncStatus) error {
	stmt := `INSERT OR REPLACE INTO sync_status (id, head_global, head_client, head_rebase_generation, backend_id)
		VALUES (1, ?, ?, ?, ?)`
	head := status.BackendHead
	if _, err := t.tx.Exec(stmt, int64(head.Global), head.Client, head.RebaseGeneration, status.BackendID); err != nil {
		return fmt.Errorf("set sync status: %w", sqlitedb.Error(stmt, err))
	}
	return nil
}

func (t *txn) Commit() error {
	if t.done {
		return fmt.Errorf("commit: transaction already finished")
	}
	t.done = true
	defer t.store.mu.Unlock()

	if err := t.tx.Commit(); err != nil {
		return sqlitedb.Error("commit", err)
	}
	return nil
}

func (t *txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	defer t.store.mu.Unlock()

	_ = t.tx.Rollback()
}
