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

// Package memory implements the event log using an in-memory database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// Store is an in-memory event log for testing or ephemeral stores.
type Store struct {
	db *memdb.MemDB
}

// New returns a new in-memory event log.
func New() (*Store, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &Store{db: memDB}, nil
}

// Begin starts a write transaction.
func (s *Store) Begin(_ context.Context) (eventlog.Txn, error) {
	return &txn{txn: s.db.Txn(true)}, nil
}

// EventsAfter returns the events after the given number.
func (s *Store) EventsAfter(_ context.Context, after eventseq.SeqNum) ([]*event.Event, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	from := keyOf(after)
	iterator, err := txn.LowerBound(tblEvents, "id", from)
	if err != nil {
		return nil, fmt.Errorf("find events after %s: %w", after, err)
	}

	var events []*event.Event
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		record := raw.(*eventRecord)
		if record.Key == from {
			continue
		}
		events = append(events, record.Event.Clone())
	}
	return events, nil
}

// SyncStatus returns the sync status.
func (s *Store) SyncStatus(_ context.Context) (*eventlog.SyncStatus, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSyncStatus, "id", syncStatusID)
	if err != nil {
		return nil, fmt.Errorf("find sync status: %w", err)
	}
	if raw == nil {
		return &eventlog.SyncStatus{}, nil
	}

	status := raw.(*syncStatusRecord).Status
	return &status, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return nil
}

type txn struct {
	txn *memdb.Txn
}

func (t *txn) Append(events ...*event.Event) error {
	for _, e := range events {
		key := keyOf(e.Seq)
		existing, err := t.txn.First(tblEvents, "id", key)
		if err != nil {
			return fmt.Errorf("find event %s: %w", e.Seq, err)
		}
		if existing != nil {
			return fmt.Errorf("append %s: event already exists", e.Seq)
		}

		if err := t.txn.Insert(tblEvents, &eventRecord{Key: key, Event: eventlog.ToStored(e)}); err != nil {
			return fmt.Errorf("append %s: %w", e.Seq, err)
		}
	}
	return nil
}

func (t *txn) Remove(seqs ...eventseq.SeqNum) error {
	for _, seq := range seqs {
		raw, err := t.txn.First(tblEvents, "id", keyOf(seq))
		if err != nil {
			return fmt.Errorf("find event %s: %w", seq, err)
		}
		if raw == nil {
			continue
		}
		if err := t.txn.Delete(tblEvents, raw); err != nil {
			return fmt.Errorf("remove %s: %w", seq, err)
		}
	}
	return nil
}

func (t *txn) SetSyncMetadata(seq eventseq.SeqNum, md json.RawMessage) error {
	raw, err := t.txn.First(tblEvents, "id", keyOf(seq))
	if err != nil {
		return fmt.Errorf("find event %s: %w", seq, err)
	}
	if raw == nil {
		return fmt.Errorf("set sync metadata of %s: %w", seq, eventlog.ErrEventNotFound)
	}

	// records are immutable once inserted; replace with an updated copy
	record := raw.(*eventRecord)
	updated := record.Event.Clone()
	updated.Meta.SyncMetadata = md
	if err := t.txn.Insert(tblEvents, &eventRecord{Key: record.Key, Event: updated}); err != nil {
		return fmt.Errorf("set sync metadata of %s: %w", seq, err)
	}
	return nil
}

func (t *txn) SetSyncStatus(status *eventlog.SyncStatus) error {
	if err := t.txn.Insert(tblSyncStatus, &syncStatusRecord{ID: syncStatusID, Status: *status}); err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	return nil
}

func (t *txn) Commit() error {
	t.txn.Commit()
	return nil
}

func (t *txn) Abort() {
	t.txn.Abort()
}
