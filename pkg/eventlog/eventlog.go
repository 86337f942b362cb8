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

// Package eventlog provides the durable, ordered log of the events a leader
// has accepted, together with its sync status against the backend.
package eventlog

import (
	"context"
	"encoding/json"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// ErrEventNotFound is returned when an event to update is not in the log.
var ErrEventNotFound = errors.NotFound("event not found")

// SyncStatus is the position of the log relative to the sync backend.
type SyncStatus struct {
	// BackendHead is the last event confirmed by the backend.
	BackendHead eventseq.SeqNum

	// BackendID identifies the backend the log was synced with. A log
	// synced with another backend must not be pushed to this one.
	BackendID string
}

// Store is the event log of a store.
type Store interface {
	// Begin starts a write transaction. Only one write transaction runs at a
	// time.
	Begin(ctx context.Context) (Txn, error)

	// EventsAfter returns the events after the given number in ascending
	// order.
	EventsAfter(ctx context.Context, after eventseq.SeqNum) ([]*event.Event, error)

	// SyncStatus returns the sync status. A fresh log has a zero status.
	SyncStatus(ctx context.Context) (*SyncStatus, error)

	// Close closes the store.
	Close() error
}

// Txn is a write transaction on the log.
type Txn interface {
	// Append appends the given events. Changesets are not persisted here.
	Append(events ...*event.Event) error

	// Remove removes the events with the given numbers.
	Remove(seqs ...eventseq.SeqNum) error

	// SetSyncMetadata records the metadata the backend returned for a pushed
	// event.
	SetSyncMetadata(seq eventseq.SeqNum, md json.RawMessage) error

	// SetSyncStatus replaces the sync status.
	SetSyncStatus(status *SyncStatus) error

	// Commit commits the transaction.
	Commit() error

	// Abort aborts the transaction. It is a no-op after Commit.
	Abort()
}

// ToStored returns the copy of the event as it is persisted: everything but
// the changeset, which lives in the state store.
func ToStored(e *event.Event) *event.Event {
	stored := e.Clone()
	stored.Meta.Changeset = event.UnsetChangeset
	return stored
}
