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

// Package testcases contains testcases for the event log. It is used by the
// event log implementations to test themselves with the same testcases.
package testcases

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

func newEvent(seq, parent string) *event.Event {
	return &event.Event{
		Name:      "todoCreated",
		Args:      json.RawMessage(`{"id":"` + seq + `"}`),
		Seq:       eventseq.MustFromString(seq),
		Parent:    eventseq.MustFromString(parent),
		ClientID:  "client",
		SessionID: "session",
	}
}

func appendEvents(t *testing.T, store eventlog.Store, events ...*event.Event) {
	txn, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer txn.Abort()

	require.NoError(t, txn.Append(events...))
	require.NoError(t, txn.Commit())
}

func seqStrings(events []*event.Event) []string {
	var strs []string
	for _, e := range events {
		strs = append(strs, e.Seq.String())
	}
	return strs
}

// RunAppendTest runs the Append and EventsAfter test for the given store.
func RunAppendTest(t *testing.T, store eventlog.Store) {
	t.Run("append and find events test", func(t *testing.T) {
		ctx := context.Background()

		withChangeset := newEvent("e2", "e1").WithChangeset(event.PresentChangeset([]byte{1}))
		withChangeset.Meta.MaterializerHash = 0xfeedface12345678
		appendEvents(t, store, newEvent("e10", "e2"), newEvent("e1", "e0"), withChangeset, newEvent("e2+1r1", "e2"))

		events, err := store.EventsAfter(ctx, eventseq.Root)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1", "e2", "e2+1r1", "e10"}, seqStrings(events))

		assert.True(t, event.IsEqual(withChangeset, events[1]))
		assert.Equal(t, event.UnsetChangeset, events[1].Meta.Changeset)
		assert.Equal(t, uint64(0xfeedface12345678), events[1].Meta.MaterializerHash)
		assert.Equal(t, eventseq.MustFromString("e2"), events[2].Parent)

		events, err = store.EventsAfter(ctx, eventseq.MustFromString("e2"))
		require.NoError(t, err)
		assert.Equal(t, []string{"e2+1r1", "e10"}, seqStrings(events))

		txn, err := store.Begin(ctx)
		require.NoError(t, err)
		assert.Error(t, txn.Append(newEvent("e1", "e0")))
		txn.Abort()
	})
}

// RunRemoveTest runs the Remove test for the given store.
func RunRemoveTest(t *testing.T, store eventlog.Store) {
	t.Run("remove events test", func(t *testing.T) {
		ctx := context.Background()
		appendEvents(t, store, newEvent("e1", "e0"), newEvent("e2", "e1"), newEvent("e3", "e2"))

		txn, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, txn.Remove(eventseq.MustFromString("e2"), eventseq.MustFromString("e3"), eventseq.MustFromString("e9")))
		require.NoError(t, txn.Append(newEvent("e2r1", "e1")))
		require.NoError(t, txn.Commit())

		events, err := store.EventsAfter(ctx, eventseq.Root)
		require.NoError(t, err)
		assert.Equal(t, []string{"e1", "e2r1"}, seqStrings(events))
	})

	t.Run("abort discards changes test", func(t *testing.T) {
		ctx := context.Background()
		before, err := store.EventsAfter(ctx, eventseq.Root)
		require.NoError(t, err)

		txn, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, txn.Append(newEvent("e100", "e99")))
		txn.Abort()
		txn.Abort()

		after, err := store.EventsAfter(ctx, eventseq.Root)
		require.NoError(t, err)
		assert.Equal(t, seqStrings(before), seqStrings(after))
	})
}

// RunSyncStatusTest runs the sync status and sync metadata test for the
// given store.
func RunSyncStatusTest(t *testing.T, store eventlog.Store) {
	t.Run("sync status test", func(t *testing.T) {
		ctx := context.Background()

		status, err := store.SyncStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, &eventlog.SyncStatus{}, status)

		appendEvents(t, store, newEvent("e1", "e0"))

		txn, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, txn.SetSyncStatus(&eventlog.SyncStatus{
			BackendHead: eventseq.MustFromString("e1"),
			BackendID:   "backend-1",
		}))
		require.NoError(t, txn.SetSyncMetadata(eventseq.MustFromString("e1"), json.RawMessage(`{"cursor":1}`)))
		err = txn.SetSyncMetadata(eventseq.MustFromString("e7"), json.RawMessage(`{}`))
		assert.ErrorIs(t, err, eventlog.ErrEventNotFound)
		require.NoError(t, txn.Commit())

		status, err = store.SyncStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, eventseq.MustFromString("e1"), status.BackendHead)
		assert.Equal(t, "backend-1", status.BackendID)

		events, err := store.EventsAfter(ctx, eventseq.Root)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.JSONEq(t, `{"cursor":1}`, string(events[0].Meta.SyncMetadata))
	})
}
