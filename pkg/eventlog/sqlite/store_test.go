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

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventlog/sqlite"
	"github.com/yorkie-team/livesync/pkg/eventlog/testcases"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

func TestStore(t *testing.T) {
	newStore := func(t *testing.T) *sqlite.Store {
		store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "eventlog.db"))
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, store.Close()) })
		return store
	}

	testcases.RunAppendTest(t, newStore(t))
	testcases.RunRemoveTest(t, newStore(t))
	testcases.RunSyncStatusTest(t, newStore(t))

	t.Run("reopen keeps the log test", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "eventlog.db")

		store, err := sqlite.Open(ctx, path)
		require.NoError(t, err)
		txn, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, txn.Append(&event.Event{
			Name:   "todoCreated",
			Seq:    eventseq.MustFromString("e1"),
			Parent: eventseq.Root,
		}))
		require.NoError(t, txn.SetSyncStatus(&eventlog.SyncStatus{BackendHead: eventseq.MustFromString("e1")}))
		require.NoError(t, txn.Commit())
		require.NoError(t, store.Close())

		store, err = sqlite.Open(ctx, path)
		require.NoError(t, err)
		defer func() { assert.NoError(t, store.Close()) }()

		events, err := store.EventsAfter(ctx, eventseq.Root)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "null", string(events[0].Args))

		status, err := store.SyncStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, eventseq.MustFromString("e1"), status.BackendHead)
	})
}
