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

// Package testcases contains testcases for database. It is used by database
// implementations to test their own implementations with the same testcases.
package testcases

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/server/backend/database"
)

func newStoreID(t *testing.T) string {
	return fmt.Sprintf("%s-%s", t.Name(), xid.New())
}

// NewEventInfos builds count events following the given global number.
func NewEventInfos(after uint64, count int, name string) []*database.EventInfo {
	var infos []*database.EventInfo
	for i := 0; i < count; i++ {
		global := after + uint64(i) + 1
		infos = append(infos, &database.EventInfo{
			Global:       global,
			ParentGlobal: global - 1,
			Name:         name,
			Args:         []byte(fmt.Sprintf(`{"n":%d}`, global)),
			ClientID:     "client",
			SessionID:    "session",
		})
	}
	return infos
}

// RunFindOrCreateStoreInfoTest runs the FindOrCreateStoreInfo tests for the
// given db.
func RunFindOrCreateStoreInfoTest(t *testing.T, db database.Database) {
	ctx := context.Background()
	storeID := newStoreID(t)

	_, err := db.FindStoreInfo(ctx, storeID)
	assert.ErrorIs(t, err, database.ErrStoreNotFound)
	assert.Equal(t, errors.ErrCodeNotFound, errors.StatusOf(err))

	info, err := db.FindOrCreateStoreInfo(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, storeID, info.ID)
	assert.Equal(t, uint64(0), info.Head)
	assert.Equal(t, int64(0), info.Epoch)
	assert.NotEmpty(t, info.BackendID)

	again, err := db.FindOrCreateStoreInfo(ctx, storeID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, again.ID)
	assert.Equal(t, info.BackendID, again.BackendID)

	infos, err := db.ListStoreInfos(ctx)
	require.NoError(t, err)
	found := false
	for _, i := range infos {
		if i.ID == storeID {
			found = true
		}
	}
	assert.True(t, found)
}

// RunAppendEventInfosTest runs the AppendEventInfos tests for the given db.
func RunAppendEventInfosTest(t *testing.T, db database.Database) {
	ctx := context.Background()
	storeID := newStoreID(t)
	_, err := db.FindOrCreateStoreInfo(ctx, storeID)
	require.NoError(t, err)

	info, err := db.AppendEventInfos(ctx, storeID, 0, NewEventInfos(0, 3, "created"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.Head)

	_, err = db.AppendEventInfos(ctx, storeID, 2, NewEventInfos(2, 1, "stale"))
	assert.ErrorIs(t, err, database.ErrConflictOnUpdate)

	info, err = db.AppendEventInfos(ctx, storeID, 3, NewEventInfos(3, 2, "updated"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), info.Head)

	events, err := db.FindEventInfosAfter(ctx, storeID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Global)
		assert.Equal(t, storeID, e.StoreID)
	}
	assert.Equal(t, "updated", events[4].Name)

	events, err = db.FindEventInfosAfter(ctx, storeID, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(3), events[0].Global)
	assert.Equal(t, uint64(4), events[1].Global)

	_, err = db.AppendEventInfos(ctx, newStoreID(t), 0, NewEventInfos(0, 1, "missing"))
	assert.ErrorIs(t, err, database.ErrStoreNotFound)
}

// RunReplaceEventInfosFromTest runs the ReplaceEventInfosFrom tests for the
// given db.
func RunReplaceEventInfosFromTest(t *testing.T, db database.Database) {
	ctx := context.Background()
	storeID := newStoreID(t)
	_, err := db.FindOrCreateStoreInfo(ctx, storeID)
	require.NoError(t, err)
	_, err = db.AppendEventInfos(ctx, storeID, 0, NewEventInfos(0, 4, "created"))
	require.NoError(t, err)

	info, err := db.ReplaceEventInfosFrom(ctx, storeID, 2, NewEventInfos(1, 1, "replaced"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Head)
	assert.Equal(t, int64(1), info.Epoch)

	from, ok := info.RewrittenSince(0)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), from)
	_, ok = info.RewrittenSince(1)
	assert.False(t, ok)

	events, err := db.FindEventInfosAfter(ctx, storeID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "created", events[0].Name)
	assert.Equal(t, int64(0), events[0].Epoch)
	assert.Equal(t, "replaced", events[1].Name)
	assert.Equal(t, int64(1), events[1].Epoch)

	info, err = db.AppendEventInfos(ctx, storeID, 2, NewEventInfos(2, 1, "appended"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.Head)

	info, err = db.FindStoreInfo(ctx, storeID)
	require.NoError(t, err)
	assert.Len(t, info.Rewrites, 1)
}
