//go:build integration

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

package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/yorkie-team/livesync/client"
	"github.com/yorkie-team/livesync/test/helper"
)

func TestConcurrentSync(t *testing.T) {
	const (
		leaderCount  = 3
		sessionCount = 2
		commitCount  = 5
	)
	ctx := context.Background()

	storeID := "concurrent"
	var sessions []*client.Session
	for i := 0; i < leaderCount; i++ {
		l, _ := openLeader(t, storeID, nil)
		for j := 0; j < sessionCount; j++ {
			sessions = append(sessions, newSession(t, l, fmt.Sprintf("client-%d-%d", i, j)))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		s := s
		g.Go(func() error {
			for k := 0; k < commitCount; k++ {
				id := fmt.Sprintf("%s-%d", s.ClientID(), k)
				if _, err := s.Commit(gctx, helper.CreateTodo(id, id)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	total := uint64(leaderCount * sessionCount * commitCount)
	waitSettled(t, total, sessions...)

	expected := helper.TodoIDs(t, sessions[0].Query)
	assert.Len(t, expected, int(total))
	for _, s := range sessions[1:] {
		assert.Equal(t, expected, helper.TodoIDs(t, s.Query), s.ClientID())
	}

	events, err := defaultServer.Events(ctx, storeID)
	require.NoError(t, err)
	assert.Len(t, events, int(total))
}

func TestRewrite(t *testing.T) {
	ctx := context.Background()

	t.Run("live leader rebase test", func(t *testing.T) {
		storeID := "rewrite-live"
		l, _ := openLeader(t, storeID, nil)
		alice := newSession(t, l, "alice")
		other, _ := openLeader(t, storeID, nil)
		bob := newSession(t, other, "bob")

		for i := 0; i < 3; i++ {
			_, err := alice.Commit(ctx, helper.CreateTodo(fmt.Sprintf("alice-%d", i), "milk"))
			require.NoError(t, err)
		}
		waitSettled(t, 3, alice, bob)

		_, err := defaultServer.Rewrite(ctx, storeID, 2, helper.GlobalTodos(1, 1, "admin"))
		require.NoError(t, err)

		waitSettled(t, 2, alice, bob)
		assert.Equal(t, []string{"admin-2", "alice-0"}, helper.TodoIDs(t, alice.Query))
		assert.Equal(t, helper.TodoIDs(t, alice.Query), helper.TodoIDs(t, bob.Query))
		assert.Equal(t, helper.TodoIDs(t, alice.Query), helper.TodoIDs(t, l.Query))

		// The rebased sessions keep syncing on top of the new history.
		_, err = bob.Commit(ctx, helper.CreateTodo("bob-0", "eggs"))
		require.NoError(t, err)
		waitSettled(t, 3, alice, bob)
		assert.Equal(t, []string{"admin-2", "alice-0", "bob-0"}, helper.TodoIDs(t, alice.Query))
	})

	t.Run("pending events survive a rebase test", func(t *testing.T) {
		storeID := "rewrite-pending"
		l, _ := openLeader(t, storeID, nil)
		alice := newSession(t, l, "alice")

		_, err := alice.Commit(ctx, helper.CreateTodo("alice-0", "milk"))
		require.NoError(t, err)
		waitSettled(t, 1, alice)

		_, err = defaultServer.Rewrite(ctx, storeID, 1, helper.GlobalTodos(0, 2, "admin"))
		require.NoError(t, err)
		_, err = alice.Commit(ctx, helper.CreateTodo("alice-1", "tea"))
		require.NoError(t, err)

		waitSettled(t, 3, alice)
		assert.Equal(t, []string{"admin-1", "admin-2", "alice-1"}, helper.TodoIDs(t, alice.Query))
	})
}

func TestLeaderRestart(t *testing.T) {
	ctx := context.Background()

	t.Run("restore from disk test", func(t *testing.T) {
		storeID := "restart"
		f := newFiles(t)

		l, closeLeader := openLeader(t, storeID, &f)
		alice, err := client.NewSession(ctx, l, client.WithClientID("alice"), client.WithDevMode(true))
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := alice.Commit(ctx, helper.CreateTodo(fmt.Sprintf("alice-%d", i), "milk"))
			require.NoError(t, err)
		}
		waitSettled(t, 3, alice)
		assert.NoError(t, alice.Close())
		closeLeader()

		l, _ = openLeader(t, storeID, &f)
		assert.Equal(t, uint64(3), l.SyncState().UpstreamHead.Global)
		assert.Empty(t, l.SyncState().Pending)
		assert.Equal(t, []string{"alice-0", "alice-1", "alice-2"}, helper.TodoIDs(t, l.Query))

		bob := newSession(t, l, "bob")
		assert.Equal(t, helper.TodoIDs(t, l.Query), helper.TodoIDs(t, bob.Query))
	})

	t.Run("rewrite while offline test", func(t *testing.T) {
		storeID := "restart-rewrite"
		f := newFiles(t)

		l, closeLeader := openLeader(t, storeID, &f)
		alice, err := client.NewSession(ctx, l, client.WithClientID("alice"), client.WithDevMode(true))
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err := alice.Commit(ctx, helper.CreateTodo(fmt.Sprintf("alice-%d", i), "milk"))
			require.NoError(t, err)
		}
		waitSettled(t, 3, alice)
		assert.NoError(t, alice.Close())
		closeLeader()

		_, err = defaultServer.Rewrite(ctx, storeID, 2, helper.GlobalTodos(1, 1, "admin"))
		require.NoError(t, err)

		l, _ = openLeader(t, storeID, &f)
		helper.Eventually(t, func() bool {
			return l.SyncState().UpstreamHead.Global == 2
		}, "the leader rebases on the rewritten history")
		assert.Equal(t, []string{"admin-2", "alice-0"}, helper.TodoIDs(t, l.Query))
	})
}
