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

package client_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/client"
	"github.com/yorkie-team/livesync/leader"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/syncbackend/memory"
	"github.com/yorkie-team/livesync/test/helper"
)

const storeID = "todos"

func newBackend(t *testing.T) *memory.Backend {
	be, err := memory.NewStandalone(storeID)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, be.Close()) })
	return be
}

func newSession(t *testing.T, l *leader.Leader, opts ...client.Option) *client.Session {
	opts = append([]client.Option{client.WithDevMode(true)}, opts...)
	s, err := client.NewSession(context.Background(), l, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func backendEvents(t *testing.T, be *memory.Backend) []*event.Event {
	events, err := be.Events(context.Background())
	require.NoError(t, err)
	return events
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("commit test", func(t *testing.T) {
		be := newBackend(t)
		l := helper.NewLeader(t, storeID, be)
		s := newSession(t, l, client.WithClientID("alice"))

		committed, err := s.Commit(ctx, helper.CreateTodo("milk", "buy milk"))
		require.NoError(t, err)
		require.Len(t, committed, 1)
		assert.Equal(t, "e1", committed[0].Seq.String())
		assert.Equal(t, "alice", committed[0].ClientID)
		assert.Equal(t, s.ID(), committed[0].SessionID)
		assert.Equal(t, []string{"milk"}, helper.TodoIDs(t, s.Query))

		helper.Eventually(t, func() bool {
			return len(backendEvents(t, be)) == 1
		}, "the commit reaches the backend")
		assert.Equal(t, []string{"milk"}, helper.TodoIDs(t, l.Query))

		helper.Eventually(t, func() bool {
			state := s.SyncState()
			return len(state.Pending) == 0 && state.UpstreamHead.String() == "e1"
		}, "the commit is confirmed")
	})

	t.Run("empty commit test", func(t *testing.T) {
		l := helper.NewLeader(t, storeID, newBackend(t))
		s := newSession(t, l)

		committed, err := s.Commit(ctx)
		assert.NoError(t, err)
		assert.Empty(t, committed)
	})

	t.Run("two sessions converge test", func(t *testing.T) {
		l := helper.NewLeader(t, storeID, newBackend(t))
		alice := newSession(t, l, client.WithClientID("alice"))
		bob := newSession(t, l, client.WithClientID("bob"))

		_, err := alice.Commit(ctx, helper.CreateTodo("milk", "buy milk"))
		require.NoError(t, err)
		helper.Eventually(t, func() bool {
			return len(helper.TodoIDs(t, bob.Query)) == 1
		})

		_, err = bob.Commit(ctx, helper.CompleteTodo("milk"))
		require.NoError(t, err)
		helper.Eventually(t, func() bool {
			rows, err := alice.Query(ctx, `SELECT completed FROM todos WHERE id = 'milk'`)
			require.NoError(t, err)
			return len(rows) == 1 && rows[0]["completed"] == int64(1)
		}, "alice sees the completion of bob")
	})

	t.Run("concurrent commits rebase test", func(t *testing.T) {
		be := newBackend(t)
		l := helper.NewLeader(t, storeID, be)
		alice := newSession(t, l, client.WithClientID("alice"))
		bob := newSession(t, l, client.WithClientID("bob"))

		var wg sync.WaitGroup
		for _, s := range []*client.Session{alice, bob} {
			wg.Add(1)
			go func(s *client.Session) {
				defer wg.Done()
				for i := 0; i < 5; i++ {
					id := s.ClientID() + "-" + string(rune('a'+i))
					_, err := s.Commit(ctx, helper.CreateTodo(id, id))
					assert.NoError(t, err)
				}
			}(s)
		}
		wg.Wait()

		helper.Eventually(t, func() bool {
			return len(backendEvents(t, be)) == 10
		}, "every commit reaches the backend")
		helper.Eventually(t, func() bool {
			a, b := alice.SyncState(), bob.SyncState()
			return len(a.Pending) == 0 && len(b.Pending) == 0 &&
				a.UpstreamHead.Global == 10 && b.UpstreamHead.Global == 10
		}, "both sessions confirm the whole history")

		ids := helper.TodoIDs(t, l.Query)
		assert.Len(t, ids, 10)
		assert.Equal(t, ids, helper.TodoIDs(t, alice.Query))
		assert.Equal(t, ids, helper.TodoIDs(t, bob.Query))
	})

	t.Run("client-only events test", func(t *testing.T) {
		be := newBackend(t)
		l := helper.NewLeader(t, storeID, be)
		alice := newSession(t, l)
		bob := newSession(t, l)

		committed, err := alice.Commit(ctx, helper.SetUIState("done"), helper.CreateTodo("milk", "buy milk"))
		require.NoError(t, err)
		require.Len(t, committed, 2)
		assert.Equal(t, "e0+1", committed[0].Seq.String())
		assert.Equal(t, "e1", committed[1].Seq.String())

		helper.Eventually(t, func() bool {
			rows, err := bob.Query(ctx, `SELECT filter FROM ui_state`)
			require.NoError(t, err)
			return len(rows) == 1 && rows[0]["filter"] == "done"
		}, "client-only events reach the other sessions of the leader")

		helper.Eventually(t, func() bool {
			return len(backendEvents(t, be)) == 1
		})
		assert.Equal(t, helper.TodoCreated, backendEvents(t, be)[0].Name)
	})

	t.Run("snapshot boot test", func(t *testing.T) {
		l := helper.NewLeader(t, storeID, newBackend(t))
		alice := newSession(t, l)
		_, err := alice.Commit(ctx, helper.CreateTodo("milk", "buy milk"), helper.CreateTodo("eggs", "buy eggs"))
		require.NoError(t, err)
		helper.Eventually(t, func() bool {
			return len(helper.TodoIDs(t, l.Query)) == 2
		})

		bob := newSession(t, l, client.WithSnapshotBoot())
		assert.Equal(t, []string{"eggs", "milk"}, helper.TodoIDs(t, bob.Query))
		assert.Equal(t, l.SyncState().LocalHead, bob.SyncState().LocalHead)

		_, err = bob.Commit(ctx, helper.DeleteTodo("milk"))
		require.NoError(t, err)
		helper.Eventually(t, func() bool {
			return len(helper.TodoIDs(t, alice.Query)) == 1
		}, "alice sees the deletion of bob")
	})

	t.Run("offline then reconnect test", func(t *testing.T) {
		be := newBackend(t)
		l := helper.NewLeader(t, storeID, be)
		s := newSession(t, l, client.WithClientID("alice"))

		be.SetConnected(false)
		_, err := s.Commit(ctx, helper.CreateTodo("mine", "mine"))
		require.NoError(t, err)
		require.NoError(t, be.Inject(ctx, helper.GlobalTodos(0, 2, "remote")))

		be.SetConnected(true)
		helper.Eventually(t, func() bool {
			return len(backendEvents(t, be)) == 3
		}, "the rebased commit reaches the backend")
		helper.Eventually(t, func() bool {
			state := s.SyncState()
			return len(state.Pending) == 0 && state.UpstreamHead.String() == "e3r1"
		}, "the session confirms the rebased commit")

		assert.Equal(t, []string{"mine", "remote-1", "remote-2"}, helper.TodoIDs(t, s.Query))
		assert.Equal(t, "mine", todoIDOf(t, backendEvents(t, be)[2]))
	})

	t.Run("commit on a history rewritten meanwhile test", func(t *testing.T) {
		be := newBackend(t)
		l := helper.NewLeader(t, storeID, be)
		s := newSession(t, l, client.WithClientID("alice"), client.WithRetryInterval(10*time.Millisecond))

		require.NoError(t, be.Inject(ctx, helper.GlobalTodos(0, 3, "old")))
		helper.Eventually(t, func() bool {
			return s.SyncState().UpstreamHead.Global == 3
		})

		_, err := be.Rewrite(ctx, 2, nil)
		require.NoError(t, err)
		_, err = s.Commit(ctx, helper.CreateTodo("mine", "mine"))
		require.NoError(t, err)

		helper.Eventually(t, func() bool {
			return len(backendEvents(t, be)) == 2
		}, "the commit reaches the rewritten history")
		helper.Eventually(t, func() bool {
			state := s.SyncState()
			return len(state.Pending) == 0 && state.UpstreamHead.Global == 2
		}, "the session confirms the commit")
		assert.Equal(t, []string{"mine", "old-1"}, helper.TodoIDs(t, s.Query))
		assert.Equal(t, helper.TodoIDs(t, l.Query), helper.TodoIDs(t, s.Query))
	})

	t.Run("close test", func(t *testing.T) {
		l := helper.NewLeader(t, storeID, newBackend(t))
		s, err := client.NewSession(ctx, l)
		require.NoError(t, err)

		require.NoError(t, s.Close())
		<-s.Done()
		assert.NoError(t, s.Err())

		_, err = s.Commit(ctx, helper.CreateTodo("milk", "buy milk"))
		assert.ErrorIs(t, err, client.ErrSessionClosed)
	})

	t.Run("leader closed test", func(t *testing.T) {
		l := helper.NewLeader(t, storeID, newBackend(t))
		s := newSession(t, l)

		require.NoError(t, l.Close())
		<-s.Done()
		assert.Error(t, s.Err())
	})
}

func todoIDOf(t *testing.T, e *event.Event) string {
	var args struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(e.Args, &args))
	return args.ID
}
