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

package stores_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/stores"
)

func newBackend(t *testing.T) *backend.Backend {
	be, err := backend.New(&backend.Config{
		PullPageSize:           2,
		MaxPushBatchSize:       100,
		SubscriptionBufferSize: 16,
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, be.Shutdown()) })
	return be
}

// chain builds count global events after the given head.
func chain(head eventseq.SeqNum, count int, name string) []*event.Event {
	var events []*event.Event
	for i := 0; i < count; i++ {
		pair := eventseq.NextPair(head, false, nil)
		events = append(events, event.New(event.Input{Name: name, Args: json.RawMessage(`{}`)}, pair, "client", "session"))
		head = pair.Seq
	}
	return events
}

func pullAll(t *testing.T, be *backend.Backend, cursor *syncbackend.Cursor) []*syncbackend.PullResponse {
	var responses []*syncbackend.PullResponse
	require.NoError(t, stores.Pull(context.Background(), be, "store", cursor, false, func(resp *syncbackend.PullResponse) error {
		responses = append(responses, resp)
		return nil
	}))
	return responses
}

func TestPush(t *testing.T) {
	ctx := context.Background()

	t.Run("push contiguous batches test", func(t *testing.T) {
		be := newBackend(t)

		first := chain(eventseq.Root, 2, "created")
		md, err := stores.Push(ctx, be, "store", first)
		require.NoError(t, err)
		assert.Len(t, md, 2)
		assert.JSONEq(t, `{"epoch":0}`, string(md[0]))

		_, err = stores.Push(ctx, be, "store", chain(first[1].Seq, 1, "updated"))
		require.NoError(t, err)

		events, err := stores.Events(ctx, be, "store", 0, 0)
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})

	t.Run("push behind the head test", func(t *testing.T) {
		be := newBackend(t)
		_, err := stores.Push(ctx, be, "store", chain(eventseq.Root, 2, "created"))
		require.NoError(t, err)

		_, err = stores.Push(ctx, be, "store", chain(eventseq.MustFromString("e1"), 1, "late"))
		reason, ok := errors.LeaderAheadOf(err)
		require.True(t, ok)
		assert.Equal(t, eventseq.MustFromString("e3"), reason.MinimumExpectedID)
		assert.Equal(t, eventseq.MustFromString("e2"), reason.ProvidedID)
		assert.Equal(t, errors.ErrCodeFailedPrecondition, errors.StatusOf(err))
	})

	t.Run("push invalid batches test", func(t *testing.T) {
		be := newBackend(t)

		_, err := stores.Push(ctx, be, "store", nil)
		assert.Error(t, err)

		broken := chain(eventseq.Root, 3, "created")
		broken[2].Seq = eventseq.MustFromString("e4")
		_, err = stores.Push(ctx, be, "store", broken)
		assert.Error(t, err)
		_, ok := errors.LeaderAheadOf(err)
		assert.False(t, ok)

		clientOnly := chain(eventseq.Root, 1, "created")
		clientOnly[0].Seq = eventseq.MustFromString("e0+1")
		_, err = stores.Push(ctx, be, "store", clientOnly)
		assert.Error(t, err)
	})
}

func TestPull(t *testing.T) {
	ctx := context.Background()

	t.Run("non-live pull pages test", func(t *testing.T) {
		be := newBackend(t)
		_, err := stores.Push(ctx, be, "store", chain(eventseq.Root, 3, "created"))
		require.NoError(t, err)

		responses := pullAll(t, be, nil)
		require.Len(t, responses, 2)
		assert.Len(t, responses[0].Batch, 2)
		assert.True(t, responses[0].PageInfo.HasMore)
		assert.Len(t, responses[1].Batch, 1)
		assert.False(t, responses[1].PageInfo.HasMore)
		assert.NotEmpty(t, responses[0].BackendID)

		responses = pullAll(t, be, &syncbackend.Cursor{Seq: eventseq.MustFromString("e2")})
		require.Len(t, responses, 1)
		assert.Equal(t, eventseq.MustFromString("e3"), responses[0].Batch[0].Event.Seq)
	})

	t.Run("empty store sends the backend id test", func(t *testing.T) {
		be := newBackend(t)
		responses := pullAll(t, be, nil)
		require.Len(t, responses, 1)
		assert.Empty(t, responses[0].Batch)
		assert.NotEmpty(t, responses[0].BackendID)
	})

	t.Run("cursor after head test", func(t *testing.T) {
		be := newBackend(t)
		err := stores.Pull(ctx, be, "store", &syncbackend.Cursor{Seq: eventseq.MustFromString("e5")}, false,
			func(*syncbackend.PullResponse) error { return nil })
		var pullErr *errors.InvalidPullError
		assert.ErrorAs(t, err, &pullErr)
	})

	t.Run("reconnect after rewrite test", func(t *testing.T) {
		be := newBackend(t)
		_, err := stores.Push(ctx, be, "store", chain(eventseq.Root, 3, "created"))
		require.NoError(t, err)

		_, err = stores.Rewrite(ctx, be, "store", 2, chain(eventseq.MustFromString("e1"), 1, "replaced"))
		require.NoError(t, err)

		responses := pullAll(t, be, &syncbackend.Cursor{
			Seq:      eventseq.MustFromString("e3"),
			Metadata: stores.EncodeSyncMetadata(0),
		})
		require.Len(t, responses, 1)
		require.NotNil(t, responses[0].Rebase)
		assert.Equal(t, eventseq.MustFromString("e2"), responses[0].Rebase.RollbackUntil)
		require.Len(t, responses[0].Batch, 1)
		assert.Equal(t, "replaced", responses[0].Batch[0].Event.Name)
		assert.JSONEq(t, `{"epoch":1}`, string(responses[0].Batch[0].Metadata))

		responses = pullAll(t, be, &syncbackend.Cursor{
			Seq:      eventseq.MustFromString("e1"),
			Metadata: stores.EncodeSyncMetadata(0),
		})
		require.Len(t, responses, 1)
		assert.Nil(t, responses[0].Rebase)
	})

	t.Run("live pull test", func(t *testing.T) {
		be := newBackend(t)
		first := chain(eventseq.Root, 1, "created")
		_, err := stores.Push(ctx, be, "store", first)
		require.NoError(t, err)

		pullCtx, cancel := context.WithCancel(ctx)
		responses := make(chan *syncbackend.PullResponse, 8)
		done := make(chan error, 1)
		go func() {
			done <- stores.Pull(pullCtx, be, "store", nil, true, func(resp *syncbackend.PullResponse) error {
				responses <- resp
				return nil
			})
		}()

		resp := <-responses
		assert.Len(t, resp.Batch, 1)

		assert.Eventually(t, func() bool { return be.PubSub.Len("store") == 1 }, time.Second, 5*time.Millisecond)
		second := chain(first[0].Seq, 1, "updated")
		_, err = stores.Push(ctx, be, "store", second)
		require.NoError(t, err)

		resp = <-responses
		require.Len(t, resp.Batch, 1)
		assert.Equal(t, "updated", resp.Batch[0].Event.Name)

		_, err = stores.Rewrite(ctx, be, "store", 2, chain(first[0].Seq, 2, "replaced"))
		require.NoError(t, err)

		resp = <-responses
		require.NotNil(t, resp.Rebase)
		assert.Equal(t, eventseq.MustFromString("e2"), resp.Rebase.RollbackUntil)
		assert.Len(t, resp.Batch, 2)

		cancel()
		assert.NoError(t, <-done)
	})
}
