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

package pubsub_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/livesync/server/backend/database"
	"github.com/yorkie-team/livesync/server/backend/pubsub"
)

func TestPubSub(t *testing.T) {
	ctx := context.Background()

	t.Run("publish and subscribe test", func(t *testing.T) {
		ps := pubsub.New(4)
		sub := ps.Subscribe(ctx, "store")
		other := ps.Subscribe(ctx, "other")
		assert.Equal(t, 1, ps.Len("store"))

		ps.Publish(ctx, pubsub.StoreEvent{
			StoreID: "store",
			Events:  []*database.EventInfo{{Global: 1}},
		})

		e := <-sub.Events()
		assert.Equal(t, uint64(1), e.Events[0].Global)
		assert.Len(t, other.Events(), 0)

		ps.Unsubscribe(ctx, "store", sub)
		assert.Equal(t, 0, ps.Len("store"))
		_, ok := <-sub.Events()
		assert.False(t, ok)
	})

	t.Run("drop lagging subscriber test", func(t *testing.T) {
		ps := pubsub.New(1)
		sub := ps.Subscribe(ctx, "store")

		ps.Publish(ctx, pubsub.StoreEvent{StoreID: "store"})
		ps.Publish(ctx, pubsub.StoreEvent{StoreID: "store"})
		assert.Equal(t, 0, ps.Len("store"))

		<-sub.Events()
		_, ok := <-sub.Events()
		assert.False(t, ok)
	})
}
