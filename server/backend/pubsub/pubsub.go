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

// Package pubsub provides the in-process fan-out of store changes to the
// live pull streams.
package pubsub

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/cmap"
)

type subscriptions struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// PubSub is the memory implementation of PubSub, used for single server.
type PubSub struct {
	bufSize int
	subsMap *cmap.Map[string, *subscriptions]
}

// New creates an instance of PubSub. bufSize is the number of store events a
// subscriber may lag behind before it is dropped.
func New(bufSize int) *PubSub {
	return &PubSub{
		bufSize: bufSize,
		subsMap: cmap.New[string, *subscriptions](),
	}
}

// Subscribe subscribes to the events of the given store.
func (m *PubSub) Subscribe(ctx context.Context, storeID string) *Subscription {
	sub := NewSubscription(m.bufSize)

	subs := m.subsMap.GetOrCreate(storeID, func() *subscriptions {
		return &subscriptions{subs: make(map[string]*Subscription)}
	})
	subs.mu.Lock()
	subs.subs[sub.ID()] = sub
	subs.mu.Unlock()

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf("Subscribe(%s,%s)", storeID, sub.ID())
	}
	return sub
}

// Unsubscribe unsubscribes the given subscription.
func (m *PubSub) Unsubscribe(ctx context.Context, storeID string, sub *Subscription) {
	sub.Close()

	if subs, ok := m.subsMap.Get(storeID); ok {
		subs.mu.Lock()
		delete(subs.subs, sub.ID())
		subs.mu.Unlock()
	}

	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf("Unsubscribe(%s,%s)", storeID, sub.ID())
	}
}

// Publish publishes the given event to every subscriber of its store. A
// subscriber whose buffer is full is closed and removed so that it has to
// pull again from its cursor.
func (m *PubSub) Publish(ctx context.Context, event StoreEvent) {
	subs, ok := m.subsMap.Get(event.StoreID)
	if !ok {
		return
	}

	subs.mu.Lock()
	defer subs.mu.Unlock()

	for id, sub := range subs.subs {
		if sub.Publish(event) {
			continue
		}

		logging.From(ctx).Warnf("drop subscription %s of %s: buffer full", id, event.StoreID)
		sub.Close()
		delete(subs.subs, id)
	}
}

// Len returns the number of subscribers of the given store.
func (m *PubSub) Len(storeID string) int {
	subs, ok := m.subsMap.Get(storeID)
	if !ok {
		return 0
	}

	subs.mu.Lock()
	defer subs.mu.Unlock()
	return len(subs.subs)
}
