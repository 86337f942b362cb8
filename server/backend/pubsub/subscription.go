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

package pubsub

import (
	"sync"

	"github.com/rs/xid"

	"github.com/yorkie-team/livesync/server/backend/database"
)

// StoreEvent is published to the subscribers of a store every time its
// history changes.
type StoreEvent struct {
	StoreID string

	// Events are the events appended to the store, or the new history from
	// RewrittenFrom on when the history was rewritten.
	Events []*database.EventInfo

	// RewrittenFrom is the first global number replaced by a rewrite. Zero
	// means the events were appended.
	RewrittenFrom uint64

	// Epoch is the epoch of the store after the change.
	Epoch int64
}

// Subscription represents a subscription of a puller to the events of a
// store.
type Subscription struct {
	id     string
	mu     sync.Mutex
	closed bool
	events chan StoreEvent
}

// NewSubscription creates a new instance of Subscription with the given
// buffer size.
func NewSubscription(bufSize int) *Subscription {
	return &Subscription{
		id:     xid.New().String(),
		events: make(chan StoreEvent, bufSize),
	}
}

// ID returns the id of this subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the event channel of this subscription. It is closed when
// the subscription is closed, e.g. because the subscriber fell behind.
func (s *Subscription) Events() <-chan StoreEvent {
	return s.events
}

// Close closes all resources of this Subscription.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Publish publishes the given event to the subscriber. It returns false if
// the subscription is closed or its buffer is full.
func (s *Subscription) Publish(event StoreEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}
