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

package leader

import (
	"context"
	"sync"

	"github.com/rs/xid"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/syncstate"
)

// ErrSubscriptionClosed is returned by Next once the subscription is closed.
var ErrSubscriptionClosed = errors.Unavailable("subscription closed")

// Subscription delivers the payloads of a leader to one session in the
// order the leader applied them. Its queue is unbounded so that the leader
// never blocks on, nor drops, a slow session.
type Subscription struct {
	id     string
	leader *Leader

	mu      sync.Mutex
	queue   []syncstate.Payload
	changed chan struct{}
	closed  bool
	err     error
}

func newSubscription(l *Leader) *Subscription {
	return &Subscription{
		id:      xid.New().String(),
		leader:  l,
		changed: make(chan struct{}, 1),
	}
}

// ID returns the id of the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Next waits for the next payload.
func (s *Subscription) Next(ctx context.Context) (syncstate.Payload, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			payload := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return payload, nil
		}
		if s.closed {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-s.changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close closes the subscription and detaches it from its leader.
func (s *Subscription) Close() {
	s.leader.unsubscribe(s)
	s.close(ErrSubscriptionClosed)
}

func (s *Subscription) publish(payload syncstate.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, payload)
	s.signal()
}

// close marks the subscription closed. Queued payloads are still delivered
// before Next returns err.
func (s *Subscription) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	s.signal()
}

// signal wakes up Next. The caller must hold mu.
func (s *Subscription) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
