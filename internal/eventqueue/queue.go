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

// Package eventqueue provides the queue of events waiting to be pushed
// upstream. A reset bumps the generation of the queue so that a push started
// before it is not acknowledged.
package eventqueue

import (
	"context"
	"sync"

	"github.com/yorkie-team/livesync/pkg/event"
)

// Queue is a queue of events waiting to be pushed upstream.
type Queue struct {
	mu      sync.Mutex
	events  []*event.Event
	gen     uint64
	changed chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{changed: make(chan struct{})}
}

// notifyLocked wakes up the waiters. The caller must hold mu.
func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Push appends the events to the queue.
func (q *Queue) Push(events ...*event.Event) {
	if len(events) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, events...)
	q.notifyLocked()
}

// Reset replaces the content of the queue and starts a new generation.
func (q *Queue) Reset(events []*event.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append([]*event.Event(nil), events...)
	q.gen++
	q.notifyLocked()
}

// Retain keeps the events for which keep returns true. A new generation
// starts if any event is dropped.
func (q *Queue) Retain(keep func(*event.Event) bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.events[:0:0]
	for _, e := range q.events {
		if keep(e) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(q.events) {
		return
	}
	q.events = kept
	q.gen++
	q.notifyLocked()
}

// Peek waits until the queue is not empty and returns at most n events from
// its front together with the current generation.
func (q *Queue) Peek(ctx context.Context, n int) ([]*event.Event, uint64, error) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			if n > len(q.events) {
				n = len(q.events)
			}
			batch := append([]*event.Event(nil), q.events[:n]...)
			gen := q.gen
			q.mu.Unlock()
			return batch, gen, nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

// Ack drops the first n events if the queue did not change generation since
// gen.
func (q *Queue) Ack(gen uint64, n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return
	}
	if n > len(q.events) {
		n = len(q.events)
	}
	q.events = q.events[n:]
}

// WaitGeneration waits until the generation of the queue differs from gen.
func (q *Queue) WaitGeneration(ctx context.Context, gen uint64) error {
	for {
		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
