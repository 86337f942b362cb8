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

package syncbackend

import (
	"context"
	"sync"
)

// Connectivity is an observable boolean telling whether the backend is
// reachable.
type Connectivity struct {
	mu        sync.Mutex
	connected bool
	changed   chan struct{}
}

// NewConnectivity creates a Connectivity with the given initial value.
func NewConnectivity(connected bool) *Connectivity {
	return &Connectivity{
		connected: connected,
		changed:   make(chan struct{}),
	}
}

// Get returns the current value.
func (c *Connectivity) Get() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Set updates the value and wakes up the waiters if it changed.
func (c *Connectivity) Set(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected == connected {
		return
	}
	c.connected = connected
	close(c.changed)
	c.changed = make(chan struct{})
}

// Changed returns a channel closed at the next change of the value.
func (c *Connectivity) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Wait blocks until the value equals want or the context is done.
func (c *Connectivity) Wait(ctx context.Context, want bool) error {
	for {
		c.mu.Lock()
		connected, changed := c.connected, c.changed
		c.mu.Unlock()

		if connected == want {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
