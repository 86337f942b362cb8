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

/*
Package locker provides named locks, e.g. one per store, so that pushes to a
store are serialized without a global lock.

A lock is created on first use and dropped again once it is released and
nobody waits for it. Lock honors context cancellation.
*/
package locker

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSuchLock is returned when the requested lock does not exist
var ErrNoSuchLock = errors.New("no such lock")

// Locker provides a locking mechanism based on the passed in reference name
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// entry is a lock with a given name. The channel holds a token while the
// lock is held.
type entry struct {
	ch   chan struct{}
	refs int
}

// New creates a new Locker
func New() *Locker {
	return &Locker{
		locks: make(map[string]*entry),
	}
}

func (l *Locker) acquireRef(name string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[name]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[name] = e
	}
	e.refs++
	return e
}

func (l *Locker) releaseRef(name string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, name)
	}
}

// Lock locks the lock with the given name. It returns the context error if
// the context is done before the lock is acquired.
func (l *Locker) Lock(ctx context.Context, name string) error {
	e := l.acquireRef(name)
	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.releaseRef(name, e)
		return ctx.Err()
	}
}

// TryLock locks the lock with the given name if it is free.
func (l *Locker) TryLock(name string) bool {
	e := l.acquireRef(name)
	select {
	case e.ch <- struct{}{}:
		return true
	default:
		l.releaseRef(name, e)
		return false
	}
}

// Unlock unlocks the lock with the given name.
func (l *Locker) Unlock(name string) error {
	l.mu.Lock()
	e, ok := l.locks[name]
	l.mu.Unlock()
	if !ok {
		return ErrNoSuchLock
	}

	select {
	case <-e.ch:
	default:
		return ErrNoSuchLock
	}
	l.releaseRef(name, e)
	return nil
}
