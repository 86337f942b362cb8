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

// Package memory provides an in-process sync backend running the server
// operations directly on a server backend. It is used by tests and by
// single-process setups.
package memory

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/yorkie-team/livesync/internal/background"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/backend/database"
	"github.com/yorkie-team/livesync/server/stores"
)

// DefaultConfig is the server backend configuration used by NewStandalone.
var DefaultConfig = backend.Config{
	PullPageSize:           100,
	MaxPushBatchSize:       syncbackend.MaxPushBatchSize,
	SubscriptionBufferSize: 256,
}

// Backend is a sync backend for one store of an in-process server backend.
type Backend struct {
	be      *backend.Backend
	owned   bool
	storeID string

	connectivity *syncbackend.Connectivity
	bg           *background.Background

	closeOnce sync.Once
}

// New creates a sync backend for the given store of the server backend.
// Several leaders may share the same server backend.
func New(be *backend.Backend, storeID string) *Backend {
	return &Backend{
		be:           be,
		storeID:      storeID,
		connectivity: syncbackend.NewConnectivity(true),
		bg:           background.New("memory-backend", be.Metrics),
	}
}

// NewStandalone creates a sync backend over its own in-memory server
// backend.
func NewStandalone(storeID string) (*Backend, error) {
	conf := DefaultConfig
	be, err := backend.New(&conf, nil, nil)
	if err != nil {
		return nil, err
	}

	b := New(be, storeID)
	b.owned = true
	return b, nil
}

// Server returns the server backend.
func (b *Backend) Server() *backend.Backend {
	return b.be
}

// Connectivity returns the observable connection state.
func (b *Backend) Connectivity() *syncbackend.Connectivity {
	return b.connectivity
}

// SetConnected simulates a connection change. Open pull streams fail when
// the backend goes offline.
func (b *Backend) SetConnected(connected bool) {
	b.connectivity.Set(connected)
}

// Push appends the batch to the store.
func (b *Backend) Push(ctx context.Context, batch []*event.Event) ([]json.RawMessage, error) {
	if !b.connectivity.Get() {
		return nil, &errors.IsOfflineError{}
	}
	return stores.Push(ctx, b.be, b.storeID, batch)
}

// Inject appends events to the store as if another client had pushed them.
// It ignores the simulated connectivity.
func (b *Backend) Inject(ctx context.Context, batch []*event.Event) error {
	_, err := stores.Push(ctx, b.be, b.storeID, batch)
	return err
}

// Rewrite replaces the history of the store from the given global number on.
func (b *Backend) Rewrite(ctx context.Context, from uint64, events []*event.Event) (*database.StoreInfo, error) {
	return stores.Rewrite(ctx, b.be, b.storeID, from, events)
}

// Events returns every event of the store.
func (b *Backend) Events(ctx context.Context) ([]*event.Event, error) {
	infos, err := stores.Events(ctx, b.be, b.storeID, 0, 0)
	if err != nil {
		return nil, err
	}

	events := make([]*event.Event, 0, len(infos))
	for _, info := range infos {
		events = append(events, info.ToEvent())
	}
	return events, nil
}

// Pull streams the history after the cursor.
func (b *Backend) Pull(
	ctx context.Context,
	cursor *syncbackend.Cursor,
	opts syncbackend.PullOptions,
) (syncbackend.PullStream, error) {
	if !b.connectivity.Get() {
		return nil, &errors.IsOfflineError{}
	}

	pullCtx, cancel := context.WithCancel(ctx)
	s := &stream{
		cancel:    cancel,
		responses: make(chan result),
		closed:    make(chan struct{}),
	}

	// Drop the stream when the backend goes offline.
	changed := b.connectivity.Changed()
	if !b.bg.AttachGoroutine(func(bgCtx context.Context) {
		defer close(s.responses)
		defer cancel()

		done := make(chan struct{})
		defer close(done)
		go func() {
			for {
				select {
				case <-changed:
					if !b.connectivity.Get() {
						s.fail(&errors.IsOfflineError{})
						return
					}
					changed = b.connectivity.Changed()
				case <-bgCtx.Done():
					s.fail(bgCtx.Err())
					return
				case <-done:
					return
				}
			}
		}()

		err := stores.Pull(pullCtx, b.be, b.storeID, cursor, opts.Live, func(resp *syncbackend.PullResponse) error {
			select {
			case s.responses <- result{resp: resp}:
				return nil
			case <-pullCtx.Done():
				return pullCtx.Err()
			}
		})
		if cause := s.cause(); cause != nil {
			err = cause
		}
		if err != nil {
			select {
			case s.responses <- result{err: err}:
			case <-s.closed:
			case <-ctx.Done():
			case <-bgCtx.Done():
			}
		}
	}, "pull") {
		cancel()
		return nil, errors.Unavailable("backend is closed")
	}

	return s, nil
}

// Close closes the open pull streams, and the server backend if it is owned.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.bg.Close()
		if b.owned {
			err = b.be.Shutdown()
		}
	})
	return err
}

type result struct {
	resp *syncbackend.PullResponse
	err  error
}

type stream struct {
	cancel    context.CancelFunc
	responses chan result

	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	failure error
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *stream) cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Recv returns the next response, io.EOF once a non-live pull is complete.
func (s *stream) Recv() (*syncbackend.PullResponse, error) {
	r, ok := <-s.responses
	if !ok {
		return nil, io.EOF
	}
	return r.resp, r.err
}

// Close stops the stream.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.cancel()
	return nil
}
