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

// Package client provides the client session sync processor. A session
// keeps a private in-memory copy of the state, applies its commits
// optimistically and reconciles with the history its leader fans out.
package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/yorkie-team/livesync/internal/background"
	"github.com/yorkie-team/livesync/internal/eventqueue"
	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/leader"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/materializer"
	"github.com/yorkie-team/livesync/pkg/statedb"
	"github.com/yorkie-team/livesync/pkg/syncstate"
)

// ErrSessionClosed is returned by the operations of a closed session.
var ErrSessionClosed = errors.Unavailable("session is closed")

// LeaderProxy is the view a session has of its leader.
type LeaderProxy interface {
	// StoreID returns the id of the store of the leader.
	StoreID() string

	// Schema returns the schema of the state of the leader.
	Schema() *materializer.Schema

	// Pull subscribes to the payloads of the leader after cursor.
	Pull(ctx context.Context, cursor eventseq.SeqNum) (*leader.Subscription, error)

	// Attach returns a snapshot of the leader and a subscription to the
	// payloads after it.
	Attach(ctx context.Context) (*leader.Attachment, error)

	// Push hands a batch to the leader and waits until it is processed.
	Push(ctx context.Context, events []*event.Event) error
}

// Session is a client session of a store.
type Session struct {
	id       string
	clientID string
	storeID  string

	proxy        LeaderProxy
	schema       *materializer.Schema
	materializer *materializer.Materializer
	state        *statedb.DB
	sub          *leader.Subscription

	options Options
	logger  logging.Logger
	metrics *prometheus.Metrics
	bg      *background.Background

	// mu serializes the commits and the processing of leader payloads.
	mu        sync.Mutex
	syncState atomic.Pointer[syncstate.SyncState]
	forward   *eventqueue.Queue

	doneOnce sync.Once
	done     chan struct{}
	err      error
}

// NewSession creates a session of the store of the given leader.
func NewSession(ctx context.Context, proxy LeaderProxy, opts ...Option) (*Session, error) {
	options := Options{PushBatchSize: DefaultPushBatchSize, RetryInterval: DefaultRetryInterval}
	for _, opt := range opts {
		opt(&options)
	}
	if options.RetryInterval <= 0 {
		options.RetryInterval = DefaultRetryInterval
	}
	if options.ClientID == "" {
		options.ClientID = uuid.New().String()
	}
	if options.SessionID == "" {
		options.SessionID = xid.New().String()
	}
	if options.Logger == nil {
		options.Logger = logging.New("session",
			logging.NewField("store", proxy.StoreID()),
			logging.NewField("session", options.SessionID),
		)
	}

	schema := proxy.Schema()
	state, err := statedb.Open(ctx, statedb.MemoryPath, schema)
	if err != nil {
		return nil, err
	}

	mopts := append([]materializer.Option{
		materializer.WithLogger(options.Logger),
		materializer.WithDevMode(options.DevMode),
	}, options.MaterializerOptions...)

	s := &Session{
		id:           options.SessionID,
		clientID:     options.ClientID,
		storeID:      proxy.StoreID(),
		proxy:        proxy,
		schema:       schema,
		materializer: materializer.New(schema, mopts...),
		state:        state,
		options:      options,
		logger:       options.Logger,
		metrics:      options.Metrics,
		bg:           background.New("session", options.Metrics),
		forward:      eventqueue.New(),
		done:         make(chan struct{}),
	}

	if err := s.boot(ctx); err != nil {
		_ = state.Close()
		return nil, err
	}

	s.bg.AttachGoroutine(s.pullLoop, "pull")
	s.bg.AttachGoroutine(s.forwardLoop, "forward")
	return s, nil
}

// boot loads the initial state, either from a snapshot of the leader or by
// replaying the first payload of a pull from the root.
func (s *Session) boot(ctx context.Context) error {
	if s.options.SnapshotBoot {
		attachment, err := s.proxy.Attach(ctx)
		if err != nil {
			return err
		}
		s.sub = attachment.Subscription

		if err := s.state.Load(ctx, attachment.Snapshot); err != nil {
			s.sub.Close()
			return err
		}
		s.syncState.Store(syncstate.FromPending(attachment.Head, nil, attachment.Events))
		s.logger.Debugf("booted from snapshot at %s", attachment.Head)
		return nil
	}

	sub, err := s.proxy.Pull(ctx, eventseq.Root)
	if err != nil {
		return err
	}
	s.sub = sub
	s.syncState.Store(syncstate.New(eventseq.Root))

	payload, err := sub.Next(ctx)
	if err != nil {
		sub.Close()
		return err
	}
	if err := s.process(ctx, payload); err != nil {
		sub.Close()
		return err
	}
	s.logger.Debugf("booted from the event log at %s", s.SyncState().UpstreamHead)
	return nil
}

// ID returns the id of the session.
func (s *Session) ID() string {
	return s.id
}

// ClientID returns the id of the client of the session.
func (s *Session) ClientID() string {
	return s.clientID
}

// SyncState returns the current sync state.
func (s *Session) SyncState() *syncstate.SyncState {
	return s.syncState.Load()
}

// Query runs a read-only query against the state of the session.
func (s *Session) Query(ctx context.Context, query string, args ...interface{}) ([]statedb.Row, error) {
	return s.state.Query(ctx, query, args...)
}

// Commit numbers the inputs after the local head, applies them to the state
// of the session and hands them to the leader in the background.
func (s *Session) Commit(ctx context.Context, inputs ...event.Input) ([]*event.Event, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return nil, s.closedErr()
	default:
	}

	state := s.SyncState()
	events := make([]*event.Event, 0, len(inputs))
	parent := state.LocalHead
	for _, input := range inputs {
		pair := eventseq.NextPair(parent, s.schema.IsClientOnlyName(input.Name), nil)
		events = append(events, event.New(input, pair, s.clientID, s.id))
		parent = pair.Seq
	}

	result, err := syncstate.Merge(state, &syncstate.LocalPush{NewEvents: events}, s.mergeOptions())
	if err != nil {
		return nil, err
	}
	advance, ok := result.(*syncstate.Advance)
	if !ok {
		return nil, errors.Unexpectedf("commit: unexpected result %T", result)
	}

	applied, err := s.apply(ctx, nil, advance.NewEvents)
	if err != nil {
		return nil, err
	}
	if err := s.setState(advance.NewState.WithApplied(applied)); err != nil {
		return nil, err
	}

	committed := stripped(applied)
	s.forward.Push(committed...)
	s.metrics.AddSessionCommittedEvents(s.storeID, len(committed))
	return committed, nil
}

// Done returns a channel closed when the session stops.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the session stopped on, or nil if it is running or
// was closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close stops the session and releases its state.
func (s *Session) Close() error {
	s.finish(nil)
	s.bg.Close()
	s.sub.Close()
	return s.state.Close()
}

func (s *Session) fail(err error) {
	s.finish(err)
	go s.bg.Close()
}

func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		s.err = err
		if err != nil {
			s.logger.Errorf("session stopped: %v", err)
		}
		close(s.done)
	})
}

func (s *Session) closedErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrSessionClosed
}

// pullLoop reconciles the session with every payload of the leader.
func (s *Session) pullLoop(ctx context.Context) {
	for {
		payload, err := s.sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.fail(err)
			}
			return
		}

		if err := s.process(ctx, payload); err != nil {
			if ctx.Err() == nil {
				s.fail(err)
			}
			return
		}
	}
}

// process merges one payload of the leader into the session.
func (s *Session) process(ctx context.Context, payload syncstate.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := syncstate.Merge(s.SyncState(), payload, s.mergeOptions())
	if err != nil {
		return err
	}

	switch r := result.(type) {
	case *syncstate.Advance:
		applied, err := s.apply(ctx, nil, r.NewEvents)
		if err != nil {
			return err
		}
		state := r.NewState.WithApplied(applied)
		if err := s.setState(state); err != nil {
			return err
		}
		if len(r.ConfirmedEvents) > 0 {
			s.forward.Retain(isPendingIn(state))
		}
	case *syncstate.Rebase:
		applied, err := s.apply(ctx, r.EventsToRollback, r.NewEvents)
		if err != nil {
			return err
		}
		state := r.NewState.WithApplied(applied)
		if err := s.setState(state); err != nil {
			return err
		}
		s.forward.Reset(stripped(state.Pending))
		s.logger.Debugf("rebased: rolled back %d events, %s", len(r.EventsToRollback), state)
	default:
		return errors.Unexpectedf("pull: unexpected result %T", result)
	}
	return nil
}

// apply rolls back the given events newest first and applies the new ones
// in a single transaction.
func (s *Session) apply(ctx context.Context, rollback, events []*event.Event) ([]*event.Event, error) {
	if len(rollback) == 0 && len(events) == 0 {
		return nil, nil
	}

	tx, err := s.state.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Abort()

	for i := len(rollback) - 1; i >= 0; i-- {
		if err := tx.Rollback(ctx, rollback[i].Meta.Changeset); err != nil {
			return nil, err
		}
	}

	applied := make([]*event.Event, 0, len(events))
	for _, e := range events {
		a, err := tx.Materialize(ctx, s.materializer, e)
		if err != nil {
			return nil, err
		}
		applied = append(applied, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return applied, nil
}

// forwardLoop pushes the committed events to the leader. A rejected push is
// retried at once when it was spurious, and otherwise after the next rebase.
func (s *Session) forwardLoop(ctx context.Context) {
	for {
		batch, gen, err := s.forward.Peek(ctx, s.options.PushBatchSize)
		if err != nil {
			return
		}

		err = s.proxy.Push(ctx, batch)
		if err == nil {
			s.forward.Ack(gen, len(batch))
			continue
		}
		if ctx.Err() != nil {
			return
		}

		// The leader is ahead until the session rebases. A batch it expects
		// at or before its own position is pushed again after a while, even
		// if no rebase reaches the session.
		if reason, ok := errors.LeaderAheadOf(err); ok {
			waitCtx, cancel := ctx, context.CancelFunc(func() {})
			if !eventseq.IsGreaterThan(reason.MinimumExpectedID, reason.ProvidedID) {
				waitCtx, cancel = context.WithTimeout(ctx, s.options.RetryInterval)
			}
			_ = s.forward.WaitGeneration(waitCtx, gen)
			cancel()
			if ctx.Err() != nil {
				return
			}
			continue
		}

		s.fail(err)
		return
	}
}

func (s *Session) setState(state *syncstate.SyncState) error {
	if s.options.DevMode {
		if err := state.Validate(); err != nil {
			return err
		}
	}
	s.syncState.Store(state)
	return nil
}

func (s *Session) mergeOptions() syncstate.MergeOptions {
	return syncstate.MergeOptions{IsClientOnly: s.schema.IsClientOnly}
}

// isPendingIn returns whether an event is still pending in the state.
func isPendingIn(state *syncstate.SyncState) func(*event.Event) bool {
	pending := make(map[eventseq.SeqNum]struct{}, len(state.Pending))
	for _, e := range state.Pending {
		pending[e.Seq] = struct{}{}
	}
	return func(e *event.Event) bool {
		_, ok := pending[e.Seq]
		return ok
	}
}

func stripped(events []*event.Event) []*event.Event {
	result := make([]*event.Event, 0, len(events))
	for _, e := range events {
		result = append(result, eventlog.ToStored(e))
	}
	return result
}
