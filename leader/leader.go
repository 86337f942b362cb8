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

// Package leader provides the leader sync processor. A leader owns the
// durable event log and the materialized state of a store. It serializes the
// pushes of its sessions, syncs with the backend and fans the reconciled
// history out to every session.
package leader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yorkie-team/livesync/internal/background"
	"github.com/yorkie-team/livesync/internal/eventqueue"
	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/materializer"
	"github.com/yorkie-team/livesync/pkg/statedb"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
	"github.com/yorkie-team/livesync/pkg/syncstate"
)

// ErrClosed is returned by the operations of a closed leader.
var ErrClosed = errors.Unavailable("leader is closed")

// Deps are the resources a leader works on. They are owned by the caller and
// outlive the leader.
type Deps struct {
	State    *statedb.DB
	Eventlog eventlog.Store
	Backend  syncbackend.Backend

	// Metrics may be nil.
	Metrics *prometheus.Metrics

	// MaterializerOptions configure the materializer, e.g. its unknown
	// event policy.
	MaterializerOptions []materializer.Option
}

// Attachment is what a session boots from: a snapshot of the state, the head
// it was taken at and the events that can still be rolled back, together
// with a subscription to the payloads that follow.
type Attachment struct {
	Snapshot     *statedb.Snapshot
	Head         eventseq.SeqNum
	Events       []*event.Event
	Subscription *Subscription
}

// Leader is the leader sync processor of a store.
type Leader struct {
	conf         *Config
	schema       *materializer.Schema
	materializer *materializer.Materializer
	state        *statedb.DB
	log          eventlog.Store
	backend      syncbackend.Backend
	metrics      *prometheus.Metrics
	logger       logging.Logger
	bg           *background.Background

	// pushGate and pullGate order the local push and the backend pull
	// cycles. Whoever holds pullGate may mutate the state and the log.
	pushGate *semaphore.Weighted
	pullGate *semaphore.Weighted

	syncState atomic.Pointer[syncstate.SyncState]

	// trimmedUntil is the last event whose changeset was trimmed. It is
	// guarded by pullGate.
	trimmedUntil *eventseq.SeqNum

	// backendID and cursorMetadata are only used by the backend pull loop
	// after boot.
	backendID      string
	backendIDDirty bool
	cursorMetadata []byte

	mailbox      chan *pushRequest
	backendQueue *eventqueue.Queue

	subsMu sync.Mutex
	subs   map[string]*Subscription

	doneOnce sync.Once
	done     chan struct{}
	err      error
	closeErr error
}

// New creates a leader, boots it from its event log and starts its loops.
func New(ctx context.Context, conf Config, deps Deps) (*Leader, error) {
	conf.ensureDefaultValue()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New("leader", logging.NewField("store", conf.StoreID))
	schema := deps.State.Schema()
	opts := append([]materializer.Option{
		materializer.WithLogger(logger),
		materializer.WithDevMode(conf.DevMode),
	}, deps.MaterializerOptions...)

	l := &Leader{
		conf:         &conf,
		schema:       schema,
		materializer: materializer.New(schema, opts...),
		state:        deps.State,
		log:          deps.Eventlog,
		backend:      deps.Backend,
		metrics:      deps.Metrics,
		logger:       logger,
		bg:           background.New("leader", deps.Metrics),
		pushGate:     semaphore.NewWeighted(1),
		pullGate:     semaphore.NewWeighted(1),
		mailbox:      make(chan *pushRequest, conf.MailboxSize),
		backendQueue: eventqueue.New(),
		subs:         make(map[string]*Subscription),
		done:         make(chan struct{}),
	}

	if err := l.boot(ctx); err != nil {
		return nil, err
	}

	l.bg.AttachGoroutine(l.localPushLoop, "local-push")
	l.bg.AttachGoroutine(l.backendPushLoop, "backend-push")
	l.bg.AttachGoroutine(l.backendPullLoop, "backend-pull")

	return l, nil
}

// boot restores the sync state from the event log. The state store is
// rebuilt from the log when it is fresh or does not match the log.
func (l *Leader) boot(ctx context.Context) error {
	status, err := l.log.SyncStatus(ctx)
	if err != nil {
		return err
	}
	events, err := l.log.EventsAfter(ctx, eventseq.Root)
	if err != nil {
		return err
	}

	var confirmed, pending []*event.Event
	for _, e := range events {
		if eventseq.IsGreaterThan(e.Seq, status.BackendHead) {
			pending = append(pending, e)
		} else {
			confirmed = append(confirmed, e)
		}
	}

	changesets := map[eventseq.SeqNum][]byte{}
	if !l.state.Fresh() {
		if changesets, err = l.state.Changesets(ctx); err != nil {
			return err
		}
	}

	tail, pending, ok := l.attachChangesets(confirmed, pending, changesets)
	if !ok {
		if !l.state.Fresh() && len(events) > 0 {
			l.logger.Warnf("state does not match the event log, rebuilding from %d events", len(events))
		}
		if tail, pending, err = l.rebuild(ctx, confirmed, pending); err != nil {
			return err
		}
	}

	state := syncstate.FromPending(status.BackendHead, pending, tail)
	if l.conf.DevMode {
		if err := state.Validate(); err != nil {
			return err
		}
	}
	l.syncState.Store(state)

	l.backendID = status.BackendID
	for _, e := range confirmed {
		if e.Seq == status.BackendHead {
			l.cursorMetadata = e.Meta.SyncMetadata
		}
	}
	l.backendQueue.Push(l.pushable(pending)...)

	l.logger.Infof("booted: %s", state)
	return nil
}

// attachChangesets attaches the recorded changesets to the events that can
// still be rolled back. It reports false when the recorded changesets do not
// describe the log: every pending event must have one, and so must a
// non-empty suffix of the confirmed events, and nothing else.
func (l *Leader) attachChangesets(
	confirmed, pending []*event.Event,
	changesets map[eventseq.SeqNum][]byte,
) ([]*event.Event, []*event.Event, bool) {
	// An empty log is always rebuilt to clear whatever the state holds.
	if len(confirmed) == 0 && len(pending) == 0 {
		return nil, nil, false
	}

	attach := func(e *event.Event) (*event.Event, bool) {
		blob, ok := changesets[e.Seq]
		if !ok {
			return nil, false
		}
		if blob == nil {
			return e.WithChangeset(event.NoOpChangeset), true
		}
		return e.WithChangeset(event.PresentChangeset(blob)), true
	}

	applied := make([]*event.Event, 0, len(pending))
	for _, e := range pending {
		a, ok := attach(e)
		if !ok {
			return nil, nil, false
		}
		applied = append(applied, a)
	}

	start := len(confirmed)
	for start > 0 {
		if _, ok := changesets[confirmed[start-1].Seq]; !ok {
			break
		}
		start--
	}
	if len(confirmed) > 0 && start == len(confirmed) {
		return nil, nil, false
	}
	if len(pending)+len(confirmed)-start != len(changesets) {
		return nil, nil, false
	}

	tail := make([]*event.Event, 0, len(confirmed)-start)
	for _, e := range confirmed[start:] {
		a, _ := attach(e)
		tail = append(tail, a)
	}
	if start > 0 {
		until := confirmed[start-1].Seq
		l.trimmedUntil = &until
	}
	return tail, applied, true
}

// rebuild materializes every event of the log into an empty state.
func (l *Leader) rebuild(
	ctx context.Context,
	confirmed, pending []*event.Event,
) ([]*event.Event, []*event.Event, error) {
	if err := l.state.Reset(ctx); err != nil {
		return nil, nil, err
	}

	tx, err := l.state.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Abort()

	keepFrom := len(confirmed) - l.conf.RollbackTailSize
	if keepFrom < 0 {
		keepFrom = 0
	}

	var tail, applied []*event.Event
	for i, e := range confirmed {
		a, err := tx.Materialize(ctx, l.materializer, e)
		if err != nil {
			return nil, nil, err
		}
		if i < keepFrom {
			continue
		}
		if err := tx.PutChangeset(ctx, a.Seq, a.Meta.Changeset); err != nil {
			return nil, nil, err
		}
		tail = append(tail, a)
	}
	for _, e := range pending {
		a, err := tx.Materialize(ctx, l.materializer, e)
		if err != nil {
			return nil, nil, err
		}
		if err := tx.PutChangeset(ctx, a.Seq, a.Meta.Changeset); err != nil {
			return nil, nil, err
		}
		applied = append(applied, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	if keepFrom > 0 {
		until := confirmed[keepFrom-1].Seq
		l.trimmedUntil = &until
	}
	return tail, applied, nil
}

// StoreID returns the id of the store of the leader.
func (l *Leader) StoreID() string {
	return l.conf.StoreID
}

// Schema returns the schema of the materialized state.
func (l *Leader) Schema() *materializer.Schema {
	return l.schema
}

// SyncState returns the current sync state.
func (l *Leader) SyncState() *syncstate.SyncState {
	return l.syncState.Load()
}

// Query runs a read-only query against the materialized state.
func (l *Leader) Query(ctx context.Context, query string, args ...interface{}) ([]statedb.Row, error) {
	return l.state.Query(ctx, query, args...)
}

// EventlogData returns every event of the log.
func (l *Leader) EventlogData(ctx context.Context) ([]*event.Event, error) {
	return l.log.EventsAfter(ctx, eventseq.Root)
}

// Export returns a snapshot of the materialized state.
func (l *Leader) Export(ctx context.Context) (*statedb.Snapshot, error) {
	if err := l.lock(ctx); err != nil {
		return nil, err
	}
	defer l.unlock()

	return l.state.Dump(ctx)
}

// Attach returns the snapshot a session boots from, together with a
// subscription to the payloads after it.
func (l *Leader) Attach(ctx context.Context) (*Attachment, error) {
	if err := l.lock(ctx); err != nil {
		return nil, err
	}
	defer l.unlock()

	snapshot, err := l.state.Dump(ctx)
	if err != nil {
		return nil, err
	}

	state := l.syncState.Load()
	events := make([]*event.Event, 0, len(state.RollbackTail)+len(state.Pending))
	for _, e := range state.RollbackTail {
		events = append(events, e.Clone())
	}
	for _, e := range state.Pending {
		events = append(events, e.Clone())
	}

	sub, err := l.subscribe()
	if err != nil {
		return nil, err
	}

	return &Attachment{
		Snapshot:     snapshot,
		Head:         state.LocalHead,
		Events:       events,
		Subscription: sub,
	}, nil
}

// Pull subscribes to the payloads of the leader. The first payload carries
// every event of the log after cursor.
func (l *Leader) Pull(ctx context.Context, cursor eventseq.SeqNum) (*Subscription, error) {
	if err := l.lock(ctx); err != nil {
		return nil, err
	}
	defer l.unlock()

	events, err := l.log.EventsAfter(ctx, cursor)
	if err != nil {
		return nil, err
	}

	sub, err := l.subscribe()
	if err != nil {
		return nil, err
	}
	sub.publish(&syncstate.UpstreamAdvance{
		NewEvents:         events,
		TrimRollbackUntil: l.trimmedUntil,
	})
	return sub, nil
}

// Done returns a channel closed when the leader stops.
func (l *Leader) Done() <-chan struct{} {
	return l.done
}

// Err returns the error the leader stopped on, or nil if it is running or
// was closed.
func (l *Leader) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Close stops the loops and waits for them. The deps are not closed.
func (l *Leader) Close() error {
	l.bg.Close()
	l.finish(nil)
	return nil
}

// fail stops the leader on a fatal error.
func (l *Leader) fail(err error) {
	l.finish(errors.Unexpected(err))
	go l.bg.Close()
}

func (l *Leader) finish(err error) {
	l.doneOnce.Do(func() {
		l.err = err
		l.closeErr = ErrClosed
		if err != nil {
			l.closeErr = err
			l.logger.Errorf("leader stopped: %v", err)
		}
		close(l.done)

		l.subsMu.Lock()
		defer l.subsMu.Unlock()
		for id, sub := range l.subs {
			sub.close(l.closeErr)
			delete(l.subs, id)
		}
	})
}

// lock acquires both gates in the order of a pull cycle.
func (l *Leader) lock(ctx context.Context) error {
	if err := l.pushGate.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := l.pullGate.Acquire(ctx, 1); err != nil {
		l.pushGate.Release(1)
		return err
	}
	return nil
}

func (l *Leader) unlock() {
	l.pullGate.Release(1)
	l.pushGate.Release(1)
}

func (l *Leader) subscribe() (*Subscription, error) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	select {
	case <-l.done:
		return nil, l.closeErr
	default:
	}

	sub := newSubscription(l)
	l.subs[sub.id] = sub
	return sub, nil
}

func (l *Leader) unsubscribe(sub *Subscription) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	delete(l.subs, sub.id)
}

// broadcast publishes the payload to every subscription. Payload events
// never carry the leader's changesets.
func (l *Leader) broadcast(payload syncstate.Payload) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, sub := range l.subs {
		sub.publish(payload)
	}
}

func (l *Leader) mergeOptions() syncstate.MergeOptions {
	return syncstate.MergeOptions{
		IsClientOnly:     l.schema.IsClientOnly,
		IgnoreClientOnly: true,
	}
}

// pushable returns the stored copies of the events the backend must
// confirm.
func (l *Leader) pushable(events []*event.Event) []*event.Event {
	var result []*event.Event
	for _, e := range events {
		if l.schema.IsClientOnly(e) {
			continue
		}
		result = append(result, eventlog.ToStored(e))
	}
	return result
}

// sleep waits for the retry interval. It returns false when ctx is done.
func (l *Leader) sleep(ctx context.Context) bool {
	timer := time.NewTimer(l.conf.RetryInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func stripped(events []*event.Event) []*event.Event {
	result := make([]*event.Event, 0, len(events))
	for _, e := range events {
		result = append(result, eventlog.ToStored(e))
	}
	return result
}
