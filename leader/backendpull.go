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
	"encoding/json"
	"fmt"
	"io"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
	"github.com/yorkie-team/livesync/pkg/syncstate"
)

const (
	rebaseSourceDivergence = "divergence"
	rebaseSourceBackend    = "backend"
)

// errPullStreamEnded is returned when a live pull stream ends without error.
var errPullStreamEnded = errors.Unavailable("pull stream ended")

// backendPullLoop pulls live from the backend cursor and reconnects after a
// failure. Errors while processing a pulled batch stop the leader.
func (l *Leader) backendPullLoop(ctx context.Context) {
	logger := logging.From(ctx)
	conn := l.backend.Connectivity()

	for {
		if err := conn.Wait(ctx, true); err != nil {
			return
		}

		err := l.pull(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-l.done:
			return
		default:
		}

		logger.Warnf("pull from %s: %v", l.SyncState().UpstreamHead, err)
		if !l.sleep(ctx) {
			return
		}
	}
}

func (l *Leader) pull(ctx context.Context) error {
	stream, err := l.backend.Pull(ctx, l.cursor(), syncbackend.PullOptions{Live: true})
	if err != nil {
		return err
	}
	defer func() {
		_ = stream.Close()
	}()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return errPullStreamEnded
		}
		if err != nil {
			return err
		}

		if err := l.processBackendPull(ctx, resp); err != nil {
			if ctx.Err() == nil {
				l.fail(err)
			}
			return err
		}
	}
}

// cursor returns the position the backend pull resumes from.
func (l *Leader) cursor() *syncbackend.Cursor {
	head := l.SyncState().UpstreamHead
	if head == eventseq.Root {
		return nil
	}
	return &syncbackend.Cursor{Seq: head, Metadata: l.cursorMetadata}
}

// checkBackendID records the id of the backend. A log already synced with
// another backend must not be reconciled with this one.
func (l *Leader) checkBackendID(id string) error {
	if id == "" || id == l.backendID {
		return nil
	}
	if l.backendID != "" && l.SyncState().UpstreamHead != eventseq.Root {
		return &errors.SyncError{
			Cause: fmt.Errorf("backend id changed from %s to %s", l.backendID, id),
		}
	}

	l.backendID = id
	l.backendIDDirty = true
	return nil
}

// processBackendPull reconciles the leader with one pulled batch.
func (l *Leader) processBackendPull(ctx context.Context, resp *syncbackend.PullResponse) error {
	if err := l.checkBackendID(resp.BackendID); err != nil {
		return err
	}

	events := make([]*event.Event, 0, len(resp.Batch))
	for _, item := range resp.Batch {
		e := item.Event.Clone()
		e.Meta.SyncMetadata = item.Metadata
		e.Meta.Changeset = event.UnsetChangeset
		events = append(events, e)
	}

	if err := l.lock(ctx); err != nil {
		return err
	}
	defer l.unlock()

	state := l.SyncState()
	if len(events) == 0 && resp.Rebase == nil {
		if !l.backendIDDirty {
			return nil
		}
		if _, err := l.commit(ctx, &change{status: l.syncStatus(state.UpstreamHead)}); err != nil {
			return err
		}
		l.backendIDDirty = false
		return nil
	}
	l.metrics.AddBackendPulledEvents(l.conf.StoreID, len(events))

	var payload syncstate.Payload = &syncstate.UpstreamAdvance{NewEvents: events}
	if resp.Rebase != nil {
		payload = &syncstate.UpstreamRebase{
			RollbackUntil: resp.Rebase.RollbackUntil,
			NewEvents:     events,
		}
	}

	result, err := syncstate.Merge(state, payload, l.mergeOptions())
	if err != nil {
		return err
	}

	switch r := result.(type) {
	case *syncstate.Advance:
		err = l.advance(ctx, r, events)
	case *syncstate.Rebase:
		source := rebaseSourceDivergence
		if resp.Rebase != nil {
			source = rebaseSourceBackend
		}
		err = l.rebase(ctx, r, source)
	default:
		err = errors.Unexpectedf("backend pull: unexpected result %T", result)
	}
	if err != nil {
		return err
	}

	if len(events) > 0 {
		l.cursorMetadata = events[len(events)-1].Meta.SyncMetadata
	}
	l.backendIDDirty = false
	return nil
}

func (l *Leader) advance(ctx context.Context, r *syncstate.Advance, upstream []*event.Event) error {
	state, trimmed, until := l.trimTail(r.NewState)

	applied, err := l.commit(ctx, &change{
		apply:    r.NewEvents,
		trimmed:  trimmed,
		metadata: confirmedMetadata(r.ConfirmedEvents, upstream),
		status:   l.syncStatus(state.UpstreamHead),
	})
	if err != nil {
		return err
	}
	if err := l.setState(state.WithApplied(applied)); err != nil {
		return err
	}
	if until != nil {
		l.trimmedUntil = until
	}

	if len(applied) > 0 || until != nil {
		l.broadcast(&syncstate.UpstreamAdvance{
			NewEvents:         stripped(applied),
			TrimRollbackUntil: until,
		})
	}
	return nil
}

func (l *Leader) rebase(ctx context.Context, r *syncstate.Rebase, source string) error {
	state, trimmed, until := l.trimTail(r.NewState)

	applied, err := l.commit(ctx, &change{
		rollback: r.EventsToRollback,
		apply:    r.NewEvents,
		trimmed:  trimmed,
		status:   l.syncStatus(state.UpstreamHead),
	})
	if err != nil {
		return err
	}
	state = state.WithApplied(applied)
	if err := l.setState(state); err != nil {
		return err
	}
	if until != nil {
		l.trimmedUntil = until
	}

	l.backendQueue.Reset(l.pushable(state.Pending))
	l.metrics.AddLeaderRebase(l.conf.StoreID, source, len(r.EventsToRollback))
	l.logger.Infof(
		"rebased from %s: rolled back %d events, applied %d, %s",
		source, len(r.EventsToRollback), len(applied), state,
	)

	if len(r.EventsToRollback) == 0 {
		l.broadcast(&syncstate.UpstreamAdvance{
			NewEvents:         stripped(applied),
			TrimRollbackUntil: until,
		})
		return nil
	}
	l.broadcast(&syncstate.UpstreamRebase{
		RollbackUntil:     r.EventsToRollback[0].Seq,
		NewEvents:         stripped(applied),
		TrimRollbackUntil: until,
	})
	return nil
}

func (l *Leader) syncStatus(head eventseq.SeqNum) *eventlog.SyncStatus {
	return &eventlog.SyncStatus{
		BackendHead: head,
		BackendID:   l.backendID,
	}
}

// confirmedMetadata returns the sync metadata of the confirmed events, taken
// from the upstream events at the same position.
func confirmedMetadata(confirmed, upstream []*event.Event) map[eventseq.SeqNum]json.RawMessage {
	if len(confirmed) == 0 {
		return nil
	}

	byGlobal := make(map[uint64]json.RawMessage, len(upstream))
	for _, e := range upstream {
		if len(e.Meta.SyncMetadata) > 0 {
			byGlobal[e.Seq.Global] = e.Meta.SyncMetadata
		}
	}

	metadata := make(map[eventseq.SeqNum]json.RawMessage)
	for _, e := range confirmed {
		if !e.Seq.IsGlobal() {
			continue
		}
		if md, ok := byGlobal[e.Seq.Global]; ok {
			metadata[e.Seq] = md
		}
	}
	return metadata
}
