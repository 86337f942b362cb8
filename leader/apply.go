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

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncstate"
)

// change is one mutation of the state and the log, applied in a state
// transaction and a log transaction.
type change struct {
	// rollback are undone newest first and removed from the log.
	rollback []*event.Event

	// apply are materialized in order and appended to the log.
	apply []*event.Event

	// trimmed are the events whose changesets are dropped.
	trimmed []eventseq.SeqNum

	// metadata is the sync metadata of already logged events.
	metadata map[eventseq.SeqNum]json.RawMessage

	// status replaces the sync status if not nil.
	status *eventlog.SyncStatus
}

// commit applies the change and returns the applied events carrying their
// changesets. Both transactions are aborted on error. The log is committed
// first: a state left behind by a failed state commit is rebuilt on boot.
func (l *Leader) commit(ctx context.Context, c *change) ([]*event.Event, error) {
	stx, err := l.state.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer stx.Abort()

	ltx, err := l.log.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer ltx.Abort()

	for i := len(c.rollback) - 1; i >= 0; i-- {
		if err := stx.Rollback(ctx, c.rollback[i].Meta.Changeset); err != nil {
			return nil, err
		}
	}
	rolledBack := event.Seqs(c.rollback)
	if err := stx.DeleteChangesets(ctx, rolledBack...); err != nil {
		return nil, err
	}
	if err := ltx.Remove(rolledBack...); err != nil {
		return nil, err
	}

	applied := make([]*event.Event, 0, len(c.apply))
	for _, e := range c.apply {
		a, err := stx.Materialize(ctx, l.materializer, e)
		if err != nil {
			return nil, err
		}
		if err := stx.PutChangeset(ctx, a.Seq, a.Meta.Changeset); err != nil {
			return nil, err
		}
		applied = append(applied, a)
	}
	if err := ltx.Append(stripped(applied)...); err != nil {
		return nil, err
	}

	if err := stx.DeleteChangesets(ctx, c.trimmed...); err != nil {
		return nil, err
	}
	for seq, md := range c.metadata {
		if err := ltx.SetSyncMetadata(seq, md); err != nil {
			return nil, err
		}
	}
	if c.status != nil {
		if err := ltx.SetSyncStatus(c.status); err != nil {
			return nil, err
		}
	}

	if err := ltx.Commit(); err != nil {
		return nil, err
	}
	if err := stx.Commit(); err != nil {
		return nil, err
	}
	return applied, nil
}

// trimTail keeps at most RollbackTailSize events in the rollback tail. It
// returns the trimmed state, the trimmed events and the trim point.
func (l *Leader) trimTail(state *syncstate.SyncState) (*syncstate.SyncState, []eventseq.SeqNum, *eventseq.SeqNum) {
	excess := len(state.RollbackTail) - l.conf.RollbackTailSize
	if excess <= 0 {
		return state, nil, nil
	}

	trimmed := event.Seqs(state.RollbackTail[:excess])
	until := trimmed[len(trimmed)-1]
	return state.Trim(until), trimmed, &until
}

// setState stores the new state, validating it in dev mode.
func (l *Leader) setState(state *syncstate.SyncState) error {
	if l.conf.DevMode {
		if err := state.Validate(); err != nil {
			return err
		}
	}
	l.syncState.Store(state)
	return nil
}
