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

package syncstate_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncstate"
)

func seq(s string) eventseq.SeqNum {
	return eventseq.MustFromString(s)
}

func seqPtr(s string) *eventseq.SeqNum {
	n := seq(s)
	return &n
}

func newEvent(s, parent, session string) *event.Event {
	return &event.Event{
		Name:      "todoCreated",
		Args:      json.RawMessage(`{"id":"` + s + `"}`),
		Seq:       seq(s),
		Parent:    seq(parent),
		ClientID:  "client-" + session,
		SessionID: session,
	}
}

func seqStrings(events []*event.Event) []string {
	var strs []string
	for _, e := range events {
		strs = append(strs, e.Seq.String())
	}
	return strs
}

func TestLocalPush(t *testing.T) {
	t.Run("append to pending test", func(t *testing.T) {
		state := syncstate.New(seq("e5"))
		batch := []*event.Event{newEvent("e6", "e5", "a"), newEvent("e6+1", "e6", "a")}

		result, err := syncstate.Merge(state, &syncstate.LocalPush{NewEvents: batch}, syncstate.MergeOptions{})
		require.NoError(t, err)

		advance, ok := result.(*syncstate.Advance)
		require.True(t, ok)
		assert.Equal(t, []string{"e6", "e6+1"}, seqStrings(advance.NewState.Pending))
		assert.Equal(t, seq("e6+1"), advance.NewState.LocalHead)
		assert.Equal(t, seq("e5"), advance.NewState.UpstreamHead)
		assert.Equal(t, batch, advance.NewEvents)
		assert.NoError(t, advance.NewState.Validate())

		// the input state is left untouched
		assert.Empty(t, state.Pending)
	})

	t.Run("reject push behind local head test", func(t *testing.T) {
		state := syncstate.FromPending(seq("e5"), []*event.Event{newEvent("e6", "e5", "a")}, nil)

		result, err := syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e6", "e5", "b")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		reject, ok := result.(*syncstate.Reject)
		require.True(t, ok)
		assert.Equal(t, seq("e6+1"), reject.ExpectedMinimumID)
	})

	t.Run("reject push on a stale parent test", func(t *testing.T) {
		// e4 was numbered on top of e3 while the history now ends at e1.
		state := syncstate.New(seq("e1"))

		result, err := syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e4", "e3", "a")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		reject, ok := result.(*syncstate.Reject)
		require.True(t, ok, "unexpected result %T", result)
		assert.Equal(t, seq("e1+1"), reject.ExpectedMinimumID)

		// a global event following a client-only head chains onto its global part
		state = syncstate.FromPending(seq("e1"), []*event.Event{newEvent("e1+1", "e1", "a")}, nil)
		result, err = syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e2", "e1", "b")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)
		advance, ok := result.(*syncstate.Advance)
		require.True(t, ok, "unexpected result %T", result)
		assert.NoError(t, advance.NewState.Validate())

		result, err = syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e3", "e2", "b")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)
		assert.IsType(t, &syncstate.Reject{}, result)
	})

	t.Run("reject client-only push on another generation test", func(t *testing.T) {
		state := syncstate.FromPending(seq("e1"), []*event.Event{newEvent("e1+1r1", "e1", "a")}, nil)

		result, err := syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e1+2", "e1+1", "a")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)
		reject, ok := result.(*syncstate.Reject)
		require.True(t, ok, "unexpected result %T", result)
		assert.Equal(t, seq("e1+2r1"), reject.ExpectedMinimumID)

		result, err = syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e1+2r1", "e1+1r1", "a")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)
		assert.IsType(t, &syncstate.Advance{}, result)

		result, err = syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e1+3r1", "e1+2r1", "a")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)
		assert.IsType(t, &syncstate.Reject{}, result)
	})

	t.Run("non-contiguous push test", func(t *testing.T) {
		state := syncstate.New(seq("e5"))
		_, err := syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e6", "e5", "a"), newEvent("e8", "e7", "a")},
		}, syncstate.MergeOptions{})
		assert.Equal(t, errors.ErrCodeInternal, errors.StatusOf(err))

		_, err = syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e6", "e5", "a"), newEvent("e6+2", "e6+1", "a")},
		}, syncstate.MergeOptions{})
		assert.Equal(t, errors.ErrCodeInternal, errors.StatusOf(err))
	})

	t.Run("empty push test", func(t *testing.T) {
		state := syncstate.New(seq("e5"))
		result, err := syncstate.Merge(state, &syncstate.LocalPush{}, syncstate.MergeOptions{})
		require.NoError(t, err)
		assert.Same(t, state, result.(*syncstate.Advance).NewState)
	})

	t.Run("unsorted push test", func(t *testing.T) {
		state := syncstate.New(seq("e5"))
		_, err := syncstate.Merge(state, &syncstate.LocalPush{
			NewEvents: []*event.Event{newEvent("e7", "e6", "a"), newEvent("e6", "e5", "a")},
		}, syncstate.MergeOptions{})
		assert.Equal(t, errors.ErrCodeInternal, errors.StatusOf(err))
	})
}

func TestUpstreamAdvance(t *testing.T) {
	t.Run("confirm pending without divergence test", func(t *testing.T) {
		mine := newEvent("e6", "e5", "a").WithChangeset(event.NoOpChangeset)
		state := syncstate.FromPending(seq("e5"), []*event.Event{mine}, nil)

		result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents: []*event.Event{newEvent("e6", "e5", "a")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		advance, ok := result.(*syncstate.Advance)
		require.True(t, ok)
		assert.Empty(t, advance.NewEvents)
		assert.Equal(t, []*event.Event{mine}, advance.ConfirmedEvents)
		assert.Empty(t, advance.NewState.Pending)
		assert.Equal(t, seq("e6"), advance.NewState.UpstreamHead)
		assert.Equal(t, seq("e6"), advance.NewState.LocalHead)

		// the locally applied copy is kept in the tail
		require.Len(t, advance.NewState.RollbackTail, 1)
		assert.Same(t, mine, advance.NewState.RollbackTail[0])
		assert.NoError(t, advance.NewState.Validate())
	})

	t.Run("apply new upstream events test", func(t *testing.T) {
		state := syncstate.FromPending(seq("e5"), []*event.Event{newEvent("e6", "e5", "a")}, nil)

		result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents: []*event.Event{newEvent("e6", "e5", "a"), newEvent("e7", "e6", "b")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		advance := result.(*syncstate.Advance)
		assert.Equal(t, []string{"e7"}, seqStrings(advance.NewEvents))
		assert.Equal(t, []string{"e6", "e7"}, seqStrings(advance.NewState.RollbackTail))
		assert.Equal(t, seq("e7"), advance.NewState.LocalHead)
	})

	t.Run("partial confirmation keeps the rest pending test", func(t *testing.T) {
		state := syncstate.FromPending(seq("e5"), []*event.Event{
			newEvent("e6", "e5", "a"),
			newEvent("e7", "e6", "a"),
		}, nil)

		result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents: []*event.Event{newEvent("e6", "e5", "a")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		advance := result.(*syncstate.Advance)
		assert.Equal(t, []string{"e7"}, seqStrings(advance.NewState.Pending))
		assert.Equal(t, seq("e6"), advance.NewState.UpstreamHead)
		assert.Equal(t, seq("e7"), advance.NewState.LocalHead)
		assert.NoError(t, advance.NewState.Validate())
	})

	t.Run("rebase divergent pending test", func(t *testing.T) {
		mine := newEvent("e6", "e5", "a").WithChangeset(event.PresentChangeset([]byte{1}))
		state := syncstate.FromPending(seq("e5"), []*event.Event{mine}, nil)
		theirs := newEvent("e6", "e5", "b")

		result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents: []*event.Event{theirs},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		rebase, ok := result.(*syncstate.Rebase)
		require.True(t, ok)
		assert.Equal(t, []*event.Event{mine}, rebase.EventsToRollback)
		assert.Equal(t, []string{"e6", "e7r1"}, seqStrings(rebase.NewEvents))
		assert.Same(t, theirs, rebase.NewEvents[0])

		rebased := rebase.NewState.Pending
		require.Len(t, rebased, 1)
		assert.Equal(t, seq("e7r1"), rebased[0].Seq)
		assert.Equal(t, seq("e6"), rebased[0].Parent)
		assert.Equal(t, mine.Args, rebased[0].Args)
		assert.False(t, rebased[0].Meta.Changeset.IsApplied())

		assert.Equal(t, seq("e6"), rebase.NewState.UpstreamHead)
		assert.Equal(t, seq("e7r1"), rebase.NewState.LocalHead)
		assert.Equal(t, []string{"e6"}, seqStrings(rebase.NewState.RollbackTail))
		assert.NoError(t, rebase.NewState.Validate())
	})

	t.Run("skip client-only events when ignored test", func(t *testing.T) {
		state := syncstate.FromPending(seq("e5"), []*event.Event{
			newEvent("e6", "e5", "a"),
			newEvent("e6+1", "e6", "a"),
			newEvent("e7", "e6", "a"),
		}, nil)

		result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents: []*event.Event{newEvent("e6", "e5", "a"), newEvent("e7", "e6", "b")},
		}, syncstate.MergeOptions{IgnoreClientOnly: true})
		require.NoError(t, err)

		rebase, ok := result.(*syncstate.Rebase)
		require.True(t, ok)
		assert.Equal(t, []string{"e7"}, seqStrings(rebase.EventsToRollback))
		assert.Equal(t, []string{"e7", "e8r1"}, seqStrings(rebase.NewEvents))
		assert.Equal(t, "b", rebase.NewEvents[0].SessionID)
		assert.Equal(t, []string{"e6", "e6+1", "e7"}, seqStrings(rebase.NewState.RollbackTail))
		assert.NoError(t, rebase.NewState.Validate())
	})

	t.Run("confirm client-only events below the new head test", func(t *testing.T) {
		state := syncstate.FromPending(seq("e5"), []*event.Event{
			newEvent("e6", "e5", "a"),
			newEvent("e6+1", "e6", "a"),
		}, nil)

		result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents: []*event.Event{newEvent("e6", "e5", "a"), newEvent("e7", "e6", "b")},
		}, syncstate.MergeOptions{IgnoreClientOnly: true})
		require.NoError(t, err)

		advance, ok := result.(*syncstate.Advance)
		require.True(t, ok)
		assert.Empty(t, advance.NewState.Pending)
		assert.Equal(t, []string{"e6", "e6+1"}, seqStrings(advance.ConfirmedEvents))
		assert.Equal(t, []string{"e7"}, seqStrings(advance.NewEvents))
		assert.Equal(t, seq("e7"), advance.NewState.LocalHead)
	})

	t.Run("trim rollback tail test", func(t *testing.T) {
		tail := []*event.Event{newEvent("e4", "e3", "b"), newEvent("e5", "e4", "b")}
		state := syncstate.FromPending(seq("e5"), nil, tail)

		result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents:         []*event.Event{newEvent("e6", "e5", "b")},
			TrimRollbackUntil: seqPtr("e5"),
		}, syncstate.MergeOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"e6"}, seqStrings(result.(*syncstate.Advance).NewState.RollbackTail))

		// an absent number leaves the tail as it is
		result, err = syncstate.Merge(state, &syncstate.UpstreamAdvance{
			TrimRollbackUntil: seqPtr("e2"),
		}, syncstate.MergeOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"e4", "e5"}, seqStrings(result.(*syncstate.Advance).NewState.RollbackTail))
	})

	t.Run("reject stale upstream events test", func(t *testing.T) {
		state := syncstate.New(seq("e5"))
		_, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
			NewEvents: []*event.Event{newEvent("e5", "e4", "b")},
		}, syncstate.MergeOptions{})

		var unexpected *errors.UnexpectedError
		assert.ErrorAs(t, err, &unexpected)
	})

	t.Run("upstream head never decreases test", func(t *testing.T) {
		state := syncstate.New(eventseq.Root)
		parent := eventseq.Root
		for i := 0; i < 5; i++ {
			pair := eventseq.NextPair(parent, false, nil)
			e := event.New(event.Input{Name: "todoCreated", Args: json.RawMessage(`{}`)}, pair, "c", "s")

			result, err := syncstate.Merge(state, &syncstate.UpstreamAdvance{
				NewEvents: []*event.Event{e},
			}, syncstate.MergeOptions{})
			require.NoError(t, err)

			next := result.(*syncstate.Advance).NewState
			assert.True(t, eventseq.IsGreaterThan(next.UpstreamHead, state.UpstreamHead))
			assert.NoError(t, next.Validate())
			state, parent = next, pair.Seq
		}
		assert.Len(t, state.RollbackTail, 5)
	})
}

func TestUpstreamRebase(t *testing.T) {
	t.Run("roll back tail and pending test", func(t *testing.T) {
		tail := []*event.Event{newEvent("e4", "e3", "b"), newEvent("e5", "e4", "b")}
		mine := newEvent("e6", "e5", "a")
		state := syncstate.FromPending(seq("e5"), []*event.Event{mine}, tail)

		replacement := newEvent("e5", "e4", "c")
		result, err := syncstate.Merge(state, &syncstate.UpstreamRebase{
			RollbackUntil: seq("e5"),
			NewEvents:     []*event.Event{replacement},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		rebase, ok := result.(*syncstate.Rebase)
		require.True(t, ok)
		assert.Equal(t, []string{"e5", "e6"}, seqStrings(rebase.EventsToRollback))
		assert.Equal(t, []string{"e5", "e6r1"}, seqStrings(rebase.NewEvents))
		assert.Equal(t, []string{"e4", "e5"}, seqStrings(rebase.NewState.RollbackTail))
		assert.Same(t, replacement, rebase.NewState.RollbackTail[1])
		assert.Equal(t, seq("e5"), rebase.NewState.UpstreamHead)
		assert.Equal(t, seq("e6r1"), rebase.NewState.LocalHead)
		assert.NoError(t, rebase.NewState.Validate())
	})

	t.Run("roll back pending only test", func(t *testing.T) {
		state := syncstate.FromPending(seq("e5"), []*event.Event{newEvent("e6", "e5", "a")}, []*event.Event{
			newEvent("e5", "e4", "b"),
		})

		result, err := syncstate.Merge(state, &syncstate.UpstreamRebase{
			RollbackUntil: seq("e6"),
			NewEvents:     []*event.Event{newEvent("e6", "e5", "c")},
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		rebase := result.(*syncstate.Rebase)
		assert.Equal(t, []string{"e6"}, seqStrings(rebase.EventsToRollback))
		assert.Equal(t, "a", rebase.EventsToRollback[0].SessionID)
		assert.Equal(t, []string{"e6", "e7r1"}, seqStrings(rebase.NewEvents))
		assert.Equal(t, []string{"e5", "e6"}, seqStrings(rebase.NewState.RollbackTail))
	})

	t.Run("rebase without new events test", func(t *testing.T) {
		tail := []*event.Event{newEvent("e4", "e3", "b"), newEvent("e5", "e4", "b")}
		state := syncstate.FromPending(seq("e5"), nil, tail)

		result, err := syncstate.Merge(state, &syncstate.UpstreamRebase{
			RollbackUntil: seq("e5"),
		}, syncstate.MergeOptions{})
		require.NoError(t, err)

		rebase := result.(*syncstate.Rebase)
		assert.Equal(t, []string{"e5"}, seqStrings(rebase.EventsToRollback))
		assert.Equal(t, seq("e4"), rebase.NewState.UpstreamHead)
		assert.Equal(t, seq("e4"), rebase.NewState.LocalHead)
		assert.NoError(t, rebase.NewState.Validate())
	})

	t.Run("cannot roll back trimmed events test", func(t *testing.T) {
		tail := []*event.Event{newEvent("e4", "e3", "b"), newEvent("e5", "e4", "b")}
		state := syncstate.FromPending(seq("e5"), nil, tail)

		_, err := syncstate.Merge(state, &syncstate.UpstreamRebase{
			RollbackUntil: seq("e2"),
		}, syncstate.MergeOptions{})
		assert.Equal(t, errors.ErrCodeInternal, errors.StatusOf(err))
	})
}

func TestSyncState_Validate(t *testing.T) {
	assert.NoError(t, syncstate.New(seq("e3")).Validate())

	broken := &syncstate.SyncState{UpstreamHead: seq("e4"), LocalHead: seq("e3")}
	assert.Error(t, broken.Validate())

	unsorted := syncstate.FromPending(seq("e3"), []*event.Event{
		newEvent("e5", "e4", "a"),
		newEvent("e4", "e3", "a"),
	}, nil)
	assert.Error(t, unsorted.Validate())

	unchained := syncstate.FromPending(seq("e3"), []*event.Event{
		newEvent("e4", "e3", "a"),
		newEvent("e6", "e5", "a"),
	}, nil)
	assert.Error(t, unchained.Validate())

	detached := syncstate.FromPending(seq("e1"), []*event.Event{newEvent("e4", "e3", "a")}, nil)
	assert.Error(t, detached.Validate())

	clientOnly := syncstate.FromPending(seq("e3"), []*event.Event{
		newEvent("e3+1", "e3", "a"),
		newEvent("e3+3", "e3+2", "a"),
	}, nil)
	assert.Error(t, clientOnly.Validate())

	mixed := syncstate.FromPending(seq("e3"), []*event.Event{
		newEvent("e3+1", "e3", "a"),
		newEvent("e4", "e3", "a"),
		newEvent("e4+1", "e4", "a"),
	}, nil)
	assert.NoError(t, mixed.Validate())

	trimmed := syncstate.FromPending(seq("e5"), nil, []*event.Event{
		newEvent("e4", "e3", "a"),
		newEvent("e5", "e4", "a"),
	}).Trim(seq("e4"))
	assert.Equal(t, []string{"e5"}, seqStrings(trimmed.RollbackTail))
}

func TestSyncState_WithApplied(t *testing.T) {
	tail := []*event.Event{newEvent("e1", "e0", "a")}
	pending := []*event.Event{newEvent("e2", "e1", "a"), newEvent("e3", "e2", "a")}
	state := syncstate.FromPending(seq("e1"), pending, tail)

	applied := pending[1].WithChangeset(event.NoOpChangeset)
	replaced := state.WithApplied([]*event.Event{applied})

	assert.Same(t, applied, replaced.Pending[1])
	assert.Same(t, pending[0], replaced.Pending[0])
	assert.Same(t, tail[0], replaced.RollbackTail[0])
	assert.Equal(t, state.LocalHead, replaced.LocalHead)
	assert.False(t, state.Pending[1].Meta.Changeset.IsApplied(), "the original state is untouched")
	assert.Same(t, state, state.WithApplied(nil))
}
