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

// Package syncstate provides the reconciliation of a processor's event
// history against its upstream. Merge is a pure function: it never mutates
// the given state and returns a whole new state on success.
package syncstate

import (
	"fmt"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// SyncState is the reconciliation state of a processor.
type SyncState struct {
	// Pending holds events accepted locally but not yet confirmed by the
	// upstream, in ascending order.
	Pending []*event.Event

	// RollbackTail holds events already confirmed by the upstream but
	// retained with their changesets because they may still be rolled back.
	RollbackTail []*event.Event

	// UpstreamHead is the last sequence number confirmed by the upstream.
	UpstreamHead eventseq.SeqNum

	// LocalHead is the last sequence number in Pending, or UpstreamHead if
	// Pending is empty.
	LocalHead eventseq.SeqNum
}

// New creates an empty state whose heads are at the given position.
func New(head eventseq.SeqNum) *SyncState {
	return &SyncState{
		UpstreamHead: head,
		LocalHead:    head,
	}
}

// FromPending creates a state from the given upstream head and pending
// events, e.g. when booting from a persisted log.
func FromPending(upstreamHead eventseq.SeqNum, pending, rollbackTail []*event.Event) *SyncState {
	localHead := upstreamHead
	if len(pending) > 0 {
		localHead = pending[len(pending)-1].Seq
	}
	return &SyncState{
		Pending:      pending,
		RollbackTail: rollbackTail,
		UpstreamHead: upstreamHead,
		LocalHead:    localHead,
	}
}

// String returns the short description of the state used in logs.
func (s *SyncState) String() string {
	return fmt.Sprintf(
		"upstream=%s local=%s pending=%d tail=%d",
		s.UpstreamHead, s.LocalHead, len(s.Pending), len(s.RollbackTail),
	)
}

// Validate checks the invariants of the state.
func (s *SyncState) Validate() error {
	if eventseq.IsGreaterThan(s.UpstreamHead, s.LocalHead) {
		return errors.Unexpectedf("upstream head %s is ahead of local head %s", s.UpstreamHead, s.LocalHead)
	}
	if err := checkAscending(s.Pending); err != nil {
		return errors.Unexpectedf("pending: %w", err)
	}
	if err := checkAscending(s.RollbackTail); err != nil {
		return errors.Unexpectedf("rollback tail: %w", err)
	}

	if len(s.Pending) == 0 {
		if s.LocalHead != s.UpstreamHead {
			return errors.Unexpectedf("local head %s must equal upstream head %s without pending", s.LocalHead, s.UpstreamHead)
		}
		return nil
	}

	if !eventseq.IsGreaterThan(s.Pending[0].Seq, s.UpstreamHead) {
		return errors.Unexpectedf("first pending %s is not after upstream head %s", s.Pending[0].Seq, s.UpstreamHead)
	}
	if last := s.Pending[len(s.Pending)-1].Seq; last != s.LocalHead {
		return errors.Unexpectedf("local head %s must equal last pending %s", s.LocalHead, last)
	}

	prev := s.UpstreamHead
	for _, e := range s.Pending {
		if !follows(e, prev) {
			return errors.Unexpectedf("pending %s (parent %s) does not chain onto %s", e.Seq, e.Parent, prev)
		}
		prev = e.Seq
	}
	return nil
}

// Payload is what a processor feeds into Merge.
type Payload interface {
	isPayload()
}

// LocalPush is a batch authored locally, strictly increasing and contiguous
// with the local head.
type LocalPush struct {
	NewEvents []*event.Event
}

// UpstreamAdvance carries new events confirmed by the upstream.
type UpstreamAdvance struct {
	NewEvents         []*event.Event
	TrimRollbackUntil *eventseq.SeqNum
}

// UpstreamRebase signals that the upstream replaced its history from
// RollbackUntil on with NewEvents.
type UpstreamRebase struct {
	RollbackUntil     eventseq.SeqNum
	NewEvents         []*event.Event
	TrimRollbackUntil *eventseq.SeqNum
}

func (*LocalPush) isPayload()       {}
func (*UpstreamAdvance) isPayload() {}
func (*UpstreamRebase) isPayload()  {}

// Result is the outcome of Merge: one of Advance, Rebase or Reject.
type Result interface {
	isResult()
}

// Advance means the state moved forward without touching already applied
// events. NewEvents must be applied by the caller; ConfirmedEvents are the
// pending events the upstream has just confirmed.
type Advance struct {
	NewState        *SyncState
	NewEvents       []*event.Event
	ConfirmedEvents []*event.Event
}

// Rebase means the caller must undo EventsToRollback, newest first, and
// then apply NewEvents in order.
type Rebase struct {
	NewState         *SyncState
	NewEvents        []*event.Event
	EventsToRollback []*event.Event
}

// Reject means a local push was not ahead of the local head.
type Reject struct {
	ExpectedMinimumID eventseq.SeqNum
}

func (*Advance) isResult() {}
func (*Rebase) isResult()  {}
func (*Reject) isResult()  {}

// MergeOptions configures Merge.
type MergeOptions struct {
	// IsClientOnly reports whether the event never needs remote
	// confirmation. Defaults to checking for a client sequence.
	IsClientOnly event.IsClientOnlyFunc

	// IsEqual compares two events. Defaults to event.IsEqual.
	IsEqual func(a, b *event.Event) bool

	// IgnoreClientOnly skips client-only pending events when matching them
	// against upstream events. It is set when the upstream never sees
	// client-only events, i.e. for a leader reconciling with the backend.
	IgnoreClientOnly bool
}

func (o MergeOptions) withDefaults() MergeOptions {
	if o.IsClientOnly == nil {
		o.IsClientOnly = func(e *event.Event) bool {
			return !e.Seq.IsGlobal()
		}
	}
	if o.IsEqual == nil {
		o.IsEqual = event.IsEqual
	}
	return o
}

// Merge reconciles the given state with the payload. The returned error is
// reserved for invariant violations of the inputs.
func Merge(state *SyncState, payload Payload, opts MergeOptions) (Result, error) {
	opts = opts.withDefaults()

	switch p := payload.(type) {
	case *LocalPush:
		return mergeLocalPush(state, p)
	case *UpstreamAdvance:
		return mergeUpstreamAdvance(state, p, opts)
	case *UpstreamRebase:
		return mergeUpstreamRebase(state, p, opts)
	default:
		return nil, errors.Unexpectedf("unsupported payload %T", payload)
	}
}

func mergeLocalPush(state *SyncState, p *LocalPush) (Result, error) {
	if len(p.NewEvents) == 0 {
		return &Advance{NewState: state}, nil
	}
	if err := checkAscending(p.NewEvents); err != nil {
		return nil, errors.Unexpectedf("local push: %w", err)
	}
	for i := 1; i < len(p.NewEvents); i++ {
		if prev, e := p.NewEvents[i-1], p.NewEvents[i]; !follows(e, prev.Seq) {
			return nil, errors.Unexpectedf("local push: %s (parent %s) does not chain onto %s", e.Seq, e.Parent, prev.Seq)
		}
	}

	if !eventseq.IsGreaterThan(p.NewEvents[0].Seq, state.LocalHead) || !extends(p.NewEvents[0], state.LocalHead) {
		return &Reject{
			ExpectedMinimumID: eventseq.NextPair(state.LocalHead, true, nil).Seq,
		}, nil
	}

	pending := make([]*event.Event, 0, len(state.Pending)+len(p.NewEvents))
	pending = append(pending, state.Pending...)
	pending = append(pending, p.NewEvents...)

	return &Advance{
		NewState: &SyncState{
			Pending:      pending,
			RollbackTail: state.RollbackTail,
			UpstreamHead: state.UpstreamHead,
			LocalHead:    p.NewEvents[len(p.NewEvents)-1].Seq,
		},
		NewEvents: p.NewEvents,
	}, nil
}

func mergeUpstreamAdvance(state *SyncState, p *UpstreamAdvance, opts MergeOptions) (Result, error) {
	if len(p.NewEvents) == 0 {
		return &Advance{
			NewState: &SyncState{
				Pending:      state.Pending,
				RollbackTail: trimTail(state.RollbackTail, p.TrimRollbackUntil),
				UpstreamHead: state.UpstreamHead,
				LocalHead:    state.LocalHead,
			},
		}, nil
	}

	if err := checkAscending(p.NewEvents); err != nil {
		return nil, errors.Unexpectedf("upstream advance: %w", err)
	}
	if !eventseq.IsGreaterThan(p.NewEvents[0].Seq, state.UpstreamHead) {
		return nil, errors.Unexpectedf(
			"upstream advance: incoming %s is not after upstream head %s",
			p.NewEvents[0].Seq, state.UpstreamHead,
		)
	}

	newUpstreamHead := p.NewEvents[len(p.NewEvents)-1].Seq
	divergence := findDivergence(state.Pending, p.NewEvents, opts)

	if divergence == -1 {
		matched, remaining := splitMatching(state.Pending, p.NewEvents, opts)

		known := positionsOf(state.Pending)
		var newEvents []*event.Event
		for _, e := range p.NewEvents {
			if _, ok := known[positionOf(e.Seq)]; !ok {
				newEvents = append(newEvents, e)
			}
		}

		localHead := newUpstreamHead
		if len(remaining) > 0 {
			localHead = remaining[len(remaining)-1].Seq
		}

		return &Advance{
			NewState: &SyncState{
				Pending:      remaining,
				RollbackTail: trimTail(mergeTail(state.RollbackTail, matched, p.NewEvents), p.TrimRollbackUntil),
				UpstreamHead: newUpstreamHead,
				LocalHead:    localHead,
			},
			NewEvents:       newEvents,
			ConfirmedEvents: matched,
		}, nil
	}

	confirmed := state.Pending[:divergence]
	divergent := state.Pending[divergence:]
	rebased := rebaseEvents(divergent, newUpstreamHead, opts.IsClientOnly)

	// Upstream events at the matched positions are already applied locally.
	matchedUpstream := 0
	for _, e := range confirmed {
		if opts.IgnoreClientOnly && opts.IsClientOnly(e) {
			continue
		}
		matchedUpstream++
	}

	newEvents := make([]*event.Event, 0, len(p.NewEvents)-matchedUpstream+len(rebased))
	newEvents = append(newEvents, p.NewEvents[matchedUpstream:]...)
	newEvents = append(newEvents, rebased...)

	return &Rebase{
		NewState: &SyncState{
			Pending:      rebased,
			RollbackTail: trimTail(mergeTail(state.RollbackTail, confirmed, p.NewEvents), p.TrimRollbackUntil),
			UpstreamHead: newUpstreamHead,
			LocalHead:    rebased[len(rebased)-1].Seq,
		},
		NewEvents:        newEvents,
		EventsToRollback: append([]*event.Event(nil), divergent...),
	}, nil
}

func mergeUpstreamRebase(state *SyncState, p *UpstreamRebase, opts MergeOptions) (Result, error) {
	if err := checkAscending(p.NewEvents); err != nil {
		return nil, errors.Unexpectedf("upstream rebase: %w", err)
	}

	tail := state.RollbackTail
	rollbackIndex := len(tail)
	for i, e := range tail {
		if comparePosition(e.Seq, p.RollbackUntil) >= 0 {
			rollbackIndex = i
			break
		}
	}

	// The events before the first retained one have been trimmed and cannot
	// be rolled back anymore.
	if len(tail) > 0 && rollbackIndex == 0 && comparePosition(tail[0].Seq, p.RollbackUntil) > 0 {
		return nil, errors.Unexpectedf("upstream rebase: %s is older than the rollback tail", p.RollbackUntil)
	}
	if len(tail) == 0 && comparePosition(p.RollbackUntil, state.UpstreamHead) <= 0 && state.UpstreamHead != eventseq.Root {
		return nil, errors.Unexpectedf("upstream rebase: %s is not in the rollback tail", p.RollbackUntil)
	}

	base := state.UpstreamHead
	if rollbackIndex < len(tail) {
		if rollbackIndex > 0 {
			base = tail[rollbackIndex-1].Seq
		} else {
			base = tail[0].Parent
		}
	}
	newUpstreamHead := base
	if len(p.NewEvents) > 0 {
		newUpstreamHead = p.NewEvents[len(p.NewEvents)-1].Seq
	}

	eventsToRollback := make([]*event.Event, 0, len(tail)-rollbackIndex+len(state.Pending))
	eventsToRollback = append(eventsToRollback, tail[rollbackIndex:]...)
	eventsToRollback = append(eventsToRollback, state.Pending...)

	rebased := rebaseEvents(state.Pending, newUpstreamHead, opts.IsClientOnly)
	localHead := newUpstreamHead
	if len(rebased) > 0 {
		localHead = rebased[len(rebased)-1].Seq
	}

	newTail := make([]*event.Event, 0, rollbackIndex+len(p.NewEvents))
	newTail = append(newTail, tail[:rollbackIndex]...)
	newTail = append(newTail, p.NewEvents...)

	newEvents := make([]*event.Event, 0, len(p.NewEvents)+len(rebased))
	newEvents = append(newEvents, p.NewEvents...)
	newEvents = append(newEvents, rebased...)

	return &Rebase{
		NewState: &SyncState{
			Pending:      rebased,
			RollbackTail: trimTail(newTail, p.TrimRollbackUntil),
			UpstreamHead: newUpstreamHead,
			LocalHead:    localHead,
		},
		NewEvents:        newEvents,
		EventsToRollback: eventsToRollback,
	}, nil
}
