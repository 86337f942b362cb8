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

package syncstate

import (
	"fmt"
	"sort"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// position is the (global, client) part of a sequence number.
type position struct {
	global uint64
	client uint32
}

func positionOf(seq eventseq.SeqNum) position {
	return position{global: seq.Global, client: seq.Client}
}

func positionsOf(events []*event.Event) map[position]struct{} {
	positions := make(map[position]struct{}, len(events))
	for _, e := range events {
		positions[positionOf(e.Seq)] = struct{}{}
	}
	return positions
}

// comparePosition compares two numbers ignoring their rebase generations.
func comparePosition(a, b eventseq.SeqNum) int {
	return eventseq.Compare(
		eventseq.New(a.Global, a.Client, eventseq.InitialRebaseGeneration),
		eventseq.New(b.Global, b.Client, eventseq.InitialRebaseGeneration),
	)
}

func checkAscending(events []*event.Event) error {
	for i := 1; i < len(events); i++ {
		if !eventseq.IsGreaterThan(events[i].Seq, events[i-1].Seq) {
			return fmt.Errorf("%s is not after %s", events[i].Seq, events[i-1].Seq)
		}
	}
	return nil
}

// findDivergence returns the index in pending of the first event that
// differs from the upstream event at the same place, or -1 if every event
// that can be compared matches.
func findDivergence(pending, upstream []*event.Event, opts MergeOptions) int {
	j := 0
	for i, e := range pending {
		if opts.IgnoreClientOnly && opts.IsClientOnly(e) {
			continue
		}
		if j >= len(upstream) {
			return -1
		}
		if !opts.IsEqual(e, upstream[j]) {
			return i
		}
		j++
	}
	return -1
}

// splitMatching splits pending into the prefix confirmed by the upstream and
// the events that remain pending. It must only be called when pending does
// not diverge from upstream.
func splitMatching(pending, upstream []*event.Event, opts MergeOptions) ([]*event.Event, []*event.Event) {
	head := upstream[len(upstream)-1].Seq

	n, j := 0, 0
	for n < len(pending) {
		e := pending[n]
		if opts.IgnoreClientOnly && opts.IsClientOnly(e) {
			if comparePosition(e.Seq, head) > 0 {
				break
			}
			n++
			continue
		}
		if j >= len(upstream) {
			break
		}
		j++
		n++
	}

	return pending[:n], pending[n:]
}

// rebaseEvents renumbers the given events in order on top of base.
func rebaseEvents(events []*event.Event, base eventseq.SeqNum, isClientOnly event.IsClientOnlyFunc) []*event.Event {
	rebased := make([]*event.Event, 0, len(events))
	parent := base
	for _, e := range events {
		r := e.Rebase(parent, isClientOnly(e))
		rebased = append(rebased, r)
		parent = r.Seq
	}
	return rebased
}

// mergeTail appends the confirmed pending events and the upstream events to
// the tail. The first copy of a position wins so that locally applied events
// keep their changesets.
func mergeTail(tail []*event.Event, groups ...[]*event.Event) []*event.Event {
	size := len(tail)
	for _, group := range groups {
		size += len(group)
	}

	seen := make(map[position]struct{}, size)
	merged := make([]*event.Event, 0, size)
	add := func(events []*event.Event) {
		for _, e := range events {
			pos := positionOf(e.Seq)
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			merged = append(merged, e)
		}
	}

	add(tail)
	for _, group := range groups {
		add(group)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return comparePosition(merged[i].Seq, merged[j].Seq) < 0
	})
	return merged
}

// trimTail drops the entries up to and including until. It is a no-op when
// until is nil or not in the tail.
func trimTail(tail []*event.Event, until *eventseq.SeqNum) []*event.Event {
	if until == nil {
		return tail
	}
	for i, e := range tail {
		if e.Seq.SamePosition(*until) {
			return tail[i+1:]
		}
	}
	return tail
}

// Trim returns a copy of the state whose rollback tail is trimmed up to and
// including the given number.
func (s *SyncState) Trim(until eventseq.SeqNum) *SyncState {
	return &SyncState{
		Pending:      s.Pending,
		RollbackTail: trimTail(s.RollbackTail, &until),
		UpstreamHead: s.UpstreamHead,
		LocalHead:    s.LocalHead,
	}
}

// WithApplied returns a copy of the state whose events are replaced by their
// applied copies, matched by sequence number.
func (s *SyncState) WithApplied(applied []*event.Event) *SyncState {
	if len(applied) == 0 {
		return s
	}

	bySeq := make(map[eventseq.SeqNum]*event.Event, len(applied))
	for _, e := range applied {
		bySeq[e.Seq] = e
	}
	replace := func(events []*event.Event) []*event.Event {
		result := make([]*event.Event, len(events))
		for i, e := range events {
			if a, ok := bySeq[e.Seq]; ok {
				result[i] = a
			} else {
				result[i] = e
			}
		}
		return result
	}

	return &SyncState{
		Pending:      replace(s.Pending),
		RollbackTail: replace(s.RollbackTail),
		UpstreamHead: s.UpstreamHead,
		LocalHead:    s.LocalHead,
	}
}

// follows returns whether e is numbered right after head, comparing
// positions only. A global event follows the global part of head; a
// client-only event follows head itself.
func follows(e *event.Event, head eventseq.SeqNum) bool {
	if e.Seq.IsGlobal() {
		return e.Seq.Global == head.Global+1 &&
			e.Parent.Global == head.Global && e.Parent.IsGlobal()
	}
	return e.Seq.Global == head.Global && e.Seq.Client == head.Client+1 &&
		e.Parent.SamePosition(head)
}

// extends returns whether a locally pushed event can be appended on top of
// head. A client-only event must name head as its exact parent, so that a
// batch numbered before a rebase is not mistaken for one numbered after it.
func extends(e *event.Event, head eventseq.SeqNum) bool {
	if !follows(e, head) {
		return false
	}
	return e.Seq.IsGlobal() || e.Parent == head
}
