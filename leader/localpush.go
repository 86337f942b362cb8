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

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncstate"
)

type pushRequest struct {
	events []*event.Event
	done   chan error
}

// Push hands a batch of a session to the leader and waits until it is
// processed. The pushes of one session must not be concurrent.
func (l *Leader) Push(ctx context.Context, events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}

	req := &pushRequest{events: events, done: make(chan error, 1)}
	select {
	case l.mailbox <- req:
	case <-l.done:
		return l.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-l.done:
		return l.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Leader) localPushLoop(ctx context.Context) {
	for {
		var first *pushRequest
		select {
		case first = <-l.mailbox:
		case <-ctx.Done():
			return
		}

		batch := []*pushRequest{first}
	drain:
		for len(batch) < l.conf.LocalPushBatchSize {
			select {
			case req := <-l.mailbox:
				batch = append(batch, req)
			default:
				break drain
			}
		}

		if err := l.processLocalPush(ctx, batch); err != nil {
			if ctx.Err() == nil {
				l.fail(err)
			}
			for _, req := range batch {
				req.done <- err
			}
			return
		}
	}
}

// processLocalPush merges the batch in order. A rejection discards the
// whole batch: every caller of it and every queued request fails with the
// minimum id expected after the current local head.
func (l *Leader) processLocalPush(ctx context.Context, batch []*pushRequest) error {
	if err := l.pushGate.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := l.pullGate.Acquire(ctx, 1); err != nil {
		l.pushGate.Release(1)
		return err
	}
	l.pushGate.Release(1)
	defer l.pullGate.Release(1)

	logger := logging.From(ctx)
	base := l.syncState.Load()
	state := base

	var accepted []*event.Event
	var acceptedReqs, invalidReqs []*pushRequest
	var invalidErrs []error
	rejected := false

merge:
	for _, req := range batch {
		result, err := syncstate.Merge(state, &syncstate.LocalPush{NewEvents: req.events}, l.mergeOptions())
		if err != nil {
			invalidReqs = append(invalidReqs, req)
			invalidErrs = append(invalidErrs, err)
			continue
		}

		switch r := result.(type) {
		case *syncstate.Advance:
			state = r.NewState
			accepted = append(accepted, r.NewEvents...)
			acceptedReqs = append(acceptedReqs, req)
		case *syncstate.Reject:
			rejected = true
			break merge
		default:
			return errors.Unexpectedf("local push: unexpected result %T", result)
		}
	}

	if rejected {
		for i, req := range invalidReqs {
			req.done <- &errors.InvalidPushError{Reason: errors.UnexpectedReason{Cause: invalidErrs[i]}}
		}
		expected := eventseq.NextPair(base.LocalHead, true, nil).Seq
		failed := 0
		for _, req := range batch {
			if isInvalid(req, invalidReqs) {
				continue
			}
			req.done <- errors.NewLeaderAheadError(expected, req.events[0].Seq)
			failed++
		}

	flush:
		for {
			select {
			case req := <-l.mailbox:
				req.done <- errors.NewLeaderAheadError(expected, req.events[0].Seq)
				failed++
			default:
				break flush
			}
		}

		l.metrics.AddLeaderPushRejection(l.conf.StoreID)
		logger.Debugf("rejected %d pushes, expected %s or later", failed, expected)
		return nil
	}

	if len(accepted) > 0 {
		applied, err := l.commit(ctx, &change{apply: accepted})
		if err != nil {
			return err
		}
		if err := l.setState(state.WithApplied(applied)); err != nil {
			return err
		}

		l.broadcast(&syncstate.UpstreamAdvance{NewEvents: stripped(applied)})
		l.backendQueue.Push(l.pushable(applied)...)
		l.metrics.AddLeaderPushBatch(l.conf.StoreID)
	}

	for _, req := range acceptedReqs {
		req.done <- nil
	}
	for i, req := range invalidReqs {
		req.done <- &errors.InvalidPushError{Reason: errors.UnexpectedReason{Cause: invalidErrs[i]}}
	}
	return nil
}

func isInvalid(req *pushRequest, invalid []*pushRequest) bool {
	for _, r := range invalid {
		if r == req {
			return true
		}
	}
	return false
}
