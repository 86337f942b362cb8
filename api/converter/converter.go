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

// Package converter provides the conversions between the wire messages of
// api/types and the model of the sync processors.
package converter

import (
	"fmt"

	"github.com/yorkie-team/livesync/api/types"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
)

// ToEvent converts the given event to its wire form.
func ToEvent(e *event.Event) types.Event {
	return types.Event{
		Name:      e.Name,
		Args:      e.Args,
		Seq:       e.Seq.String(),
		Parent:    e.Parent.String(),
		ClientID:  e.ClientID,
		SessionID: e.SessionID,
	}
}

// ToEvents converts the given events to their wire form.
func ToEvents(events []*event.Event) []types.Event {
	result := make([]types.Event, 0, len(events))
	for _, e := range events {
		result = append(result, ToEvent(e))
	}
	return result
}

// FromEvent converts the given wire event to an event.
func FromEvent(e types.Event) (*event.Event, error) {
	seq, err := eventseq.FromString(e.Seq)
	if err != nil {
		return nil, errors.InvalidArgument(fmt.Sprintf("event seq: %s", err))
	}
	parent, err := eventseq.FromString(e.Parent)
	if err != nil {
		return nil, errors.InvalidArgument(fmt.Sprintf("event parent: %s", err))
	}

	return &event.Event{
		Name:      e.Name,
		Args:      e.Args,
		Seq:       seq,
		Parent:    parent,
		ClientID:  e.ClientID,
		SessionID: e.SessionID,
	}, nil
}

// FromEvents converts the given wire events to events.
func FromEvents(events []types.Event) ([]*event.Event, error) {
	result := make([]*event.Event, 0, len(events))
	for _, e := range events {
		converted, err := FromEvent(e)
		if err != nil {
			return nil, err
		}
		result = append(result, converted)
	}
	return result, nil
}

// ToCursor converts the given cursor to its wire form. A nil cursor stays
// nil.
func ToCursor(cursor *syncbackend.Cursor) *types.Cursor {
	if cursor == nil {
		return nil
	}
	return &types.Cursor{
		Seq:      cursor.Seq.String(),
		Metadata: cursor.Metadata,
	}
}

// FromCursor converts the given wire cursor to a cursor.
func FromCursor(cursor *types.Cursor) (*syncbackend.Cursor, error) {
	if cursor == nil {
		return nil, nil
	}
	seq, err := eventseq.FromString(cursor.Seq)
	if err != nil {
		return nil, errors.InvalidArgument(fmt.Sprintf("cursor: %s", err))
	}
	return &syncbackend.Cursor{Seq: seq, Metadata: cursor.Metadata}, nil
}

// ToPullResponse converts the given pull response to its wire form.
func ToPullResponse(resp *syncbackend.PullResponse) *types.PullResponse {
	pbResp := &types.PullResponse{
		HasMore:   resp.PageInfo.HasMore,
		BackendID: resp.BackendID,
	}
	if resp.Rebase != nil {
		pbResp.RollbackUntil = resp.Rebase.RollbackUntil.String()
	}
	for _, item := range resp.Batch {
		pbResp.Batch = append(pbResp.Batch, types.Item{
			Event:    ToEvent(item.Event),
			Metadata: item.Metadata,
		})
	}
	return pbResp
}

// FromPullResponse converts the given wire pull response to a pull
// response.
func FromPullResponse(pbResp *types.PullResponse) (*syncbackend.PullResponse, error) {
	resp := &syncbackend.PullResponse{
		PageInfo:  syncbackend.PageInfo{HasMore: pbResp.HasMore},
		BackendID: pbResp.BackendID,
	}
	if pbResp.RollbackUntil != "" {
		until, err := eventseq.FromString(pbResp.RollbackUntil)
		if err != nil {
			return nil, errors.Unexpectedf("rollback until: %w", err)
		}
		resp.Rebase = &syncbackend.RebaseInfo{RollbackUntil: until}
	}
	for _, item := range pbResp.Batch {
		e, err := FromEvent(item.Event)
		if err != nil {
			return nil, errors.Unexpected(err)
		}
		resp.Batch = append(resp.Batch, syncbackend.Item{Event: e, Metadata: item.Metadata})
	}
	return resp, nil
}
