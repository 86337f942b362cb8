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

// Package event provides the encoded events that flow through the event log
// and the sync processors.
package event

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// Input is an event as committed by its author, before a sequence number is
// assigned.
type Input struct {
	Name string
	Args json.RawMessage
}

// NewInput creates an Input whose args are the JSON encoding of the given
// value.
func NewInput(name string, args interface{}) (Input, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return Input{}, err
	}
	return Input{Name: name, Args: encoded}, nil
}

// Event is an encoded event. It is immutable once persisted, except for
// Meta.Changeset which is cleared once the event no longer needs to be
// rolled back.
type Event struct {
	Name      string
	Args      json.RawMessage
	Seq       eventseq.SeqNum
	Parent    eventseq.SeqNum
	ClientID  string
	SessionID string
	Meta      Meta
}

// New creates a new instance of Event from the given input.
func New(input Input, pair eventseq.Pair, clientID, sessionID string) *Event {
	return &Event{
		Name:      input.Name,
		Args:      input.Args,
		Seq:       pair.Seq,
		Parent:    pair.Parent,
		ClientID:  clientID,
		SessionID: sessionID,
	}
}

// Clone returns a copy of the event. The args and the changeset bytes are
// shared because they are never mutated in place.
func (e *Event) Clone() *Event {
	clone := *e
	return &clone
}

// Rebase returns a copy of the event renumbered on top of the given parent.
// The rebase generation is bumped and the changeset is reset because the
// event has not been applied at its new position yet.
func (e *Event) Rebase(parent eventseq.SeqNum, clientOnly bool) *Event {
	gen := e.Seq.RebaseGeneration + 1
	pair := eventseq.NextPair(parent, clientOnly, &gen)

	clone := e.Clone()
	clone.Seq = pair.Seq
	clone.Parent = pair.Parent
	clone.Meta.Changeset = UnsetChangeset
	return clone
}

// WithChangeset returns a copy of the event carrying the given changeset.
func (e *Event) WithChangeset(cs ChangesetState) *Event {
	clone := e.Clone()
	clone.Meta.Changeset = cs
	return clone
}

// String returns the short description of the event used in logs.
func (e *Event) String() string {
	return e.Name + "@" + e.Seq.String()
}

// IsEqual returns whether the two events are the same event. Meta is
// ignored, and so are rebase generations, because an upstream only
// identifies events by their (global, client) position.
func IsEqual(a, b *Event) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Name == b.Name &&
		a.Seq.SamePosition(b.Seq) &&
		a.Parent.SamePosition(b.Parent) &&
		a.ClientID == b.ClientID &&
		a.SessionID == b.SessionID &&
		argsEqual(a.Args, b.Args)
}

// argsEqual compares two JSON documents semantically, falling back to a
// byte comparison when either side is not valid JSON.
func argsEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}

	var left, right interface{}
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}

// Seqs returns the sequence numbers of the given events.
func Seqs(events []*Event) []eventseq.SeqNum {
	seqs := make([]eventseq.SeqNum, 0, len(events))
	for _, e := range events {
		seqs = append(seqs, e.Seq)
	}
	return seqs
}

// IsClientOnlyFunc reports whether an event never needs remote
// confirmation.
type IsClientOnlyFunc func(*Event) bool
