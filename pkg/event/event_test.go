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

package event_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

func newEvent(t *testing.T, seq, parent string, args string) *event.Event {
	return &event.Event{
		Name:      "todoCreated",
		Args:      json.RawMessage(args),
		Seq:       eventseq.MustFromString(seq),
		Parent:    eventseq.MustFromString(parent),
		ClientID:  "client-a",
		SessionID: "session-a",
	}
}

func TestEvent(t *testing.T) {
	t.Run("equality ignores meta test", func(t *testing.T) {
		a := newEvent(t, "e1", "e0", `{"id":"1","text":"milk"}`)
		b := a.WithChangeset(event.PresentChangeset([]byte{1, 2, 3}))
		b.Meta.SyncMetadata = json.RawMessage(`{"cursor":7}`)

		assert.True(t, event.IsEqual(a, b))
	})

	t.Run("equality compares args semantically test", func(t *testing.T) {
		a := newEvent(t, "e1", "e0", `{"id":"1","text":"milk"}`)
		b := newEvent(t, "e1", "e0", `{ "text": "milk", "id": "1" }`)
		c := newEvent(t, "e1", "e0", `{"id":"2","text":"milk"}`)

		assert.True(t, event.IsEqual(a, b))
		assert.False(t, event.IsEqual(a, c))
	})

	t.Run("equality ignores rebase generation test", func(t *testing.T) {
		a := newEvent(t, "e2", "e1", `{}`)
		b := newEvent(t, "e2r1", "e1", `{}`)
		c := newEvent(t, "e3", "e2", `{}`)

		assert.True(t, event.IsEqual(a, b))
		assert.False(t, event.IsEqual(a, c))
	})

	t.Run("equality compares authors test", func(t *testing.T) {
		a := newEvent(t, "e1", "e0", `{}`)
		b := a.Clone()
		b.SessionID = "session-b"

		assert.False(t, event.IsEqual(a, b))
		assert.True(t, event.IsEqual(nil, nil))
		assert.False(t, event.IsEqual(a, nil))
	})

	t.Run("rebase test", func(t *testing.T) {
		e := newEvent(t, "e6", "e5", `{"id":"1"}`).WithChangeset(event.NoOpChangeset)

		rebased := e.Rebase(eventseq.MustFromString("e6"), false)
		assert.Equal(t, "e7r1", rebased.Seq.String())
		assert.Equal(t, "e6", rebased.Parent.String())
		assert.False(t, rebased.Meta.Changeset.IsApplied())
		assert.Equal(t, e.Args, rebased.Args)

		// the original is left untouched
		assert.Equal(t, "e6", e.Seq.String())
		assert.True(t, e.Meta.Changeset.IsApplied())

		clientOnly := e.Rebase(eventseq.MustFromString("e7r1"), true)
		assert.Equal(t, "e7+1r1", clientOnly.Seq.String())
		assert.Equal(t, "e7r1", clientOnly.Parent.String())
	})

	t.Run("new input test", func(t *testing.T) {
		input, err := event.NewInput("todoCreated", map[string]string{"id": "1"})
		require.NoError(t, err)

		e := event.New(input, eventseq.NextPair(eventseq.Root, false, nil), "c", "s")
		assert.Equal(t, "todoCreated@e1", e.String())
		assert.JSONEq(t, `{"id":"1"}`, string(e.Args))
		assert.Equal(t, []eventseq.SeqNum{eventseq.New(1, 0, 0)}, event.Seqs([]*event.Event{e}))
	})
}
