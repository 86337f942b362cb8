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

package database

import (
	"encoding/json"
	"time"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// EventInfo is a structure representing information of a confirmed event.
type EventInfo struct {
	StoreID string `bson:"store_id"`

	// Global is the global number of the event. Together with StoreID it
	// identifies the event.
	Global           uint64 `bson:"global"`
	RebaseGeneration uint32 `bson:"rebase_generation"`

	ParentGlobal           uint64 `bson:"parent_global"`
	ParentRebaseGeneration uint32 `bson:"parent_rebase_generation"`

	Name      string `bson:"name"`
	Args      []byte `bson:"args"`
	ClientID  string `bson:"client_id"`
	SessionID string `bson:"session_id"`

	// Epoch is the epoch of the store when the event was appended.
	Epoch int64 `bson:"epoch"`

	CreatedAt time.Time `bson:"created_at"`
}

// DeepCopy returns a deep copy of this event info.
func (i *EventInfo) DeepCopy() *EventInfo {
	if i == nil {
		return nil
	}

	clone := *i
	clone.Args = append([]byte(nil), i.Args...)
	return &clone
}

// NewEventInfo creates an event info from the given global event.
func NewEventInfo(storeID string, e *event.Event) *EventInfo {
	return &EventInfo{
		StoreID:                storeID,
		Global:                 e.Seq.Global,
		RebaseGeneration:       e.Seq.RebaseGeneration,
		ParentGlobal:           e.Parent.Global,
		ParentRebaseGeneration: e.Parent.RebaseGeneration,
		Name:                   e.Name,
		Args:                   append([]byte(nil), e.Args...),
		ClientID:               e.ClientID,
		SessionID:              e.SessionID,
	}
}

// ToEvent creates an event from this event info.
func (i *EventInfo) ToEvent() *event.Event {
	return &event.Event{
		Name:      i.Name,
		Args:      json.RawMessage(append([]byte(nil), i.Args...)),
		Seq:       eventseq.New(i.Global, 0, i.RebaseGeneration),
		Parent:    eventseq.New(i.ParentGlobal, 0, i.ParentRebaseGeneration),
		ClientID:  i.ClientID,
		SessionID: i.SessionID,
	}
}
