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

// Package types provides the messages exchanged between leaders and the sync
// server.
package types

import "encoding/json"

// Event is the wire form of a global event.
type Event struct {
	Name      string          `json:"name" validate:"required"`
	Args      json.RawMessage `json:"args,omitempty"`
	Seq       string          `json:"seq" validate:"required,global_seqnum"`
	Parent    string          `json:"parent" validate:"required,global_seqnum"`
	ClientID  string          `json:"client_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

// Item is a confirmed event with the metadata the server keeps for it.
type Item struct {
	Event    Event           `json:"event"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Cursor is the position a pull starts after.
type Cursor struct {
	Seq      string          `json:"seq" validate:"required,global_seqnum"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}
