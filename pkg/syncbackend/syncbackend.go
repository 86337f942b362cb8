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

// Package syncbackend defines the contract between a leader and the remote
// authority that orders global events.
package syncbackend

import (
	"context"
	"encoding/json"

	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// MaxPushBatchSize is the largest batch a backend accepts in one Push.
const MaxPushBatchSize = 100

// Cursor is a position in the backend history.
type Cursor struct {
	Seq      eventseq.SeqNum
	Metadata json.RawMessage
}

// PullOptions configures Pull.
type PullOptions struct {
	// Live keeps the stream open after the history has been paged through
	// and yields new confirmations as they occur.
	Live bool
}

// Item is a confirmed event together with the metadata the backend keeps for
// it.
type Item struct {
	Event    *event.Event
	Metadata json.RawMessage
}

// PageInfo tells whether more history is immediately available.
type PageInfo struct {
	HasMore bool
}

// RebaseInfo signals that the backend rewrote its history from
// RollbackUntil on. The batch of the same response is the new history.
type RebaseInfo struct {
	RollbackUntil eventseq.SeqNum
}

// PullResponse is one page of a pull stream.
type PullResponse struct {
	Batch     []Item
	PageInfo  PageInfo
	Rebase    *RebaseInfo
	BackendID string
}

// PullStream is a stream of pull responses. Recv returns io.EOF once a
// non-live pull reached the end of the history.
type PullStream interface {
	Recv() (*PullResponse, error)
	Close() error
}

// Backend is the remote authority of a store.
type Backend interface {
	// Pull streams confirmed events after the given cursor. A nil cursor
	// starts from the beginning.
	Pull(ctx context.Context, cursor *Cursor, opts PullOptions) (PullStream, error)

	// Push appends the given global events, ascending and chained on the
	// backend head. It returns the metadata of each event, or an
	// errors.InvalidPushError when the batch is not on the head.
	Push(ctx context.Context, batch []*event.Event) ([]json.RawMessage, error)

	// Connectivity returns the observable connection state.
	Connectivity() *Connectivity

	// Close releases the backend.
	Close() error
}
