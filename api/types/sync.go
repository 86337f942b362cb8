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

package types

import (
	"encoding/json"
	"time"
)

// PushRequest appends a batch of global events to a store.
type PushRequest struct {
	StoreID string  `json:"store_id" validate:"required,store_id,max=128"`
	Events  []Event `json:"events" validate:"required,min=1,max=100,dive"`
}

// Validate validates the request.
func (r *PushRequest) Validate() error {
	return validateStruct(r)
}

// PushResponse carries the metadata of each pushed event.
type PushResponse struct {
	Metadata []json.RawMessage `json:"metadata"`
}

// PullRequest streams the history of a store after a cursor. A nil cursor
// starts from the beginning.
type PullRequest struct {
	StoreID string  `json:"store_id" validate:"required,store_id,max=128"`
	Cursor  *Cursor `json:"cursor,omitempty" validate:"omitempty"`
	Live    bool    `json:"live,omitempty"`
}

// Validate validates the request.
func (r *PullRequest) Validate() error {
	return validateStruct(r)
}

// PullResponse is one page of the history of a store. When RollbackUntil is
// set the server rewrote its history from there on and Batch is the new
// history.
type PullResponse struct {
	Batch         []Item `json:"batch,omitempty"`
	HasMore       bool   `json:"has_more,omitempty"`
	RollbackUntil string `json:"rollback_until,omitempty"`
	BackendID     string `json:"backend_id"`
}

// ListStoresRequest lists the stores of the server.
type ListStoresRequest struct{}

// StoreSummary describes one store.
type StoreSummary struct {
	ID        string    `json:"id"`
	BackendID string    `json:"backend_id"`
	Head      uint64    `json:"head"`
	Epoch     int64     `json:"epoch"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListStoresResponse carries the summaries of the stores.
type ListStoresResponse struct {
	Stores []StoreSummary `json:"stores"`
}
