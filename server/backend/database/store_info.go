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
	"time"

	"github.com/yorkie-team/livesync/api/types"
)

// Rewrite records a history rewrite of a store.
type Rewrite struct {
	// Epoch is the epoch the rewrite moved the store to.
	Epoch int64 `bson:"epoch"`

	// From is the first global number the rewrite replaced.
	From uint64 `bson:"from"`
}

// StoreInfo is a structure representing information of a store.
type StoreInfo struct {
	// ID is the unique id of the store.
	ID string `bson:"_id"`

	// BackendID identifies this instance of the history. A client that
	// synced with another instance must not push to this one.
	BackendID string `bson:"backend_id"`

	// Head is the global number of the last event.
	Head uint64 `bson:"head"`

	// Epoch is bumped every time the history is rewritten.
	Epoch int64 `bson:"epoch"`

	// Rewrites is the history of rewrites, oldest first.
	Rewrites []Rewrite `bson:"rewrites"`

	// CreatedAt is the time when the store is created.
	CreatedAt time.Time `bson:"created_at"`

	// UpdatedAt is the time when events were last appended.
	UpdatedAt time.Time `bson:"updated_at"`
}

// DeepCopy returns a deep copy of this store info.
func (i *StoreInfo) DeepCopy() *StoreInfo {
	if i == nil {
		return nil
	}

	clone := *i
	clone.Rewrites = append([]Rewrite(nil), i.Rewrites...)
	return &clone
}

// RewrittenSince returns the smallest global number rewritten after the
// given epoch, and whether there is any.
func (i *StoreInfo) RewrittenSince(epoch int64) (uint64, bool) {
	var from uint64
	found := false
	for _, r := range i.Rewrites {
		if r.Epoch <= epoch {
			continue
		}
		if !found || r.From < from {
			from = r.From
			found = true
		}
	}
	return from, found
}

// Rewrite records a rewrite from the given global number and returns the
// new epoch.
func (i *StoreInfo) Rewrite(from uint64, head uint64, now time.Time) int64 {
	i.Epoch++
	i.Rewrites = append(i.Rewrites, Rewrite{Epoch: i.Epoch, From: from})
	i.Head = head
	i.UpdatedAt = now
	return i.Epoch
}

// ToStoreSummary converts this store info to the summary sent to clients.
func (i *StoreInfo) ToStoreSummary() types.StoreSummary {
	return types.StoreSummary{
		ID:        i.ID,
		BackendID: i.BackendID,
		Head:      i.Head,
		Epoch:     i.Epoch,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}
