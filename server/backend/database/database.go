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

// Package database provides the database interface of the sync server.
package database

import (
	"context"

	"github.com/yorkie-team/livesync/pkg/errors"
)

var (
	// ErrStoreNotFound is returned when the store could not be found.
	ErrStoreNotFound = errors.NotFound("store not found")

	// ErrConflictOnUpdate is returned when the head of a store moved while
	// events were appended to it.
	ErrConflictOnUpdate = errors.FailedPrecond("conflict on update")
)

// Database represents database which reads or saves the events of stores.
type Database interface {
	// Close all resources of this database.
	Close() error

	// FindOrCreateStoreInfo returns the store of the given id, creating an
	// empty one if needed.
	FindOrCreateStoreInfo(ctx context.Context, storeID string) (*StoreInfo, error)

	// FindStoreInfo returns the store of the given id.
	FindStoreInfo(ctx context.Context, storeID string) (*StoreInfo, error)

	// ListStoreInfos returns every store ordered by id.
	ListStoreInfos(ctx context.Context) ([]*StoreInfo, error)

	// AppendEventInfos appends the given events if the head of the store is
	// still expectedHead. It returns ErrConflictOnUpdate otherwise.
	AppendEventInfos(
		ctx context.Context,
		storeID string,
		expectedHead uint64,
		events []*EventInfo,
	) (*StoreInfo, error)

	// ReplaceEventInfosFrom replaces the events from the given global number
	// on with the given ones and bumps the epoch of the store.
	ReplaceEventInfosFrom(
		ctx context.Context,
		storeID string,
		from uint64,
		events []*EventInfo,
	) (*StoreInfo, error)

	// FindEventInfosAfter returns at most limit events whose global number
	// is greater than after, in ascending order.
	FindEventInfosAfter(
		ctx context.Context,
		storeID string,
		after uint64,
		limit int,
	) ([]*EventInfo, error)
}
