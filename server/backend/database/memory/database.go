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

// Package memory implements the database interface using in-memory database.
package memory

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/yorkie-team/livesync/server/backend/database"
)

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// FindOrCreateStoreInfo returns the store of the given id, creating an empty
// one if needed.
func (d *DB) FindOrCreateStoreInfo(_ context.Context, storeID string) (*database.StoreInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblStores, "id", storeID)
	if err != nil {
		return nil, fmt.Errorf("find store of %s: %w", storeID, err)
	}
	if raw != nil {
		return raw.(*database.StoreInfo).DeepCopy(), nil
	}

	now := gotime.Now()
	info := &database.StoreInfo{
		ID:        storeID,
		BackendID: uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := txn.Insert(tblStores, info); err != nil {
		return nil, fmt.Errorf("create store of %s: %w", storeID, err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindStoreInfo returns the store of the given id.
func (d *DB) FindStoreInfo(_ context.Context, storeID string) (*database.StoreInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblStores, "id", storeID)
	if err != nil {
		return nil, fmt.Errorf("find store of %s: %w", storeID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", storeID, database.ErrStoreNotFound)
	}

	return raw.(*database.StoreInfo).DeepCopy(), nil
}

// ListStoreInfos returns every store ordered by id.
func (d *DB) ListStoreInfos(_ context.Context) ([]*database.StoreInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.Get(tblStores, "id")
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	var infos []*database.StoreInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		infos = append(infos, raw.(*database.StoreInfo).DeepCopy())
	}
	return infos, nil
}

// AppendEventInfos appends the given events if the head of the store is
// still expectedHead.
func (d *DB) AppendEventInfos(
	_ context.Context,
	storeID string,
	expectedHead uint64,
	events []*database.EventInfo,
) (*database.StoreInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := findStore(txn, storeID)
	if err != nil {
		return nil, err
	}
	if info.Head != expectedHead {
		return nil, fmt.Errorf("head of %s is %d, not %d: %w", storeID, info.Head, expectedHead, database.ErrConflictOnUpdate)
	}

	now := gotime.Now()
	for _, e := range events {
		stored := e.DeepCopy()
		stored.StoreID = storeID
		stored.Epoch = info.Epoch
		stored.CreatedAt = now
		if err := txn.Insert(tblEvents, stored); err != nil {
			return nil, fmt.Errorf("insert event %d of %s: %w", e.Global, storeID, err)
		}
		info.Head = stored.Global
	}
	info.UpdatedAt = now

	if err := txn.Insert(tblStores, info); err != nil {
		return nil, fmt.Errorf("update store of %s: %w", storeID, err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// ReplaceEventInfosFrom replaces the events from the given global number on
// with the given ones and bumps the epoch of the store.
func (d *DB) ReplaceEventInfosFrom(
	_ context.Context,
	storeID string,
	from uint64,
	events []*database.EventInfo,
) (*database.StoreInfo, error) {
	txn := d.db.Txn(true)
	defer txn.Abort()

	info, err := findStore(txn, storeID)
	if err != nil {
		return nil, err
	}

	iterator, err := txn.LowerBound(tblEvents, "id", storeID, from)
	if err != nil {
		return nil, fmt.Errorf("find events of %s: %w", storeID, err)
	}
	var stale []*database.EventInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		e := raw.(*database.EventInfo)
		if e.StoreID != storeID {
			break
		}
		stale = append(stale, e)
	}
	for _, e := range stale {
		if err := txn.Delete(tblEvents, e); err != nil {
			return nil, fmt.Errorf("delete event %d of %s: %w", e.Global, storeID, err)
		}
	}

	head := uint64(0)
	if from > 0 {
		head = from - 1
	}
	if len(events) > 0 {
		head = events[len(events)-1].Global
	}

	now := gotime.Now()
	epoch := info.Rewrite(from, head, now)
	for _, e := range events {
		stored := e.DeepCopy()
		stored.StoreID = storeID
		stored.Epoch = epoch
		stored.CreatedAt = now
		if err := txn.Insert(tblEvents, stored); err != nil {
			return nil, fmt.Errorf("insert event %d of %s: %w", e.Global, storeID, err)
		}
	}

	if err := txn.Insert(tblStores, info); err != nil {
		return nil, fmt.Errorf("update store of %s: %w", storeID, err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// FindEventInfosAfter returns at most limit events whose global number is
// greater than after.
func (d *DB) FindEventInfosAfter(
	_ context.Context,
	storeID string,
	after uint64,
	limit int,
) ([]*database.EventInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iterator, err := txn.LowerBound(tblEvents, "id", storeID, after+1)
	if err != nil {
		return nil, fmt.Errorf("find events of %s: %w", storeID, err)
	}

	var infos []*database.EventInfo
	for raw := iterator.Next(); raw != nil; raw = iterator.Next() {
		info := raw.(*database.EventInfo)
		if info.StoreID != storeID {
			break
		}
		infos = append(infos, info.DeepCopy())
		if limit > 0 && len(infos) >= limit {
			break
		}
	}
	return infos, nil
}

func findStore(txn *memdb.Txn, storeID string) (*database.StoreInfo, error) {
	raw, err := txn.First(tblStores, "id", storeID)
	if err != nil {
		return nil, fmt.Errorf("find store of %s: %w", storeID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%s: %w", storeID, database.ErrStoreNotFound)
	}
	return raw.(*database.StoreInfo).DeepCopy(), nil
}
