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

// Package stores implements the operations of the sync server on stores:
// pushing confirmed events, pulling the history and rewriting it.
package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/backend/database"
)

// SyncMetadata is the metadata the server attaches to every event it
// confirms. A puller sends it back in its cursor.
type SyncMetadata struct {
	// Epoch is the epoch of the store when the event was confirmed.
	Epoch int64 `json:"epoch"`
}

// EncodeSyncMetadata returns the JSON encoding of the metadata of the
// given epoch.
func EncodeSyncMetadata(epoch int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"epoch":%d}`, epoch))
}

// DecodeSyncMetadata parses the metadata of a cursor. Empty metadata is the
// zero epoch.
func DecodeSyncMetadata(md json.RawMessage) (SyncMetadata, error) {
	var decoded SyncMetadata
	if len(md) == 0 || string(md) == "null" {
		return decoded, nil
	}
	if err := json.Unmarshal(md, &decoded); err != nil {
		return decoded, &errors.InvalidPullError{Cause: fmt.Errorf("decode cursor metadata: %w", err)}
	}
	return decoded, nil
}

// lockKey returns the key of the lock serializing the changes of a store.
func lockKey(storeID string) string {
	return "store-" + storeID
}

// withStoreLock runs f while holding the lock of the store.
func withStoreLock(ctx context.Context, be *backend.Backend, storeID string, f func() error) error {
	key := lockKey(storeID)
	if err := be.Lockers.Lock(ctx, key); err != nil {
		return err
	}
	defer func() {
		if err := be.Lockers.Unlock(key); err != nil {
			panic(fmt.Sprintf("unlock %s: %v", key, err))
		}
	}()

	return f()
}

// List returns every store of the server.
func List(ctx context.Context, be *backend.Backend) ([]*database.StoreInfo, error) {
	return be.DB.ListStoreInfos(ctx)
}

// Events returns at most limit events of the store after the given global
// number.
func Events(
	ctx context.Context,
	be *backend.Backend,
	storeID string,
	after uint64,
	limit int,
) ([]*database.EventInfo, error) {
	if _, err := be.DB.FindStoreInfo(ctx, storeID); err != nil {
		return nil, err
	}
	return be.DB.FindEventInfosAfter(ctx, storeID, after, limit)
}
