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

package stores

import (
	"context"
	"fmt"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/backend/database"
	"github.com/yorkie-team/livesync/server/backend/pubsub"
)

// Rewrite replaces the history of the store from the given global number on
// with the given events. Live pullers that already received a replaced event
// get a rebase, and so do pullers reconnecting with an older epoch.
func Rewrite(
	ctx context.Context,
	be *backend.Backend,
	storeID string,
	from uint64,
	events []*event.Event,
) (*database.StoreInfo, error) {
	if from == 0 {
		return nil, errors.InvalidArgument("rewrite must start after the root")
	}
	if len(events) > 0 {
		if err := validateBatch(events, 0); err != nil {
			return nil, err
		}
		if events[0].Seq.Global != from || events[0].Parent.Global != from-1 {
			return nil, errors.InvalidArgument(fmt.Sprintf("rewrite from %d cannot start with %s", from, events[0]))
		}
	}

	var info *database.StoreInfo
	err := withStoreLock(ctx, be, storeID, func() error {
		current, err := be.DB.FindOrCreateStoreInfo(ctx, storeID)
		if err != nil {
			return err
		}
		if from > current.Head+1 {
			return errors.InvalidArgument(fmt.Sprintf("rewrite from %d is after head %d", from, current.Head))
		}

		infos := make([]*database.EventInfo, 0, len(events))
		for _, e := range events {
			infos = append(infos, database.NewEventInfo(storeID, e))
		}
		if info, err = be.DB.ReplaceEventInfosFrom(ctx, storeID, from, infos); err != nil {
			return err
		}

		for _, i := range infos {
			i.Epoch = info.Epoch
		}
		be.PubSub.Publish(ctx, pubsub.StoreEvent{
			StoreID:       storeID,
			Events:        infos,
			RewrittenFrom: from,
			Epoch:         info.Epoch,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}
