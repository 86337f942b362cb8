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
	"encoding/json"
	"fmt"
	gotime "time"

	"go.uber.org/zap"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/backend/database"
	"github.com/yorkie-team/livesync/server/backend/pubsub"
)

// Push appends the given events to the store and returns the metadata of
// each. The batch must start right after the head of the store; otherwise
// the pusher is behind and gets an errors.InvalidPushError with the
// LeaderAhead reason.
func Push(
	ctx context.Context,
	be *backend.Backend,
	storeID string,
	events []*event.Event,
) ([]json.RawMessage, error) {
	start := gotime.Now()
	defer func() {
		be.Metrics.ObserveServerPushResponseSeconds(gotime.Since(start).Seconds())
	}()

	if err := validateBatch(events, be.Config.MaxPushBatchSize); err != nil {
		return nil, err
	}

	var metadata []json.RawMessage
	err := withStoreLock(ctx, be, storeID, func() error {
		info, err := be.DB.FindOrCreateStoreInfo(ctx, storeID)
		if err != nil {
			return err
		}

		first := events[0]
		if first.Parent.Global != info.Head || first.Seq.Global != info.Head+1 {
			return errors.NewLeaderAheadError(eventseq.New(info.Head+1, 0, 0), first.Seq)
		}

		infos := make([]*database.EventInfo, 0, len(events))
		for _, e := range events {
			infos = append(infos, database.NewEventInfo(storeID, e))
		}
		if info, err = be.DB.AppendEventInfos(ctx, storeID, info.Head, infos); err != nil {
			return err
		}

		for _, i := range infos {
			i.Epoch = info.Epoch
			metadata = append(metadata, EncodeSyncMetadata(info.Epoch))
		}
		be.PubSub.Publish(ctx, pubsub.StoreEvent{
			StoreID: storeID,
			Events:  infos,
			Epoch:   info.Epoch,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	be.Metrics.AddServerPushedEvents(storeID, len(events))
	if logging.Enabled(zap.DebugLevel) {
		logging.From(ctx).Debugf("PUSH: %s %s..%s", storeID, events[0].Seq, events[len(events)-1].Seq)
	}
	return metadata, nil
}

// validateBatch checks that the batch is a non-empty chain of global
// events.
func validateBatch(events []*event.Event, maxSize int) error {
	if len(events) == 0 {
		return &errors.InvalidPushError{Reason: errors.UnexpectedReason{Cause: fmt.Errorf("empty batch")}}
	}
	if maxSize > 0 && len(events) > maxSize {
		return &errors.InvalidPushError{Reason: errors.UnexpectedReason{
			Cause: fmt.Errorf("batch of %d events exceeds %d", len(events), maxSize),
		}}
	}

	for i, e := range events {
		if !e.Seq.IsGlobal() || !e.Parent.IsGlobal() {
			return &errors.InvalidPushError{Reason: errors.UnexpectedReason{
				Cause: fmt.Errorf("%s is not a global event", e),
			}}
		}
		if i == 0 {
			continue
		}

		prev := events[i-1]
		if e.Seq.Global != prev.Seq.Global+1 || e.Parent.Global != prev.Seq.Global {
			return &errors.InvalidPushError{Reason: errors.UnexpectedReason{
				Cause: fmt.Errorf("%s does not follow %s", e, prev),
			}}
		}
	}
	return nil
}
