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

package leader

import (
	"context"
	"encoding/json"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/eventlog"
)

// backendPushLoop pushes the queued events to the backend. A rejected push
// stops the loop until a rebase resets the queue; any other failure retries
// the same batch once the backend is reachable.
func (l *Leader) backendPushLoop(ctx context.Context) {
	logger := logging.From(ctx)
	conn := l.backend.Connectivity()

	for {
		if err := conn.Wait(ctx, true); err != nil {
			return
		}

		batch, gen, err := l.backendQueue.Peek(ctx, l.conf.BackendPushBatchSize)
		if err != nil {
			return
		}

		metadata, err := l.backend.Push(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			var pushErr *errors.InvalidPushError
			if errors.As(err, &pushErr) {
				logger.Infof("push of %d events rejected, waiting for a rebase: %v", len(batch), err)
				if err := l.backendQueue.WaitGeneration(ctx, gen); err != nil {
					return
				}
				continue
			}

			logger.Warnf("push %d events: %v", len(batch), err)
			if !l.sleep(ctx) {
				return
			}
			continue
		}

		l.backendQueue.Ack(gen, len(batch))
		l.metrics.AddBackendPushedEvents(l.conf.StoreID, len(batch))

		if err := l.recordSyncMetadata(ctx, batch, metadata); err != nil {
			if ctx.Err() == nil {
				l.fail(err)
			}
			return
		}
	}
}

// recordSyncMetadata stores the metadata the backend returned for the
// pushed events. Events rebased away in the meantime are skipped. The log
// is written under the pull gate like every other mutation of it.
func (l *Leader) recordSyncMetadata(ctx context.Context, batch []*event.Event, metadata []json.RawMessage) error {
	if len(metadata) == 0 {
		return nil
	}

	if err := l.pullGate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.pullGate.Release(1)

	txn, err := l.log.Begin(ctx)
	if err != nil {
		return err
	}
	defer txn.Abort()

	for i, e := range batch {
		if i >= len(metadata) {
			break
		}
		if err := txn.SetSyncMetadata(e.Seq, metadata[i]); err != nil {
			if errors.Is(err, eventlog.ErrEventNotFound) {
				continue
			}
			return err
		}
	}
	return txn.Commit()
}
