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

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/backend/database"
	"github.com/yorkie-team/livesync/server/backend/pubsub"
)

// ErrSubscriptionDropped is returned by a live pull whose puller fell too
// far behind. The puller is expected to pull again from its cursor.
var ErrSubscriptionDropped = errors.Unavailable("subscription dropped: puller is too far behind")

// SendFunc sends one pull response to the puller.
type SendFunc func(*syncbackend.PullResponse) error

// puller tracks what has been sent to one pull stream.
type puller struct {
	be        *backend.Backend
	storeID   string
	backendID string
	send      SendFunc

	// after is the global number of the last event sent.
	after uint64
}

// Pull sends the history of the store after the cursor. When live is set it
// then keeps sending the changes of the store until the context is done.
//
// The epoch in the cursor metadata tells which rewrites the puller has
// already seen. If the history was rewritten at or before the cursor since
// then, the first response is a rebase carrying the new history.
func Pull(
	ctx context.Context,
	be *backend.Backend,
	storeID string,
	cursor *syncbackend.Cursor,
	live bool,
	send SendFunc,
) error {
	info, err := be.DB.FindOrCreateStoreInfo(ctx, storeID)
	if err != nil {
		return err
	}

	p := &puller{
		be:        be,
		storeID:   storeID,
		backendID: info.BackendID,
		send:      send,
	}

	var rebase *syncbackend.RebaseInfo
	if cursor != nil {
		md, err := DecodeSyncMetadata(cursor.Metadata)
		if err != nil {
			return err
		}
		if !cursor.Seq.IsGlobal() {
			return &errors.InvalidPullError{Cause: fmt.Errorf("cursor %s is not a global event", cursor.Seq)}
		}

		p.after = cursor.Seq.Global
		if from, ok := info.RewrittenSince(md.Epoch); ok && from <= p.after {
			rebase = &syncbackend.RebaseInfo{RollbackUntil: eventseq.New(from, 0, 0)}
			p.after = from - 1
		} else if p.after > info.Head {
			return &errors.InvalidPullError{Cause: fmt.Errorf("cursor %s is after head e%d", cursor.Seq, info.Head)}
		}
	}

	if err := p.sendBacklog(ctx, rebase, true); err != nil {
		return err
	}
	if !live {
		return nil
	}

	var sub *pubsub.Subscription
	if err := withStoreLock(ctx, be, storeID, func() error {
		if err := p.sendBacklog(ctx, nil, false); err != nil {
			return err
		}
		sub = be.PubSub.Subscribe(ctx, storeID)
		return nil
	}); err != nil {
		return err
	}
	defer be.PubSub.Unsubscribe(ctx, storeID, sub)

	be.Metrics.AddServerPullConnections(storeID)
	defer be.Metrics.RemoveServerPullConnections(storeID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				logging.From(ctx).Warnf("pull of %s dropped after e%d", storeID, p.after)
				return ErrSubscriptionDropped
			}
			if err := p.sendStoreEvent(e); err != nil {
				return err
			}
		}
	}
}

// sendBacklog pages through the stored events after the last sent one. The
// first page carries the given rebase. When force is set a page is sent even
// if there is nothing to send, so that the puller learns the backend id.
func (p *puller) sendBacklog(ctx context.Context, rebase *syncbackend.RebaseInfo, force bool) error {
	pageSize := p.be.Config.PullPageSize
	for {
		infos, err := p.be.DB.FindEventInfosAfter(ctx, p.storeID, p.after, pageSize)
		if err != nil {
			return err
		}

		hasMore := pageSize > 0 && len(infos) == pageSize
		if len(infos) > 0 || rebase != nil || force {
			if err := p.sendPage(infos, rebase, hasMore); err != nil {
				return err
			}
		}

		if !hasMore {
			return nil
		}
		rebase = nil
		force = false
	}
}

func (p *puller) sendStoreEvent(e pubsub.StoreEvent) error {
	if e.RewrittenFrom > 0 && e.RewrittenFrom <= p.after {
		p.after = e.RewrittenFrom - 1
		return p.sendPage(e.Events, &syncbackend.RebaseInfo{
			RollbackUntil: eventseq.New(e.RewrittenFrom, 0, 0),
		}, false)
	}

	var infos []*database.EventInfo
	for _, info := range e.Events {
		if info.Global > p.after {
			infos = append(infos, info)
		}
	}
	if len(infos) == 0 {
		return nil
	}
	return p.sendPage(infos, nil, false)
}

func (p *puller) sendPage(infos []*database.EventInfo, rebase *syncbackend.RebaseInfo, hasMore bool) error {
	resp := &syncbackend.PullResponse{
		PageInfo:  syncbackend.PageInfo{HasMore: hasMore},
		Rebase:    rebase,
		BackendID: p.backendID,
	}
	for _, info := range infos {
		resp.Batch = append(resp.Batch, syncbackend.Item{
			Event:    info.ToEvent(),
			Metadata: EncodeSyncMetadata(info.Epoch),
		})
	}

	if err := p.send(resp); err != nil {
		return err
	}

	if len(infos) > 0 {
		p.after = infos[len(infos)-1].Global
	}
	p.be.Metrics.AddServerPulledEvents(p.storeID, len(infos))
	return nil
}
