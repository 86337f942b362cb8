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

package rpc

import (
	"context"

	"github.com/yorkie-team/livesync/api/converter"
	"github.com/yorkie-team/livesync/api/types"
	v1 "github.com/yorkie-team/livesync/api/v1"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/rpc/auth"
	"github.com/yorkie-team/livesync/server/stores"
)

type syncServer struct {
	serviceCtx context.Context
	backend    *backend.Backend
}

// newSyncServer creates a new instance of syncServer.
func newSyncServer(serviceCtx context.Context, be *backend.Backend) *syncServer {
	return &syncServer{
		serviceCtx: serviceCtx,
		backend:    be,
	}
}

// Push appends the events of the request to the store.
func (s *syncServer) Push(
	ctx context.Context,
	req *types.PushRequest,
) (*types.PushResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := auth.VerifyAccess(ctx, req.StoreID); err != nil {
		return nil, err
	}

	events, err := converter.FromEvents(req.Events)
	if err != nil {
		return nil, err
	}

	metadata, err := stores.Push(ctx, s.backend, req.StoreID, events)
	if err != nil {
		return nil, err
	}

	return &types.PushResponse{Metadata: metadata}, nil
}

// Pull streams the history of the store after the cursor of the request.
func (s *syncServer) Pull(req *types.PullRequest, stream v1.PullServerStream) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := auth.VerifyAccess(stream.Context(), req.StoreID); err != nil {
		return err
	}

	cursor, err := converter.FromCursor(req.Cursor)
	if err != nil {
		return err
	}

	// The stream ends either when the puller goes away or when the server
	// shuts down.
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	go func() {
		select {
		case <-s.serviceCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	return stores.Pull(ctx, s.backend, req.StoreID, cursor, req.Live, func(resp *syncbackend.PullResponse) error {
		return stream.Send(converter.ToPullResponse(resp))
	})
}

// ListStores returns the summaries of the stores the caller can access.
func (s *syncServer) ListStores(
	ctx context.Context,
	_ *types.ListStoresRequest,
) (*types.ListStoresResponse, error) {
	infos, err := stores.List(ctx, s.backend)
	if err != nil {
		return nil, err
	}

	resp := &types.ListStoresResponse{}
	for _, info := range infos {
		if auth.VerifyAccess(ctx, info.ID) != nil {
			continue
		}
		resp.Stores = append(resp.Stores, info.ToStoreSummary())
	}
	return resp, nil
}
