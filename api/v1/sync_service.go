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

// Package v1 provides the gRPC service between leaders and the sync server.
// The messages are the structs of api/types encoded with Codec.
package v1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/yorkie-team/livesync/api/types"
)

// ServiceName is the full name of the sync service.
const ServiceName = "livesync.v1.SyncService"

// Below are the full names of the methods of the sync service.
const (
	PushMethod       = "/" + ServiceName + "/Push"
	PullMethod       = "/" + ServiceName + "/Pull"
	ListStoresMethod = "/" + ServiceName + "/ListStores"
)

// SyncServiceServer is the server API of the sync service.
type SyncServiceServer interface {
	// Push appends a batch of global events to a store.
	Push(context.Context, *types.PushRequest) (*types.PushResponse, error)

	// Pull streams the history of a store.
	Pull(*types.PullRequest, PullServerStream) error

	// ListStores lists the stores of the server.
	ListStores(context.Context, *types.ListStoresRequest) (*types.ListStoresResponse, error)
}

// PullServerStream is the server side of a pull stream.
type PullServerStream interface {
	Send(*types.PullResponse) error
	grpc.ServerStream
}

// RegisterSyncServiceServer registers the sync service on the given server.
func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&syncServiceDesc, srv)
}

var syncServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
		{MethodName: "ListStores", Handler: listStoresHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Pull", Handler: pullHandler, ServerStreams: true},
	},
	Metadata: "livesync/v1/sync_service",
}

func pushHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(types.PushRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).Push(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PushMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncServiceServer).Push(ctx, req.(*types.PushRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listStoresHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(types.ListStoresRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncServiceServer).ListStores(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListStoresMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncServiceServer).ListStores(ctx, req.(*types.ListStoresRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pullHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(types.PullRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SyncServiceServer).Pull(in, &pullServerStream{stream})
}

type pullServerStream struct {
	grpc.ServerStream
}

func (s *pullServerStream) Send(resp *types.PullResponse) error {
	return s.ServerStream.SendMsg(resp)
}

// SyncServiceClient is the client API of the sync service.
type SyncServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSyncServiceClient creates a client of the sync service over the given
// connection. The connection must use Codec.
func NewSyncServiceClient(cc grpc.ClientConnInterface) *SyncServiceClient {
	return &SyncServiceClient{cc: cc}
}

// Push appends a batch of global events to a store.
func (c *SyncServiceClient) Push(
	ctx context.Context,
	in *types.PushRequest,
	opts ...grpc.CallOption,
) (*types.PushResponse, error) {
	out := new(types.PushResponse)
	if err := c.cc.Invoke(ctx, PushMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStores lists the stores of the server.
func (c *SyncServiceClient) ListStores(
	ctx context.Context,
	in *types.ListStoresRequest,
	opts ...grpc.CallOption,
) (*types.ListStoresResponse, error) {
	out := new(types.ListStoresResponse)
	if err := c.cc.Invoke(ctx, ListStoresMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// PullClientStream is the client side of a pull stream.
type PullClientStream interface {
	Recv() (*types.PullResponse, error)
	grpc.ClientStream
}

// Pull streams the history of a store.
func (c *SyncServiceClient) Pull(
	ctx context.Context,
	in *types.PullRequest,
	opts ...grpc.CallOption,
) (PullClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &syncServiceDesc.Streams[0], PullMethod, opts...)
	if err != nil {
		return nil, err
	}

	x := &pullClientStream{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type pullClientStream struct {
	grpc.ClientStream
}

func (x *pullClientStream) Recv() (*types.PullResponse, error) {
	m := new(types.PullResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
