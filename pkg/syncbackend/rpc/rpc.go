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

// Package rpc provides a sync backend talking to a remote sync server over
// gRPC.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcconnectivity "google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	grpcmetadata "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yorkie-team/livesync/api/converter"
	"github.com/yorkie-team/livesync/api/types"
	v1 "github.com/yorkie-team/livesync/api/v1"
	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/version"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
)

// Option configures Backend.
type Option func(*Options)

// Options configures how we set up the backend.
type Options struct {
	// Token is the bearer token sent with every request.
	Token string

	// CertFile is the certificate of the server. An empty file dials
	// without TLS.
	CertFile string

	// ServerNameOverride overrides the server name checked by TLS.
	ServerNameOverride string

	// UserAgent identifies the leader to the server.
	UserAgent string
}

// WithToken configures the token of the backend.
func WithToken(token string) Option {
	return func(o *Options) { o.Token = token }
}

// WithCertFile configures the certificate of the server.
func WithCertFile(certFile string) Option {
	return func(o *Options) { o.CertFile = certFile }
}

// WithServerNameOverride configures the server name checked by TLS.
func WithServerNameOverride(name string) Option {
	return func(o *Options) { o.ServerNameOverride = name }
}

// WithUserAgent configures the user agent of the backend.
func WithUserAgent(userAgent string) Option {
	return func(o *Options) { o.UserAgent = userAgent }
}

// Backend is a sync backend for one store of a remote sync server.
type Backend struct {
	conn    *grpc.ClientConn
	client  *v1.SyncServiceClient
	storeID string
	options Options
	logger  logging.Logger

	connectivity *syncbackend.Connectivity
	cancel       context.CancelFunc
	watchDone    chan struct{}
	closeOnce    sync.Once
}

// Dial creates a sync backend for the given store of the server at rpcAddr.
func Dial(rpcAddr, storeID string, opts ...Option) (*Backend, error) {
	options := Options{
		UserAgent: "livesync-go/" + version.Version,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(v1.CodecName)),
	}
	if options.CertFile != "" {
		creds, err := credentials.NewClientTLSFromFile(options.CertFile, options.ServerNameOverride)
		if err != nil {
			return nil, fmt.Errorf("load cert file: %w", err)
		}
		dialOpts[0] = grpc.WithTransportCredentials(creds)
	}

	conn, err := grpc.Dial(rpcAddr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Backend{
		conn:         conn,
		client:       v1.NewSyncServiceClient(conn),
		storeID:      storeID,
		options:      options,
		logger:       logging.New("rpc-backend", logging.NewField("store", storeID)),
		connectivity: syncbackend.NewConnectivity(false),
		cancel:       cancel,
		watchDone:    make(chan struct{}),
	}
	go b.watchConnectivity(ctx)

	return b, nil
}

// watchConnectivity follows the state of the channel. An idle channel is
// asked to connect so that the leader can start pulling.
func (b *Backend) watchConnectivity(ctx context.Context) {
	defer close(b.watchDone)

	for {
		state := b.conn.GetState()
		if state == grpcconnectivity.Idle {
			b.conn.Connect()
		}
		b.connectivity.Set(state == grpcconnectivity.Ready)

		if !b.conn.WaitForStateChange(ctx, state) {
			return
		}
		b.logger.Debugf("connection state changed from %s to %s", state, b.conn.GetState())
	}
}

// Connectivity returns the observable connection state.
func (b *Backend) Connectivity() *syncbackend.Connectivity {
	return b.connectivity
}

// Push appends the batch to the store.
func (b *Backend) Push(ctx context.Context, batch []*event.Event) ([]json.RawMessage, error) {
	var trailer grpcmetadata.MD
	resp, err := b.client.Push(b.withMetadata(ctx), &types.PushRequest{
		StoreID: b.storeID,
		Events:  converter.ToEvents(batch),
	}, grpc.Trailer(&trailer))
	if err != nil {
		return nil, toPushError(err, trailer)
	}
	return resp.Metadata, nil
}

// Pull streams the history after the cursor.
func (b *Backend) Pull(
	ctx context.Context,
	cursor *syncbackend.Cursor,
	opts syncbackend.PullOptions,
) (syncbackend.PullStream, error) {
	pullCtx, cancel := context.WithCancel(b.withMetadata(ctx))
	stream, err := b.client.Pull(pullCtx, &types.PullRequest{
		StoreID: b.storeID,
		Cursor:  converter.ToCursor(cursor),
		Live:    opts.Live,
	})
	if err != nil {
		cancel()
		return nil, toPullError(err)
	}

	return &pullStream{stream: stream, cancel: cancel}, nil
}

// ListStores returns the summaries of the stores of the server.
func (b *Backend) ListStores(ctx context.Context) ([]types.StoreSummary, error) {
	resp, err := b.client.ListStores(b.withMetadata(ctx), &types.ListStoresRequest{})
	if err != nil {
		return nil, toPullError(err)
	}
	return resp.Stores, nil
}

// Close closes the connection to the server.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		<-b.watchDone
		b.connectivity.Set(false)
		if closeErr := b.conn.Close(); closeErr != nil {
			err = fmt.Errorf("close connection: %w", closeErr)
		}
	})
	return err
}

func (b *Backend) withMetadata(ctx context.Context) context.Context {
	pairs := []string{types.UserAgentKey, b.options.UserAgent}
	if b.options.Token != "" {
		pairs = append(pairs, types.AuthorizationKey, "Bearer "+b.options.Token)
	}
	return grpcmetadata.AppendToOutgoingContext(ctx, pairs...)
}

type pullStream struct {
	stream v1.PullClientStream
	cancel context.CancelFunc
}

// Recv returns the next response, io.EOF once a non-live pull is complete.
func (s *pullStream) Recv() (*syncbackend.PullResponse, error) {
	resp, err := s.stream.Recv()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, toPullError(err)
	}
	return converter.FromPullResponse(resp)
}

// Close stops the stream.
func (s *pullStream) Close() error {
	s.cancel()
	return nil
}

// toPushError converts the status error of a push. A rejected batch
// carries the reason of the rejection in the trailer.
func toPushError(err error, trailer grpcmetadata.MD) error {
	if reason, ok := converter.FromLeaderAheadMD(trailer); ok {
		return &errors.InvalidPushError{Reason: reason}
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return &errors.InvalidPushError{Reason: errors.UnexpectedReason{Cause: errors.New(st.Message())}}
	}
	return fromStatus(st)
}

func toPullError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return &errors.InvalidPullError{Cause: errors.New(st.Message())}
	}
	return fromStatus(st)
}

func fromStatus(st *status.Status) error {
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return &errors.IsOfflineError{}
	case codes.Canceled:
		return context.Canceled
	case codes.Unauthenticated:
		return errors.Unauthenticated(st.Message())
	case codes.NotFound:
		return errors.NotFound(st.Message())
	}
	return errors.Unexpectedf("rpc: %s: %s", st.Code(), st.Message())
}
