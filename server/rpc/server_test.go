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

package rpc_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcmetadata "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yorkie-team/livesync/api/converter"
	"github.com/yorkie-team/livesync/api/types"
	v1 "github.com/yorkie-team/livesync/api/v1"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/test/helper"
)

const (
	testRPCPort     = 21201
	testAuthRPCPort = 21202
)

func dial(t *testing.T, port int) *grpc.ClientConn {
	conn, err := grpc.Dial(
		helper.RPCAddr(port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(v1.CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, conn.Close()) })
	return conn
}

func pullAll(t *testing.T, client *v1.SyncServiceClient, ctx context.Context, req *types.PullRequest) []*types.PullResponse {
	stream, err := client.Pull(ctx, req)
	require.NoError(t, err)

	var responses []*types.PullResponse
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return responses
		}
		require.NoError(t, err)
		responses = append(responses, resp)
	}
}

func TestSyncServer(t *testing.T) {
	server, _ := helper.StartServer(t, testRPCPort)
	conn := dial(t, testRPCPort)
	client := v1.NewSyncServiceClient(conn)
	ctx := context.Background()

	t.Run("push and pull test", func(t *testing.T) {
		resp, err := client.Push(ctx, &types.PushRequest{
			StoreID: "push-pull",
			Events:  converter.ToEvents(helper.GlobalTodos(0, 3, "alice")),
		})
		require.NoError(t, err)
		require.Len(t, resp.Metadata, 3)
		assert.JSONEq(t, `{"epoch":0}`, string(resp.Metadata[0]))

		responses := pullAll(t, client, ctx, &types.PullRequest{StoreID: "push-pull"})
		require.Len(t, responses, 2)
		assert.True(t, responses[0].HasMore)
		assert.NotEmpty(t, responses[0].BackendID)

		var seqs []string
		for _, r := range responses {
			for _, item := range r.Batch {
				seqs = append(seqs, item.Event.Seq)
			}
		}
		assert.Equal(t, []string{"e1", "e2", "e3"}, seqs)

		responses = pullAll(t, client, ctx, &types.PullRequest{
			StoreID: "push-pull",
			Cursor:  &types.Cursor{Seq: "e2", Metadata: resp.Metadata[1]},
		})
		require.Len(t, responses, 1)
		require.Len(t, responses[0].Batch, 1)
		assert.Equal(t, "e3", responses[0].Batch[0].Event.Seq)
	})

	t.Run("rejected push carries the reason in the trailer test", func(t *testing.T) {
		_, err := client.Push(ctx, &types.PushRequest{
			StoreID: "rejected",
			Events:  converter.ToEvents(helper.GlobalTodos(0, 2, "alice")),
		})
		require.NoError(t, err)

		var trailer grpcmetadata.MD
		_, err = client.Push(ctx, &types.PushRequest{
			StoreID: "rejected",
			Events:  converter.ToEvents(helper.GlobalTodos(0, 1, "bob")),
		}, grpc.Trailer(&trailer))
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))

		reason, ok := converter.FromLeaderAheadMD(trailer)
		require.True(t, ok)
		assert.Equal(t, eventseq.MustFromString("e3"), reason.MinimumExpectedID)
		assert.Equal(t, eventseq.MustFromString("e1"), reason.ProvidedID)
	})

	t.Run("invalid request test", func(t *testing.T) {
		_, err := client.Push(ctx, &types.PushRequest{StoreID: "invalid"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = client.Push(ctx, &types.PushRequest{
			StoreID: "invalid/store",
			Events:  converter.ToEvents(helper.GlobalTodos(0, 1, "alice")),
		})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		stream, err := client.Pull(ctx, &types.PullRequest{
			StoreID: "invalid",
			Cursor:  &types.Cursor{Seq: "e1+1"},
		})
		require.NoError(t, err)
		_, err = stream.Recv()
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("list stores test", func(t *testing.T) {
		resp, err := client.ListStores(ctx, &types.ListStoresRequest{})
		require.NoError(t, err)

		heads := make(map[string]uint64)
		for _, store := range resp.Stores {
			heads[store.ID] = store.Head
		}
		assert.Equal(t, uint64(3), heads["push-pull"])
		assert.Equal(t, uint64(2), heads["rejected"])
	})

	t.Run("health test", func(t *testing.T) {
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		require.NoError(t, err)
		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

		rec := httptest.NewRecorder()
		server.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthentication(t *testing.T) {
	server, _ := helper.StartAuthServer(t, testAuthRPCPort)
	client := v1.NewSyncServiceClient(dial(t, testAuthRPCPort))

	withToken := func(token string) context.Context {
		return grpcmetadata.AppendToOutgoingContext(context.Background(), types.AuthorizationKey, "Bearer "+token)
	}
	push := func(ctx context.Context, storeID string) error {
		_, err := client.Push(ctx, &types.PushRequest{
			StoreID: storeID,
			Events:  converter.ToEvents(helper.GlobalTodos(0, 1, "alice")),
		})
		return err
	}

	t.Run("missing token test", func(t *testing.T) {
		assert.Equal(t, codes.Unauthenticated, status.Code(push(context.Background(), "secured")))
	})

	t.Run("invalid token test", func(t *testing.T) {
		assert.Equal(t, codes.Unauthenticated, status.Code(push(withToken("not-a-token"), "secured")))
	})

	t.Run("token of another store test", func(t *testing.T) {
		token, err := server.TokenManager().Generate("alice", "other")
		require.NoError(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(push(withToken(token), "secured")))
	})

	t.Run("token of the store test", func(t *testing.T) {
		token, err := server.TokenManager().Generate("alice", "secured")
		require.NoError(t, err)
		assert.NoError(t, push(withToken(token), "secured"))

		resp, err := client.ListStores(withToken(token), &types.ListStoresRequest{})
		require.NoError(t, err)
		require.Len(t, resp.Stores, 1)
		assert.Equal(t, "secured", resp.Stores[0].ID)
	})
}
