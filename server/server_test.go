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

package server_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/syncbackend"
	"github.com/yorkie-team/livesync/pkg/syncbackend/rpc"
	"github.com/yorkie-team/livesync/server"
	"github.com/yorkie-team/livesync/test/helper"
)

func TestServer(t *testing.T) {
	ctx := context.Background()

	newServer := func(t *testing.T, secretKey string) *server.Server {
		conf := server.NewConfig()
		conf.RPC.Port = 21501
		conf.Profiling.Port = 21502
		conf.Backend.SecretKey = secretKey

		s, err := server.New(conf)
		require.NoError(t, err)
		require.NoError(t, s.Start())
		t.Cleanup(func() { assert.NoError(t, s.Shutdown(true)) })
		return s
	}

	t.Run("push and rewrite test", func(t *testing.T) {
		s := newServer(t, "secret")

		token, err := s.GenerateToken("alice", "todos")
		require.NoError(t, err)
		b, err := rpc.Dial(s.RPCAddr(), "todos", rpc.WithToken(token))
		require.NoError(t, err)
		defer func() { assert.NoError(t, b.Close()) }()

		_, err = b.Push(ctx, helper.GlobalTodos(0, 3, "alice"))
		require.NoError(t, err)

		events, err := s.Events(ctx, "todos")
		require.NoError(t, err)
		assert.Len(t, events, 3)

		info, err := s.Rewrite(ctx, "todos", 2, helper.GlobalTodos(1, 1, "admin"))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), info.Head)

		stream, err := b.Pull(ctx, &syncbackend.Cursor{Seq: events[2].Seq}, syncbackend.PullOptions{})
		require.NoError(t, err)
		resp, err := stream.Recv()
		require.NoError(t, err)
		require.NotNil(t, resp.Rebase)
		assert.Equal(t, "e2", resp.Rebase.RollbackUntil.String())
		require.Len(t, resp.Batch, 1)
		assert.Equal(t, "admin", resp.Batch[0].Event.ClientID)
		_, err = stream.Recv()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("health and metrics test", func(t *testing.T) {
		newServer(t, "")

		for _, path := range []string{"/healthz", "/metrics"} {
			helper.Eventually(t, func() bool {
				resp, err := http.Get("http://localhost:21502" + path)
				if err != nil {
					return false
				}
				defer func() { _ = resp.Body.Close() }()
				return resp.StatusCode == http.StatusOK
			}, path)
		}
	})

	t.Run("token without secret key test", func(t *testing.T) {
		s := newServer(t, "")
		_, err := s.GenerateToken("alice", "todos")
		assert.ErrorIs(t, err, server.ErrAuthDisabled)
		assert.Equal(t, errors.ErrCodeFailedPrecondition, errors.StatusOf(err))
	})

	t.Run("invalid config test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.RPC.Port = -1
		_, err := server.New(conf)
		assert.Error(t, err)
	})
}
