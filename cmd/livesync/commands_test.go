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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/api/types"
	"github.com/yorkie-team/livesync/pkg/syncbackend/memory"
	"github.com/yorkie-team/livesync/server/rpc/auth"
	"github.com/yorkie-team/livesync/test/helper"
)

const testRPCPort = 21601

func execute(t *testing.T, args ...string) (string, error) {
	// flags keep the values of the previous execution
	outputFormat = ""
	eventsAfter = ""
	eventsLimit = 0
	rpcToken = ""
	tokenSecretKey = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	_, be := helper.StartServer(t, testRPCPort)
	addr := helper.RPCAddr(testRPCPort)
	store := memory.New(be, "todos")
	defer func() { assert.NoError(t, store.Close()) }()
	require.NoError(t, store.Inject(context.Background(), helper.GlobalTodos(0, 3, "alice")))

	t.Run("stores test", func(t *testing.T) {
		out, err := execute(t, "stores", "--rpc-addr", addr)
		require.NoError(t, err)
		assert.Contains(t, out, "todos")
	})

	t.Run("events test", func(t *testing.T) {
		out, err := execute(t, "events", "todos", "--rpc-addr", addr)
		require.NoError(t, err)
		assert.Contains(t, out, "alice-3")
		assert.Contains(t, out, helper.TodoCreated)

		out, err = execute(t, "events", "todos", "--rpc-addr", addr, "--after", "e1", "--limit", "1", "-o", "json")
		require.NoError(t, err)
		var items []types.Item
		require.NoError(t, json.Unmarshal([]byte(out), &items))
		require.Len(t, items, 1)
		assert.Equal(t, "e2", items[0].Event.Seq)

		_, err = execute(t, "events", "--rpc-addr", addr)
		assert.Error(t, err)
	})

	t.Run("token test", func(t *testing.T) {
		out, err := execute(t, "token", "alice", "todos", "--secret-key", "secret")
		require.NoError(t, err)

		claims, err := auth.NewTokenManager("secret", 0).Verify(string(bytes.TrimSpace([]byte(out))))
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Subject)
		assert.True(t, claims.CanAccess("todos"))
		assert.False(t, claims.CanAccess("others"))

		_, err = execute(t, "token", "alice")
		assert.Error(t, err)
	})

	t.Run("version test", func(t *testing.T) {
		out, err := execute(t, "version", "-o", "json")
		require.NoError(t, err)

		var info VersionInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.NotEmpty(t, info.Version)
		assert.NotEmpty(t, info.GoVersion)

		_, err = execute(t, "version", "-o", "xml")
		assert.ErrorIs(t, err, ErrUnknownOutput)
	})
}
