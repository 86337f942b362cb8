//go:build integration

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

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/client"
	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/leader"
	"github.com/yorkie-team/livesync/pkg/eventlog"
	eventlogmemory "github.com/yorkie-team/livesync/pkg/eventlog/memory"
	eventlogsqlite "github.com/yorkie-team/livesync/pkg/eventlog/sqlite"
	"github.com/yorkie-team/livesync/pkg/statedb"
	"github.com/yorkie-team/livesync/pkg/syncbackend/rpc"
	"github.com/yorkie-team/livesync/server"
	"github.com/yorkie-team/livesync/test/helper"
)

const (
	testRPCPort       = 21401
	testProfilingPort = 21402
)

var defaultServer *server.Server

func TestMain(m *testing.M) {
	conf := server.NewConfig()
	conf.RPC.Port = testRPCPort
	conf.Profiling.Port = testProfilingPort
	conf.Backend.SecretKey = helper.TestSecretKey

	s, err := server.New(conf)
	if err != nil {
		logging.DefaultLogger().Fatal(err)
	}
	if err := s.Start(); err != nil {
		logging.DefaultLogger().Fatal(err)
	}
	defaultServer = s

	code := m.Run()
	if err := defaultServer.Shutdown(true); err != nil {
		logging.DefaultLogger().Error(err)
	}
	os.Exit(code)
}

// dial connects to the default server with a token for the given store.
func dial(t *testing.T, storeID string) *rpc.Backend {
	token, err := defaultServer.GenerateToken(t.Name(), storeID)
	require.NoError(t, err)

	b, err := rpc.Dial(defaultServer.RPCAddr(), storeID, rpc.WithToken(token), rpc.WithUserAgent("integration"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, b.Close()) })
	helper.Eventually(t, b.Connectivity().Get, "the backend connects")
	return b
}

// files are the paths of the on-disk state of a leader.
type files struct {
	eventlog string
	state    string
}

func newFiles(t *testing.T) files {
	dir := t.TempDir()
	return files{
		eventlog: filepath.Join(dir, "eventlog.db"),
		state:    filepath.Join(dir, "state.db"),
	}
}

// openLeader starts a leader of the store. When f is nil the leader keeps
// its event log and state in memory. The returned function closes the leader
// and the databases it works on.
func openLeader(t *testing.T, storeID string, f *files) (*leader.Leader, func()) {
	ctx := context.Background()

	var (
		log   eventlog.Store
		state *statedb.DB
		err   error
	)
	if f == nil {
		log, err = eventlogmemory.New()
		require.NoError(t, err)
		state, err = statedb.Open(ctx, statedb.MemoryPath, helper.TodoSchema())
		require.NoError(t, err)
	} else {
		log, err = eventlogsqlite.Open(ctx, f.eventlog)
		require.NoError(t, err)
		state, err = statedb.Open(ctx, f.state, helper.TodoSchema())
		require.NoError(t, err)
	}

	l, err := leader.New(ctx, leader.Config{
		StoreID:       storeID,
		RetryInterval: 20 * time.Millisecond,
		DevMode:       true,
	}, leader.Deps{
		State:    state,
		Eventlog: log,
		Backend:  dial(t, storeID),
	})
	require.NoError(t, err)

	closed := false
	closeAll := func() {
		if closed {
			return
		}
		closed = true
		assert.NoError(t, l.Close())
		assert.NoError(t, state.Close())
		assert.NoError(t, log.Close())
	}
	t.Cleanup(closeAll)
	return l, closeAll
}

func newSession(t *testing.T, l *leader.Leader, clientID string) *client.Session {
	s, err := client.NewSession(context.Background(), l, client.WithClientID(clientID), client.WithDevMode(true))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

// waitSettled waits until every session has no pending events and has seen
// the given upstream head.
func waitSettled(t *testing.T, head uint64, sessions ...*client.Session) {
	helper.Eventually(t, func() bool {
		for _, s := range sessions {
			state := s.SyncState()
			if len(state.Pending) > 0 || state.UpstreamHead.Global != head {
				return false
			}
		}
		return true
	}, "sessions settle at e%d", head)
}
