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

package helper

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/rpc"
)

// TestSecretKey is the secret key of the servers started with
// StartAuthServer.
const TestSecretKey = "livesync-test-secret"

// RPCAddr returns the address of a server listening on the given port.
func RPCAddr(port int) string {
	return fmt.Sprintf("localhost:%d", port)
}

// StartServer starts an RPC server on the given port over an in-memory
// backend. Authentication is disabled.
func StartServer(t *testing.T, port int) (*rpc.Server, *backend.Backend) {
	return startServer(t, port, "")
}

// StartAuthServer starts an RPC server on the given port that requires
// tokens signed with TestSecretKey.
func StartAuthServer(t *testing.T, port int) (*rpc.Server, *backend.Backend) {
	return startServer(t, port, TestSecretKey)
}

func startServer(t *testing.T, port int, secretKey string) (*rpc.Server, *backend.Backend) {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)

	be, err := backend.New(&backend.Config{
		SecretKey:              secretKey,
		PullPageSize:           2,
		MaxPushBatchSize:       100,
		SubscriptionBufferSize: 64,
	}, nil, metrics)
	require.NoError(t, err)

	server, err := rpc.NewServer(&rpc.Config{
		Port:                  port,
		MaxConnectionAge:      "1h",
		MaxConnectionAgeGrace: "10s",
		TokenDuration:         "1h",
	}, be)
	require.NoError(t, err)
	require.NoError(t, server.Start())

	t.Cleanup(func() {
		server.Shutdown(false)
		require.NoError(t, be.Shutdown())
	})
	return server, be
}
