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

package mongo_test

import (
	"os"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/server/backend/database/mongo"
	"github.com/yorkie-team/livesync/server/backend/database/testcases"
)

// mongoURIEnv names the variable holding the URI of a MongoDB to test
// against. The tests are skipped when it is not set.
const mongoURIEnv = "LIVESYNC_TEST_MONGO_URI"

func setupTestClient(t *testing.T) *mongo.Client {
	uri := os.Getenv(mongoURIEnv)
	if uri == "" {
		t.Skipf("%s is not set", mongoURIEnv)
	}

	config := &mongo.Config{
		ConnectionTimeout: "5s",
		ConnectionURI:     uri,
		Database:          "test-livesync-" + xid.New().String(),
		PingTimeout:       "5s",
	}
	require.NoError(t, config.Validate())

	cli, err := mongo.Dial(config)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cli.Close()) })

	return cli
}

func TestClient(t *testing.T) {
	cli := setupTestClient(t)

	t.Run("RunFindOrCreateStoreInfo test", func(t *testing.T) {
		testcases.RunFindOrCreateStoreInfoTest(t, cli)
	})

	t.Run("RunAppendEventInfos test", func(t *testing.T) {
		testcases.RunAppendEventInfosTest(t, cli)
	})

	t.Run("RunReplaceEventInfosFrom test", func(t *testing.T) {
		testcases.RunReplaceEventInfosFromTest(t, cli)
	})
}
