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

package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/eventlog/memory"
	"github.com/yorkie-team/livesync/pkg/eventlog/testcases"
)

func TestStore(t *testing.T) {
	newStore := func(t *testing.T) *memory.Store {
		store, err := memory.New()
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, store.Close()) })
		return store
	}

	testcases.RunAppendTest(t, newStore(t))
	testcases.RunRemoveTest(t, newStore(t))
	testcases.RunSyncStatusTest(t, newStore(t))
}
