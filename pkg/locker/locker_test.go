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

package locker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/locker"
)

func TestLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("lock and unlock test", func(t *testing.T) {
		l := locker.New()
		require.NoError(t, l.Lock(ctx, "store"))
		assert.False(t, l.TryLock("store"))
		assert.True(t, l.TryLock("other"))

		require.NoError(t, l.Unlock("store"))
		require.NoError(t, l.Unlock("other"))
		assert.ErrorIs(t, l.Unlock("store"), locker.ErrNoSuchLock)
	})

	t.Run("lock honors context test", func(t *testing.T) {
		l := locker.New()
		require.NoError(t, l.Lock(ctx, "store"))

		timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Lock(timeout, "store"), context.DeadlineExceeded)

		require.NoError(t, l.Unlock("store"))
		assert.True(t, l.TryLock("store"))
		require.NoError(t, l.Unlock("store"))
	})

	t.Run("serializes holders test", func(t *testing.T) {
		l := locker.New()
		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, l.Lock(ctx, "store"))
				counter++
				assert.NoError(t, l.Unlock("store"))
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	})
}
