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

package syncbackend_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/pkg/syncbackend"
)

func TestConnectivity(t *testing.T) {
	t.Run("wait for change test", func(t *testing.T) {
		c := syncbackend.NewConnectivity(false)
		assert.False(t, c.Get())

		changed := c.Changed()
		done := make(chan error, 1)
		go func() {
			done <- c.Wait(context.Background(), true)
		}()

		c.Set(true)
		require.NoError(t, <-done)
		assert.True(t, c.Get())

		select {
		case <-changed:
		default:
			t.Fatal("changed must be closed")
		}
		require.NoError(t, c.Wait(context.Background(), true))
	})

	t.Run("set same value does not notify test", func(t *testing.T) {
		c := syncbackend.NewConnectivity(true)
		changed := c.Changed()
		c.Set(true)

		select {
		case <-changed:
			t.Fatal("changed must stay open")
		default:
		}
	})

	t.Run("wait honors context test", func(t *testing.T) {
		c := syncbackend.NewConnectivity(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, c.Wait(ctx, true), context.DeadlineExceeded)
	})
}
