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

package background_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/livesync/internal/background"
)

func TestBackground(t *testing.T) {
	t.Run("close cancels and waits routines test", func(t *testing.T) {
		bg := background.New("test", nil)

		var exited int32
		started := make(chan struct{}, 2)
		for i := 0; i < 2; i++ {
			assert.True(t, bg.AttachGoroutine(func(ctx context.Context) {
				started <- struct{}{}
				<-ctx.Done()
				atomic.AddInt32(&exited, 1)
			}, "loop"))
		}
		<-started
		<-started

		bg.Close()
		assert.Equal(t, int32(2), atomic.LoadInt32(&exited))

		assert.False(t, bg.AttachGoroutine(func(ctx context.Context) {}, "late"))
		bg.Close()
	})
}
