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

package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/livesync/server/backend"
)

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := backend.Config{
			PullPageSize:           100,
			MaxPushBatchSize:       100,
			SubscriptionBufferSize: 64,
		}
		assert.NoError(t, validConf.Validate())

		conf1 := validConf
		conf1.PullPageSize = 0
		assert.ErrorIs(t, conf1.Validate(), backend.ErrInvalidPullPageSize)

		conf2 := validConf
		conf2.MaxPushBatchSize = 101
		assert.ErrorIs(t, conf2.Validate(), backend.ErrInvalidMaxPushBatchSize)

		conf3 := validConf
		conf3.SubscriptionBufferSize = -1
		assert.Error(t, conf3.Validate())
	})
}
