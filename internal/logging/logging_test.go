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

package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/yorkie-team/livesync/internal/logging"
)

func TestLogging(t *testing.T) {
	t.Run("set log level test", func(t *testing.T) {
		assert.NoError(t, logging.SetLogLevel("warn"))
		assert.False(t, logging.Enabled(zapcore.InfoLevel))
		assert.True(t, logging.Enabled(zapcore.ErrorLevel))
		assert.NoError(t, logging.SetLogLevel("info"))

		assert.Error(t, logging.SetLogLevel("verbose"))
		assert.Error(t, logging.SetEncoding("xml"))
	})

	t.Run("context test", func(t *testing.T) {
		logger := logging.New("leader", logging.NewField("store", "todos"))
		ctx := logging.With(context.Background(), logger)

		assert.Same(t, logger, logging.From(ctx))
		assert.Same(t, logging.DefaultLogger(), logging.From(context.Background()))
	})
}
