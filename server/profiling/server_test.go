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

package profiling_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/server/profiling"
)

func TestServer(t *testing.T) {
	metrics, err := prometheus.NewMetrics()
	require.NoError(t, err)
	metrics.AddServerPushedEvents("todos", 3)

	get := func(s *profiling.Server, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("metrics test", func(t *testing.T) {
		s := profiling.NewServer(&profiling.Config{Port: 8081}, metrics)
		rec := get(s, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "livesync_server_pushed_events_total")
	})

	t.Run("pprof test", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(profiling.NewServer(&profiling.Config{Port: 8081}, nil), "/debug/pprof/").Code)
		assert.Equal(t, http.StatusOK, get(profiling.NewServer(&profiling.Config{Port: 8081, EnablePprof: true}, nil), "/debug/pprof/").Code)
	})

	t.Run("handle test", func(t *testing.T) {
		s := profiling.NewServer(&profiling.Config{Port: 8081}, nil)
		s.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		assert.Equal(t, http.StatusNoContent, get(s, "/healthz").Code)
	})
}
