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

package cmap_test

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yorkie-team/livesync/pkg/cmap"
)

func TestMap(t *testing.T) {
	t.Run("set get and delete test", func(t *testing.T) {
		m := cmap.New[string, int]()
		m.Set("a", 1)
		m.Set("b", 2)

		v, ok := m.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 2, m.Len())

		assert.False(t, m.Delete("a", func(v int) bool { return v == 2 }))
		assert.True(t, m.Delete("a", nil))
		assert.False(t, m.Delete("a", nil))

		_, ok = m.Get("a")
		assert.False(t, ok)
		assert.Equal(t, []string{"b"}, m.Keys())
	})

	t.Run("get or create test", func(t *testing.T) {
		m := cmap.New[string, *int]()
		created := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.GetOrCreate("store", func() *int {
					created++
					v := 0
					return &v
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)
	})

	t.Run("concurrent keys test", func(t *testing.T) {
		m := cmap.New[string, int]()
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m.Set(fmt.Sprintf("k%03d", i), i)
			}(i)
		}
		wg.Wait()

		keys := m.Keys()
		sort.Strings(keys)
		assert.Len(t, keys, 100)
		assert.Equal(t, "k000", keys[0])
	})
}
