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

// Package cmap provides a sharded concurrent map.
package cmap

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// numShards is the number of shards.
const numShards = 16

type shard[K comparable, V any] struct {
	sync.RWMutex
	items map[K]V
}

// Map is a concurrent map that is safe for multiple routines. Keys are
// spread over shards by their xxhash so that unrelated stores do not
// contend on the same lock.
type Map[K comparable, V any] struct {
	shards [numShards]shard[K, V]
}

// New creates a new Map.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	var sum uint64
	switch k := any(key).(type) {
	case string:
		sum = xxhash.Sum64String(k)
	default:
		sum = xxhash.Sum64String(fmt.Sprint(key))
	}
	return &m.shards[sum%numShards]
}

// Set sets a key-value pair.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	s.items[key] = value
}

// Get retrieves a value from the map.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.RLock()
	defer s.RUnlock()

	value, ok := s.items[key]
	return value, ok
}

// GetOrCreate returns the value of the key, creating it with the given
// function when absent. create runs under the shard lock.
func (m *Map[K, V]) GetOrCreate(key K, create func() V) V {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	if value, ok := s.items[key]; ok {
		return value
	}
	value := create()
	s.items[key] = value
	return value
}

// Delete removes the key if cond returns true for its current value. It
// returns whether the key was removed.
func (m *Map[K, V]) Delete(key K, cond func(value V) bool) bool {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()

	value, ok := s.items[key]
	if !ok || (cond != nil && !cond(value)) {
		return false
	}
	delete(s.items, key)
	return true
}

// Len returns the number of items in the map.
func (m *Map[K, V]) Len() int {
	count := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		count += len(s.items)
		s.RUnlock()
	}
	return count
}

// Keys returns the keys of the map in no particular order.
func (m *Map[K, V]) Keys() []K {
	var keys []K
	for i := range m.shards {
		s := &m.shards[i]
		s.RLock()
		for k := range s.items {
			keys = append(keys, k)
		}
		s.RUnlock()
	}
	return keys
}
