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

// Package background provides the background service. It manages the
// long-running goroutines of a leader, a session or the server, and cancels
// and waits for them on close.
package background

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
)

type routineID int32

func (c *routineID) next(prefix string) string {
	next := atomic.AddInt32((*int32)(c), 1)
	return prefix + strconv.Itoa(int(next))
}

// Background is the background service. It is responsible for managing
// background routines.
type Background struct {
	// name prefixes the names of the routine loggers.
	name string

	// ctx is the parent context of every routine. It is canceled on close.
	ctx    context.Context
	cancel context.CancelFunc

	// closing is closed by close.
	closing chan struct{}

	// wgMu blocks concurrent WaitGroup mutation while closing.
	wgMu sync.RWMutex

	// wg is used to wait for the goroutines to exit on close.
	wg sync.WaitGroup

	routineID routineID

	metrics *prometheus.Metrics
}

// New creates a new background service. metrics may be nil.
func New(name string, metrics *prometheus.Metrics) *Background {
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{
		name:    name,
		ctx:     ctx,
		cancel:  cancel,
		closing: make(chan struct{}),
		metrics: metrics,
	}
}

// AttachGoroutine creates a goroutine on a given function and tracks it using
// the background's WaitGroup. The function must return once its context is
// done. It returns false if the background is already closed.
func (b *Background) AttachGoroutine(
	f func(ctx context.Context),
	taskType string,
) bool {
	b.wgMu.RLock() // this blocks with ongoing close(b.closing)
	defer b.wgMu.RUnlock()
	select {
	case <-b.closing:
		logging.DefaultLogger().Warnf("%s has closed; skipping %s", b.name, taskType)
		return false
	default:
	}

	// now safe to add since WaitGroup wait has not started yet
	b.wg.Add(1)
	routineLogger := logging.New(b.routineID.next(b.name+"-"), logging.NewField("task", taskType))
	b.metrics.AddBackgroundGoroutines(taskType)
	go func() {
		defer func() {
			b.wg.Done()
			b.metrics.RemoveBackgroundGoroutines(taskType)
		}()
		f(logging.With(b.ctx, routineLogger))
	}()
	return true
}

// Close cancels the routines and waits for them to exit. It is safe to call
// more than once.
func (b *Background) Close() {
	b.wgMu.Lock()
	select {
	case <-b.closing:
	default:
		close(b.closing)
	}
	b.wgMu.Unlock()

	b.cancel()
	b.wg.Wait()
}
