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

package client

import (
	"time"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/pkg/materializer"
)

// DefaultPushBatchSize is the default number of events pushed to the leader
// at once.
const DefaultPushBatchSize = 100

// DefaultRetryInterval is the default interval between the pushes of a batch
// the leader rejected before it saw the rebase of the session.
const DefaultRetryInterval = 50 * time.Millisecond

// Option configures Options.
type Option func(*Options)

// Options configures how we set up the session.
type Options struct {
	// ClientID is the id of the client the session belongs to. A random id
	// is used if it is empty.
	ClientID string

	// SessionID is the id of the session. A random id is used if it is
	// empty.
	SessionID string

	// SnapshotBoot boots the session from a snapshot of the state of the
	// leader instead of replaying its event log.
	SnapshotBoot bool

	// PushBatchSize is the number of events pushed to the leader at once.
	PushBatchSize int

	// RetryInterval is how long a rejected batch waits for a rebase before
	// it is pushed again.
	RetryInterval time.Duration

	// DevMode validates the sync state after every merge and checks the
	// materializer hashes of the events.
	DevMode bool

	// MaterializerOptions configure the materializer of the session.
	MaterializerOptions []materializer.Option

	// Metrics is the metrics of the session. It may be nil.
	Metrics *prometheus.Metrics

	// Logger is the Logger of the session.
	Logger logging.Logger
}

// WithClientID configures the client id of the session.
func WithClientID(id string) Option {
	return func(o *Options) { o.ClientID = id }
}

// WithSessionID configures the id of the session.
func WithSessionID(id string) Option {
	return func(o *Options) { o.SessionID = id }
}

// WithSnapshotBoot boots the session from a snapshot of the leader.
func WithSnapshotBoot() Option {
	return func(o *Options) { o.SnapshotBoot = true }
}

// WithPushBatchSize configures the number of events pushed at once.
func WithPushBatchSize(size int) Option {
	return func(o *Options) { o.PushBatchSize = size }
}

// WithRetryInterval configures the interval between the pushes of a
// rejected batch.
func WithRetryInterval(interval time.Duration) Option {
	return func(o *Options) { o.RetryInterval = interval }
}

// WithDevMode enables the dev mode checks.
func WithDevMode(enabled bool) Option {
	return func(o *Options) { o.DevMode = enabled }
}

// WithMaterializerOptions configures the materializer of the session.
func WithMaterializerOptions(opts ...materializer.Option) Option {
	return func(o *Options) { o.MaterializerOptions = append(o.MaterializerOptions, opts...) }
}

// WithMetrics configures the metrics of the session.
func WithMetrics(metrics *prometheus.Metrics) Option {
	return func(o *Options) { o.Metrics = metrics }
}

// WithLogger configures the Logger of the session.
func WithLogger(logger logging.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
