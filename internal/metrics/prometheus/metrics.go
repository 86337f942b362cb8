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

// Package prometheus provides a Prometheus metrics exporter. Every method is
// safe to call on a nil *Metrics, which records nothing.
package prometheus

import (
	"fmt"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"

	"github.com/yorkie-team/livesync/internal/version"
)

const (
	namespace     = "livesync"
	storeLabel    = "store_id"
	taskTypeLabel = "task_type"
	sourceLabel   = "source"
)

// Metrics manages the metric information that livesync is trying to measure.
type Metrics struct {
	registry      *prometheus.Registry
	serverMetrics *grpcprometheus.ServerMetrics

	serverVersion        *prometheus.GaugeVec
	serverHandledCounter *prometheus.CounterVec

	serverPushResponseSeconds prometheus.Histogram
	serverPushedEventsTotal   *prometheus.CounterVec
	serverPulledEventsTotal   *prometheus.CounterVec
	serverPullConnections     *prometheus.GaugeVec

	leaderPushBatchesTotal      *prometheus.CounterVec
	leaderPushRejectionsTotal   *prometheus.CounterVec
	leaderRebasesTotal          *prometheus.CounterVec
	leaderRolledBackEventsTotal *prometheus.CounterVec
	backendPushedEventsTotal    *prometheus.CounterVec
	backendPulledEventsTotal    *prometheus.CounterVec

	sessionCommittedEventsTotal *prometheus.CounterVec

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	serverMetrics := grpcprometheus.NewServerMetrics()
	serverMetrics.EnableHandlingTimeHistogram()
	if err := reg.Register(serverMetrics); err != nil {
		return nil, fmt.Errorf("register grpc server metrics: %w", err)
	}

	metrics := &Metrics{
		registry:      reg,
		serverMetrics: serverMetrics,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		serverHandledCounter: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "server_handled_total",
			Help:      "Total number of RPCs completed on the server, regardless of success or failure.",
		}, []string{"rpc_type", "rpc_service", "rpc_method", "rpc_code"}),
		serverPushResponseSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "push_response_seconds",
			Help:      "The response time of Push.",
		}),
		serverPushedEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "pushed_events_total",
			Help:      "The total count of events appended to stores by Push.",
		}, []string{storeLabel}),
		serverPulledEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "pulled_events_total",
			Help:      "The total count of events sent to pullers.",
		}, []string{storeLabel}),
		serverPullConnections: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "pull_connections",
			Help:      "The number of live pull streams.",
		}, []string{storeLabel}),
		leaderPushBatchesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leader",
			Name:      "push_batches_total",
			Help:      "The total count of local push batches processed by the leader.",
		}, []string{storeLabel}),
		leaderPushRejectionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leader",
			Name:      "push_rejections_total",
			Help:      "The total count of local push batches rejected by the leader.",
		}, []string{storeLabel}),
		leaderRebasesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leader",
			Name:      "rebases_total",
			Help:      "The total count of rebases, by what triggered them.",
		}, []string{storeLabel, sourceLabel}),
		leaderRolledBackEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leader",
			Name:      "rolled_back_events_total",
			Help:      "The total count of events rolled back from the state.",
		}, []string{storeLabel}),
		backendPushedEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "pushed_events_total",
			Help:      "The total count of events pushed to the sync backend.",
		}, []string{storeLabel}),
		backendPulledEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "pulled_events_total",
			Help:      "The total count of events pulled from the sync backend.",
		}, []string{storeLabel}),
		sessionCommittedEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "committed_events_total",
			Help:      "The total count of events committed by sessions.",
		}, []string{storeLabel}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by background.",
		}, []string{taskTypeLabel}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// AddServerHandledCounter adds a counter for a handled RPC.
func (m *Metrics) AddServerHandledCounter(rpcType, rpcService, rpcMethod, rpcCode string) {
	if m == nil {
		return
	}
	m.serverHandledCounter.With(prometheus.Labels{
		"rpc_type":    rpcType,
		"rpc_service": rpcService,
		"rpc_method":  rpcMethod,
		"rpc_code":    rpcCode,
	}).Inc()
}

// ObserveServerPushResponseSeconds adds an observation for the response time
// of Push.
func (m *Metrics) ObserveServerPushResponseSeconds(seconds float64) {
	if m == nil {
		return
	}
	m.serverPushResponseSeconds.Observe(seconds)
}

// AddServerPushedEvents adds the number of events appended by Push.
func (m *Metrics) AddServerPushedEvents(storeID string, count int) {
	if m == nil {
		return
	}
	m.serverPushedEventsTotal.With(prometheus.Labels{storeLabel: storeID}).Add(float64(count))
}

// AddServerPulledEvents adds the number of events sent to pullers.
func (m *Metrics) AddServerPulledEvents(storeID string, count int) {
	if m == nil {
		return
	}
	m.serverPulledEventsTotal.With(prometheus.Labels{storeLabel: storeID}).Add(float64(count))
}

// AddServerPullConnections adds a live pull stream.
func (m *Metrics) AddServerPullConnections(storeID string) {
	if m == nil {
		return
	}
	m.serverPullConnections.With(prometheus.Labels{storeLabel: storeID}).Inc()
}

// RemoveServerPullConnections removes a live pull stream.
func (m *Metrics) RemoveServerPullConnections(storeID string) {
	if m == nil {
		return
	}
	m.serverPullConnections.With(prometheus.Labels{storeLabel: storeID}).Dec()
}

// AddLeaderPushBatch counts a processed local push batch.
func (m *Metrics) AddLeaderPushBatch(storeID string) {
	if m == nil {
		return
	}
	m.leaderPushBatchesTotal.With(prometheus.Labels{storeLabel: storeID}).Inc()
}

// AddLeaderPushRejection counts a rejected local push batch.
func (m *Metrics) AddLeaderPushRejection(storeID string) {
	if m == nil {
		return
	}
	m.leaderPushRejectionsTotal.With(prometheus.Labels{storeLabel: storeID}).Inc()
}

// AddLeaderRebase counts a rebase and the number of events it rolled back.
func (m *Metrics) AddLeaderRebase(storeID, source string, rolledBack int) {
	if m == nil {
		return
	}
	m.leaderRebasesTotal.With(prometheus.Labels{storeLabel: storeID, sourceLabel: source}).Inc()
	m.leaderRolledBackEventsTotal.With(prometheus.Labels{storeLabel: storeID}).Add(float64(rolledBack))
}

// AddBackendPushedEvents adds the number of events pushed to the backend.
func (m *Metrics) AddBackendPushedEvents(storeID string, count int) {
	if m == nil {
		return
	}
	m.backendPushedEventsTotal.With(prometheus.Labels{storeLabel: storeID}).Add(float64(count))
}

// AddBackendPulledEvents adds the number of events pulled from the backend.
func (m *Metrics) AddBackendPulledEvents(storeID string, count int) {
	if m == nil {
		return
	}
	m.backendPulledEventsTotal.With(prometheus.Labels{storeLabel: storeID}).Add(float64(count))
}

// AddSessionCommittedEvents adds the number of events committed by a session.
func (m *Metrics) AddSessionCommittedEvents(storeID string, count int) {
	if m == nil {
		return
	}
	m.sessionCommittedEventsTotal.With(prometheus.Labels{storeLabel: storeID}).Add(float64(count))
}

// AddBackgroundGoroutines adds the number of goroutines attached by
// background.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	if m == nil {
		return
	}
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines removes the number of goroutines attached by
// background.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	if m == nil {
		return
	}
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		taskTypeLabel: taskType,
	}).Dec()
}

// ServerMetrics returns the gRPC server metrics whose interceptors measure
// the RPCs of the sync server. Without metrics, the returned server metrics
// are not registered anywhere.
func (m *Metrics) ServerMetrics() *grpcprometheus.ServerMetrics {
	if m == nil {
		return grpcprometheus.NewServerMetrics()
	}
	return m.serverMetrics
}

// RegisterGRPCServer initializes the gRPC server metrics for every method of
// the given server.
func (m *Metrics) RegisterGRPCServer(server *grpc.Server) {
	if m == nil {
		return
	}
	m.serverMetrics.InitializeMetrics(server)
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
