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

// Package server provides the livesync sync server, the remote authority
// ordering the global events of stores. It starts the RPC server and the
// profiling server.
package server

import (
	"context"
	gosync "sync"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/pkg/event"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/backend/database"
	"github.com/yorkie-team/livesync/server/profiling"
	"github.com/yorkie-team/livesync/server/rpc"
	"github.com/yorkie-team/livesync/server/rpc/health"
	"github.com/yorkie-team/livesync/server/stores"
)

// Server is the sync server. It receives the events pushed by leaders,
// stores them in the database, and streams them to the leaders pulling the
// store.
type Server struct {
	lock gosync.Mutex

	conf            *Config
	backend         *backend.Backend
	rpcServer       *rpc.Server
	profilingServer *profiling.Server

	shutdown   bool
	shutdownCh chan struct{}
}

// New creates a new instance of Server.
func New(conf *Config) (*Server, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	metrics, err := prometheus.NewMetrics()
	if err != nil {
		return nil, err
	}

	be, err := backend.New(conf.Backend, conf.Mongo, metrics)
	if err != nil {
		return nil, err
	}

	rpcServer, err := rpc.NewServer(conf.RPC, be)
	if err != nil {
		return nil, err
	}

	var profilingServer *profiling.Server
	if conf.Profiling != nil {
		profilingServer = profiling.NewServer(conf.Profiling, metrics)
		profilingServer.Handle(health.Path, rpcServer.HealthHandler())
	}

	return &Server{
		conf:            conf,
		backend:         be,
		rpcServer:       rpcServer,
		profilingServer: profilingServer,
		shutdownCh:      make(chan struct{}),
	}, nil
}

// Start starts the server by opening the rpc port.
func (s *Server) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.profilingServer != nil {
		if err := s.profilingServer.Start(); err != nil {
			return err
		}
	}

	return s.rpcServer.Start()
}

// Shutdown shuts down this server.
func (s *Server) Shutdown(graceful bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.shutdown {
		return nil
	}

	s.rpcServer.Shutdown(graceful)
	if s.profilingServer != nil {
		s.profilingServer.Shutdown(graceful)
	}

	if err := s.backend.Shutdown(); err != nil {
		return err
	}

	close(s.shutdownCh)
	s.shutdown = true
	logging.DefaultLogger().Infof("server stopped")
	return nil
}

// ShutdownCh returns the shutdown channel.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// RPCAddr returns the address of the RPC.
func (s *Server) RPCAddr() string {
	return s.conf.RPCAddr()
}

// GenerateToken issues a token granting the subject access to the given
// stores. It fails when authentication is disabled.
func (s *Server) GenerateToken(subject string, storeIDs ...string) (string, error) {
	manager := s.rpcServer.TokenManager()
	if manager == nil {
		return "", ErrAuthDisabled
	}
	return manager.Generate(subject, storeIDs...)
}

// Rewrite replaces the history of the store from the given global number on
// with the given events. Pullers that already saw a replaced event get a
// rebase. It is used for administration and testing.
func (s *Server) Rewrite(
	ctx context.Context,
	storeID string,
	from uint64,
	events []*event.Event,
) (*database.StoreInfo, error) {
	return stores.Rewrite(ctx, s.backend, storeID, from, events)
}

// Events returns every event of the store. It is used for testing.
func (s *Server) Events(ctx context.Context, storeID string) ([]*event.Event, error) {
	infos, err := stores.Events(ctx, s.backend, storeID, 0, 0)
	if err != nil {
		return nil, err
	}

	events := make([]*event.Event, 0, len(infos))
	for _, info := range infos {
		events = append(events, info.ToEvent())
	}
	return events, nil
}
