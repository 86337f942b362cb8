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

// Package rpc provides the gRPC server exposing the sync service: pushing
// global events to a store and pulling its history.
package rpc

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	v1 "github.com/yorkie-team/livesync/api/v1"
	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/server/backend"
	"github.com/yorkie-team/livesync/server/grpchelper"
	"github.com/yorkie-team/livesync/server/rpc/auth"
	"github.com/yorkie-team/livesync/server/rpc/health"
	"github.com/yorkie-team/livesync/server/rpc/interceptors"
)

// Server is a normal server that processes the logic requested by the client.
type Server struct {
	conf              *Config
	grpcServer        *grpc.Server
	healthServer      *grpchealth.Server
	tokenManager      *auth.TokenManager
	syncServiceCancel context.CancelFunc

	mu  sync.Mutex
	lis net.Listener
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) (*Server, error) {
	maxAge, maxAgeGrace, tokenDuration := conf.configDurations()

	var tokenManager *auth.TokenManager
	if be.Config.SecretKey != "" {
		tokenManager = auth.NewTokenManager(be.Config.SecretKey, tokenDuration)
	}

	loggingInterceptor := grpchelper.NewLoggingInterceptor()
	defaultInterceptor := interceptors.NewDefaultInterceptor(be.Metrics)
	contextInterceptor := interceptors.NewContextInterceptor(tokenManager)
	recoveryOpt := grpcrecovery.WithRecoveryHandlerContext(func(ctx context.Context, p interface{}) error {
		logging.From(ctx).Errorf("RPC : panic: %v", p)
		return errors.Internal(fmt.Sprintf("panic: %v", p))
	})

	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			loggingInterceptor.Unary(),
			be.Metrics.ServerMetrics().UnaryServerInterceptor(),
			defaultInterceptor.Unary(),
			grpcrecovery.UnaryServerInterceptor(recoveryOpt),
			contextInterceptor.Unary(),
		)),
		grpc.StreamInterceptor(grpcmiddleware.ChainStreamServer(
			loggingInterceptor.Stream(),
			be.Metrics.ServerMetrics().StreamServerInterceptor(),
			defaultInterceptor.Stream(),
			grpcrecovery.StreamServerInterceptor(recoveryOpt),
			contextInterceptor.Stream(),
		)),
	}

	if conf.CertFile != "" && conf.KeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(conf.CertFile, conf.KeyFile)
		if err != nil {
			logging.DefaultLogger().Error(err)
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	if conf.MaxRequestBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(int(conf.MaxRequestBytes)))
	}
	opts = append(opts, grpc.MaxSendMsgSize(math.MaxInt32))
	opts = append(opts, grpc.MaxConcurrentStreams(math.MaxUint32))
	opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionAge:      maxAge,
		MaxConnectionAgeGrace: maxAgeGrace,
	}))

	syncServiceCtx, syncServiceCancel := context.WithCancel(context.Background())

	grpcServer := grpc.NewServer(opts...)
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	v1.RegisterSyncServiceServer(grpcServer, newSyncServer(syncServiceCtx, be))
	be.Metrics.RegisterGRPCServer(grpcServer)

	return &Server{
		conf:              conf,
		grpcServer:        grpcServer,
		healthServer:      healthServer,
		tokenManager:      tokenManager,
		syncServiceCancel: syncServiceCancel,
	}, nil
}

// Start starts this server by opening the rpc port.
func (s *Server) Start() error {
	return s.listenAndServeGRPC()
}

// Shutdown shuts down this server.
func (s *Server) Shutdown(graceful bool) {
	s.healthServer.Shutdown()
	s.syncServiceCancel()

	if graceful {
		s.grpcServer.GracefulStop()
	} else {
		s.grpcServer.Stop()
	}
}

// TokenManager returns the token manager of the server, or nil when
// authentication is disabled.
func (s *Server) TokenManager() *auth.TokenManager {
	return s.tokenManager
}

// HealthHandler returns the HTTP handler reporting the health of this
// server.
func (s *Server) HealthHandler() http.Handler {
	return health.NewHTTPHandler(s.healthServer)
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func (s *Server) listenAndServeGRPC() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.conf.Port))
	if err != nil {
		logging.DefaultLogger().Error(err)
		return err
	}

	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()

	go func() {
		logging.DefaultLogger().Infof("serving RPC on %d", s.conf.Port)

		if err := s.grpcServer.Serve(lis); err != nil {
			if err != grpc.ErrServerStopped {
				logging.DefaultLogger().Error(err)
			}
		}
	}()

	return nil
}
