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

// Package interceptors provides the interceptors for RPC.
package interceptors

import (
	"context"
	"errors"
	"strings"
	gotime "time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/yorkie-team/livesync/internal/logging"
	"github.com/yorkie-team/livesync/internal/metrics/prometheus"
	"github.com/yorkie-team/livesync/server/grpchelper"
)

const (
	// SlowThreshold is the threshold for slow RPC.
	SlowThreshold = 100 * gotime.Millisecond
)

// DefaultInterceptor is an interceptor for common RPC. It converts the
// errors of the handlers to status errors and counts the handled RPCs.
type DefaultInterceptor struct {
	metrics *prometheus.Metrics
}

// NewDefaultInterceptor creates a new instance of DefaultInterceptor.
func NewDefaultInterceptor(metrics *prometheus.Metrics) *DefaultInterceptor {
	return &DefaultInterceptor{metrics: metrics}
}

// Unary creates a unary server interceptor for default.
func (i *DefaultInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := gotime.Now()
		resp, err := handler(ctx, req)
		reqLogger := logging.From(ctx)
		if err != nil {
			if md, ok := grpchelper.Trailer(err); ok {
				if trailerErr := grpc.SetTrailer(ctx, md); trailerErr != nil {
					reqLogger.Warnf("RPC : set trailer of %q: %v", info.FullMethod, trailerErr)
				}
			}
			err = grpchelper.ToStatusError(err)
			reqLogger.Warnf("RPC : %q %s => %q", info.FullMethod, gotime.Since(start), err)
		} else if gotime.Since(start) > SlowThreshold {
			reqLogger.Infof("RPC : %q %s", info.FullMethod, gotime.Since(start))
		}

		i.count("unary", info.FullMethod, err)
		return resp, err
	}
}

// Stream creates a stream server interceptor for default.
func (i *DefaultInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		reqLogger := logging.From(ss.Context())

		start := gotime.Now()
		err := handler(srv, ss)
		if err != nil {
			if md, ok := grpchelper.Trailer(err); ok {
				ss.SetTrailer(md)
			}
			if errors.Is(err, context.Canceled) {
				reqLogger.Debugf("RPC : stream %q %s => %q", info.FullMethod, gotime.Since(start), err.Error())
			} else {
				reqLogger.Warnf("RPC : stream %q %s => %q", info.FullMethod, gotime.Since(start), err.Error())
			}
			err = grpchelper.ToStatusError(err)
		} else {
			reqLogger.Debugf("RPC : stream %q %s", info.FullMethod, gotime.Since(start))
		}

		i.count("server_stream", info.FullMethod, err)
		return err
	}
}

func (i *DefaultInterceptor) count(rpcType, fullMethod string, err error) {
	service, method := splitMethodName(fullMethod)
	i.metrics.AddServerHandledCounter(rpcType, service, method, status.Code(err).String())
}

// splitMethodName splits "/package.Service/Method" into its service and
// method.
func splitMethodName(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	if i := strings.Index(fullMethod, "/"); i >= 0 {
		return fullMethod[:i], fullMethod[i+1:]
	}
	return "unknown", fullMethod
}
