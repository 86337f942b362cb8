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

// Package grpchelper provides the helpers shared by the gRPC handlers of the
// sync server: request logging, user agents and status errors.
package grpchelper

import (
	"context"
	"path"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/rs/xid"
	"google.golang.org/grpc"
	grpcmetadata "google.golang.org/grpc/metadata"

	"github.com/yorkie-team/livesync/internal/logging"
)

// LoggingInterceptor puts a logger into the context of every call. The
// logger is named after a fresh request id and carries the method and the
// user agent of the call.
type LoggingInterceptor struct{}

// NewLoggingInterceptor creates a new instance of LoggingInterceptor.
func NewLoggingInterceptor() *LoggingInterceptor {
	return &LoggingInterceptor{}
}

// Unary creates a unary server interceptor for request logging.
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		return handler(logging.With(ctx, newLogger(ctx, info.FullMethod)), req)
	}
}

// Stream creates a stream server interceptor for request logging.
func (i *LoggingInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		wrapped := grpcmiddleware.WrapServerStream(ss)
		wrapped.WrappedContext = logging.With(ss.Context(), newLogger(ss.Context(), info.FullMethod))
		return handler(srv, wrapped)
	}
}

// RequestID returns a new id for a request.
func RequestID() string {
	return "r" + xid.New().String()
}

func newLogger(ctx context.Context, fullMethod string) logging.Logger {
	fields := []logging.Field{logging.NewField("method", path.Base(fullMethod))}

	if data, ok := grpcmetadata.FromIncomingContext(ctx); ok {
		if agent := UserAgent(data); agent != "" {
			fields = append(fields, logging.NewField("agent", agent))
		}
	}
	return logging.New(RequestID(), fields...)
}
