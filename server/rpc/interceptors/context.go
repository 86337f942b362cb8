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

package interceptors

import (
	"context"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"google.golang.org/grpc"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/server/rpc/auth"
	"github.com/yorkie-team/livesync/server/rpc/metadata"
)

// ErrMissingToken is returned when a request of an authenticated server has
// no token.
var ErrMissingToken = errors.Unauthenticated("missing authorization token")

// ContextInterceptor is an interceptor for building additional context: the
// metadata of the request and, when the server requires it, the verified
// claims of its token.
type ContextInterceptor struct {
	tokenManager *auth.TokenManager
}

// NewContextInterceptor creates a new instance of ContextInterceptor. A nil
// token manager disables authentication.
func NewContextInterceptor(tokenManager *auth.TokenManager) *ContextInterceptor {
	return &ContextInterceptor{tokenManager: tokenManager}
}

// Unary creates a unary server interceptor for building additional context.
func (i *ContextInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx, err := i.buildContext(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream creates a stream server interceptor for building additional context.
func (i *ContextInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := i.buildContext(ss.Context())
		if err != nil {
			return err
		}

		wrapped := grpcmiddleware.WrapServerStream(ss)
		wrapped.WrappedContext = ctx
		return handler(srv, wrapped)
	}
}

func (i *ContextInterceptor) buildContext(ctx context.Context) (context.Context, error) {
	md := metadata.FromIncoming(ctx)
	ctx = metadata.With(ctx, md)
	if i.tokenManager == nil {
		return ctx, nil
	}

	if md.Authorization == "" {
		return nil, ErrMissingToken
	}
	claims, err := i.tokenManager.Verify(md.Authorization)
	if err != nil {
		return nil, errors.Unauthenticated(err.Error())
	}
	return auth.With(ctx, claims), nil
}
