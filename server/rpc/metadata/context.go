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

// Package metadata provides metadata for RPC.
package metadata

import (
	"context"
	"strings"

	grpcmetadata "google.golang.org/grpc/metadata"

	"github.com/yorkie-team/livesync/api/types"
)

// metadataKey is the key for the context.Context.
type metadataKey struct{}

// Metadata represents the metadata of the request.
type Metadata struct {
	// Authorization is the token of the request, without the bearer scheme.
	Authorization string
}

// FromIncoming builds the Metadata of a request from its gRPC metadata.
func FromIncoming(ctx context.Context) Metadata {
	data, ok := grpcmetadata.FromIncomingContext(ctx)
	if !ok {
		return Metadata{}
	}

	values := data.Get(types.AuthorizationKey)
	if len(values) == 0 {
		return Metadata{}
	}
	token := strings.TrimSpace(values[0])
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return Metadata{Authorization: token}
}

// From returns the metadata from the given context.
func From(ctx context.Context) Metadata {
	md, _ := ctx.Value(metadataKey{}).(Metadata)
	return md
}

// With creates a new context with the given Metadata.
func With(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}
