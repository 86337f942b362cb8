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

package grpchelper

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	grpcmetadata "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yorkie-team/livesync/api/converter"
	lserrors "github.com/yorkie-team/livesync/pkg/errors"
)

// ToStatusError returns a status.Error from the given logic error. If an error
// occurs while executing logic in API handler, gRPC status.error should be
// returned so that the client can know more about the status of the request.
//
// The codes of pkg/errors match the gRPC codes. Errors without a status are
// internal. A push rejected for another reason than being behind the head is
// an invalid argument: the batch itself is malformed.
func ToStatusError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var pushErr *lserrors.InvalidPushError
	if errors.As(err, &pushErr) {
		if _, ok := pushErr.Reason.(lserrors.UnexpectedReason); ok {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}

	code := lserrors.StatusOf(err)
	if code == 0 {
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(codes.Code(code), err.Error())
}

// Trailer returns the trailer describing the given logic error, e.g. the
// expected sequence number of a push that is behind the head.
func Trailer(err error) (grpcmetadata.MD, bool) {
	reason, ok := lserrors.LeaderAheadOf(err)
	if !ok {
		return nil, false
	}
	return converter.ToLeaderAheadMD(reason), true
}
