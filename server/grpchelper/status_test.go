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

package grpchelper_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yorkie-team/livesync/api/converter"
	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/eventseq"
	"github.com/yorkie-team/livesync/server/grpchelper"
)

func TestToStatusError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{errors.NewLeaderAheadError(eventseq.New(3, 0, 0), eventseq.New(1, 0, 0)), codes.FailedPrecondition},
		{&errors.InvalidPushError{Reason: errors.UnexpectedReason{Cause: fmt.Errorf("empty batch")}}, codes.InvalidArgument},
		{&errors.InvalidPullError{Cause: fmt.Errorf("cursor after head")}, codes.InvalidArgument},
		{errors.NotFound("store not found"), codes.NotFound},
		{errors.Unauthenticated("missing token"), codes.Unauthenticated},
		{fmt.Errorf("wrapped: %w", errors.Unavailable("dropped")), codes.Unavailable},
		{fmt.Errorf("boom"), codes.Internal},
		{context.Canceled, codes.Canceled},
		{status.Error(codes.ResourceExhausted, "too big"), codes.ResourceExhausted},
	}
	for _, test := range tests {
		assert.Equal(t, test.code, status.Code(grpchelper.ToStatusError(test.err)), test.err.Error())
	}
}

func TestTrailer(t *testing.T) {
	err := errors.NewLeaderAheadError(eventseq.New(3, 0, 0), eventseq.New(1, 0, 0))
	md, ok := grpchelper.Trailer(fmt.Errorf("push: %w", err))
	assert.True(t, ok)

	reason, ok := converter.FromLeaderAheadMD(md)
	assert.True(t, ok)
	assert.Equal(t, eventseq.New(3, 0, 0), reason.MinimumExpectedID)

	_, ok = grpchelper.Trailer(errors.NotFound("store not found"))
	assert.False(t, ok)
}
