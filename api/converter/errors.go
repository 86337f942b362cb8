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

package converter

import (
	"google.golang.org/grpc/metadata"

	"github.com/yorkie-team/livesync/pkg/errors"
	"github.com/yorkie-team/livesync/pkg/eventseq"
)

// Below are the trailer keys carrying the reason of a rejected push.
const (
	MinimumExpectedIDKey = "livesync-minimum-expected-id"
	ProvidedIDKey        = "livesync-provided-id"
)

// ToLeaderAheadMD returns the trailer describing the given reason.
func ToLeaderAheadMD(reason errors.LeaderAhead) metadata.MD {
	return metadata.Pairs(
		MinimumExpectedIDKey, reason.MinimumExpectedID.String(),
		ProvidedIDKey, reason.ProvidedID.String(),
	)
}

// FromLeaderAheadMD returns the reason described by the given trailer, if
// any.
func FromLeaderAheadMD(md metadata.MD) (errors.LeaderAhead, bool) {
	expected := md.Get(MinimumExpectedIDKey)
	provided := md.Get(ProvidedIDKey)
	if len(expected) == 0 || len(provided) == 0 {
		return errors.LeaderAhead{}, false
	}

	expectedID, err := eventseq.FromString(expected[0])
	if err != nil {
		return errors.LeaderAhead{}, false
	}
	providedID, err := eventseq.FromString(provided[0])
	if err != nil {
		return errors.LeaderAhead{}, false
	}

	return errors.LeaderAhead{MinimumExpectedID: expectedID, ProvidedID: providedID}, true
}
